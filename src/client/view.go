package client

import (
	"sort"
	"strings"
	"time"

	"github.com/iliafrenkel/unbin/src/store"
)

// SortOrder defines how View orders pastes by date.
type SortOrder int

// Supported sort orders, newest first is the default.
const (
	SortNewest SortOrder = iota
	SortOldest
)

func (o SortOrder) String() string {
	if o == SortOldest {
		return "Oldest first"
	}
	return "Newest first"
}

// View returns pastes whose title contains search (case-insensitive), sorted
// by date in the given order. Pastes with the same date are ordered by id.
// The input slice is not modified.
func View(pastes []store.Paste, search string, order SortOrder) []store.Paste {
	q := strings.ToLower(search)
	res := make([]store.Paste, 0, len(pastes))
	for _, p := range pastes {
		if strings.Contains(strings.ToLower(p.Title), q) {
			res = append(res, p)
		}
	}

	sort.SliceStable(res, func(i, j int) bool {
		a, b := res[i].Created(), res[j].Created()
		if a.Equal(b) {
			if order == SortOldest {
				return res[i].ID < res[j].ID
			}
			return res[i].ID > res[j].ID
		}
		if order == SortOldest {
			return a.Before(b)
		}
		return a.After(b)
	})

	return res
}

// FormatDate formats a paste date as MM-DD-YYYY in local time. Dates that
// cannot be parsed are returned as is.
func FormatDate(date string) string {
	t, err := time.Parse(time.RFC3339Nano, date)
	if err != nil {
		return date
	}
	return t.Local().Format("01-02-2006")
}
