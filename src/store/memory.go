// Copyright 2021 Ilia Frenkel. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE.txt file.

package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// MemDB is a memory storage that implements the store.Interface.
// Because it's a transient storage you will loose all the data once the
// process exits. It's not completely useless though. You can use it for
// testing or for a temporary sharing session.
type MemDB struct {
	pastes map[int64]Paste
	lastID int64
	sync.RWMutex
}

// Fail if the struct does not match the Interface.
var _ = Interface(&MemDB{})

// NewMemDB initialises and returns an instance of MemDB.
func NewMemDB() *MemDB {
	var s MemDB
	s.pastes = make(map[int64]Paste)

	return &s
}

// List returns all the pastes ordered by id.
func (m *MemDB) List(_ context.Context) ([]Paste, error) {
	m.RLock()
	pastes := make([]Paste, 0, len(m.pastes))
	for _, p := range m.pastes {
		pastes = append(pastes, p)
	}
	m.RUnlock()

	sort.Slice(pastes, func(i, j int) bool {
		return pastes[i].ID < pastes[j].ID
	})

	return pastes, nil
}

// Create creates and stores a new paste returning its ID.
// IDs are never reused, even after the paste with the highest ID is deleted.
func (m *MemDB) Create(_ context.Context, p Paste) (id int64, err error) {
	m.Lock()
	defer m.Unlock()

	m.lastID++
	p.ID = m.lastID
	m.pastes[p.ID] = p

	return p.ID, nil
}

// Update replaces title and text of an existing paste.
func (m *MemDB) Update(_ context.Context, id int64, title, text string) (Paste, error) {
	m.Lock()
	defer m.Unlock()

	p, ok := m.pastes[id]
	if !ok {
		return Paste{}, fmt.Errorf("MemDB.Update: %w: id [%d]", ErrNotFound, id)
	}
	p.Title = title
	p.Text = text
	m.pastes[id] = p

	return p, nil
}

// Delete deletes a paste by ID.
func (m *MemDB) Delete(_ context.Context, id int64) error {
	m.Lock()
	defer m.Unlock()

	delete(m.pastes, id)

	return nil
}

// Close does nothing for MemDB.
func (m *MemDB) Close() error {
	return nil
}
