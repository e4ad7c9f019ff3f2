// Copyright 2021 Ilia Frenkel. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE.txt file.

// Package store defines a common interface that any concrete storage
// implementation must implement along with the Paste type it stores.
// It provides three implementations of store.Interface - MemDB, SQLDB
// (SQLite or Postgres through gorm) and DiskStore.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Update when there is no paste with the given id.
var ErrNotFound = errors.New("paste not found")

// DateLayout is the format of Paste.Date, ISO-8601 in UTC with milliseconds.
const DateLayout = "2006-01-02T15:04:05.000Z"

// Interface defines methods that an implementation of a concrete storage
// must provide.
type Interface interface {
	List(ctx context.Context) ([]Paste, error)                               // all pastes in insertion order
	Create(ctx context.Context, paste Paste) (id int64, err error)           // create new paste and return its id
	Update(ctx context.Context, id int64, title, text string) (Paste, error) // replace title and text of a paste
	Delete(ctx context.Context, id int64) error                              // delete paste by id, no-op if missing
	Close() error                                                            // release underlying resources
}

// Paste represents a single paste.
type Paste struct {
	ID    int64  `json:"id" gorm:"primaryKey;autoIncrement"`
	Title string `json:"title" gorm:"type:text;not null"`
	Text  string `json:"text" gorm:"type:text;not null"`
	Date  string `json:"date" gorm:"type:text;not null"`
}

// Created parses the paste date. It returns zero time if the date is not in
// a recognised format.
func (p Paste) Created() time.Time {
	t, err := time.Parse(time.RFC3339Nano, p.Date)
	if err != nil {
		return time.Time{}
	}
	return t
}

// Now returns the current time formatted as a paste date.
func Now() string {
	return time.Now().UTC().Format(DateLayout)
}
