// Copyright 2021 Ilia Frenkel. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE.txt file.

package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// SQLDB is an SQL database storage that implements the store.Interface.
// It works with any gorm dialect, NewSQLite and NewPostgres are provided
// for convenience.
type SQLDB struct {
	db *gorm.DB
}

// Fail if the struct does not match the Interface.
var _ = Interface(&SQLDB{})

// NewSQLite opens (or creates) an SQLite database file at path.
func NewSQLite(path string, autoMigrate bool) (*SQLDB, error) {
	return NewSQLDB(sqlite.Open(path), autoMigrate)
}

// NewPostgres connects to a Postgres database using conn as a DSN.
func NewPostgres(conn string, autoMigrate bool) (*SQLDB, error) {
	return NewSQLDB(postgres.Open(conn), autoMigrate)
}

// NewSQLDB initialises a new instance of SQLDB and returns it.
// It tries to establish a database connection with the dialector and if
// autoMigrate is true it will try and create/alter the pastes table.
func NewSQLDB(dialector gorm.Dialector, autoMigrate bool) (*SQLDB, error) {
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:                 logger.Default.LogMode(logger.Silent),
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, fmt.Errorf("NewSQLDB: failed to establish database connection: %w", err)
	}
	if autoMigrate {
		err = db.AutoMigrate(&Paste{})
	} else {
		if d, e := db.DB(); e == nil {
			err = d.Ping()
		} else {
			err = e
		}
	}
	if err != nil {
		return nil, fmt.Errorf("NewSQLDB: %w", err)
	}

	return &SQLDB{db: db}, nil
}

// List returns all the pastes ordered by id.
func (s *SQLDB) List(ctx context.Context) ([]Paste, error) {
	pastes := []Paste{}
	if err := s.db.WithContext(ctx).Order("id").Find(&pastes).Error; err != nil {
		return nil, fmt.Errorf("SQLDB.List: %w", err)
	}
	return pastes, nil
}

// Create inserts a new paste and returns the id assigned by the database.
func (s *SQLDB) Create(ctx context.Context, p Paste) (id int64, err error) {
	p.ID = 0
	if err = s.db.WithContext(ctx).Create(&p).Error; err != nil {
		return 0, fmt.Errorf("SQLDB.Create: %w", err)
	}
	return p.ID, nil
}

// Update replaces title and text of an existing paste, the date stays as is.
func (s *SQLDB) Update(ctx context.Context, id int64, title, text string) (Paste, error) {
	tx := s.db.WithContext(ctx).
		Model(&Paste{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"title": title, "text": text})
	if tx.Error != nil {
		return Paste{}, fmt.Errorf("SQLDB.Update: %w", tx.Error)
	}
	if tx.RowsAffected == 0 {
		return Paste{}, fmt.Errorf("SQLDB.Update: %w: id [%d]", ErrNotFound, id)
	}

	var p Paste
	err := s.db.WithContext(ctx).First(&p, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		// deleted right after the update
		return Paste{}, fmt.Errorf("SQLDB.Update: %w: id [%d]", ErrNotFound, id)
	}
	if err != nil {
		return Paste{}, fmt.Errorf("SQLDB.Update: %w", err)
	}

	return p, nil
}

// Delete deletes a paste by ID. Deleting a paste that doesn't exist is not
// an error.
func (s *SQLDB) Delete(ctx context.Context, id int64) error {
	if err := s.db.WithContext(ctx).Delete(&Paste{}, id).Error; err != nil {
		return fmt.Errorf("SQLDB.Delete: %w", err)
	}
	return nil
}

// Close closes the underlying database connection.
func (s *SQLDB) Close() error {
	d, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("SQLDB.Close: %w", err)
	}
	return d.Close()
}
