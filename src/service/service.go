// Copyright 2021 Ilia Frenkel. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE.txt file.

// Package service provides methods to work with pastes.
// Methods of this package do not log or print out anything, they return
// errors instead. It is up to the user of the Service to handle the errors
// and provide useful information to the end user.
package service

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/iliafrenkel/unbin/src/store"
)

// Service type provides method to work with pastes.
type Service struct {
	store    store.Interface
	validate *validator.Validate
}

// ErrPasteNotFound and other common errors. The messages are shown to the
// API users as is.
var (
	ErrPasteNotFound = errors.New("paste not found")
	ErrStoreFailure  = errors.New("store operation failed")
	ErrEmptyText     = errors.New("Text cannot be empty")
	ErrEmptyTitle    = errors.New("Title cannot be empty")
	ErrEmptyFields   = errors.New("Both title and text cannot be empty")
)

// PasteRequest is an input to Create and Update methods, normally comes from
// a JSON request body.
type PasteRequest struct {
	Title string `json:"title" validate:"notblank"`
	Text  string `json:"text" validate:"notblank"`
}

// New returns new Service with provided store as a back-end storage.
func New(store store.Interface) *Service {
	v := validator.New()
	// RegisterValidation only fails on an empty tag or a nil func
	_ = v.RegisterValidation("notblank", validateNotBlank)

	return &Service{store: store, validate: v}
}

// NewWithMemDB returns new Service with memory as a store.
func NewWithMemDB() *Service {
	return New(store.NewMemDB())
}

func validateNotBlank(fl validator.FieldLevel) bool {
	if fl.Field().Kind() != reflect.String {
		return false
	}
	return strings.TrimSpace(fl.Field().String()) != ""
}

// blankFields returns names of the request fields that failed validation.
func (s Service) blankFields(pr PasteRequest) map[string]bool {
	res := map[string]bool{}
	err := s.validate.Struct(pr)
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, e := range verrs {
			res[e.Field()] = true
		}
	}
	return res
}

// List returns all the pastes in the order they were created.
func (s Service) List(ctx context.Context) ([]store.Paste, error) {
	pastes, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("Service.List: %w: (%v)", ErrStoreFailure, err)
	}
	return pastes, nil
}

// Create creates new Paste from the request and saves it in the store.
// Both text and title are mandatory, whitespace alone doesn't count. The
// paste date is set to the current time and never changes afterwards.
func (s Service) Create(ctx context.Context, pr PasteRequest) (store.Paste, error) {
	blank := s.blankFields(pr)
	if blank["Text"] {
		return store.Paste{}, ErrEmptyText
	}
	if blank["Title"] {
		return store.Paste{}, ErrEmptyTitle
	}

	paste := store.Paste{
		Title: pr.Title,
		Text:  pr.Text,
		Date:  store.Now(),
	}
	id, err := s.store.Create(ctx, paste)
	if err != nil {
		return store.Paste{}, fmt.Errorf("Service.Create: %w: (%v)", ErrStoreFailure, err)
	}
	paste.ID = id

	return paste, nil
}

// Update replaces title and text of the paste with the given id. There is no
// conflict detection, the last write wins.
func (s Service) Update(ctx context.Context, id int64, pr PasteRequest) (store.Paste, error) {
	if len(s.blankFields(pr)) > 0 {
		return store.Paste{}, ErrEmptyFields
	}

	paste, err := s.store.Update(ctx, id, pr.Title, pr.Text)
	if errors.Is(err, store.ErrNotFound) {
		return store.Paste{}, fmt.Errorf("Service.Update: %w: id [%d]", ErrPasteNotFound, id)
	}
	if err != nil {
		return store.Paste{}, fmt.Errorf("Service.Update: %w: (%v)", ErrStoreFailure, err)
	}

	return paste, nil
}

// Delete removes the paste with the given id. Deleting a paste that doesn't
// exist is not an error.
func (s Service) Delete(ctx context.Context, id int64) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("Service.Delete: %w: (%v)", ErrStoreFailure, err)
	}
	return nil
}
