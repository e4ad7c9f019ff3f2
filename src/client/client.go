// Copyright 2021 Ilia Frenkel. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE.txt file.

// Package client consumes the paste API. It keeps the canonical collection
// of pastes as returned by the server (newest first), a local derived view
// for search and sort, and the currently selected paste.
//
// Every successful mutation is followed by a full refresh of the collection,
// the client never patches it locally.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-pkgz/lgr"
	"github.com/iliafrenkel/unbin/src/api"
	"github.com/iliafrenkel/unbin/src/service"
	"github.com/iliafrenkel/unbin/src/store"
)

// ErrUnreachable is returned when the API server can't be reached or the
// response can't be read.
var ErrUnreachable = errors.New("API is unreachable")

// ErrEmptyAPIKey is returned by Bootstrap when the server has no key to give.
var ErrEmptyAPIKey = errors.New("server returned an empty API key")

// ErrUnknownPaste is returned by Select when the id is not in the collection.
var ErrUnknownPaste = errors.New("paste is not in the collection")

// APIError is returned for any non-2xx response.
type APIError struct {
	Code    int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%d %s", e.Code, e.Message)
}

// State of the selection.
type State int

// Selection states.
const (
	Unselected State = iota
	Creating
	Selected
)

func (s State) String() string {
	switch s {
	case Creating:
		return "creating"
	case Selected:
		return "selected"
	default:
		return "unselected"
	}
}

// Options defines client settings.
type Options struct {
	BaseURL    string
	APIKey     string // skips the key bootstrap when set
	HTTPClient *http.Client
	Notifier   Notifier
	Logger     lgr.L
}

// Client is a stateful consumer of the paste API, safe for concurrent use.
type Client struct {
	baseURL string
	http    *http.Client
	notify  Notifier
	log     lgr.L

	mu      sync.RWMutex
	apiKey  string
	pastes  []store.Paste
	search  string
	order   SortOrder
	state   State
	current store.Paste
}

// New returns a Client with no pastes and nothing selected.
func New(opts Options) *Client {
	c := &Client{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		http:    opts.HTTPClient,
		notify:  opts.Notifier,
		log:     opts.Logger,
		apiKey:  opts.APIKey,
	}
	if c.http == nil {
		c.http = &http.Client{Timeout: 10 * time.Second}
	}
	if c.notify == nil {
		c.notify = nopNotifier{}
	}
	if c.log == nil {
		c.log = lgr.NoOp
	}

	return c
}

// APIKey returns the key held by the client, empty before Bootstrap.
func (c *Client) APIKey() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.apiKey
}

// Bootstrap fetches the API key from the server. It does nothing if the key
// is already held.
func (c *Client) Bootstrap(ctx context.Context) error {
	if c.APIKey() != "" {
		return nil
	}

	var resp api.APIKeyResponse
	if err := c.call(ctx, http.MethodGet, "/apikey", nil, &resp); err != nil {
		return fmt.Errorf("Client.Bootstrap: %w", err)
	}
	if resp.APIKey == "" {
		return fmt.Errorf("Client.Bootstrap: %w", ErrEmptyAPIKey)
	}

	c.mu.Lock()
	c.apiKey = resp.APIKey
	c.mu.Unlock()

	return nil
}

// Refresh replaces the collection with the one from the server, newest
// first. If several refreshes run at the same time the one that finishes
// last wins.
func (c *Client) Refresh(ctx context.Context) error {
	if err := c.Bootstrap(ctx); err != nil {
		return err
	}

	var pastes []store.Paste
	if err := c.call(ctx, http.MethodGet, "/pastes", nil, &pastes); err != nil {
		return fmt.Errorf("Client.Refresh: %w", err)
	}
	for i, j := 0, len(pastes)-1; i < j; i, j = i+1, j-1 {
		pastes[i], pastes[j] = pastes[j], pastes[i]
	}

	c.mu.Lock()
	c.pastes = pastes
	if c.state == Selected {
		// keep the selection in sync with the server
		for _, p := range pastes {
			if p.ID == c.current.ID {
				c.current = p
				break
			}
		}
	}
	c.mu.Unlock()

	return nil
}

// Pastes returns a copy of the canonical collection.
func (c *Client) Pastes() []store.Paste {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]store.Paste(nil), c.pastes...)
}

// View returns the collection filtered by the current search and sorted in
// the current order.
func (c *Client) View() []store.Paste {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return View(c.pastes, c.search, c.order)
}

// SetSearch sets the title filter used by View.
func (c *Client) SetSearch(s string) {
	c.mu.Lock()
	c.search = s
	c.mu.Unlock()
}

// SetSortOrder sets the order used by View.
func (c *Client) SetSortOrder(o SortOrder) {
	c.mu.Lock()
	c.order = o
	c.mu.Unlock()
}

// Select makes the paste with the given id current.
func (c *Client) Select(id int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, p := range c.pastes {
		if p.ID == id {
			c.current = p
			c.state = Selected
			return nil
		}
	}

	return fmt.Errorf("Client.Select: %w: id [%d]", ErrUnknownPaste, id)
}

// StartCreate clears the selection and starts a new paste.
func (c *Client) StartCreate() {
	c.mu.Lock()
	c.current = store.Paste{}
	c.state = Creating
	c.mu.Unlock()
}

// Current returns the selected paste, ok is false unless the state is
// Selected.
func (c *Client) Current() (store.Paste, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current, c.state == Selected
}

// State returns the selection state.
func (c *Client) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Save creates a new paste when nothing is selected and updates the
// current paste otherwise. On success the collection is refreshed, a newly
// created paste becomes the current one.
func (c *Client) Save(ctx context.Context, title, text string) error {
	c.mu.RLock()
	state, id := c.state, c.current.ID
	c.mu.RUnlock()

	if state == Selected {
		return c.update(ctx, id, title, text)
	}
	return c.create(ctx, title, text)
}

func (c *Client) create(ctx context.Context, title, text string) error {
	if err := c.Bootstrap(ctx); err != nil {
		c.failure("creating", err)
		return fmt.Errorf("Client.Save: %w", err)
	}
	req := service.PasteRequest{Title: title, Text: text}
	if err := c.call(ctx, http.MethodPost, "/create-paste", req, nil); err != nil {
		c.failure("creating", err)
		return fmt.Errorf("Client.Save: %w", err)
	}
	c.notify.Success("Paste created successfully!")

	if err := c.Refresh(ctx); err != nil {
		c.failure("fetching", err)
		return fmt.Errorf("Client.Save: %w", err)
	}

	c.mu.Lock()
	if len(c.pastes) > 0 {
		c.current = c.pastes[0]
		c.state = Selected
	}
	c.mu.Unlock()

	return nil
}

func (c *Client) update(ctx context.Context, id int64, title, text string) error {
	if err := c.Bootstrap(ctx); err != nil {
		c.failure("updating", err)
		return fmt.Errorf("Client.Save: %w", err)
	}
	req := service.PasteRequest{Title: title, Text: text}
	if err := c.call(ctx, http.MethodPut, "/update-paste/"+strconv.FormatInt(id, 10), req, nil); err != nil {
		c.failure("updating", err)
		return fmt.Errorf("Client.Save: %w", err)
	}
	c.notify.Success("Paste updated successfully!")

	if err := c.Refresh(ctx); err != nil {
		c.failure("fetching", err)
		return fmt.Errorf("Client.Save: %w", err)
	}

	return nil
}

// Delete deletes the paste with the given id and refreshes the collection.
// The selection is cleared only if the deleted paste was the current one.
func (c *Client) Delete(ctx context.Context, id int64) error {
	if err := c.Bootstrap(ctx); err != nil {
		c.failure("deleting", err)
		return fmt.Errorf("Client.Delete: %w", err)
	}
	if err := c.call(ctx, http.MethodDelete, "/delete-paste/"+strconv.FormatInt(id, 10), nil, nil); err != nil {
		c.failure("deleting", err)
		return fmt.Errorf("Client.Delete: %w", err)
	}
	c.notify.Success("Paste deleted successfully!")

	c.mu.Lock()
	if c.state == Selected && c.current.ID == id {
		c.current = store.Paste{}
		c.state = Unselected
	}
	c.mu.Unlock()

	if err := c.Refresh(ctx); err != nil {
		c.failure("fetching", err)
		return fmt.Errorf("Client.Delete: %w", err)
	}

	return nil
}

// failure sends a notification for a failed action.
func (c *Client) failure(action string, err error) {
	if errors.Is(err, ErrUnreachable) {
		c.notify.Failure(fmt.Sprintf("Error %s paste! API is unreachable.", action))
		return
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		c.notify.Failure(fmt.Sprintf("Error %s paste: %s", action, apiErr.Message))
		return
	}
	c.notify.Failure(fmt.Sprintf("Error %s paste: %v", action, err))
}

// call makes an API request. body, if not nil, is sent as JSON and a
// successful response is decoded into out, if not nil.
func (c *Client) call(ctx context.Context, method, path string, body, out interface{}) error {
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		rdr = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rdr)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if key := c.APIKey(); key != "" {
		req.Header.Set(api.APIKeyHeader, key)
	}

	c.log.Logf("DEBUG %s %s", method, req.URL)
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: reading response: %v", ErrUnreachable, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Code: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		var msg api.MessageResponse
		if json.Unmarshal(data, &msg) == nil && msg.Message != "" {
			apiErr.Message = msg.Message
		}
		c.log.Logf("DEBUG %s %s: %d %s", method, req.URL, apiErr.Code, apiErr.Message)
		return apiErr
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}

	return nil
}
