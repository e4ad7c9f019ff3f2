// Copyright 2021 Ilia Frenkel. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE.txt file.

package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/iliafrenkel/unbin/src/metrics"
	"github.com/iliafrenkel/unbin/src/service"
)

// MessageResponse is the body of every response that isn't data.
type MessageResponse struct {
	Message string `json:"message"`
}

// APIKeyResponse is the body of the GET /apikey response.
type APIKeyResponse struct {
	APIKey string `json:"apiKey"`
}

const msgCreated = "Data successfully written to database"

func (h *Server) writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Logf("ERROR writeJSON: failed to write: %v", err)
	}
}

func (h *Server) writeMessage(w http.ResponseWriter, code int, msg string) {
	h.writeJSON(w, code, MessageResponse{Message: msg})
}

func (h *Server) showInternalError(w http.ResponseWriter, err error) {
	h.log.Logf("ERROR %v", err)
	h.writeMessage(w, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
}

// pasteID extracts the {id} route variable. The route regexp guarantees
// digits only, so the only possible failure is an overflow.
func pasteID(r *http.Request) (string, int64, error) {
	raw := mux.Vars(r)["id"]
	id, err := strconv.ParseInt(raw, 10, 64)
	return raw, id, err
}

// handleGetAPIKey returns the API key of this server instance.
func (h *Server) handleGetAPIKey(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, APIKeyResponse{APIKey: h.options.APIKey})
}

// handlePing returns a simple JSON object: {"message":"pong"}. It is used
// as a healthcheck. The server version is sent in the App-Version header.
func (h *Server) handlePing(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("App-Version", h.options.Version)
	h.writeMessage(w, http.StatusOK, "pong")
}

// handleGetPastes returns all the pastes in the order they were created.
func (h *Server) handleGetPastes(w http.ResponseWriter, r *http.Request) {
	pastes, err := h.service.List(r.Context())
	if err != nil {
		h.showInternalError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, pastes)
}

// handleCreatePaste creates new paste from the request body.
func (h *Server) handleCreatePaste(w http.ResponseWriter, r *http.Request) {
	pr, err := readPasteRequest(r)
	if err != nil {
		h.badRequest(w, err)
		return
	}

	paste, err := h.service.Create(r.Context(), pr)
	if err != nil {
		if errors.Is(err, service.ErrEmptyText) || errors.Is(err, service.ErrEmptyTitle) {
			h.writeMessage(w, http.StatusBadRequest, err.Error())
			return
		}
		h.showInternalError(w, err)
		return
	}
	metrics.PastesCreated.Inc()
	h.log.Logf("DEBUG created paste %d", paste.ID)

	h.writeMessage(w, http.StatusOK, msgCreated)
}

// handleUpdatePaste replaces title and text of an existing paste.
func (h *Server) handleUpdatePaste(w http.ResponseWriter, r *http.Request) {
	raw, id, err := pasteID(r)
	if err != nil {
		h.writeMessage(w, http.StatusBadRequest, "ID is incorrect")
		return
	}
	pr, err := readPasteRequest(r)
	if err != nil {
		h.badRequest(w, err)
		return
	}

	h.log.Logf("DEBUG updating paste with ID %s: %q", raw, pr.Title)
	_, err = h.service.Update(r.Context(), id, pr)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrEmptyFields):
			h.writeMessage(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrPasteNotFound):
			h.writeMessage(w, http.StatusNotFound, fmt.Sprintf("Paste with ID %s not found", raw))
		default:
			h.showInternalError(w, err)
		}
		return
	}
	metrics.PastesUpdated.Inc()

	h.writeMessage(w, http.StatusOK, fmt.Sprintf("Paste with ID %s has been updated", raw))
}

// handleDeletePaste deletes a paste. Deleting a paste that isn't there is
// reported as a success.
func (h *Server) handleDeletePaste(w http.ResponseWriter, r *http.Request) {
	raw, id, err := pasteID(r)
	if err != nil {
		h.writeMessage(w, http.StatusBadRequest, "ID is incorrect")
		return
	}

	if err := h.service.Delete(r.Context(), id); err != nil {
		h.showInternalError(w, err)
		return
	}
	metrics.PastesDeleted.Inc()

	h.writeMessage(w, http.StatusOK, fmt.Sprintf("Paste with ID %s has been deleted", raw))
}

func (h *Server) badRequest(w http.ResponseWriter, err error) {
	h.log.Logf("WARN bad request: %v", err)
	if errors.Is(err, errUnsupportedMedia) {
		h.writeMessage(w, http.StatusUnsupportedMediaType,
			fmt.Sprintf("Incorrect Content-Type, expect [application/json] (%v)", err))
		return
	}
	h.writeMessage(w, http.StatusBadRequest, err.Error())
}

// Show 404 Not Found error
func (h *Server) notFound(w http.ResponseWriter, r *http.Request) {
	h.writeMessage(w, http.StatusNotFound, http.StatusText(http.StatusNotFound))
}

func (h *Server) methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	h.writeMessage(w, http.StatusMethodNotAllowed, http.StatusText(http.StatusMethodNotAllowed))
}
