package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/jmgilman/go/errors"

	"github.com/tailored-agentic-units/blobstore/auth"
	"github.com/tailored-agentic-units/blobstore/engine"
	"github.com/tailored-agentic-units/blobstore/observability"
	"github.com/tailored-agentic-units/blobstore/store"
)

// Record routes are served under both prefixes.
var recordPrefixes = []string{"/v1/cache/", "/cache/"}

// SourceHeader reports which tier served a GET.
const SourceHeader = "X-Cache-Source"

type handler struct {
	engine *engine.Engine
	authz  *auth.Authorizer
	stats  *observability.Stats
	logger *slog.Logger
}

func (h *handler) register(mux *http.ServeMux) {
	for _, prefix := range recordPrefixes {
		mux.HandleFunc("GET "+prefix+"{hash}", h.getRecord)
		mux.HandleFunc("PUT "+prefix+"{hash}", h.putRecord)
	}
	mux.HandleFunc("GET /healthz", h.health)
	mux.HandleFunc("GET /stats", h.statsSnapshot)
}

func (h *handler) getRecord(w http.ResponseWriter, r *http.Request) {
	if err := h.authz.Authorize(r.Header.Get("Authorization"), auth.ScopeRead); err != nil {
		h.writeError(w, err)
		return
	}

	key := r.PathValue("hash")
	if !store.ValidKey(key) {
		writeMessage(w, http.StatusBadRequest, fmt.Sprintf("Invalid record hash '%s'", key))
		return
	}

	res, err := h.engine.Get(r.Context(), key)
	if err != nil {
		h.writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Length", strconv.Itoa(len(res.Payload)))
	w.Header().Set(SourceHeader, string(res.Source))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(res.Payload); err != nil {
		h.logger.Debug("response write aborted", "key", key, "error", err)
	}
}

func (h *handler) putRecord(w http.ResponseWriter, r *http.Request) {
	if err := h.authz.Authorize(r.Header.Get("Authorization"), auth.ScopeWrite); err != nil {
		h.writeError(w, err)
		return
	}

	key := r.PathValue("hash")
	if !store.ValidKey(key) {
		writeMessage(w, http.StatusBadRequest, fmt.Sprintf("Invalid record hash '%s'", key))
		return
	}

	if limit := h.engine.MaxPayloadBytes(); limit > 0 && r.ContentLength > limit {
		writeMessage(w, http.StatusRequestEntityTooLarge,
			fmt.Sprintf("Record with hash '%s' exceeds %d bytes", key, limit))
		return
	}

	if err := h.engine.PutStream(r.Context(), key, r.Body); err != nil {
		h.writeError(w, err)
		return
	}

	writeMessage(w, http.StatusAccepted, fmt.Sprintf("Record with hash '%s' saved", key))
}

func (h *handler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handler) statsSnapshot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.stats.Snapshot())
}

func (h *handler) writeError(w http.ResponseWriter, err error) {
	status := statusOf(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("request failed", "error", err)
	}
	writeMessage(w, status, errors.ToJSON(err).Message)
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, engine.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, engine.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, engine.ErrTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, auth.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, auth.ErrForbidden):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"message": message})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
