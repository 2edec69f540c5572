package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/dbmigration/ec2secrets/internal/secrets"
	"github.com/dbmigration/ec2secrets/internal/storage"
)

type contextKey string

const requestIDContextKey contextKey = "requestID"

// Handler exposes the stored configuration snapshot over HTTP. Values are
// always redacted before they leave the process.
type Handler struct {
	storage storage.Storage

	clock func() time.Time
}

// HandlerOption configures Handler behaviour.
type HandlerOption func(*Handler)

// WithClock overrides the time source, primarily for tests.
func WithClock(clock func() time.Time) HandlerOption {
	return func(h *Handler) {
		h.clock = clock
	}
}

// NewHandler constructs a Handler over store.
func NewHandler(store storage.Storage, opts ...HandlerOption) *Handler {
	h := &Handler{
		storage: store,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	_ = r
	resp := healthResponse{
		Status:    "ok",
		Timestamp: h.clock(),
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	_ = r
	snap := h.storage.Snapshot()
	st := secrets.Check(snap)
	resp := statusResponse{
		Status:     st,
		Complete:   st.Complete(),
		Sources:    snap.Sources(),
		Warnings:   nonNil(snap.Warnings()),
		LoadedAt:   snap.LoadedAt(),
		Generation: h.storage.Generation(),
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleSections(w http.ResponseWriter, r *http.Request) {
	_ = r
	snap := h.storage.Snapshot()
	resp := sectionsResponse{
		Sections:   secrets.Redacted(snap).Map(),
		Sources:    snap.Sources(),
		Warnings:   nonNil(snap.Warnings()),
		LoadedAt:   snap.LoadedAt(),
		Generation: h.storage.Generation(),
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleSection(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	value, err := secrets.Redacted(h.storage.Snapshot()).GetItem(key)
	if err != nil {
		if errors.Is(err, secrets.ErrKeyNotFound) {
			suggestion := "known sections: " + strings.Join(h.storage.Snapshot().Keys(), ", ")
			writeError(w, http.StatusNotFound, "Section not found", err.Error(), suggestion)
			return
		}
		writeInternalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sectionResponse{Key: key, Value: value})
}

func (h *Handler) handleReload(w http.ResponseWriter, r *http.Request) {
	_ = r
	snap := h.storage.Reload()
	resp := reloadResponse{
		Sections:   snap.Keys(),
		Warnings:   nonNil(snap.Warnings()),
		LoadedAt:   snap.LoadedAt(),
		Generation: h.storage.Generation(),
		Message:    "Configuration reloaded",
	}
	writeJSON(w, http.StatusOK, resp)
}

func requestIDFromContext(ctx context.Context) string {
	if v := ctx.Value(requestIDContextKey); v != nil {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

type healthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

type statusResponse struct {
	Status     secrets.Status  `json:"status"`
	Complete   bool            `json:"complete"`
	Sources    secrets.Sources `json:"sources"`
	Warnings   []string        `json:"warnings"`
	LoadedAt   time.Time       `json:"loadedAt"`
	Generation uint64          `json:"generation"`
}

type sectionsResponse struct {
	Sections   map[string]any  `json:"sections"`
	Sources    secrets.Sources `json:"sources"`
	Warnings   []string        `json:"warnings"`
	LoadedAt   time.Time       `json:"loadedAt"`
	Generation uint64          `json:"generation"`
}

type sectionResponse struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
}

type reloadResponse struct {
	Sections   []string  `json:"sections"`
	Warnings   []string  `json:"warnings"`
	LoadedAt   time.Time `json:"loadedAt"`
	Generation uint64    `json:"generation"`
	Message    string    `json:"message"`
}

type errorResponse struct {
	Error      string `json:"error"`
	Details    string `json:"details,omitempty"`
	Suggestion string `json:"suggestion,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if status != 0 {
		w.WriteHeader(status)
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message, details string, suggestion ...string) {
	resp := errorResponse{
		Error:   message,
		Details: details,
	}
	if len(suggestion) > 0 {
		resp.Suggestion = suggestion[0]
	}
	writeJSON(w, status, resp)
}

func writeInternalError(w http.ResponseWriter, err error) {
	writeError(w, http.StatusInternalServerError, "Internal error", err.Error())
}
