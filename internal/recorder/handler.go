package recorder

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"
)

const eventBuffer = 64

// Handler exposes the status endpoints using go-chi.
type Handler struct {
	active *ActiveSet
	events *Hub
	log    *slog.Logger
}

// NewHandler returns a Handler over the active set and event hub.
// events may be nil, in which case /events is not served.
func NewHandler(active *ActiveSet, events *Hub, log *slog.Logger) *Handler {
	return &Handler{active: active, events: events, log: log}
}

// Routes mounts the status endpoints on r.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/healthz", h.Health)
	r.Get("/sessions", h.ListSessions)
	r.Get("/sessions/{account}", h.GetSession)
	if h.events != nil {
		r.Get("/events", h.Events)
	}
}

// Health handles GET /healthz.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "active": h.active.Len()})
}

// ListSessions handles GET /sessions.
func (h *Handler) ListSessions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.active.Snapshot())
}

// GetSession handles GET /sessions/{account}.
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	account := chi.URLParam(r, "account")
	if account == "" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	handle, ok := h.active.Get(account)
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, handle.Info())
}

// Events handles GET /events, streaming session transitions as JSON text
// messages until the client goes away.
func (h *Handler) Events(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		CompressionMode: websocket.CompressionNoContextTakeover,
	})
	if err != nil {
		h.log.Error("failed to accept events websocket", slog.String("error", err.Error()))
		return
	}
	defer conn.CloseNow()

	events, cancel := h.events.Subscribe(eventBuffer)
	defer cancel()

	ctx := conn.CloseRead(r.Context())
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			data, err := json.Marshal(e)
			if err != nil {
				h.log.Error("encoding event failed", slog.String("error", err.Error()))
				continue
			}
			if err := writeWithTimeout(ctx, conn, data); err != nil {
				h.log.Debug("events client dropped", slog.String("error", err.Error()))
				return
			}
		}
	}
}

func writeWithTimeout(ctx context.Context, conn *websocket.Conn, data []byte) error {
	writeCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return conn.Write(writeCtx, websocket.MessageText, data)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
