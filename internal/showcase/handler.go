package showcase

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"showstopper/internal/sse"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

const maxBodyBytes = 64 << 10

// Handler exposes showcase session endpoints using go-chi.
type Handler struct {
	svc *Service
	hub *sse.Hub
	log *slog.Logger
}

// NewHandler returns a Handler for svc. hub may be nil to disable the event
// stream (e.g. in tests).
func NewHandler(svc *Service, hub *sse.Hub, log *slog.Logger) *Handler {
	return &Handler{svc: svc, hub: hub, log: log}
}

// Routes registers every endpoint on r. createLimit, if non-nil, guards
// session creation.
func (h *Handler) Routes(r chi.Router, createLimit func(http.Handler) http.Handler) {
	r.Get("/showcases", h.ListShowcases)
	r.Get("/events", h.Events)
	r.Route("/sessions", func(r chi.Router) {
		if createLimit != nil {
			r.With(createLimit).Post("/", h.CreateSession)
		} else {
			r.Post("/", h.CreateSession)
		}
		r.Route("/{session_id}", func(r chi.Router) {
			r.Get("/", h.GetSession)
			r.Delete("/", h.DeleteSession)
			r.Post("/viewport", h.Viewport)
			r.Post("/play", h.Play)
			r.Post("/replay", h.Replay)
			r.Post("/fullscreen", h.Fullscreen)
			r.Post("/media/{role}/ended", h.MediaEnded)
			r.Post("/media/{role}/error", h.MediaError)
		})
	})
}

type sessionResponse struct {
	ID       SessionID `json:"id"`
	Snapshot Snapshot  `json:"snapshot"`
}

// ListShowcases handles GET /showcases.
func (h *Handler) ListShowcases(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]any{"showcases": h.svc.Catalog().Presets()})
}

// CreateSession handles POST /sessions.
// Body: { "preset": "hero" } or { "showcase": { "primary_url": ..., ... } }.
func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req SessionRequest
	if err := decodeBody(r, &req); err != nil {
		h.log.Debug("invalid session body", slog.String("error", err.Error()))
		h.writeError(w, err)
		return
	}

	snap, err := h.svc.CreateSession(r.Context(), req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, sessionResponse{ID: snap.ID, Snapshot: snap})
}

// GetSession handles GET /sessions/{session_id}.
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	snap, err := h.svc.Session(sessionID(r))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, snap)
}

// DeleteSession handles DELETE /sessions/{session_id}.
func (h *Handler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Close(sessionID(r)); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Viewport handles POST /sessions/{session_id}/viewport.
// Body: { "target": {...}, "viewport": {...} } or { "intersecting": true, "ratio": 0.4 }.
func (h *Handler) Viewport(w http.ResponseWriter, r *http.Request) {
	var rep ViewportReport
	if err := decodeBody(r, &rep); err != nil {
		h.writeError(w, err)
		return
	}
	snap, err := h.svc.ObserveViewport(sessionID(r), rep)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, snap)
}

// Play handles POST /sessions/{session_id}/play.
func (h *Handler) Play(w http.ResponseWriter, r *http.Request) {
	h.intent(w, r, IntentPlay)
}

// Replay handles POST /sessions/{session_id}/replay.
func (h *Handler) Replay(w http.ResponseWriter, r *http.Request) {
	h.intent(w, r, IntentReplay)
}

// Fullscreen handles POST /sessions/{session_id}/fullscreen.
func (h *Handler) Fullscreen(w http.ResponseWriter, r *http.Request) {
	h.intent(w, r, IntentFullscreen)
}

func (h *Handler) intent(w http.ResponseWriter, r *http.Request, intent Intent) {
	snap, err := h.svc.Intent(r.Context(), sessionID(r), intent)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, snap)
}

// MediaEnded handles POST /sessions/{session_id}/media/{role}/ended.
func (h *Handler) MediaEnded(w http.ResponseWriter, r *http.Request) {
	role, err := ParseRole(chi.URLParam(r, "role"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	snap, err := h.svc.ReportMediaEnded(sessionID(r), role)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, snap)
}

// MediaError handles POST /sessions/{session_id}/media/{role}/error.
// Body (optional): { "message": "decode error" }.
func (h *Handler) MediaError(w http.ResponseWriter, r *http.Request) {
	role, err := ParseRole(chi.URLParam(r, "role"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	var body struct {
		Message string `json:"message"`
	}
	if err := decodeBody(r, &body); err != nil && !errors.Is(err, io.EOF) {
		h.writeError(w, err)
		return
	}
	snap, err := h.svc.ReportMediaError(sessionID(r), role, body.Message)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, snap)
}

// Events handles GET /events?session=<id>, streaming transitions and drift
// corrections as server-sent events. Without a session parameter every
// session's events are streamed.
func (h *Handler) Events(w http.ResponseWriter, r *http.Request) {
	if h.hub == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	topic := r.URL.Query().Get("session")
	if topic != "" {
		if _, err := h.svc.Session(SessionID(topic)); err != nil {
			h.writeError(w, err)
			return
		}
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	client := &sse.Client{
		ID:     uuid.NewString(),
		Topic:  topic,
		Events: make(chan []byte, 256),
	}
	if !h.hub.Register(client) {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	defer h.hub.Unregister(client)

	if _, err := io.WriteString(w, ": connected\n\n"); err != nil {
		return
	}
	flusher.Flush()

	for {
		select {
		case msg, ok := <-client.Events:
			if !ok {
				return
			}
			if _, err := w.Write(msg); err != nil {
				h.log.Debug("event stream write failed", slog.String("client", client.ID), slog.String("error", err.Error()))
				return
			}
			// Drain queued frames so bursts go out in one write.
		drain:
			for {
				select {
				case extra, ok := <-client.Events:
					if !ok {
						flusher.Flush()
						return
					}
					if _, err := w.Write(extra); err != nil {
						h.log.Debug("event stream write failed", slog.String("client", client.ID), slog.String("error", err.Error()))
						return
					}
				default:
					break drain
				}
			}
			flusher.Flush()
		case <-r.Context().Done():
			return
		}
	}
}

func sessionID(r *http.Request) SessionID {
	return SessionID(chi.URLParam(r, "session_id"))
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	return nil
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, ErrSessionNotFound), errors.Is(err, ErrUnknownPreset):
		status = http.StatusNotFound
	case errors.Is(err, ErrInvalidProps), errors.Is(err, ErrInvalidRequest), errors.Is(err, io.EOF):
		status = http.StatusBadRequest
	default:
		h.log.Error("showcase request failed", slog.String("error", err.Error()))
	}
	h.writeJSON(w, status, map[string]string{"error": err.Error()})
}

// writeJSON marshals v before the status is written; encode failures
// are answered with a 500.
func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		h.log.Error("encode response", slog.Int("status", status), slog.String("error", err.Error()))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		io.WriteString(w, `{"error":"internal error"}`+"\n")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(append(body, '\n')); err != nil {
		h.log.Debug("write response", slog.String("error", err.Error()))
	}
}
