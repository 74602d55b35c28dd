package showcase

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"showstopper/internal/platform/logger"
	"showstopper/internal/sse"
)

func newTestRouter(t *testing.T) (*chi.Mux, *serviceHarness, *sse.Hub) {
	t.Helper()
	h := newServiceHarness(t)
	hub := sse.NewHub(logger.Discard())
	go hub.Run()
	t.Cleanup(hub.Close)
	h.svc.events = hub

	r := chi.NewRouter()
	NewHandler(h.svc, hub, logger.Discard()).Routes(r, nil)
	return r, h, hub
}

func do(r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func decodeSnapshot(t *testing.T, rec *httptest.ResponseRecorder) Snapshot {
	t.Helper()
	var snap Snapshot
	if err := json.NewDecoder(rec.Body).Decode(&snap); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	return snap
}

func createSession(t *testing.T, r http.Handler, preset string) SessionID {
	t.Helper()
	rec := do(r, http.MethodPost, "/sessions", map[string]string{"preset": preset})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp sessionResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode create response: %v", err)
	}
	if resp.ID == "" || resp.Snapshot.State != StateTeaser {
		t.Fatalf("unexpected create response %+v", resp)
	}
	return resp.ID
}

func TestHandler_ListShowcases(t *testing.T) {
	r, _, _ := newTestRouter(t)

	rec := do(r, http.MethodGet, "/showcases", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body struct {
		Showcases []Preset `json:"showcases"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if len(body.Showcases) != 3 || body.Showcases[0].Name != "broken" {
		t.Errorf("unexpected showcases %+v", body.Showcases)
	}
}

func TestHandler_CreateSession_errors(t *testing.T) {
	r, _, _ := newTestRouter(t)

	tests := []struct {
		name string
		body string
		want int
	}{
		{"unknown preset", `{"preset":"nope"}`, http.StatusNotFound},
		{"empty request", `{}`, http.StatusBadRequest},
		{"no body", ``, http.StatusBadRequest},
		{"malformed", `{"preset":`, http.StatusBadRequest},
		{"unknown field", `{"preset":"hero","autoplay":true}`, http.StatusBadRequest},
		{"bad start mode", `{"showcase":{"primary_url":"a.mp4","start_policy":{"mode":"quarter"}}}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/sessions", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Errorf("expected %d, got %d: %s", tt.want, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestHandler_PlaybackFlow(t *testing.T) {
	r, h, _ := newTestRouter(t)
	id := createSession(t, r, "hero")
	base := "/sessions/" + string(id)

	rec := do(r, http.MethodPost, base+"/play", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("play: expected 200, got %d", rec.Code)
	}
	if snap := decodeSnapshot(t, rec); snap.State != StateTeaser {
		t.Errorf("play before ready should be ignored, state %s", snap.State)
	}

	rec = do(r, http.MethodPost, base+"/viewport", map[string]any{"intersecting": true, "ratio": 0.5})
	if rec.Code != http.StatusOK {
		t.Fatalf("viewport: expected 200, got %d", rec.Code)
	}
	h.clk.Advance(2500 * time.Millisecond)
	deadline := time.Now().Add(time.Second)
	for {
		snap := decodeSnapshot(t, do(r, http.MethodGet, base, nil))
		if snap.State == StateReady {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("session never became ready, state %s", snap.State)
		}
		time.Sleep(time.Millisecond)
	}

	rec = do(r, http.MethodPost, base+"/play", nil)
	if snap := decodeSnapshot(t, rec); snap.State != StatePlayingSplit || snap.Controls.Layout != LayoutSplit {
		t.Errorf("play: state %s layout %s", snap.State, snap.Controls.Layout)
	}

	rec = do(r, http.MethodPost, base+"/media/secondary/ended", nil)
	if snap := decodeSnapshot(t, rec); snap.State != StateEnded {
		t.Errorf("ended: state %s", snap.State)
	}

	rec = do(r, http.MethodPost, base+"/replay", nil)
	if snap := decodeSnapshot(t, rec); snap.State != StateReady {
		t.Errorf("replay: state %s", snap.State)
	}

	rec = do(r, http.MethodPost, base+"/media/primary/error", map[string]string{"message": "decode"})
	snap := decodeSnapshot(t, rec)
	if snap.State != StateError || snap.ErrorMessage != "primary media failed: decode" {
		t.Errorf("error: state %s message %q", snap.State, snap.ErrorMessage)
	}
	if !snap.Controls.Reload.Visible {
		t.Error("reload control hidden in error")
	}

	rec = do(r, http.MethodDelete, base, nil)
	if rec.Code != http.StatusNoContent {
		t.Errorf("delete: expected 204, got %d", rec.Code)
	}
	if rec = do(r, http.MethodGet, base, nil); rec.Code != http.StatusNotFound {
		t.Errorf("get after delete: expected 404, got %d", rec.Code)
	}
}

func TestHandler_NotFoundAndBadRole(t *testing.T) {
	r, _, _ := newTestRouter(t)

	for _, path := range []string{"/sessions/missing/play", "/sessions/missing/replay", "/sessions/missing/fullscreen"} {
		if rec := do(r, http.MethodPost, path, nil); rec.Code != http.StatusNotFound {
			t.Errorf("%s: expected 404, got %d", path, rec.Code)
		}
	}
	if rec := do(r, http.MethodDelete, "/sessions/missing", nil); rec.Code != http.StatusNotFound {
		t.Errorf("delete missing: expected 404, got %d", rec.Code)
	}

	id := createSession(t, r, "hero")
	if rec := do(r, http.MethodPost, "/sessions/"+string(id)+"/media/tertiary/ended", nil); rec.Code != http.StatusBadRequest {
		t.Errorf("bad role: expected 400, got %d", rec.Code)
	}
	if rec := do(r, http.MethodPost, "/sessions/"+string(id)+"/viewport", map[string]any{}); rec.Code != http.StatusBadRequest {
		t.Errorf("empty viewport: expected 400, got %d", rec.Code)
	}
	if rec := do(r, http.MethodGet, "/events?session=missing", nil); rec.Code != http.StatusNotFound {
		t.Errorf("events for missing session: expected 404, got %d", rec.Code)
	}
}

func TestHandler_Fullscreen(t *testing.T) {
	r, _, _ := newTestRouter(t)
	id := createSession(t, r, "hero")

	rec := do(r, http.MethodPost, "/sessions/"+string(id)+"/fullscreen", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 even when unsupported, got %d", rec.Code)
	}
	if snap := decodeSnapshot(t, rec); snap.Fullscreen.Supported || snap.Fullscreen.Active {
		t.Errorf("unexpected fullscreen status %+v", snap.Fullscreen)
	}
}

func TestHandler_Events(t *testing.T) {
	r, h, hub := newTestRouter(t)
	id := createSession(t, r, "hero")

	srv := httptest.NewServer(r)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/events?session="+string(id), nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("events request: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("Content-Type = %q", ct)
	}

	deadline := time.Now().Add(time.Second)
	for hub.Count() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("client never registered")
		}
		time.Sleep(time.Millisecond)
	}

	yes := true
	if _, err := h.svc.ObserveViewport(id, ViewportReport{Intersecting: &yes, Ratio: 1}); err != nil {
		t.Fatal(err)
	}
	h.clk.Advance(2500 * time.Millisecond)

	lines := make(chan string)
	go func() {
		sc := bufio.NewScanner(resp.Body)
		for sc.Scan() {
			lines <- sc.Text()
		}
		close(lines)
	}()

	timeout := time.After(2 * time.Second)
	for {
		select {
		case line, ok := <-lines:
			if !ok {
				t.Fatal("stream closed before idle transition")
			}
			if strings.HasPrefix(line, "data: ") && strings.Contains(line, `"to":"idle"`) {
				if !strings.Contains(line, `"session_id":"`+string(id)+`"`) {
					t.Errorf("transition missing session id: %s", line)
				}
				cancel()
				go func() {
					for range lines {
					}
				}()
				return
			}
		case <-timeout:
			t.Fatal("no idle transition received")
		}
	}
}

// brokenStream accepts a fixed number of writes, then fails like a closed
// connection.
type brokenStream struct {
	header  http.Header
	mu      sync.Mutex
	allowed int
	writes  int
}

func (b *brokenStream) Header() http.Header { return b.header }
func (b *brokenStream) WriteHeader(int) {}
func (b *brokenStream) Flush() {}

func (b *brokenStream) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.writes++
	if b.writes > b.allowed {
		return 0, errors.New("broken pipe")
	}
	return len(p), nil
}

func TestHandler_EventsStopsOnWriteError(t *testing.T) {
	_, sh, hub := newTestRouter(t)
	handler := NewHandler(sh.svc, hub, logger.Discard())

	w := &brokenStream{header: http.Header{}, allowed: 1}
	req := httptest.NewRequest(http.MethodGet, "/events", nil)
	done := make(chan struct{})
	go func() {
		handler.Events(w, req)
		close(done)
	}()

	deadline := time.Now().Add(time.Second)
	for hub.Count() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("client never registered")
		}
		time.Sleep(time.Millisecond)
	}

	hub.Publish("any", "transition", []byte(`{}`))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("stream kept running after a failed write")
	}

	deadline = time.Now().Add(time.Second)
	for hub.Count() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("client not unregistered")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestHandler_WriteJSONEncodeFailure(t *testing.T) {
	var buf bytes.Buffer
	handler := NewHandler(nil, nil, logger.NewWithWriter(&buf, "debug", "json"))

	rec := httptest.NewRecorder()
	handler.writeJSON(rec, http.StatusOK, Snapshot{AnchorOffset: math.NaN()})

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "internal error") {
		t.Errorf("unexpected body %q", rec.Body.String())
	}
	if !strings.Contains(buf.String(), "encode response") {
		t.Errorf("encode failure not logged: %s", buf.String())
	}
}
