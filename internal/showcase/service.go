package showcase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"showstopper/internal/clock"
	"showstopper/internal/media"
	"showstopper/internal/platform/metrics"
)

// Publisher receives session events for fan-out to subscribers, keyed by
// session id.
type Publisher interface {
	Publish(topic, event string, data []byte)
}

// ServiceConfig wires a Service's collaborators. Zero values are valid:
// the real clock, the default logger, no metrics and no publisher.
type ServiceConfig struct {
	Options Options
	Clock   clock.Clock
	Logger  *slog.Logger
	Metrics *metrics.Metrics
	Events  Publisher
	NewID   func() SessionID
}

// Service mounts showcase sessions and routes host intents to their
// controllers. Media handles are created and owned here; the HTTP layer only
// ever talks to the Service.
type Service struct {
	repo    Repository
	catalog *Catalog
	prober  media.Prober
	opts    Options
	clock   clock.Clock
	log     *slog.Logger
	metrics *metrics.Metrics
	events  Publisher
	newID   func() SessionID
}

// NewService returns a Service backed by repo that resolves presets from
// catalog and probes media through prober.
func NewService(repo Repository, catalog *Catalog, prober media.Prober, cfg ServiceConfig) *Service {
	s := &Service{
		repo:    repo,
		catalog: catalog,
		prober:  prober,
		opts:    cfg.Options.withDefaults(),
		clock:   cfg.Clock,
		log:     cfg.Logger,
		metrics: cfg.Metrics,
		events:  cfg.Events,
		newID:   cfg.NewID,
	}
	if s.catalog == nil {
		s.catalog = &Catalog{presets: map[string]Preset{}}
	}
	if s.clock == nil {
		s.clock = clock.Real()
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	if s.newID == nil {
		s.newID = func() SessionID { return SessionID(uuid.NewString()) }
	}
	return s
}

// SessionRequest mounts either a catalog preset by name or an inline showcase.
type SessionRequest struct {
	Preset   string  `json:"preset,omitempty"`
	Showcase *Preset `json:"showcase,omitempty"`
}

// Intent is a host-initiated user action.
type Intent string

const (
	IntentPlay       Intent = "play"
	IntentReplay     Intent = "replay"
	IntentFullscreen Intent = "fullscreen"
)

// ViewportReport is a host visibility observation: either raw geometry or a
// precomputed intersection entry.
type ViewportReport struct {
	Target       *Rect   `json:"target,omitempty"`
	Viewport     *Rect   `json:"viewport,omitempty"`
	Intersecting *bool   `json:"intersecting,omitempty"`
	Ratio        float64 `json:"ratio,omitempty"`
}

// Catalog returns the preset catalog.
func (s *Service) Catalog() *Catalog { return s.catalog }

// CreateSession mounts a new controller in the teaser state.
func (s *Service) CreateSession(ctx context.Context, req SessionRequest) (Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return Snapshot{}, err
	}

	preset, err := s.resolve(req)
	if err != nil {
		return Snapshot{}, err
	}
	props := preset.Props()
	if err := props.Validate(); err != nil {
		return Snapshot{}, err
	}

	id := s.newID()
	log := s.log.With(slog.String("preset", preset.Name))

	primary := media.NewVirtual(props.PrimarySourceURL, s.prober, s.clock)
	var secondary *media.Virtual
	var secondaryMedia Media
	if props.HasSecondary() {
		secondary = media.NewVirtual(props.SecondarySourceURL, s.prober, s.clock)
		secondaryMedia = secondary
	}

	ctrl, err := New(props, primary, secondaryMedia, s.opts,
		WithID(id),
		WithClock(s.clock),
		WithLogger(log),
		WithObserver(s),
		WithFullscreen(NewHostFullscreen(preset.FullscreenSupported)),
	)
	if err != nil {
		return Snapshot{}, err
	}
	primary.OnEnded(func() { ctrl.MediaEnded(RolePrimary) })
	if secondary != nil {
		secondary.OnEnded(func() { ctrl.MediaEnded(RoleSecondary) })
	}

	sess := &Session{
		ID:         id,
		Preset:     preset.Name,
		CreatedAt:  s.clock.Now().UTC(),
		Controller: ctrl,
	}
	if err := s.repo.Create(sess); err != nil {
		ctrl.Unmount()
		return Snapshot{}, fmt.Errorf("create session %s: %w", id, err)
	}

	if s.metrics != nil {
		s.metrics.IncSessionsCreated()
	}
	s.log.Info("session created",
		slog.String("session_id", string(id)),
		slog.String("preset", preset.Name),
		slog.Bool("has_secondary", props.HasSecondary()))
	return ctrl.Snapshot(), nil
}

func (s *Service) resolve(req SessionRequest) (Preset, error) {
	switch {
	case req.Preset != "" && req.Showcase != nil:
		return Preset{}, fmt.Errorf("%w: preset and showcase are mutually exclusive", ErrInvalidProps)
	case req.Preset != "":
		return s.catalog.Lookup(req.Preset)
	case req.Showcase != nil:
		p := *req.Showcase
		if err := p.validateDelay(); err != nil {
			return Preset{}, fmt.Errorf("%w: %v", ErrInvalidProps, err)
		}
		if p.Name == "" {
			p.Name = "inline"
		}
		return p, nil
	}
	return Preset{}, fmt.Errorf("%w: preset or showcase is required", ErrInvalidProps)
}

// Session returns the snapshot of a mounted session.
func (s *Service) Session(id SessionID) (Snapshot, error) {
	sess, err := s.get(id)
	if err != nil {
		return Snapshot{}, err
	}
	return sess.Controller.Snapshot(), nil
}

// Intent applies a host intent and returns the resulting snapshot.
func (s *Service) Intent(ctx context.Context, id SessionID, intent Intent) (Snapshot, error) {
	sess, err := s.get(id)
	if err != nil {
		return Snapshot{}, err
	}
	ctrl := sess.Controller

	switch intent {
	case IntentPlay:
		ctrl.Play(ctx)
	case IntentReplay:
		ctrl.Replay()
	case IntentFullscreen:
		ctrl.ToggleFullscreen(ctx)
	default:
		return Snapshot{}, fmt.Errorf("%w: unknown intent %q", ErrInvalidRequest, intent)
	}
	return ctrl.Snapshot(), nil
}

// ObserveViewport feeds a host visibility observation into the session's gate.
func (s *Service) ObserveViewport(id SessionID, r ViewportReport) (Snapshot, error) {
	sess, err := s.get(id)
	if err != nil {
		return Snapshot{}, err
	}
	ctrl := sess.Controller

	switch {
	case r.Target != nil && r.Viewport != nil:
		ctrl.ObserveRects(*r.Target, *r.Viewport)
	case r.Intersecting != nil:
		ctrl.ObserveViewport(Entry{Intersecting: *r.Intersecting, Ratio: r.Ratio})
	default:
		return Snapshot{}, fmt.Errorf("%w: viewport report needs target and viewport or intersecting", ErrInvalidRequest)
	}
	return ctrl.Snapshot(), nil
}

// ReportMediaEnded forwards a host-reported natural completion.
func (s *Service) ReportMediaEnded(id SessionID, role Role) (Snapshot, error) {
	sess, err := s.get(id)
	if err != nil {
		return Snapshot{}, err
	}
	sess.Controller.MediaEnded(role)
	return sess.Controller.Snapshot(), nil
}

// ReportMediaError forwards a host-reported media failure.
func (s *Service) ReportMediaError(id SessionID, role Role, message string) (Snapshot, error) {
	sess, err := s.get(id)
	if err != nil {
		return Snapshot{}, err
	}
	if message == "" {
		message = "media error"
	}
	sess.Controller.MediaFailed(role, errors.New(message))
	return sess.Controller.Snapshot(), nil
}

// Close unmounts and forgets a session.
func (s *Service) Close(id SessionID) error {
	sess, ok := s.repo.Delete(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	sess.Controller.Unmount()
	s.log.Info("session closed", slog.String("session_id", string(id)), slog.String("state", string(sess.Controller.State())))
	return nil
}

// Shutdown unmounts every session.
func (s *Service) Shutdown() {
	sessions := s.repo.List()
	for _, sess := range sessions {
		if _, ok := s.repo.Delete(sess.ID); ok {
			sess.Controller.Unmount()
		}
	}
	s.log.Info("sessions unmounted", slog.Int("count", len(sessions)))
}

// ActiveCount returns the number of mounted sessions.
func (s *Service) ActiveCount() int {
	return s.repo.ActiveCount()
}

func (s *Service) get(id SessionID) (*Session, error) {
	sess, ok := s.repo.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return sess, nil
}

// transitionEvent is the payload published for every transition.
type transitionEvent struct {
	SessionID SessionID `json:"session_id"`
	Transition
}

type driftEvent struct {
	SessionID    SessionID `json:"session_id"`
	DriftSeconds float64   `json:"drift_seconds"`
	At           time.Time `json:"at"`
}

// OnTransition implements Observer.
func (s *Service) OnTransition(id SessionID, t Transition) {
	if s.metrics != nil {
		s.metrics.IncTransition(string(t.To))
		if t.To == StateError {
			kind := "load"
			if t.Event == EventStartFailed {
				kind = "start"
			}
			s.metrics.IncPlaybackFailure(kind)
		}
	}
	s.publish(id, "transition", transitionEvent{SessionID: id, Transition: t})
}

// OnDriftCorrection implements Observer.
func (s *Service) OnDriftCorrection(id SessionID, drift float64) {
	if s.metrics != nil {
		s.metrics.IncDriftCorrections()
	}
	s.publish(id, "drift", driftEvent{SessionID: id, DriftSeconds: drift, At: s.clock.Now().UTC()})
}

func (s *Service) publish(id SessionID, event string, v any) {
	if s.events == nil {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		s.log.Error("marshal session event", slog.String("event", event), slog.String("error", err.Error()))
		return
	}
	s.events.Publish(string(id), event, data)
}
