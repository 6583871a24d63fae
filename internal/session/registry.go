// Package session holds the in-memory booking wizard sessions.
package session

import (
	"errors"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"travel-concierge/internal/booking"
	"travel-concierge/internal/common/logger"
	"travel-concierge/internal/common/metrics"
	"travel-concierge/internal/models"
)

var ErrNotFound = errors.New("SESSION_NOT_FOUND")

// Session is one wizard. Callers hold Lock while reading or changing Form or
// Seq.
type Session struct {
	ID            string
	UserID        string
	Authenticated bool
	Form          *booking.FormState
	Seq           *booking.Sequencer
	CreatedAt     time.Time

	// Order is set once the wizard has been submitted.
	Order *models.Order

	mu       sync.Mutex
	lastSeen time.Time
}

func (s *Session) Lock() {
	s.mu.Lock()
}

func (s *Session) Unlock() {
	s.mu.Unlock()
}

// DefaultIdempotencyKey is used when a submission carries no Idempotency-Key
// header, so retries from the same wizard still collapse.
func (s *Session) DefaultIdempotencyKey() string {
	return "session:" + s.ID
}

type Config struct {
	TTL          time.Duration
	ReapInterval time.Duration
}

// Registry owns the live sessions and expires idle ones.
type Registry struct {
	cfg       Config
	clock     clockwork.Clock
	catalogue *booking.Catalogue
	logger    logger.Logger

	mu       sync.RWMutex
	sessions map[string]*Session

	scheduler gocron.Scheduler
}

func NewRegistry(cfg Config, catalogue *booking.Catalogue, clock clockwork.Clock, log logger.Logger) *Registry {
	if cfg.TTL <= 0 {
		cfg.TTL = 30 * time.Minute
	}
	if cfg.ReapInterval <= 0 {
		cfg.ReapInterval = time.Minute
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if catalogue == nil {
		catalogue = booking.DefaultCatalogue()
	}
	return &Registry{
		cfg:       cfg,
		clock:     clock,
		catalogue: catalogue,
		logger:    log.WithFields(map[string]interface{}{"component": "session_registry"}),
		sessions:  map[string]*Session{},
	}
}

// Create opens a wizard on the named flow. Authenticated users start past
// the auth step.
func (r *Registry) Create(userID, flowName string) *Session {
	now := r.clock.Now()
	s := &Session{
		ID:            uuid.NewString(),
		UserID:        userID,
		Authenticated: userID != "",
		CreatedAt:     now.UTC(),
		lastSeen:      now,
	}
	s.Form = booking.NewFormState(s.ID, userID, r.catalogue)
	s.Seq = booking.NewSequencer(booking.FlowByName(flowName), s.Authenticated)

	r.mu.Lock()
	r.sessions[s.ID] = s
	n := len(r.sessions)
	r.mu.Unlock()

	metrics.WizardSessionsActive.Set(float64(n))
	return s
}

// Get returns a live session and marks it as used.
func (r *Registry) Get(id string) (*Session, error) {
	r.mu.RLock()
	s, ok := r.sessions[id]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	s.mu.Lock()
	s.lastSeen = r.clock.Now()
	s.mu.Unlock()
	return s, nil
}

func (r *Registry) Delete(id string) bool {
	r.mu.Lock()
	_, ok := r.sessions[id]
	delete(r.sessions, id)
	n := len(r.sessions)
	r.mu.Unlock()

	metrics.WizardSessionsActive.Set(float64(n))
	return ok
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Reap drops sessions idle for longer than the TTL. A session whose lock is
// held is in use and is skipped.
func (r *Registry) Reap() int {
	cutoff := r.clock.Now().Add(-r.cfg.TTL)

	r.mu.Lock()
	removed := 0
	for id, s := range r.sessions {
		if !s.mu.TryLock() {
			continue
		}
		idle := s.lastSeen.Before(cutoff)
		s.mu.Unlock()
		if idle {
			delete(r.sessions, id)
			removed++
		}
	}
	n := len(r.sessions)
	r.mu.Unlock()

	metrics.WizardSessionsActive.Set(float64(n))
	if removed > 0 {
		r.logger.Info("reaped idle sessions", map[string]interface{}{"removed": removed, "active": n})
	}
	return removed
}

// Start schedules the reaper.
func (r *Registry) Start() error {
	sched, err := gocron.NewScheduler(gocron.WithClock(r.clock))
	if err != nil {
		return err
	}
	if _, err := sched.NewJob(
		gocron.DurationJob(r.cfg.ReapInterval),
		gocron.NewTask(func() { r.Reap() }),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithName("session-reaper"),
	); err != nil {
		_ = sched.Shutdown()
		return err
	}
	sched.Start()
	r.scheduler = sched
	return nil
}

func (r *Registry) Shutdown() error {
	if r.scheduler == nil {
		return nil
	}
	return r.scheduler.Shutdown()
}

func (r *Registry) Catalogue() *booking.Catalogue {
	return r.catalogue
}
