// Package autosave persists the Schengen form in the background with a
// trailing debounce.
package autosave

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"travel-concierge/internal/common/logger"
	"travel-concierge/internal/common/metrics"
	"travel-concierge/internal/models"
	"travel-concierge/internal/store"
)

type Store interface {
	Create(ctx context.Context, app *models.SchengenApplication) error
	Update(ctx context.Context, app *models.SchengenApplication) error
}

type Config struct {
	Debounce    time.Duration
	SaveTimeout time.Duration
	// IdleTTL is how long a form may go untouched before Reap drops it.
	IdleTTL      time.Duration
	ReapInterval time.Duration
}

// Status is what a form knows about its background saves.
type Status struct {
	ApplicationID string     `json:"applicationId,omitempty"`
	Version       int64      `json:"version"`
	SavedVersion  int64      `json:"savedVersion"`
	Pending       bool       `json:"pending"`
	LastSavedAt   *time.Time `json:"lastSavedAt,omitempty"`
	LastError     string     `json:"lastError,omitempty"`
}

type snapshot struct {
	version int64
	step    int
	data    json.RawMessage
}

// form tracks one Schengen form. saveMu serializes its saves; the Saver's mu
// guards every other field. timerFor is the version a pending timer will
// save, zero when none is pending.
type form struct {
	saveMu sync.Mutex

	appID        string
	version      int64
	savedVersion int64
	latest       snapshot
	timer        clockwork.Timer
	timerFor     int64
	touched      time.Time
	lastSavedAt  time.Time
	lastErr      string
}

type Saver struct {
	cfg    Config
	store  Store
	clock  clockwork.Clock
	logger logger.Logger

	mu        sync.Mutex
	forms     map[string]*form
	wg        sync.WaitGroup
	scheduler gocron.Scheduler
}

func NewSaver(cfg Config, st Store, clock clockwork.Clock, log logger.Logger) *Saver {
	if cfg.Debounce <= 0 {
		cfg.Debounce = 2 * time.Second
	}
	if cfg.SaveTimeout <= 0 {
		cfg.SaveTimeout = 10 * time.Second
	}
	if cfg.IdleTTL <= cfg.Debounce {
		cfg.IdleTTL = time.Hour
	}
	if cfg.ReapInterval <= 0 {
		cfg.ReapInterval = time.Minute
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Saver{
		cfg:    cfg,
		store:  st,
		clock:  clock,
		logger: log.WithFields(map[string]interface{}{"component": "autosave"}),
		forms:  map[string]*form{},
	}
}

// Attach binds formKey to an application loaded from the store so later
// changes update it instead of creating a new one.
func (s *Saver) Attach(formKey string, app *models.SchengenApplication) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f := s.formLocked(formKey)
	f.touched = s.clock.Now()
	f.appID = app.ID
	if app.Version > f.version {
		f.version = app.Version
	}
	if app.Version > f.savedVersion {
		f.savedVersion = app.Version
	}
}

// Change records the latest form state and restarts the quiet window. The
// first step is never auto-saved. It returns the change's version.
func (s *Saver) Change(formKey string, step int, data json.RawMessage) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	f := s.formLocked(formKey)
	f.touched = s.clock.Now()
	f.version++
	version := f.version
	f.latest = snapshot{version: f.version, step: step, data: append(json.RawMessage(nil), data...)}

	if step <= 0 {
		return f.version
	}

	if f.timer != nil && f.timer.Stop() {
		s.wg.Done()
	}
	s.wg.Add(1)
	f.timerFor = version
	f.timer = s.clock.AfterFunc(s.cfg.Debounce, func() {
		defer s.wg.Done()
		s.save(formKey)
		s.mu.Lock()
		if f.timerFor == version {
			f.timerFor = 0
		}
		s.mu.Unlock()
	})
	return f.version
}

// Flush cancels the quiet window and saves the latest state now.
func (s *Saver) Flush(formKey string) error {
	s.mu.Lock()
	f, ok := s.forms[formKey]
	if ok && f.timer != nil && f.timer.Stop() {
		f.timerFor = 0
		s.wg.Done()
	}
	s.mu.Unlock()
	if !ok {
		return nil
	}
	return s.save(formKey)
}

func (s *Saver) Status(formKey string) Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.forms[formKey]
	if !ok {
		return Status{}
	}
	st := Status{
		ApplicationID: f.appID,
		Version:       f.version,
		SavedVersion:  f.savedVersion,
		Pending:       f.savedVersion < f.latest.version && f.latest.step > 0,
		LastError:     f.lastErr,
	}
	if !f.lastSavedAt.IsZero() {
		t := f.lastSavedAt
		st.LastSavedAt = &t
	}
	return st
}

// Forget drops a form, e.g. after it has been submitted.
func (s *Saver) Forget(formKey string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if f, ok := s.forms[formKey]; ok {
		if f.timer != nil && f.timer.Stop() {
			s.wg.Done()
		}
		delete(s.forms, formKey)
	}
}

// Reap drops forms untouched for longer than IdleTTL. Forms with a save
// scheduled or running are kept. It returns how many were dropped.
func (s *Saver) Reap() int {
	cutoff := s.clock.Now().Add(-s.cfg.IdleTTL)

	s.mu.Lock()
	removed, unsaved := 0, 0
	for key, f := range s.forms {
		if f.timerFor != 0 || !f.touched.Before(cutoff) {
			continue
		}
		if !f.saveMu.TryLock() {
			continue
		}
		if f.savedVersion < f.latest.version && f.latest.step > 0 {
			unsaved++
		}
		delete(s.forms, key)
		f.saveMu.Unlock()
		removed++
	}
	n := len(s.forms)
	s.mu.Unlock()

	if unsaved > 0 {
		s.logger.Warn("dropped idle forms with unsaved changes", map[string]interface{}{"forms": unsaved})
	}
	if removed > 0 {
		s.logger.Info("reaped idle forms", map[string]interface{}{"removed": removed, "active": n})
	}
	return removed
}

// Start runs Reap every ReapInterval until Shutdown.
func (s *Saver) Start() error {
	sched, err := gocron.NewScheduler(gocron.WithClock(s.clock))
	if err != nil {
		return err
	}
	if _, err := sched.NewJob(
		gocron.DurationJob(s.cfg.ReapInterval),
		gocron.NewTask(func() { s.Reap() }),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithName("autosave-reaper"),
	); err != nil {
		_ = sched.Shutdown()
		return err
	}
	sched.Start()
	s.scheduler = sched
	return nil
}

func (s *Saver) Shutdown() error {
	if s.scheduler == nil {
		return nil
	}
	return s.scheduler.Shutdown()
}

// Wait blocks until every scheduled save has run.
func (s *Saver) Wait() {
	s.wg.Wait()
}

func (s *Saver) formLocked(formKey string) *form {
	f, ok := s.forms[formKey]
	if !ok {
		f = &form{}
		s.forms[formKey] = f
	}
	return f
}

func (s *Saver) save(formKey string) error {
	s.mu.Lock()
	f, ok := s.forms[formKey]
	s.mu.Unlock()
	if !ok {
		return nil
	}

	f.saveMu.Lock()
	defer f.saveMu.Unlock()

	s.mu.Lock()
	snap := f.latest
	appID := f.appID
	saved := f.savedVersion
	s.mu.Unlock()

	if snap.version <= saved || snap.step <= 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.SaveTimeout)
	defer cancel()

	now := s.clock.Now().UTC()
	app := &models.SchengenApplication{
		ID:          appID,
		Version:     snap.version,
		CurrentStep: snap.step,
		FormData:    snap.data,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	var err error
	if appID == "" {
		app.ID = uuid.NewString()
		err = s.store.Create(ctx, app)
	} else {
		err = s.store.Update(ctx, app)
	}

	log := s.logger.WithFields(map[string]interface{}{"formKey": formKey, "version": snap.version})

	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case errors.Is(err, store.ErrStaleVersion):
		metrics.AutoSaves.WithLabelValues("stale").Inc()
		log.Debug("newer snapshot already stored", nil)
		return nil
	case err != nil:
		metrics.AutoSaves.WithLabelValues("failed").Inc()
		f.lastErr = err.Error()
		log.Warn("auto-save failed", map[string]interface{}{"error": err.Error()})
		return err
	}

	metrics.AutoSaves.WithLabelValues("saved").Inc()
	f.appID = app.ID
	f.savedVersion = snap.version
	f.touched = now
	f.lastSavedAt = now
	f.lastErr = ""
	log.Debug("form auto-saved", map[string]interface{}{"applicationId": app.ID, "step": snap.step})
	return nil
}
