// Package server exposes drill-down sessions over an HTTP JSON API.
package server

import (
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"orgpulse/internal/audit"
	"orgpulse/internal/drilldown"
	"orgpulse/internal/kpi"
	"orgpulse/internal/logging"
	"orgpulse/internal/personnel"
)

// ErrUnknownSession is returned for session ids the server does not hold.
var ErrUnknownSession = errors.New("unknown session")

// Options configures a Server.
type Options struct {
	Registry    *personnel.Registry
	MaxSessions int
	Audit       *audit.Logger
	Logger      *zap.Logger
	Metrics     *Metrics
}

type session struct {
	id       string
	selector *drilldown.Selector
	touched  time.Time
}

// Server owns one Selector per session. All selector access happens under mu,
// which keeps each selector single-writer.
type Server struct {
	mu          sync.Mutex
	reg         *personnel.Registry
	sessions    map[string]*session
	maxSessions int

	audit   *audit.Logger
	logger  *zap.Logger
	metrics *Metrics
	router  *mux.Router
}

// New builds a Server over an initial registry snapshot.
func New(opts Options) (*Server, error) {
	if opts.Registry == nil {
		return nil, fmt.Errorf("registry is required")
	}
	if opts.Metrics == nil {
		opts.Metrics = NewMetrics()
	}
	s := &Server{
		reg:         opts.Registry,
		sessions:    make(map[string]*session),
		maxSessions: opts.MaxSessions,
		audit:       opts.Audit,
		logger:      logging.OrNop(opts.Logger).Named("server"),
		metrics:     opts.Metrics,
	}
	s.router = s.routes()
	return s, nil
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Metrics returns the server's collectors.
func (s *Server) Metrics() *Metrics {
	return s.metrics
}

// CreateSession starts a session at the default selection, then replays path
// when one is given.
func (s *Server) CreateSession(path []string) (string, kpi.Dashboard, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sel := drilldown.New(s.reg)
	if len(path) > 0 {
		if err := sel.SelectPath(path...); err != nil {
			return "", kpi.Dashboard{}, err
		}
	}

	id := uuid.NewString()
	s.evictLocked(s.maxSessions - 1)
	s.sessions[id] = &session{id: id, selector: sel, touched: time.Now()}
	s.metrics.sessions.Set(float64(len(s.sessions)))

	s.logger.Debug("session created", zap.String("session", id), zap.Strings("path", path))
	s.logEvent("session_created", map[string]any{
		"session": id,
		"state":   sel.State(),
	})
	return id, kpi.BuildDashboard(sel), nil
}

// Dashboard returns the current view of a session.
func (s *Server) Dashboard(id string) (kpi.Dashboard, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return kpi.Dashboard{}, ErrUnknownSession
	}
	sess.touched = time.Now()
	return kpi.BuildDashboard(sess.selector), nil
}

// Select applies a selection to a session.
func (s *Server) Select(id, recordID string, tier personnel.Tier) (kpi.Dashboard, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return kpi.Dashboard{}, ErrUnknownSession
	}
	sess.touched = time.Now()

	if err := sess.selector.Select(recordID, tier); err != nil {
		s.metrics.selections.WithLabelValues(tier.String(), "rejected").Inc()
		return kpi.Dashboard{}, err
	}
	s.metrics.selections.WithLabelValues(tier.String(), "ok").Inc()

	state := sess.selector.State()
	s.logEvent("selection_changed", map[string]any{
		"session": id,
		"tier":    tier.String(),
		"record":  recordID,
		"state":   state,
	})
	return kpi.BuildDashboard(sess.selector), nil
}

// CloseSession drops a session.
func (s *Server) CloseSession(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[id]; !ok {
		return ErrUnknownSession
	}
	delete(s.sessions, id)
	s.metrics.sessions.Set(float64(len(s.sessions)))
	return nil
}

// Summary returns the KPI card of any record in the current registry.
func (s *Server) Summary(recordID string) (kpi.Summary, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.reg.Lookup(recordID)
	if !ok {
		return kpi.Summary{}, false
	}
	return kpi.Summarize(rec), true
}

// RecordCount returns the size of the current registry.
func (s *Server) RecordCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reg.Len()
}

// SwapRegistry installs a new registry snapshot and reconciles every live
// session against it.
func (s *Server) SwapRegistry(reg *personnel.Registry) map[string]drilldown.ReconcileResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.reg = reg
	results := make(map[string]drilldown.ReconcileResult, len(s.sessions))
	changed := 0
	for id, sess := range s.sessions {
		res := sess.selector.Reconcile(reg)
		results[id] = res
		for _, field := range res.Cleared {
			s.metrics.cleared.WithLabelValues(field).Inc()
		}
		if res.Changed() {
			changed++
		}
	}
	s.metrics.reloads.Inc()

	s.logger.Info("registry swapped",
		zap.Int("records", reg.Len()),
		zap.Int("sessions", len(s.sessions)),
		zap.Int("sessions_changed", changed))
	s.logEvent("registry_reloaded", map[string]any{
		"records":          reg.Len(),
		"sessions":         len(s.sessions),
		"sessions_changed": changed,
	})
	return results
}

// evictLocked drops least recently used sessions until at most keep remain.
// A zero session cap means unlimited.
func (s *Server) evictLocked(keep int) {
	if s.maxSessions <= 0 {
		return
	}
	for len(s.sessions) > keep {
		var oldest *session
		for _, sess := range s.sessions {
			if oldest == nil || sess.touched.Before(oldest.touched) {
				oldest = sess
			}
		}
		delete(s.sessions, oldest.id)
		s.logger.Debug("session evicted", zap.String("session", oldest.id))
	}
}

func (s *Server) logEvent(eventType string, payload map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.LogEvent("server", eventType, payload); err != nil {
		s.logger.Warn("audit log failed", zap.String("type", eventType), zap.Error(err))
	}
}
