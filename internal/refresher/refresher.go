// Package refresher periodically pulls the hosted backend into the working
// set so edits made by other clients show up without a reconnect.
package refresher

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"schedule-sync-backend/internal/dataaccess"
)

// Gate reports whether a remote pull is currently safe.
type Gate interface {
	Connected() bool
	Status() dataaccess.Status
}

// Loader reloads the working set from the data-access layer.
type Loader interface {
	Load(ctx context.Context) error
}

// Service runs the refresh loop.
type Service struct {
	interval  time.Duration
	gate      Gate
	loader    Loader
	onRefresh func()
	log       logrus.FieldLogger
}

// NewService creates a refresher. A zero interval disables it. onRefresh,
// if set, runs after every successful reload.
func NewService(interval time.Duration, gate Gate, loader Loader, onRefresh func(), log logrus.FieldLogger) *Service {
	return &Service{
		interval:  interval,
		gate:      gate,
		loader:    loader,
		onRefresh: onRefresh,
		log:       log.WithField("component", "refresher"),
	}
}

// Run refreshes on every interval until ctx is done.
func (s *Service) Run(ctx context.Context) {
	if s.interval <= 0 {
		s.log.Info("Remote refresh is disabled. Not starting.")
		return
	}
	s.log.WithField("interval", s.interval).Info("Starting remote refresh...")

	timer := time.NewTimer(s.interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("Remote refresh shutting down.")
			return
		case <-timer.C:
			s.RefreshOnce(ctx)
			timer.Reset(s.interval)
		}
	}
}

// RefreshOnce reloads the working set when the backend is reachable and no
// local writes are waiting to replay. It reports whether a reload happened.
func (s *Service) RefreshOnce(ctx context.Context) bool {
	if !s.gate.Connected() {
		s.log.Debug("Refresh skipped: offline")
		return false
	}
	// Pulling now would hide queued local edits until they replay.
	if st := s.gate.Status(); st.Pending > 0 {
		s.log.WithField("pending", st.Pending).Debug("Refresh skipped: writes pending")
		return false
	}
	if err := s.loader.Load(ctx); err != nil {
		s.log.WithError(err).Warn("Remote refresh failed")
		return false
	}
	if s.onRefresh != nil {
		s.onRefresh()
	}
	return true
}
