// Package monitor tracks whether the remote backend is actually reachable,
// independent of what the platform reports about the network link.
package monitor

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"schedule-sync-backend/config"
)

// Status is the observed reachability of the backend.
type Status string

const (
	Online  Status = "online"
	Offline Status = "offline"
)

// Listener is invoked once per status transition.
type Listener func(ctx context.Context, status Status)

// Monitor probes a cache-disabled endpoint on an interval.
type Monitor struct {
	cfg    config.MonitorConfig
	client *http.Client
	log    logrus.FieldLogger
	hints  *rate.Limiter

	mu        sync.RWMutex
	status    Status
	lastProbe time.Time
	listeners []Listener
	checkFns  []Listener

	// probeMu serializes probes so transitions are observed in order.
	probeMu sync.Mutex
	hintCh  chan struct{}
}

// New creates a Monitor whose initial status is the platform-reported one.
func New(cfg config.MonitorConfig, client *http.Client, log logrus.FieldLogger) *Monitor {
	if client == nil {
		client = &http.Client{}
	}
	status := Offline
	if cfg.AssumeOnline {
		status = Online
	}
	hps := cfg.HintsPerSecond
	if hps <= 0 {
		hps = 1
	}
	return &Monitor{
		cfg:    cfg,
		client: client,
		log:    log.WithField("component", "monitor"),
		hints:  rate.NewLimiter(rate.Limit(hps), 1),
		status: status,
		hintCh: make(chan struct{}, 1),
	}
}

// Status returns the current reachability.
func (m *Monitor) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

// LastProbe returns when the most recent probe completed.
func (m *Monitor) LastProbe() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastProbe
}

// OnStatusChange registers fn to be called on every transition.
func (m *Monitor) OnStatusChange(fn Listener) {
	m.mu.Lock()
	m.listeners = append(m.listeners, fn)
	m.mu.Unlock()
}

// OnCheck registers fn to be called after every check with the observed
// status, after any transition listeners have run.
func (m *Monitor) OnCheck(fn Listener) {
	m.mu.Lock()
	m.checkFns = append(m.checkFns, fn)
	m.mu.Unlock()
}

// Hint records a platform online/offline event. It never sets the status;
// it only schedules an immediate probe, subject to the hint rate limit.
func (m *Monitor) Hint(online bool) {
	m.log.WithField("online", online).Debug("Connectivity hint received")
	if !m.hints.Allow() {
		return
	}
	select {
	case m.hintCh <- struct{}{}:
	default:
	}
}

// Run probes immediately and then on every interval until ctx is done.
func (m *Monitor) Run(ctx context.Context) {
	m.log.WithField("interval", m.cfg.Interval).Info("Starting connectivity monitor...")
	m.ProbeOnce(ctx)

	timer := time.NewTimer(m.cfg.Interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			m.log.Info("Connectivity monitor shutting down.")
			return
		case <-m.hintCh:
			m.ProbeOnce(ctx)
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(m.cfg.Interval)
		case <-timer.C:
			m.ProbeOnce(ctx)
			timer.Reset(m.cfg.Interval)
		}
	}
}

// ProbeOnce performs a single probe, updates the status and notifies
// listeners when it changed. It returns the observed status.
func (m *Monitor) ProbeOnce(ctx context.Context) Status {
	m.probeMu.Lock()
	defer m.probeMu.Unlock()

	observed := Online
	if err := m.probe(ctx); err != nil {
		m.log.WithError(err).Debug("Probe failed")
		observed = Offline
	}
	m.set(ctx, observed)
	return observed
}

func (m *Monitor) probe(ctx context.Context) error {
	timeout := m.cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	u, err := url.Parse(m.cfg.ProbeURL)
	if err != nil {
		return fmt.Errorf("invalid probe url: %w", err)
	}
	q := u.Query()
	q.Set("d", strconv.FormatInt(time.Now().UnixNano(), 10))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to create probe request: %w", err)
	}
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Pragma", "no-cache")

	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("probe request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("probe returned status %d", resp.StatusCode)
	}
	return nil
}

func (m *Monitor) set(ctx context.Context, observed Status) {
	m.mu.Lock()
	m.lastProbe = time.Now()
	prev := m.status
	m.status = observed
	var listeners []Listener
	if prev != observed {
		listeners = append(listeners, m.listeners...)
	}
	checkFns := append([]Listener(nil), m.checkFns...)
	m.mu.Unlock()

	if prev != observed {
		m.log.WithFields(logrus.Fields{"from": prev, "to": observed}).Info("Connectivity changed")
		for _, fn := range listeners {
			fn(ctx, observed)
		}
	}
	for _, fn := range checkFns {
		fn(ctx, observed)
	}
}
