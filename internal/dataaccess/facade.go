// Package dataaccess decides, for every read and write, whether the remote
// backend or the local store is the source of truth. Writes always land
// locally first; remote writes that cannot happen now go through the sync
// queue.
package dataaccess

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"schedule-sync-backend/internal/apperror"
	"schedule-sync-backend/internal/model"
	"schedule-sync-backend/internal/monitor"
	"schedule-sync-backend/internal/remote"
	"schedule-sync-backend/internal/syncqueue"
)

// State is the facade's lifecycle position.
type State string

const (
	StateUninitialized State = "uninitialized"
	StateLoading       State = "loading"
	StateReady         State = "ready"
)

const (
	msgSavedRemote  = "Saved to cloud"
	msgSavedLocal   = "Saved locally, will sync later"
	msgOffline      = "Working offline"
	msgLoadedRemote = "Loaded from cloud"
	msgLoadedLocal  = "Loaded from local storage"
	msgSynced       = "All changes synced"
	msgPending      = "Some changes are still waiting to sync"
)

// LocalStore is the durable side of the facade.
type LocalStore interface {
	Save(key string, value any) error
	Load(key string, dest any) bool
	MergeByID(key string, records any) error
	DeleteByID(key string, ids []string) error
}

// Mutation is one user-level action and the table writes it implies. The
// changes are replayed together if they have to be queued.
type Mutation struct {
	Action  string
	Changes []syncqueue.Change
}

// Status is a snapshot of the facade for display.
type Status struct {
	State     State      `json:"state"`
	Connected bool       `json:"connected"`
	Pending   int        `json:"pending"`
	Rejected  int        `json:"rejected"`
	LastSync  *time.Time `json:"lastSync,omitempty"`
	Message   string     `json:"message"`
}

// Options tunes a Facade.
type Options struct {
	// AuditLimit caps how many audit entries LoadAll returns.
	AuditLimit int
	// Connected is the initial connectivity, normally the monitor's status.
	Connected bool
}

// Facade is safe for concurrent use. Writes are serialized in call order.
type Facade struct {
	local LocalStore
	gw    remote.Gateway
	queue *syncqueue.Queue
	log   logrus.FieldLogger
	opts  Options
	now   func() time.Time

	writeMu sync.Mutex

	mu        sync.RWMutex
	state     State
	connected bool
	lastSync  time.Time
	message   string
}

func New(local LocalStore, gw remote.Gateway, queue *syncqueue.Queue, opts Options, log logrus.FieldLogger) *Facade {
	if opts.AuditLimit <= 0 {
		opts.AuditLimit = 100
	}
	return &Facade{
		local:     local,
		gw:        gw,
		queue:     queue,
		log:       log.WithField("component", "dataaccess"),
		opts:      opts,
		now:       time.Now,
		state:     StateUninitialized,
		connected: opts.Connected,
	}
}

// Connected reports whether remote calls are currently attempted.
func (f *Facade) Connected() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.connected
}

func (f *Facade) setConnected(v bool, msg string) {
	f.mu.Lock()
	changed := f.connected != v
	f.connected = v
	if msg != "" {
		f.message = msg
	}
	f.mu.Unlock()
	if changed {
		f.log.WithField("connected", v).Info("Data access mode changed")
	}
}

func (f *Facade) setMessage(msg string, synced bool) {
	f.mu.Lock()
	f.message = msg
	if synced {
		f.lastSync = f.now().UTC()
	}
	f.mu.Unlock()
}

// Status reports state, connectivity and queue depth.
func (f *Facade) Status() Status {
	pending := f.queue.Len()
	rejected := len(f.queue.Rejected())

	f.mu.RLock()
	defer f.mu.RUnlock()
	st := Status{
		State:     f.state,
		Connected: f.connected,
		Pending:   pending,
		Rejected:  rejected,
		Message:   f.message,
	}
	if !f.lastSync.IsZero() {
		ls := f.lastSync
		st.LastSync = &ls
	}
	return st
}

// LoadAll returns every collection. While connected with nothing pending
// the backend is read and its rows written through to the local store;
// otherwise, or when the backend fails, the local store is read.
func (f *Facade) LoadAll(ctx context.Context) (*Dataset, error) {
	f.mu.Lock()
	if f.state == StateUninitialized {
		f.state = StateLoading
	}
	f.mu.Unlock()
	defer func() {
		f.mu.Lock()
		f.state = StateReady
		f.mu.Unlock()
	}()

	if f.Connected() && f.queue.Len() == 0 {
		ds, err := f.fetchRemote(ctx)
		if err == nil {
			f.writeThrough(ds)
			return ds, nil
		}
		f.log.WithError(err).Warn("Remote load failed; falling back to local storage")
		if !errors.Is(err, apperror.ErrRemoteRejected) {
			f.setConnected(false, msgOffline)
		}
	}

	ds := f.readLocal()
	f.setMessage(msgLoadedLocal, false)
	return ds, nil
}

func (f *Facade) fetchRemote(ctx context.Context) (*Dataset, error) {
	ds := emptyDataset()
	for _, table := range model.Tables {
		q := remote.Query{}
		if table == model.TableAuditLog {
			q = remote.Query{OrderBy: "timestamp", Desc: true, Limit: f.opts.AuditLimit}
		}
		if err := f.gw.Fetch(ctx, table, q, ds.target(table)); err != nil {
			return nil, err
		}
	}
	ds.normalize()
	return ds, nil
}

// writeThrough refreshes the local copy unless writes queued meanwhile.
func (f *Facade) writeThrough(ds *Dataset) {
	f.writeMu.Lock()
	defer f.writeMu.Unlock()

	if f.queue.Len() > 0 {
		f.log.Info("Pending changes queued during load; keeping local copy")
		return
	}
	for _, table := range model.Tables {
		if err := f.local.Save(table.LocalKey(), ds.target(table)); err != nil {
			f.log.WithError(err).WithField("table", table).Warn("Could not refresh local cache")
		}
	}
	f.setMessage(msgLoadedRemote, true)
}

func (f *Facade) readLocal() *Dataset {
	ds := emptyDataset()
	for _, table := range model.Tables {
		f.local.Load(table.LocalKey(), ds.target(table))
	}
	ds.normalize()
	ds.sortAudit(f.opts.AuditLimit)
	return ds
}

// Write applies m locally, then remotely or through the queue. A local
// failure is returned as STORAGE_FAILURE and nothing else happens. A
// backend rejection is returned as REMOTE_REJECTED and is not queued.
// Unavailability is not an error: the mutation is queued.
func (f *Facade) Write(ctx context.Context, m Mutation) error {
	f.writeMu.Lock()
	defer f.writeMu.Unlock()

	for _, c := range m.Changes {
		if err := f.applyLocal(c); err != nil {
			return err
		}
	}

	if !f.Connected() || f.queue.Len() > 0 {
		if _, err := f.queue.Enqueue(m.Action, m.Changes...); err != nil {
			return err
		}
		f.setMessage(msgSavedLocal, false)
		if f.Connected() {
			f.drain(ctx)
		}
		return nil
	}

	err := f.applyRemote(ctx, m.Changes)
	switch {
	case err == nil:
		f.setMessage(msgSavedRemote, true)
		return nil
	case errors.Is(err, apperror.ErrRemoteRejected):
		f.log.WithError(err).WithField("action", m.Action).Error("Backend rejected write")
		return err
	default:
		f.log.WithError(err).WithField("action", m.Action).Warn("Backend unreachable; queueing write")
		if _, qerr := f.queue.Enqueue(m.Action, m.Changes...); qerr != nil {
			return qerr
		}
		f.setConnected(false, msgSavedLocal)
		return nil
	}
}

func (f *Facade) applyLocal(c syncqueue.Change) error {
	key := c.Table.LocalKey()
	if key == "" {
		return apperror.Validation("unknown table " + string(c.Table))
	}
	var err error
	switch c.Op {
	case syncqueue.OpUpsert:
		err = f.local.MergeByID(key, c.Records)
	case syncqueue.OpDelete:
		err = f.local.DeleteByID(key, c.IDs)
	default:
		return apperror.Validation("unknown change op " + string(c.Op))
	}
	if err != nil && apperror.CodeOf(err) != apperror.CodeStorageFailure {
		err = apperror.StorageFailure(err, key)
	}
	return err
}

func (f *Facade) applyRemote(ctx context.Context, changes []syncqueue.Change) error {
	for _, c := range changes {
		var err error
		switch c.Op {
		case syncqueue.OpUpsert:
			err = f.gw.Upsert(ctx, c.Table, c.Records)
		case syncqueue.OpDelete:
			err = f.gw.Delete(ctx, c.Table, c.IDs)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// RestoreLocal runs replace, which swaps out the local store wholesale,
// with writes held off, then picks up the queue the store now holds.
func (f *Facade) RestoreLocal(replace func() error) error {
	f.writeMu.Lock()
	defer f.writeMu.Unlock()

	if err := replace(); err != nil {
		return err
	}
	pending := f.queue.Reload()
	f.log.WithField("pending", pending).Info("Local store restored")
	if pending > 0 {
		f.setMessage(msgPending, false)
	}
	return nil
}

// Drain replays the queue now.
func (f *Facade) Drain(ctx context.Context) (syncqueue.Result, error) {
	return f.drain(ctx)
}

func (f *Facade) drain(ctx context.Context) (syncqueue.Result, error) {
	res, err := f.queue.Drain(ctx, f.gw)
	if err != nil {
		f.log.WithError(err).Error("Sync queue drain failed")
		return res, err
	}
	// Items reached the backend, so it is reachable again.
	if len(res.Synced) > 0 && len(res.Remaining) == 0 {
		f.setConnected(true, "")
	}
	if len(res.Remaining) == 0 {
		f.setMessage(msgSynced, len(res.Synced) > 0)
	} else {
		f.setMessage(msgPending, len(res.Synced) > 0)
	}
	return res, nil
}

// HandleStatus is the monitor listener.
func (f *Facade) HandleStatus(ctx context.Context, status monitor.Status) {
	if status != monitor.Online {
		f.setConnected(false, msgOffline)
		return
	}
	f.setConnected(true, "")
	if err := f.OnReconnect(ctx); err != nil {
		f.log.WithError(err).Warn("Reconnect reconciliation failed")
	}
}

// Reconcile is the per-check listener. A failed remote call degrades the
// facade without the monitor noticing; when checks keep succeeding the
// facade is re-armed through the reconnect path. It reports whether that
// happened.
func (f *Facade) Reconcile(ctx context.Context, status monitor.Status) bool {
	if status != monitor.Online || f.Connected() {
		return false
	}
	f.log.Info("Backend reachable while degraded; reconnecting")
	f.HandleStatus(ctx, status)
	return true
}

// OnReconnect drains the queue and then reloads from the backend. When
// items are still pending the local copy is left alone, since the remote
// rows would overwrite edits that have not reached it yet.
func (f *Facade) OnReconnect(ctx context.Context) error {
	res, err := f.drain(ctx)
	if err != nil {
		return err
	}
	if len(res.Remaining) > 0 {
		f.log.WithField("remaining", len(res.Remaining)).Info("Items still pending after reconnect; skipping refresh")
		return nil
	}
	_, err = f.LoadAll(ctx)
	return err
}
