// Package roster holds the scheduling working set and the operations that
// change it. Every change is written through the data access facade as one
// mutation together with its audit entry.
package roster

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"schedule-sync-backend/internal/apperror"
	"schedule-sync-backend/internal/dataaccess"
	"schedule-sync-backend/internal/history"
	"schedule-sync-backend/internal/model"
	"schedule-sync-backend/internal/notification"
	"schedule-sync-backend/internal/syncqueue"
)

// Audit actions.
const (
	ActionEmployeeCreate     = "employee_create"
	ActionEmployeeUpdate     = "employee_update"
	ActionEmployeeDelete     = "employee_delete"
	ActionScheduleChange     = "schedule_change"
	ActionScheduleClear      = "schedule_clear"
	ActionNoteChange         = "note_change"
	ActionPTORequest         = "pto_request"
	ActionPTOUpdate          = "pto_update"
	ActionAnnouncementCreate = "announcement_create"
	ActionClockIn            = "clock_in"
	ActionClockOut           = "clock_out"
	ActionUndo               = "history_undo"
	ActionRedo               = "history_redo"
	ActionImport             = "data_import"
)

// Store is the facade the service writes through.
type Store interface {
	LoadAll(ctx context.Context) (*dataaccess.Dataset, error)
	Write(ctx context.Context, m dataaccess.Mutation) error
}

// Notifier delivers notices to employees. Dispatch must not block.
type Notifier interface {
	Dispatch(n notification.Notice)
}

type noopNotifier struct{}

func (noopNotifier) Dispatch(notification.Notice) {}

// Options configures a Service.
type Options struct {
	UserID       string
	UserAgent    string
	HistoryDepth int
	Now          func() time.Time
}

// WorkingSet is the undoable part of the state.
type WorkingSet struct {
	Employees    []model.Employee   `json:"employees"`
	ScheduleData model.Grid         `json:"scheduleData"`
	NotesData    model.Grid         `json:"notesData"`
	PTORequests  []model.PTORequest `json:"ptoRequests"`
}

func (w WorkingSet) clone() WorkingSet {
	return WorkingSet{
		Employees:    slices.Clone(w.Employees),
		ScheduleData: w.ScheduleData.Clone(),
		NotesData:    w.NotesData.Clone(),
		PTORequests:  slices.Clone(w.PTORequests),
	}
}

func (w WorkingSet) employee(id string) (int, bool) {
	for i, e := range w.Employees {
		if e.ID == id {
			return i, true
		}
	}
	return -1, false
}

func (w WorkingSet) pto(id string) (int, bool) {
	for i, p := range w.PTORequests {
		if p.ID == id {
			return i, true
		}
	}
	return -1, false
}

// Service is safe for concurrent use; operations run one at a time.
type Service struct {
	store    Store
	notifier Notifier
	validate *validator.Validate
	history  *history.History[WorkingSet]
	log      logrus.FieldLogger
	opts     Options

	mu            sync.Mutex
	loaded        bool
	ws            WorkingSet
	auditLog      []model.AuditLogEntry
	announcements []model.Announcement
	timeEntries   []model.TimeEntry
}

func New(store Store, notifier Notifier, opts Options, log logrus.FieldLogger) *Service {
	if notifier == nil {
		notifier = noopNotifier{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.UserID == "" {
		opts.UserID = "system"
	}
	return &Service{
		store:    store,
		notifier: notifier,
		validate: apperror.NewValidator(),
		history:  history.New[WorkingSet](opts.HistoryDepth),
		log:      log.WithField("component", "roster"),
		opts:     opts,
		ws:       WorkingSet{ScheduleData: model.Grid{}, NotesData: model.Grid{}},
	}
}

func (s *Service) now() time.Time { return s.opts.Now().UTC() }

// Load replaces the working set with the facade's data. History is kept
// across reloads and cleared only by the first one.
func (s *Service) Load(ctx context.Context) error {
	ds, err := s.store.LoadAll(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.ws = WorkingSet{
		Employees:    ds.Employees,
		ScheduleData: model.ScheduleGridFromEntries(ds.ScheduleEntries),
		NotesData:    model.NotesGridFromNotes(ds.ScheduleNotes),
		PTORequests:  ds.PTORequests,
	}
	s.auditLog = ds.AuditLog
	s.announcements = ds.Announcements
	s.timeEntries = ds.TimeEntries
	if !s.loaded {
		s.history.Reset()
		s.loaded = true
	}
	s.log.WithFields(logrus.Fields{
		"employees": len(ds.Employees),
		"entries":   len(ds.ScheduleEntries),
		"pto":       len(ds.PTORequests),
	}).Info("Working set loaded")
	return nil
}

// Reload re-reads the dataset after the store was replaced underneath the
// service. Undo history no longer describes the stored state and is dropped.
func (s *Service) Reload(ctx context.Context) error {
	if err := s.Load(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	s.history.Reset()
	s.mu.Unlock()
	return nil
}

func (s *Service) ready() error {
	if !s.loaded {
		return apperror.ErrNotReady
	}
	return nil
}

// Snapshot returns a copy of the working set.
func (s *Service) Snapshot() WorkingSet {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ws.clone()
}

// AuditLog returns up to limit entries, newest first.
func (s *Service) AuditLog(limit int) []model.AuditLogEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := slices.Clone(s.auditLog)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// commit writes changes plus an audit entry. When next is non-nil the
// current working set is recorded in history first and next becomes the
// working set once the write has landed locally. A backend rejection is
// returned after the local state is applied, since the local store
// already holds the change. Callers hold s.mu.
func (s *Service) commit(ctx context.Context, action, details string, next *WorkingSet, changes []syncqueue.Change) (model.AuditLogEntry, error) {
	if next != nil {
		if err := s.history.Record(s.ws); err != nil {
			return model.AuditLogEntry{}, err
		}
	}

	audit := model.NewAuditEntry(s.now(), s.opts.UserID, s.opts.UserAgent, action, details)
	changes = append(changes, syncqueue.Upsert(model.TableAuditLog, []model.AuditLogEntry{audit}))

	err := s.store.Write(ctx, dataaccess.Mutation{Action: action, Changes: changes})
	if err != nil && !errors.Is(err, apperror.ErrRemoteRejected) {
		if next != nil {
			s.history.Forget()
		}
		s.log.WithError(err).WithField("action", action).Error("Write failed; working set unchanged")
		return audit, err
	}

	if next != nil {
		s.ws = *next
	}
	s.auditLog = append([]model.AuditLogEntry{audit}, s.auditLog...)
	return audit, err
}
