package roster

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"schedule-sync-backend/internal/apperror"
	"schedule-sync-backend/internal/model"
	"schedule-sync-backend/internal/notification"
	"schedule-sync-backend/internal/syncqueue"
)

// AnnouncementInput is a new announcement.
type AnnouncementInput struct {
	Title string `json:"title" validate:"required,max=200"`
	Body  string `json:"body" validate:"max=5000"`
}

// Announcements returns the active announcements, newest first.
func (s *Service) Announcements() []model.Announcement {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Announcement
	for _, a := range s.announcements {
		if a.Active {
			out = append(out, a)
		}
	}
	slices.SortStableFunc(out, func(a, b model.Announcement) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return out
}

// PostAnnouncement publishes an announcement and notifies every active
// employee. It is not part of the undo history.
func (s *Service) PostAnnouncement(ctx context.Context, in AnnouncementInput) (model.Announcement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ready(); err != nil {
		return model.Announcement{}, err
	}
	in.Title = strings.TrimSpace(in.Title)
	in.Body = strings.TrimSpace(in.Body)
	if err := s.validate.Struct(in); err != nil {
		return model.Announcement{}, apperror.MapValidationError(err)
	}

	a := model.Announcement{
		ID:        model.NewID("ann"),
		Title:     in.Title,
		Body:      in.Body,
		AuthorID:  s.opts.UserID,
		Active:    true,
		CreatedAt: s.now(),
	}
	_, err := s.commit(ctx, ActionAnnouncementCreate, "Posted announcement "+a.Title, nil,
		[]syncqueue.Change{syncqueue.Upsert(model.TableAnnouncements, []model.Announcement{a})})
	if err != nil && apperror.CodeOf(err) != apperror.CodeRemoteRejected {
		return model.Announcement{}, err
	}
	s.announcements = append(s.announcements, a)
	if err == nil {
		for _, e := range s.ws.Employees {
			if !e.IsOpenShifts() && !e.IsArchived() {
				s.notifier.Dispatch(notification.Notice{EmployeeID: e.ID, Title: a.Title, Body: a.Body})
			}
		}
	}
	return a, err
}

// TimeEntries returns employeeID's clock entries, oldest first.
func (s *Service) TimeEntries(employeeID string) []model.TimeEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.entriesFor(employeeID)
}

func (s *Service) entriesFor(employeeID string) []model.TimeEntry {
	var out []model.TimeEntry
	for _, t := range s.timeEntries {
		if t.EmployeeID == employeeID {
			out = append(out, t)
		}
	}
	slices.SortStableFunc(out, func(a, b model.TimeEntry) int {
		return a.RecordedAt.Compare(b.RecordedAt)
	})
	return out
}

// ClockIn records the start of work. It fails if the employee is already
// clocked in.
func (s *Service) ClockIn(ctx context.Context, employeeID string, locationVerified bool) (model.TimeEntry, error) {
	return s.clock(ctx, employeeID, model.TimeEntryClockIn, locationVerified)
}

// ClockOut records the end of work. It fails unless the employee is
// clocked in.
func (s *Service) ClockOut(ctx context.Context, employeeID string, locationVerified bool) (model.TimeEntry, error) {
	return s.clock(ctx, employeeID, model.TimeEntryClockOut, locationVerified)
}

func (s *Service) clock(ctx context.Context, employeeID, entryType string, locationVerified bool) (model.TimeEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ready(); err != nil {
		return model.TimeEntry{}, err
	}
	emp, err := s.editableEmployee(employeeID)
	if err != nil {
		return model.TimeEntry{}, err
	}
	if emp.IsOpenShifts() {
		return model.TimeEntry{}, apperror.Validation("the open shifts row cannot clock in")
	}

	clockedIn := false
	if prior := s.entriesFor(employeeID); len(prior) > 0 {
		clockedIn = prior[len(prior)-1].EntryType == model.TimeEntryClockIn
	}
	switch {
	case entryType == model.TimeEntryClockIn && clockedIn:
		return model.TimeEntry{}, apperror.InvalidState(fmt.Sprintf("%s is already clocked in", emp.Name))
	case entryType == model.TimeEntryClockOut && !clockedIn:
		return model.TimeEntry{}, apperror.InvalidState(fmt.Sprintf("%s is not clocked in", emp.Name))
	}

	entry := model.TimeEntry{
		ID:               model.NewID("time"),
		EmployeeID:       employeeID,
		EntryType:        entryType,
		RecordedAt:       s.now(),
		LocationVerified: locationVerified,
	}
	action := ActionClockIn
	if entryType == model.TimeEntryClockOut {
		action = ActionClockOut
	}
	_, err = s.commit(ctx, action, emp.Name+" "+strings.ReplaceAll(entryType, "_", " "), nil,
		[]syncqueue.Change{syncqueue.Upsert(model.TableTimeEntries, []model.TimeEntry{entry})})
	if err != nil && apperror.CodeOf(err) != apperror.CodeRemoteRejected {
		return model.TimeEntry{}, err
	}
	s.timeEntries = append(s.timeEntries, entry)
	return entry, err
}
