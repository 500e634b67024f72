package roster

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"schedule-sync-backend/internal/apperror"
	"schedule-sync-backend/internal/model"
	"schedule-sync-backend/internal/syncqueue"
)

// BackupVersion is written into exported backups.
const BackupVersion = "1.0"

// Backup is the portable export of the working set and audit log.
type Backup struct {
	Version      string                `json:"version"`
	Timestamp    time.Time             `json:"timestamp"`
	Employees    []model.Employee      `json:"employees"`
	ScheduleData model.Grid            `json:"scheduleData"`
	NotesData    model.Grid            `json:"notesData"`
	PTORequests  []model.PTORequest    `json:"ptoRequests"`
	AuditLog     []model.AuditLogEntry `json:"auditLog"`
}

// Export returns a backup of the current state.
func (s *Service) Export() Backup {
	s.mu.Lock()
	defer s.mu.Unlock()
	ws := s.ws.clone()
	return Backup{
		Version:      BackupVersion,
		Timestamp:    s.now(),
		Employees:    ws.Employees,
		ScheduleData: ws.ScheduleData,
		NotesData:    ws.NotesData,
		PTORequests:  ws.PTORequests,
		AuditLog:     slices.Clone(s.auditLog),
	}
}

// validateBackup applies the same rules a live edit would: employee
// fields, unique ids, unique active names, known employees behind every
// grid row and PTO request, and well-formed cells.
func (s *Service) validateBackup(b Backup) error {
	if b.Version == "" {
		return apperror.RequiredField("Version")
	}

	known := map[string]bool{model.OpenShiftsID: true}
	activeNames := make(map[string]string)
	for i, e := range b.Employees {
		if e.ID == "" {
			return apperror.Validation(fmt.Sprintf("employee %d needs an id", i))
		}
		if known[e.ID] && !e.IsOpenShifts() {
			return apperror.Validation(fmt.Sprintf("employee id %s appears twice", e.ID))
		}
		known[e.ID] = true
		if e.IsOpenShifts() {
			continue
		}
		in := EmployeeInput{
			Name:         e.Name,
			Email:        e.Email,
			Type:         e.Type,
			Shifts:       e.Shifts,
			Availability: e.Availability,
			HireDate:     e.HireDate,
			TargetHours:  e.TargetHours,
			MaxDays:      e.MaxDays,
		}
		in.normalize()
		if err := s.validate.Struct(&in); err != nil {
			return apperror.Validation(fmt.Sprintf("employee %s: %v", e.ID, apperror.MapValidationError(err)))
		}
		if strings.EqualFold(in.Name, model.OpenShiftsName) {
			return apperror.Validation(fmt.Sprintf("employee %s uses the reserved name %q", e.ID, model.OpenShiftsName))
		}
		if e.Status != model.EmployeeStatusActive && e.Status != model.EmployeeStatusInactive {
			return apperror.Validation(fmt.Sprintf("employee %s has unknown status %q", e.ID, e.Status))
		}
		if e.IsArchived() {
			continue
		}
		name := strings.ToLower(in.Name)
		if other, dup := activeNames[name]; dup {
			return apperror.Conflict(fmt.Sprintf("employees %s and %s are both active as %q", other, e.ID, in.Name))
		}
		activeNames[name] = e.ID
	}

	for emp, row := range b.ScheduleData {
		if !known[emp] {
			return apperror.Validation(fmt.Sprintf("schedule references unknown employee %s", emp))
		}
		for date, v := range row {
			if _, err := parseDate("Schedule date", date); err != nil {
				return err
			}
			if !validShift(emp, normalizeShift(v)) {
				return apperror.Validation(fmt.Sprintf("invalid shift %q for %s on %s", v, emp, date))
			}
		}
	}
	for emp, row := range b.NotesData {
		if !known[emp] {
			return apperror.Validation(fmt.Sprintf("notes reference unknown employee %s", emp))
		}
		for date, text := range row {
			if _, err := parseDate("Note date", date); err != nil {
				return err
			}
			if len(text) > maxNoteLen {
				return apperror.Validation(fmt.Sprintf("note for %s on %s is too long", emp, date))
			}
		}
	}

	ptoIDs := make(map[string]bool, len(b.PTORequests))
	for i, p := range b.PTORequests {
		if p.ID == "" {
			return apperror.Validation(fmt.Sprintf("PTO request %d needs an id", i))
		}
		if ptoIDs[p.ID] {
			return apperror.Validation(fmt.Sprintf("PTO request id %s appears twice", p.ID))
		}
		ptoIDs[p.ID] = true
		if !known[p.EmployeeID] || p.EmployeeID == model.OpenShiftsID {
			return apperror.Validation(fmt.Sprintf("PTO request %s references unknown employee %q", p.ID, p.EmployeeID))
		}
		if _, err := dateRange(p.StartDate, p.EndDate); err != nil {
			return err
		}
		switch p.Status {
		case model.PTOStatusPending, model.PTOStatusApproved, model.PTOStatusDenied:
		default:
			return apperror.Validation(fmt.Sprintf("PTO request %s has unknown status %q", p.ID, p.Status))
		}
	}

	for i, a := range b.AuditLog {
		if a.ID == "" {
			return apperror.Validation(fmt.Sprintf("audit entry %d needs an id", i))
		}
	}
	return nil
}

// Import replaces the working set with b. The import can be undone. Audit
// entries from b are merged into the log.
func (s *Service) Import(ctx context.Context, b Backup) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ready(); err != nil {
		return err
	}
	if err := s.validateBackup(b); err != nil {
		return err
	}

	target := WorkingSet{
		Employees:    b.Employees,
		ScheduleData: b.ScheduleData,
		NotesData:    b.NotesData,
		PTORequests:  b.PTORequests,
	}
	var extra []syncqueue.Change
	if len(b.AuditLog) > 0 {
		extra = append(extra, syncqueue.Upsert(model.TableAuditLog, b.AuditLog))
	}

	if err := s.history.Record(s.ws); err != nil {
		return err
	}
	details := fmt.Sprintf("Imported backup %s from %s", b.Version, b.Timestamp.Format(time.RFC3339))
	err := s.restore(ctx, ActionImport, details, target, extra)
	if err != nil && apperror.CodeOf(err) != apperror.CodeRemoteRejected {
		s.history.Forget()
		return err
	}
	s.mergeAudit(b.AuditLog)
	return err
}

func (s *Service) mergeAudit(entries []model.AuditLogEntry) {
	seen := make(map[string]struct{}, len(s.auditLog))
	for _, a := range s.auditLog {
		seen[a.ID] = struct{}{}
	}
	for _, a := range entries {
		if _, ok := seen[a.ID]; !ok {
			s.auditLog = append(s.auditLog, a)
		}
	}
	slices.SortStableFunc(s.auditLog, func(a, b model.AuditLogEntry) int {
		return b.Timestamp.Compare(a.Timestamp)
	})
}
