package roster

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"schedule-sync-backend/internal/apperror"
	"schedule-sync-backend/internal/model"
	"schedule-sync-backend/internal/notification"
	"schedule-sync-backend/internal/parse"
)

const (
	dateLayout  = "2006-01-02"
	monthLayout = "2006-01"

	maxNoteLen = 500
)

// MonthView is the grid for one month.
type MonthView struct {
	Month     string           `json:"month"`
	Dates     []string         `json:"dates"`
	Employees []model.Employee `json:"employees"`
	Schedule  model.Grid       `json:"schedule"`
	Notes     model.Grid       `json:"notes"`
}

func parseDate(field, v string) (time.Time, error) {
	t, err := time.Parse(dateLayout, v)
	if err != nil {
		return time.Time{}, apperror.Validation(fmt.Sprintf("%s must be a date like 2024-03-15", field))
	}
	return t, nil
}

func monthDates(month string) ([]string, error) {
	start, err := time.Parse(monthLayout, month)
	if err != nil {
		return nil, apperror.Validation("Month must look like 2024-03")
	}
	var dates []string
	for d := start; d.Month() == start.Month(); d = d.AddDate(0, 0, 1) {
		dates = append(dates, d.Format(dateLayout))
	}
	return dates, nil
}

// normalizeShift trims the value and upper-cases the PTO and OFF markers.
func normalizeShift(v string) string {
	v = strings.TrimSpace(v)
	switch {
	case strings.EqualFold(v, model.ShiftPTO):
		return model.ShiftPTO
	case strings.EqualFold(v, model.ShiftOff):
		return model.ShiftOff
	}
	return v
}

func validShift(employeeID, v string) bool {
	if employeeID != model.OpenShiftsID {
		return parse.ValidCellValue(v)
	}
	// The open-shifts row holds a comma-separated list of vacated shifts.
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" && !parse.ValidCellValue(p) {
			return false
		}
	}
	return true
}

func (s *Service) cell(employeeID, date, shift string) model.ScheduleEntry {
	return model.ScheduleEntry{
		ID:         model.CellID(employeeID, date),
		EmployeeID: employeeID,
		Date:       date,
		Shift:      shift,
		IsPTO:      shift == model.ShiftPTO,
		UpdatedAt:  s.now(),
	}
}

// editableEmployee returns the employee whose row may be edited.
func (s *Service) editableEmployee(id string) (model.Employee, error) {
	i, ok := s.ws.employee(id)
	if !ok {
		return model.Employee{}, apperror.NotFound("employee", id)
	}
	emp := s.ws.Employees[i]
	if emp.IsArchived() {
		return emp, apperror.InvalidState(fmt.Sprintf("employee %q is archived", emp.Name))
	}
	return emp, nil
}

// SetShift writes one grid cell. Setting PTO moves the shift previously in
// the cell to the open-shifts row for that date.
func (s *Service) SetShift(ctx context.Context, employeeID, date, shift string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ready(); err != nil {
		return err
	}
	if _, err := parseDate("Date", date); err != nil {
		return err
	}
	emp, err := s.editableEmployee(employeeID)
	if err != nil {
		return err
	}
	shift = normalizeShift(shift)
	if !validShift(employeeID, shift) {
		return apperror.Validation(fmt.Sprintf("%q is not a recognized shift", shift))
	}

	prior := s.ws.ScheduleData.Get(employeeID, date)
	if prior == shift {
		return nil
	}

	next := s.ws.clone()
	var cs changeSet
	if shift == model.ShiftPTO && !emp.IsOpenShifts() {
		s.executePTO(&next, &cs, employeeID, date)
	} else {
		next.ScheduleData.Set(employeeID, date, shift)
		cs.entry(s.cell(employeeID, date, shift))
	}

	details := fmt.Sprintf("%s on %s: %q -> %q", emp.Name, date, prior, shift)
	_, err = s.commit(ctx, ActionScheduleChange, details, &next, cs.changes())
	if err == nil && prior != "" && !emp.IsOpenShifts() {
		s.notifier.Dispatch(notification.Notice{
			EmployeeID: employeeID,
			Title:      "Your schedule changed",
			Body:       fmt.Sprintf("%s: %s is now %s", date, prior, displayShift(shift)),
		})
	}
	return err
}

func displayShift(v string) string {
	if v == "" {
		return "unassigned"
	}
	return v
}

// executePTO marks the cell PTO. A working shift it held is appended to
// the open-shifts cell for the same date.
func (s *Service) executePTO(next *WorkingSet, cs *changeSet, employeeID, date string) {
	prior := next.ScheduleData.Get(employeeID, date)
	if parse.IsWorkingShift(prior) {
		s.ensureOpenShifts(next, cs)
		open := next.ScheduleData.Get(model.OpenShiftsID, date)
		if open == "" {
			open = prior
		} else {
			open = open + ", " + prior
		}
		next.ScheduleData.Set(model.OpenShiftsID, date, open)
		cs.entry(s.cell(model.OpenShiftsID, date, open))
	}
	next.ScheduleData.Set(employeeID, date, model.ShiftPTO)
	cs.entry(s.cell(employeeID, date, model.ShiftPTO))
}

// SetNote attaches text to a cell. Empty text clears the note.
func (s *Service) SetNote(ctx context.Context, employeeID, date, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ready(); err != nil {
		return err
	}
	if _, err := parseDate("Date", date); err != nil {
		return err
	}
	emp, err := s.editableEmployee(employeeID)
	if err != nil {
		return err
	}
	text = strings.TrimSpace(text)
	if len(text) > maxNoteLen {
		return apperror.Validation(fmt.Sprintf("Note must be at most %d characters", maxNoteLen))
	}
	if s.ws.NotesData.Get(employeeID, date) == text {
		return nil
	}

	next := s.ws.clone()
	next.NotesData.Set(employeeID, date, text)
	var cs changeSet
	cs.note(model.ScheduleNote{
		ID:         model.CellID(employeeID, date),
		EmployeeID: employeeID,
		Date:       date,
		Text:       text,
		UpdatedAt:  s.now(),
	})
	_, err = s.commit(ctx, ActionNoteChange, fmt.Sprintf("Note for %s on %s", emp.Name, date), &next, cs.changes())
	return err
}

// ClearSchedule removes every shift in month, for every employee.
func (s *Service) ClearSchedule(ctx context.Context, month string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ready(); err != nil {
		return 0, err
	}
	if _, err := monthDates(month); err != nil {
		return 0, err
	}

	next := s.ws.clone()
	var ids []string
	for _, emp := range sortedKeys(next.ScheduleData) {
		row := next.ScheduleData[emp]
		for _, date := range sortedKeys(row) {
			if strings.HasPrefix(date, month+"-") {
				ids = append(ids, model.CellID(emp, date))
				delete(row, date)
			}
		}
	}
	if len(ids) == 0 {
		return 0, nil
	}

	var cs changeSet
	cs.delete(model.TableScheduleEntries, ids...)
	_, err := s.commit(ctx, ActionScheduleClear, fmt.Sprintf("Cleared %d shifts in %s", len(ids), month), &next, cs.changes())
	return len(ids), err
}

// MonthGrid returns the active employees and their cells for month. The
// open-shifts row, when present, comes last.
func (s *Service) MonthGrid(month string) (MonthView, error) {
	dates, err := monthDates(month)
	if err != nil {
		return MonthView{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	view := MonthView{Month: month, Dates: dates, Schedule: model.Grid{}, Notes: model.Grid{}}
	var open *model.Employee
	for _, e := range s.ws.Employees {
		switch {
		case e.IsOpenShifts():
			open = &e
			continue
		case e.IsArchived():
			continue
		}
		view.Employees = append(view.Employees, e)
	}
	slices.SortFunc(view.Employees, func(a, b model.Employee) int {
		return strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
	})
	if open != nil {
		view.Employees = append(view.Employees, *open)
	}

	for _, e := range view.Employees {
		for _, d := range dates {
			if v := s.ws.ScheduleData.Get(e.ID, d); v != "" {
				view.Schedule.Set(e.ID, d, v)
			}
			if v := s.ws.NotesData.Get(e.ID, d); v != "" {
				view.Notes.Set(e.ID, d, v)
			}
		}
	}
	return view, nil
}
