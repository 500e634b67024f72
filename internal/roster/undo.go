package roster

import (
	"cmp"
	"context"
	"errors"
	"slices"

	"schedule-sync-backend/internal/apperror"
	"schedule-sync-backend/internal/model"
	"schedule-sync-backend/internal/syncqueue"
)

// CanUndo reports whether Undo has a state to return to.
func (s *Service) CanUndo() bool { return s.history.CanUndo() }

// CanRedo reports whether Redo has a state to return to.
func (s *Service) CanRedo() bool { return s.history.CanRedo() }

// Undo restores the state before the last edit and persists it. ok is
// false when there is nothing to undo.
func (s *Service) Undo(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ready(); err != nil {
		return false, err
	}
	target, ok, err := s.history.Undo(s.ws)
	if !ok || err != nil {
		return false, err
	}
	if err := s.restore(ctx, ActionUndo, "Undo", target, nil); err != nil {
		if !errors.Is(err, apperror.ErrRemoteRejected) {
			_, _, _ = s.history.Redo()
		}
		return true, err
	}
	return true, nil
}

// Redo reapplies the last undone edit.
func (s *Service) Redo(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ready(); err != nil {
		return false, err
	}
	target, ok, err := s.history.Redo()
	if !ok || err != nil {
		return false, err
	}
	if err := s.restore(ctx, ActionRedo, "Redo", target, nil); err != nil {
		if !errors.Is(err, apperror.ErrRemoteRejected) {
			_, _, _ = s.history.Undo(s.ws)
		}
		return true, err
	}
	return true, nil
}

// restore persists target in full and makes it the working set. Cells
// present now but absent from target are written empty; employees and
// requests absent from target are deleted. extra is written in the same
// mutation. History is not touched.
func (s *Service) restore(ctx context.Context, action, details string, target WorkingSet, extra []syncqueue.Change) error {
	if target.ScheduleData == nil {
		target.ScheduleData = model.Grid{}
	}
	if target.NotesData == nil {
		target.NotesData = model.Grid{}
	}

	var cs changeSet
	cs.employees = slices.Clone(target.Employees)
	cs.pto = slices.Clone(target.PTORequests)
	cs.delete(model.TableEmployees, missingIDs(s.ws.Employees, target.Employees)...)
	cs.delete(model.TablePTORequests, missingIDs(s.ws.PTORequests, target.PTORequests)...)

	// eachCell yields each cell once, so no de-duplication is needed.
	eachCell(target.ScheduleData, s.ws.ScheduleData, func(emp, date, v string) {
		cs.entries = append(cs.entries, s.cell(emp, date, v))
	})
	now := s.now()
	eachCell(target.NotesData, s.ws.NotesData, func(emp, date, v string) {
		cs.notes = append(cs.notes, model.ScheduleNote{ID: model.CellID(emp, date), EmployeeID: emp, Date: date, Text: v, UpdatedAt: now})
	})
	cs.extra = append(cs.extra, extra...)

	_, err := s.commit(ctx, action, details, nil, cs.changes())
	if err != nil && !errors.Is(err, apperror.ErrRemoteRejected) {
		return err
	}
	s.ws = target
	return err
}

// eachCell visits every cell of want, then every cell of have that want
// lacks, with an empty value. Order is stable.
func eachCell(want, have model.Grid, fn func(emp, date, v string)) {
	for _, emp := range sortedKeys(want) {
		row := want[emp]
		for _, date := range sortedKeys(row) {
			fn(emp, date, row[date])
		}
	}
	for _, emp := range sortedKeys(have) {
		for _, date := range sortedKeys(have[emp]) {
			if _, ok := want[emp][date]; !ok {
				fn(emp, date, "")
			}
		}
	}
}

func missingIDs[T model.Record](have, want []T) []string {
	keep := make(map[string]struct{}, len(want))
	for _, r := range want {
		keep[r.RecordID()] = struct{}{}
	}
	var out []string
	for _, r := range have {
		if _, ok := keep[r.RecordID()]; !ok {
			out = append(out, r.RecordID())
		}
	}
	return out
}

// sortedKeys returns the keys of m in ascending order.
func sortedKeys[K cmp.Ordered, V any](m map[K]V) []K {
	keys := make([]K, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
