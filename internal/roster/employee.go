package roster

import (
	"context"
	"fmt"
	"strings"
	"time"

	"schedule-sync-backend/internal/apperror"
	"schedule-sync-backend/internal/model"
	"schedule-sync-backend/internal/syncqueue"
)

// EmployeeInput is the editable part of an employee.
type EmployeeInput struct {
	Name         string  `json:"name" validate:"required,max=100"`
	Email        string  `json:"email" validate:"omitempty,email,max=256"`
	Type         string  `json:"type" validate:"required,oneof=FT PT"`
	Shifts       string  `json:"shifts" validate:"max=200"`
	Availability string  `json:"availability" validate:"max=200"`
	HireDate     string  `json:"hireDate" validate:"omitempty,datetime=2006-01-02"`
	TargetHours  float64 `json:"targetHours" validate:"gte=0,lte=80"`
	MaxDays      int     `json:"maxDays" validate:"gte=0,lte=7"`
}

func (in *EmployeeInput) normalize() {
	in.Name = strings.Join(strings.Fields(in.Name), " ")
	in.Email = strings.TrimSpace(in.Email)
	in.Type = strings.ToUpper(strings.TrimSpace(in.Type))
	if in.Type == "" {
		in.Type = model.EmployeeTypeFullTime
	}
}

func (s *Service) validateEmployee(in *EmployeeInput, selfID string) error {
	in.normalize()
	if err := s.validate.Struct(in); err != nil {
		return apperror.MapValidationError(err)
	}
	if strings.EqualFold(in.Name, model.OpenShiftsName) {
		return apperror.Validation(fmt.Sprintf("%q is reserved", model.OpenShiftsName))
	}
	for _, e := range s.ws.Employees {
		if e.ID != selfID && !e.IsArchived() && strings.EqualFold(e.Name, in.Name) {
			return apperror.Conflict(fmt.Sprintf("an active employee named %q already exists", in.Name))
		}
	}
	return nil
}

// Employees returns the roster. Archived employees are included only when
// requested; the open-shifts row is never included.
func (s *Service) Employees(includeArchived bool) []model.Employee {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Employee, 0, len(s.ws.Employees))
	for _, e := range s.ws.Employees {
		if e.IsOpenShifts() || (e.IsArchived() && !includeArchived) {
			continue
		}
		out = append(out, e)
	}
	return out
}

// AddEmployee creates an active employee.
func (s *Service) AddEmployee(ctx context.Context, in EmployeeInput) (model.Employee, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ready(); err != nil {
		return model.Employee{}, err
	}
	if err := s.validateEmployee(&in, ""); err != nil {
		return model.Employee{}, err
	}

	now := s.now()
	emp := model.Employee{
		ID:        model.NewID("emp"),
		Status:    model.EmployeeStatusActive,
		CreatedAt: now,
	}
	applyInput(&emp, in, now)

	next := s.ws.clone()
	next.Employees = append(next.Employees, emp)
	_, err := s.commit(ctx, ActionEmployeeCreate, "Added employee "+emp.Name, &next,
		[]syncqueue.Change{syncqueue.Upsert(model.TableEmployees, []model.Employee{emp})})
	if err != nil && apperror.CodeOf(err) != apperror.CodeRemoteRejected {
		return model.Employee{}, err
	}
	return emp, err
}

// UpdateEmployee edits an employee in place. Grid rows are keyed by id so a
// rename keeps the schedule.
func (s *Service) UpdateEmployee(ctx context.Context, id string, in EmployeeInput) (model.Employee, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ready(); err != nil {
		return model.Employee{}, err
	}
	i, ok := s.ws.employee(id)
	if !ok {
		return model.Employee{}, apperror.NotFound("employee", id)
	}
	if s.ws.Employees[i].IsOpenShifts() {
		return model.Employee{}, apperror.InvalidState("the open shifts row cannot be edited")
	}
	if err := s.validateEmployee(&in, id); err != nil {
		return model.Employee{}, err
	}

	next := s.ws.clone()
	emp := next.Employees[i]
	applyInput(&emp, in, s.now())
	next.Employees[i] = emp

	_, err := s.commit(ctx, ActionEmployeeUpdate, "Updated employee "+emp.Name, &next,
		[]syncqueue.Change{syncqueue.Upsert(model.TableEmployees, []model.Employee{emp})})
	if err != nil && apperror.CodeOf(err) != apperror.CodeRemoteRejected {
		return model.Employee{}, err
	}
	return emp, err
}

// ArchiveEmployee soft-deletes an employee. Their schedule is kept.
func (s *Service) ArchiveEmployee(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ready(); err != nil {
		return err
	}
	i, ok := s.ws.employee(id)
	if !ok {
		return apperror.NotFound("employee", id)
	}
	emp := s.ws.Employees[i]
	switch {
	case emp.IsOpenShifts():
		return apperror.InvalidState("the open shifts row cannot be archived")
	case emp.IsArchived():
		return apperror.InvalidState(fmt.Sprintf("employee %q is already archived", emp.Name))
	}

	now := s.now()
	emp.Status = model.EmployeeStatusInactive
	emp.ArchivedAt = &now
	emp.UpdatedAt = now

	next := s.ws.clone()
	next.Employees[i] = emp
	_, err := s.commit(ctx, ActionEmployeeDelete, "Archived employee "+emp.Name, &next,
		[]syncqueue.Change{syncqueue.Upsert(model.TableEmployees, []model.Employee{emp})})
	return err
}

func applyInput(emp *model.Employee, in EmployeeInput, now time.Time) {
	emp.Name = in.Name
	emp.Email = in.Email
	emp.Type = in.Type
	emp.Shifts = in.Shifts
	emp.Availability = in.Availability
	emp.HireDate = in.HireDate
	emp.TargetHours = in.TargetHours
	emp.MaxDays = in.MaxDays
	emp.UpdatedAt = now
}

// ensureOpenShifts adds the open-shifts row to next when it is missing.
func (s *Service) ensureOpenShifts(next *WorkingSet, cs *changeSet) {
	if _, ok := next.employee(model.OpenShiftsID); ok {
		return
	}
	now := s.now()
	row := model.Employee{
		ID:        model.OpenShiftsID,
		Name:      model.OpenShiftsName,
		Type:      model.EmployeeTypeFullTime,
		Status:    model.EmployeeStatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	next.Employees = append(next.Employees, row)
	cs.employee(row)
}
