package roster

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"schedule-sync-backend/internal/apperror"
	"schedule-sync-backend/internal/model"
	"schedule-sync-backend/internal/notification"
)

// PTOInput is a new time-off request.
type PTOInput struct {
	EmployeeID string `json:"employeeId" validate:"required"`
	StartDate  string `json:"startDate" validate:"required,datetime=2006-01-02"`
	EndDate    string `json:"endDate" validate:"required,datetime=2006-01-02"`
	Type       string `json:"type" validate:"omitempty,oneof=vacation sick personal other"`
	Notes      string `json:"notes" validate:"max=500"`
}

// dateRange lists the dates from start to end inclusive.
func dateRange(start, end string) ([]string, error) {
	from, err := parseDate("Start Date", start)
	if err != nil {
		return nil, err
	}
	to, err := parseDate("End Date", end)
	if err != nil {
		return nil, err
	}
	if to.Before(from) {
		return nil, apperror.Validation("End Date must not be before Start Date")
	}
	var out []string
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		out = append(out, d.Format(dateLayout))
	}
	return out, nil
}

// PTORequests returns the requests with the given status, or all of them
// when status is empty.
func (s *Service) PTORequests(status string) []model.PTORequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.PTORequest
	for _, p := range s.ws.PTORequests {
		if status == "" || p.Status == status {
			out = append(out, p)
		}
	}
	slices.SortStableFunc(out, func(a, b model.PTORequest) int {
		return b.SubmittedAt.Compare(a.SubmittedAt)
	})
	return out
}

// SubmitPTO creates a pending request. Requests that overlap a pending or
// approved request of the same employee are refused.
func (s *Service) SubmitPTO(ctx context.Context, in PTOInput) (model.PTORequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ready(); err != nil {
		return model.PTORequest{}, err
	}
	in.Type = strings.ToLower(strings.TrimSpace(in.Type))
	in.Notes = strings.TrimSpace(in.Notes)
	if err := s.validate.Struct(in); err != nil {
		return model.PTORequest{}, apperror.MapValidationError(err)
	}
	if _, err := dateRange(in.StartDate, in.EndDate); err != nil {
		return model.PTORequest{}, err
	}
	emp, err := s.editableEmployee(in.EmployeeID)
	if err != nil {
		return model.PTORequest{}, err
	}
	if emp.IsOpenShifts() {
		return model.PTORequest{}, apperror.Validation("the open shifts row cannot request PTO")
	}
	for _, p := range s.ws.PTORequests {
		if p.EmployeeID != in.EmployeeID || p.Status == model.PTOStatusDenied {
			continue
		}
		// ISO dates compare correctly as strings.
		if in.StartDate <= p.EndDate && p.StartDate <= in.EndDate {
			return model.PTORequest{}, apperror.Conflict(fmt.Sprintf("overlaps request %s (%s to %s)", p.ID, p.StartDate, p.EndDate))
		}
	}
	if in.Type == "" {
		in.Type = "vacation"
	}

	req := model.PTORequest{
		ID:          model.NewID("pto"),
		EmployeeID:  in.EmployeeID,
		StartDate:   in.StartDate,
		EndDate:     in.EndDate,
		Type:        in.Type,
		Status:      model.PTOStatusPending,
		Notes:       in.Notes,
		SubmittedAt: s.now(),
	}
	next := s.ws.clone()
	next.PTORequests = append(next.PTORequests, req)
	var cs changeSet
	cs.ptoRequest(req)

	details := fmt.Sprintf("%s requested %s PTO %s to %s", emp.Name, req.Type, req.StartDate, req.EndDate)
	_, err = s.commit(ctx, ActionPTORequest, details, &next, cs.changes())
	if err != nil && apperror.CodeOf(err) != apperror.CodeRemoteRejected {
		return model.PTORequest{}, err
	}
	if err == nil {
		s.notifier.Dispatch(notification.Notice{Title: "New PTO request", Body: details})
	}
	return req, err
}

// ApprovePTO approves a pending request and marks every covered date PTO.
func (s *Service) ApprovePTO(ctx context.Context, id string) (model.PTORequest, error) {
	return s.decidePTO(ctx, id, model.PTOStatusApproved, "")
}

// DenyPTO denies a pending request. Denial is final.
func (s *Service) DenyPTO(ctx context.Context, id, reason string) (model.PTORequest, error) {
	return s.decidePTO(ctx, id, model.PTOStatusDenied, strings.TrimSpace(reason))
}

func (s *Service) decidePTO(ctx context.Context, id, status, reason string) (model.PTORequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ready(); err != nil {
		return model.PTORequest{}, err
	}
	i, ok := s.ws.pto(id)
	if !ok {
		return model.PTORequest{}, apperror.NotFound("PTO request", id)
	}
	req := s.ws.PTORequests[i]
	if !req.IsPending() {
		return req, apperror.InvalidState(fmt.Sprintf("PTO request %s is already %s", id, req.Status))
	}

	next := s.ws.clone()
	var cs changeSet
	if status == model.PTOStatusApproved {
		dates, err := dateRange(req.StartDate, req.EndDate)
		if err != nil {
			return req, err
		}
		if _, ok := next.employee(req.EmployeeID); !ok {
			return req, apperror.NotFound("employee", req.EmployeeID)
		}
		for _, d := range dates {
			s.executePTO(&next, &cs, req.EmployeeID, d)
		}
	}

	now := s.now()
	req.Status = status
	req.DecidedAt = &now
	req.DecidedBy = s.opts.UserID
	req.DenialReason = reason
	next.PTORequests[i] = req
	cs.ptoRequest(req)

	details := fmt.Sprintf("PTO %s %s to %s %s", req.ID, req.StartDate, req.EndDate, status)
	if reason != "" {
		details += ": " + reason
	}
	_, err := s.commit(ctx, ActionPTOUpdate, details, &next, cs.changes())
	if err != nil && apperror.CodeOf(err) != apperror.CodeRemoteRejected {
		return s.ws.PTORequests[i], err
	}
	if err == nil {
		body := fmt.Sprintf("%s to %s", req.StartDate, req.EndDate)
		if reason != "" {
			body += ": " + reason
		}
		s.notifier.Dispatch(notification.Notice{
			EmployeeID: req.EmployeeID,
			Title:      "PTO request " + status,
			Body:       body,
		})
	}
	return req, err
}
