package roster

import (
	"fmt"
	"time"

	"schedule-sync-backend/internal/apperror"
	"schedule-sync-backend/internal/model"
	"schedule-sync-backend/internal/parse"
)

const (
	maxWeeklyHours     = 40.0
	maxConsecutiveDays = 6
)

// Conflict kinds.
const (
	ConflictPTO         = "pto_conflict"
	ConflictOvertime    = "overtime"
	ConflictConsecutive = "consecutive_days"
)

// Stats summarizes one employee's month.
type Stats struct {
	EmployeeID         string  `json:"employeeId"`
	Month              string  `json:"month"`
	TotalHours         float64 `json:"totalHours"`
	Shifts             int     `json:"shifts"`
	PTODays            int     `json:"ptoDays"`
	DaysOff            int     `json:"daysOff"`
	TargetHours        float64 `json:"targetHours"`
	AverageWeeklyHours float64 `json:"averageWeeklyHours"`
}

// Conflict is a scheduling problem found in a month.
type Conflict struct {
	Type       string `json:"type"`
	EmployeeID string `json:"employeeId"`
	Date       string `json:"date"`
	Message    string `json:"message"`
}

// EmployeeStats computes hours and day counts for employeeID in month.
func (s *Service) EmployeeStats(employeeID, month string) (Stats, error) {
	dates, err := monthDates(month)
	if err != nil {
		return Stats{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.ws.employee(employeeID)
	if !ok {
		return Stats{}, apperror.NotFound("employee", employeeID)
	}

	st := Stats{EmployeeID: employeeID, Month: month, TargetHours: s.ws.Employees[i].TargetHours}
	for _, d := range dates {
		v := s.ws.ScheduleData.Get(employeeID, d)
		switch {
		case v == model.ShiftPTO:
			st.PTODays++
		case parse.IsWorkingShift(v):
			st.Shifts++
			st.TotalHours += parse.ShiftHours(v)
		default:
			st.DaysOff++
		}
	}
	st.AverageWeeklyHours = st.TotalHours / (float64(len(dates)) / 7)
	return st, nil
}

// Conflicts reports approved PTO days that still hold a shift, weeks over
// 40 hours and runs of more than 6 working days, for active employees in
// month. Weeks start on Sunday and runs may begin before the month.
func (s *Service) Conflicts(month string) ([]Conflict, error) {
	dates, err := monthDates(month)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	out := []Conflict{}
	for _, emp := range s.ws.Employees {
		if emp.IsOpenShifts() || emp.IsArchived() {
			continue
		}
		out = append(out, s.ptoConflicts(emp, month)...)
		out = append(out, s.overtimeConflicts(emp, dates)...)
		out = append(out, s.consecutiveConflicts(emp, dates)...)
	}
	return out, nil
}

func (s *Service) ptoConflicts(emp model.Employee, month string) []Conflict {
	var out []Conflict
	for _, p := range s.ws.PTORequests {
		if p.EmployeeID != emp.ID || p.Status != model.PTOStatusApproved {
			continue
		}
		dates, err := dateRange(p.StartDate, p.EndDate)
		if err != nil {
			continue
		}
		for _, d := range dates {
			v := s.ws.ScheduleData.Get(emp.ID, d)
			if d[:7] == month && parse.IsWorkingShift(v) {
				out = append(out, Conflict{
					Type:       ConflictPTO,
					EmployeeID: emp.ID,
					Date:       d,
					Message:    fmt.Sprintf("%s is scheduled %s during approved PTO", emp.Name, v),
				})
			}
		}
	}
	return out
}

func (s *Service) overtimeConflicts(emp model.Employee, dates []string) []Conflict {
	var out []Conflict
	first, _ := time.Parse(dateLayout, dates[0])
	last, _ := time.Parse(dateLayout, dates[len(dates)-1])
	for week := first.AddDate(0, 0, -int(first.Weekday())); !week.After(last); week = week.AddDate(0, 0, 7) {
		var hours float64
		for i := 0; i < 7; i++ {
			hours += parse.ShiftHours(s.ws.ScheduleData.Get(emp.ID, week.AddDate(0, 0, i).Format(dateLayout)))
		}
		if hours > maxWeeklyHours {
			out = append(out, Conflict{
				Type:       ConflictOvertime,
				EmployeeID: emp.ID,
				Date:       week.Format(dateLayout),
				Message:    fmt.Sprintf("%s is scheduled %.1f hours in the week of %s", emp.Name, hours, week.Format(dateLayout)),
			})
		}
	}
	return out
}

// consecutiveConflicts reports the day each run exceeds the limit.
func (s *Service) consecutiveConflicts(emp model.Employee, dates []string) []Conflict {
	var out []Conflict
	first, _ := time.Parse(dateLayout, dates[0])
	run := 0
	for d := first.AddDate(0, 0, -maxConsecutiveDays); d.Before(first); d = d.AddDate(0, 0, 1) {
		if parse.IsWorkingShift(s.ws.ScheduleData.Get(emp.ID, d.Format(dateLayout))) {
			run++
		} else {
			run = 0
		}
	}
	for _, d := range dates {
		if !parse.IsWorkingShift(s.ws.ScheduleData.Get(emp.ID, d)) {
			run = 0
			continue
		}
		run++
		if run == maxConsecutiveDays+1 {
			out = append(out, Conflict{
				Type:       ConflictConsecutive,
				EmployeeID: emp.ID,
				Date:       d,
				Message:    fmt.Sprintf("%s works more than %d days in a row ending %s", emp.Name, maxConsecutiveDays, d),
			})
		}
	}
	return out
}
