package model

import "time"

const (
	ShiftPTO = "PTO"
	ShiftOff = "OFF"
)

// ScheduleEntry is one cell of the month grid.
type ScheduleEntry struct {
	ID         string    `gorm:"primaryKey;size:96" json:"id"`
	EmployeeID string    `gorm:"size:64;not null;index:idx_schedule_employee_date" json:"employeeId"`
	Date       string    `gorm:"size:10;not null;index:idx_schedule_employee_date" json:"date"`
	Shift      string    `gorm:"column:shift_time;size:64" json:"shift"`
	IsPTO      bool      `json:"isPto"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

func (ScheduleEntry) TableName() string { return string(TableScheduleEntries) }

func (s ScheduleEntry) RecordID() string { return s.ID }

// ScheduleNote is a free-text note attached to a grid cell.
type ScheduleNote struct {
	ID         string    `gorm:"primaryKey;size:96" json:"id"`
	EmployeeID string    `gorm:"size:64;not null;index" json:"employeeId"`
	Date       string    `gorm:"size:10;not null" json:"date"`
	Text       string    `gorm:"column:note_text" json:"text"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

func (ScheduleNote) TableName() string { return string(TableScheduleNotes) }

func (n ScheduleNote) RecordID() string { return n.ID }

// Grid maps employee id -> date -> value. It is the working-set shape of
// both the schedule and the notes.
type Grid map[string]map[string]string

// Get returns the cell value or "".
func (g Grid) Get(employeeID, date string) string {
	return g[employeeID][date]
}

// Set writes a cell, creating the row when needed.
func (g Grid) Set(employeeID, date, value string) {
	row, ok := g[employeeID]
	if !ok {
		row = make(map[string]string)
		g[employeeID] = row
	}
	row[date] = value
}

// Clone returns a deep copy.
func (g Grid) Clone() Grid {
	out := make(Grid, len(g))
	for emp, row := range g {
		cp := make(map[string]string, len(row))
		for d, v := range row {
			cp[d] = v
		}
		out[emp] = cp
	}
	return out
}

// ScheduleGridFromEntries folds entries into a Grid.
func ScheduleGridFromEntries(entries []ScheduleEntry) Grid {
	g := make(Grid)
	for _, e := range entries {
		g.Set(e.EmployeeID, e.Date, e.Shift)
	}
	return g
}

// NotesGridFromNotes folds notes into a Grid.
func NotesGridFromNotes(notes []ScheduleNote) Grid {
	g := make(Grid)
	for _, n := range notes {
		g.Set(n.EmployeeID, n.Date, n.Text)
	}
	return g
}
