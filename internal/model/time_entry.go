package model

import "time"

const (
	TimeEntryClockIn  = "clock_in"
	TimeEntryClockOut = "clock_out"
)

type TimeEntry struct {
	ID               string    `gorm:"primaryKey;size:64" json:"id"`
	EmployeeID       string    `gorm:"size:64;not null;index" json:"employeeId"`
	EntryType        string    `gorm:"size:16;not null" json:"entryType"`
	RecordedAt       time.Time `gorm:"not null" json:"recordedAt"`
	LocationVerified bool      `json:"locationVerified"`
}

func (TimeEntry) TableName() string { return string(TableTimeEntries) }

func (t TimeEntry) RecordID() string { return t.ID }
