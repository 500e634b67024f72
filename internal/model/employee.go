package model

import "time"

const (
	EmployeeTypeFullTime = "FT"
	EmployeeTypePartTime = "PT"

	EmployeeStatusActive   = "active"
	EmployeeStatusInactive = "inactive"

	// OpenShiftsID identifies the pseudo-employee that collects shifts
	// vacated by PTO until they are reassigned.
	OpenShiftsID   = "open_shifts"
	OpenShiftsName = "OPEN SHIFTS"
)

// Employee is a roster member.
type Employee struct {
	ID           string     `gorm:"primaryKey;size:64" json:"id"`
	Name         string     `gorm:"size:100;not null;index" json:"name"`
	Email        string     `gorm:"size:256" json:"email,omitempty"`
	Type         string     `gorm:"size:2;not null" json:"type"`
	Shifts       string     `json:"shifts"`
	Availability string     `json:"availability"`
	HireDate     string     `gorm:"size:10" json:"hireDate,omitempty"`
	TargetHours  float64    `json:"targetHours"`
	MaxDays      int        `json:"maxDays"`
	Status       string     `gorm:"size:16;not null" json:"status"`
	ArchivedAt   *time.Time `json:"archivedAt,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

func (Employee) TableName() string { return string(TableEmployees) }

func (e Employee) RecordID() string { return e.ID }

// IsArchived reports whether the employee has been soft-deleted.
func (e Employee) IsArchived() bool { return e.Status == EmployeeStatusInactive }

// IsOpenShifts reports whether this is the open-shifts pseudo-employee.
func (e Employee) IsOpenShifts() bool { return e.ID == OpenShiftsID }
