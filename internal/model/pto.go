package model

import "time"

const (
	PTOStatusPending  = "pending"
	PTOStatusApproved = "approved"
	PTOStatusDenied   = "denied"
)

// PTORequest is a time-off request covering startDate..endDate inclusive.
type PTORequest struct {
	ID           string     `gorm:"primaryKey;size:64" json:"id"`
	EmployeeID   string     `gorm:"size:64;not null;index" json:"employeeId"`
	StartDate    string     `gorm:"size:10;not null" json:"startDate"`
	EndDate      string     `gorm:"size:10;not null" json:"endDate"`
	Type         string     `gorm:"size:32" json:"type"`
	Status       string     `gorm:"size:16;not null;index" json:"status"`
	Notes        string     `json:"notes"`
	SubmittedAt  time.Time  `json:"submittedAt"`
	DecidedAt    *time.Time `json:"decidedAt,omitempty"`
	DecidedBy    string     `gorm:"size:64" json:"decidedBy,omitempty"`
	DenialReason string     `json:"denialReason,omitempty"`
}

func (PTORequest) TableName() string { return string(TablePTORequests) }

func (p PTORequest) RecordID() string { return p.ID }

// IsPending reports whether a decision can still be made.
func (p PTORequest) IsPending() bool { return p.Status == PTOStatusPending }
