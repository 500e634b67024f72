package model

import "time"

const maxUserAgentLen = 100

// AuditLogEntry is an append-only record of a mutation.
type AuditLogEntry struct {
	ID        string    `gorm:"primaryKey;size:64" json:"id"`
	Timestamp time.Time `gorm:"not null;index" json:"timestamp"`
	UserID    string    `gorm:"size:64" json:"userId"`
	Action    string    `gorm:"size:64;not null" json:"action"`
	Details   string    `json:"details"`
	UserAgent string    `gorm:"size:100" json:"userAgent"`
}

func (AuditLogEntry) TableName() string { return string(TableAuditLog) }

func (a AuditLogEntry) RecordID() string { return a.ID }

// NewAuditEntry builds an entry stamped with now.
func NewAuditEntry(now time.Time, userID, userAgent, action, details string) AuditLogEntry {
	if len(userAgent) > maxUserAgentLen {
		userAgent = userAgent[:maxUserAgentLen]
	}
	return AuditLogEntry{
		ID:        NewID("audit"),
		Timestamp: now.UTC(),
		UserID:    userID,
		Action:    action,
		Details:   details,
		UserAgent: userAgent,
	}
}
