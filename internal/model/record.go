package model

import (
	"strings"

	"github.com/google/uuid"
)

// Record is anything stored under a string primary key. Local merges and
// remote upserts both key on RecordID.
type Record interface {
	RecordID() string
}

// NewID returns a collision-resistant client-side id: the prefix followed by
// a time-ordered UUIDv7 (millisecond timestamp + random bits).
func NewID(prefix string) string {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return prefix + "_" + strings.ReplaceAll(id.String(), "-", "")
}

// CellID is the deterministic id of a per-employee, per-date record.
func CellID(employeeID, date string) string {
	return employeeID + "_" + date
}
