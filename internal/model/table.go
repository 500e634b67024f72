package model

import "fmt"

// Table names a remote collection. Each table also owns a local store key.
type Table string

const (
	TableEmployees       Table = "employees"
	TableScheduleEntries Table = "schedule_entries"
	TableScheduleNotes   Table = "schedule_notes"
	TableAuditLog        Table = "audit_log"
	TablePTORequests     Table = "pto_requests"
	TableAnnouncements   Table = "announcements"
	TableTimeEntries     Table = "time_entries"
)

// Tables lists every synchronized table in load order.
var Tables = []Table{
	TableEmployees,
	TableScheduleEntries,
	TableScheduleNotes,
	TableAuditLog,
	TablePTORequests,
	TableAnnouncements,
	TableTimeEntries,
}

var localKeys = map[Table]string{
	TableEmployees:       "employees",
	TableScheduleEntries: "schedule_data",
	TableScheduleNotes:   "schedule_notes",
	TableAuditLog:        "auditLog",
	TablePTORequests:     "pto_requests",
	TableAnnouncements:   "announcements",
	TableTimeEntries:     "time_entries",
}

// LocalKey is the key the table's collection is cached under locally.
func (t Table) LocalKey() string {
	return localKeys[t]
}

// Valid reports whether t is a known table.
func (t Table) Valid() bool {
	_, ok := localKeys[t]
	return ok
}

// NewSlice allocates a pointer to an empty typed slice for decoding rows of t.
func (t Table) NewSlice() (any, error) {
	switch t {
	case TableEmployees:
		return &[]Employee{}, nil
	case TableScheduleEntries:
		return &[]ScheduleEntry{}, nil
	case TableScheduleNotes:
		return &[]ScheduleNote{}, nil
	case TableAuditLog:
		return &[]AuditLogEntry{}, nil
	case TablePTORequests:
		return &[]PTORequest{}, nil
	case TableAnnouncements:
		return &[]Announcement{}, nil
	case TableTimeEntries:
		return &[]TimeEntry{}, nil
	}
	return nil, fmt.Errorf("unknown table %q", t)
}
