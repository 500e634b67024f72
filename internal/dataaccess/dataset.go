package dataaccess

import (
	"reflect"
	"sort"

	"schedule-sync-backend/internal/model"
)

// Dataset is every synchronized collection.
type Dataset struct {
	Employees       []model.Employee      `json:"employees"`
	ScheduleEntries []model.ScheduleEntry `json:"scheduleEntries"`
	ScheduleNotes   []model.ScheduleNote  `json:"scheduleNotes"`
	AuditLog        []model.AuditLogEntry `json:"auditLog"`
	PTORequests     []model.PTORequest    `json:"ptoRequests"`
	Announcements   []model.Announcement  `json:"announcements"`
	TimeEntries     []model.TimeEntry     `json:"timeEntries"`
}

func emptyDataset() *Dataset {
	return &Dataset{
		Employees:       []model.Employee{},
		ScheduleEntries: []model.ScheduleEntry{},
		ScheduleNotes:   []model.ScheduleNote{},
		AuditLog:        []model.AuditLogEntry{},
		PTORequests:     []model.PTORequest{},
		Announcements:   []model.Announcement{},
		TimeEntries:     []model.TimeEntry{},
	}
}

// target returns a pointer to the field holding table's rows.
func (d *Dataset) target(table model.Table) any {
	switch table {
	case model.TableEmployees:
		return &d.Employees
	case model.TableScheduleEntries:
		return &d.ScheduleEntries
	case model.TableScheduleNotes:
		return &d.ScheduleNotes
	case model.TableAuditLog:
		return &d.AuditLog
	case model.TablePTORequests:
		return &d.PTORequests
	case model.TableAnnouncements:
		return &d.Announcements
	case model.TableTimeEntries:
		return &d.TimeEntries
	}
	return nil
}

// sortAudit orders the audit log newest first and applies limit.
func (d *Dataset) sortAudit(limit int) {
	sort.SliceStable(d.AuditLog, func(i, j int) bool {
		return d.AuditLog[i].Timestamp.After(d.AuditLog[j].Timestamp)
	})
	if limit > 0 && len(d.AuditLog) > limit {
		d.AuditLog = d.AuditLog[:limit]
	}
}

// normalize turns nil collections into empty ones so they encode as [].
func (d *Dataset) normalize() {
	for _, table := range model.Tables {
		rv := reflect.ValueOf(d.target(table)).Elem()
		if rv.IsNil() {
			rv.Set(reflect.MakeSlice(rv.Type(), 0, 0))
		}
	}
}
