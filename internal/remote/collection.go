package remote

import (
	"context"

	"schedule-sync-backend/internal/model"
)

// Collection is a typed view of one table.
type Collection[T model.Record] struct {
	gw    Gateway
	table model.Table
}

func NewCollection[T model.Record](gw Gateway, table model.Table) Collection[T] {
	return Collection[T]{gw: gw, table: table}
}

func (c Collection[T]) Table() model.Table { return c.table }

func (c Collection[T]) FetchAll(ctx context.Context, q Query) ([]T, error) {
	var out []T
	if err := c.gw.Fetch(ctx, c.table, q, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c Collection[T]) Upsert(ctx context.Context, records ...T) error {
	if len(records) == 0 {
		return nil
	}
	return c.gw.Upsert(ctx, c.table, records)
}

func (c Collection[T]) Delete(ctx context.Context, ids ...string) error {
	return c.gw.Delete(ctx, c.table, ids)
}

// Collections bundles a typed view for every synchronized table.
type Collections struct {
	Employees       Collection[model.Employee]
	ScheduleEntries Collection[model.ScheduleEntry]
	ScheduleNotes   Collection[model.ScheduleNote]
	AuditLog        Collection[model.AuditLogEntry]
	PTORequests     Collection[model.PTORequest]
	Announcements   Collection[model.Announcement]
	TimeEntries     Collection[model.TimeEntry]
}

func NewCollections(gw Gateway) Collections {
	return Collections{
		Employees:       NewCollection[model.Employee](gw, model.TableEmployees),
		ScheduleEntries: NewCollection[model.ScheduleEntry](gw, model.TableScheduleEntries),
		ScheduleNotes:   NewCollection[model.ScheduleNote](gw, model.TableScheduleNotes),
		AuditLog:        NewCollection[model.AuditLogEntry](gw, model.TableAuditLog),
		PTORequests:     NewCollection[model.PTORequest](gw, model.TablePTORequests),
		Announcements:   NewCollection[model.Announcement](gw, model.TableAnnouncements),
		TimeEntries:     NewCollection[model.TimeEntry](gw, model.TableTimeEntries),
	}
}
