package roster

import (
	"schedule-sync-backend/internal/model"
	"schedule-sync-backend/internal/syncqueue"
)

// changeSet batches record writes so each table gets at most one upsert.
// Records with the same id replace each other.
type changeSet struct {
	employees []model.Employee
	entries   []model.ScheduleEntry
	notes     []model.ScheduleNote
	pto       []model.PTORequest
	extra     []syncqueue.Change
}

func upsertByID[T model.Record](list []T, rec T) []T {
	for i := range list {
		if list[i].RecordID() == rec.RecordID() {
			list[i] = rec
			return list
		}
	}
	return append(list, rec)
}

func (c *changeSet) employee(e model.Employee)     { c.employees = upsertByID(c.employees, e) }
func (c *changeSet) entry(e model.ScheduleEntry)   { c.entries = upsertByID(c.entries, e) }
func (c *changeSet) note(n model.ScheduleNote)     { c.notes = upsertByID(c.notes, n) }
func (c *changeSet) ptoRequest(p model.PTORequest) { c.pto = upsertByID(c.pto, p) }

func (c *changeSet) delete(table model.Table, ids ...string) {
	if len(ids) > 0 {
		c.extra = append(c.extra, syncqueue.Delete(table, ids...))
	}
}

func (c *changeSet) empty() bool {
	return len(c.employees)+len(c.entries)+len(c.notes)+len(c.pto)+len(c.extra) == 0
}

// changes orders the writes so referenced employees land before the rows
// that point at them.
func (c *changeSet) changes() []syncqueue.Change {
	var out []syncqueue.Change
	if len(c.employees) > 0 {
		out = append(out, syncqueue.Upsert(model.TableEmployees, c.employees))
	}
	if len(c.entries) > 0 {
		out = append(out, syncqueue.Upsert(model.TableScheduleEntries, c.entries))
	}
	if len(c.notes) > 0 {
		out = append(out, syncqueue.Upsert(model.TableScheduleNotes, c.notes))
	}
	if len(c.pto) > 0 {
		out = append(out, syncqueue.Upsert(model.TablePTORequests, c.pto))
	}
	return append(out, c.extra...)
}
