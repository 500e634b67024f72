package syncqueue

import (
	"encoding/json"
	"fmt"
	"reflect"

	"schedule-sync-backend/internal/model"
)

// Op is the kind of write a Change replays.
type Op string

const (
	OpUpsert Op = "upsert"
	OpDelete Op = "delete"
)

// Change is one table write inside a queued mutation.
type Change struct {
	Table   model.Table `json:"table"`
	Op      Op          `json:"op"`
	Records any         `json:"records,omitempty"`
	IDs     []string    `json:"ids,omitempty"`
}

// Upsert builds an upsert change. records must be a slice.
func Upsert(table model.Table, records any) Change {
	return Change{Table: table, Op: OpUpsert, Records: records}
}

// Delete builds a delete change.
func Delete(table model.Table, ids ...string) Change {
	return Change{Table: table, Op: OpDelete, IDs: ids}
}

// UnmarshalJSON decodes Records into the table's typed slice so a change
// read back from disk replays exactly like the one that was queued.
func (c *Change) UnmarshalJSON(data []byte) error {
	var aux struct {
		Table   model.Table     `json:"table"`
		Op      Op              `json:"op"`
		Records json.RawMessage `json:"records"`
		IDs     []string        `json:"ids"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*c = Change{Table: aux.Table, Op: aux.Op, IDs: aux.IDs}
	if len(aux.Records) == 0 || string(aux.Records) == "null" {
		return nil
	}
	slice, err := aux.Table.NewSlice()
	if err != nil {
		return err
	}
	if err := json.Unmarshal(aux.Records, slice); err != nil {
		return fmt.Errorf("decode %s records: %w", aux.Table, err)
	}
	c.Records = reflect.ValueOf(slice).Elem().Interface()
	return nil
}

// RecordIDs lists the ids the change touches.
func (c Change) RecordIDs() []string {
	if c.Op == OpDelete {
		return c.IDs
	}
	rv := reflect.ValueOf(c.Records)
	if rv.Kind() != reflect.Slice {
		return nil
	}
	ids := make([]string, 0, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		if r, ok := rv.Index(i).Interface().(model.Record); ok {
			ids = append(ids, r.RecordID())
		}
	}
	return ids
}
