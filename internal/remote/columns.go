package remote

import (
	"encoding/json"
	"fmt"

	"schedule-sync-backend/internal/model"
)

type row = map[string]json.RawMessage

// encodeRows marshals records as a JSON array whose keys are the backend's
// column names rather than the record's JSON field names.
func encodeRows(table model.Table, records any) ([]byte, error) {
	cols, err := model.Columns(table)
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(records)
	if err != nil {
		return nil, err
	}
	var rows []row
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("records must encode as an array of objects: %w", err)
	}
	for i := range rows {
		rows[i] = rename(rows[i], cols)
	}
	return json.Marshal(rows)
}

// decodeRows renames backend columns back to field names and decodes the
// result into dest.
func decodeRows(table model.Table, rows []row, dest any) error {
	fields, err := model.FieldNames(table)
	if err != nil {
		return err
	}
	for i := range rows {
		rows[i] = rename(rows[i], fields)
	}
	data, err := json.Marshal(rows)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dest)
}

func rename(r row, names map[string]string) row {
	out := make(row, len(r))
	for k, v := range r {
		if n, ok := names[k]; ok {
			k = n
		}
		out[k] = v
	}
	return out
}
