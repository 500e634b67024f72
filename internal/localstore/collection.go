package localstore

import (
	"encoding/json"
	"fmt"
)

type object = map[string]json.RawMessage

func recordID(o object) string {
	var id string
	if raw, ok := o["id"]; ok {
		_ = json.Unmarshal(raw, &id)
	}
	return id
}

func toObjects(records any) ([]object, error) {
	data, err := json.Marshal(records)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal records: %w", err)
	}
	var objs []object
	if err := json.Unmarshal(data, &objs); err != nil {
		return nil, fmt.Errorf("records must encode to a JSON array of objects: %w", err)
	}
	return objs, nil
}

// MergeByID upserts records (any slice of JSON objects with an "id" field)
// into the collection stored under key. Existing objects are replaced in
// place, new ones are appended.
func (s *Store) MergeByID(key string, records any) error {
	incoming, err := toObjects(records)
	if err != nil {
		return s.fail(key, err)
	}

	var current []object
	s.Load(key, &current)

	pos := make(map[string]int, len(current))
	for i, o := range current {
		pos[recordID(o)] = i
	}
	for _, o := range incoming {
		id := recordID(o)
		if id == "" {
			return s.fail(key, fmt.Errorf("record without id"))
		}
		if i, ok := pos[id]; ok {
			current[i] = o
			continue
		}
		pos[id] = len(current)
		current = append(current, o)
	}
	return s.Save(key, current)
}

// DeleteByID removes the objects with the given ids from the collection
// stored under key.
func (s *Store) DeleteByID(key string, ids []string) error {
	var current []object
	if !s.Load(key, &current) {
		return nil
	}

	drop := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
	}
	kept := current[:0]
	for _, o := range current {
		if _, ok := drop[recordID(o)]; !ok {
			kept = append(kept, o)
		}
	}
	return s.Save(key, kept)
}
