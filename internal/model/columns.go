package model

import (
	"reflect"
	"strings"
	"sync"

	"gorm.io/gorm/schema"
)

var (
	schemaCache sync.Map
	columnCache sync.Map
)

// Columns maps the JSON field names of t's record type to the column names
// of the relational backend, as gorm derives them. Both gateways write
// through these names.
func Columns(t Table) (map[string]string, error) {
	if v, ok := columnCache.Load(t); ok {
		return v.(map[string]string), nil
	}
	slice, err := t.NewSlice()
	if err != nil {
		return nil, err
	}
	elem := reflect.TypeOf(slice).Elem().Elem()
	s, err := schema.Parse(reflect.New(elem).Interface(), &schemaCache, schema.NamingStrategy{})
	if err != nil {
		return nil, err
	}
	cols := make(map[string]string, len(s.Fields))
	for _, f := range s.Fields {
		name := strings.Split(f.Tag.Get("json"), ",")[0]
		if f.DBName == "" || name == "" || name == "-" {
			continue
		}
		cols[name] = f.DBName
	}
	columnCache.Store(t, cols)
	return cols, nil
}

// FieldNames is the inverse of Columns.
func FieldNames(t Table) (map[string]string, error) {
	cols, err := Columns(t)
	if err != nil {
		return nil, err
	}
	fields := make(map[string]string, len(cols))
	for field, col := range cols {
		fields[col] = field
	}
	return fields, nil
}
