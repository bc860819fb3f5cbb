package postgres

import (
	"reflect"
	"sync"
)

// rowFields caches the db-tagged field paths of a struct type.
var rowFields sync.Map // map[reflect.Type][]taggedField

type taggedField struct {
	column string
	index  []int
}

// ExtractDBColumns returns the column names declared by the "db" tags of T,
// in field order, descending into embedded structs.
func ExtractDBColumns[T any]() []string {
	fields := fieldsOf(reflect.TypeFor[T]())
	cols := make([]string, len(fields))
	for i, f := range fields {
		cols[i] = f.column
	}
	return cols
}

// StructValues returns the values of v's db-tagged fields in the order of
// ExtractDBColumns. Pair them in a squirrel insert with the column list.
func StructValues(v any) []any {
	rv := reflect.Indirect(reflect.ValueOf(v))
	if rv.Kind() != reflect.Struct {
		return nil
	}
	fields := fieldsOf(rv.Type())
	values := make([]any, len(fields))
	for i, f := range fields {
		values[i] = rv.FieldByIndex(f.index).Interface()
	}
	return values
}

// StructToMap converts a struct to a column/value map using "db" tags.
func StructToMap(v any) map[string]any {
	rv := reflect.Indirect(reflect.ValueOf(v))
	if rv.Kind() != reflect.Struct {
		return nil
	}
	fields := fieldsOf(rv.Type())
	res := make(map[string]any, len(fields))
	for _, f := range fields {
		res[f.column] = rv.FieldByIndex(f.index).Interface()
	}
	return res
}

func fieldsOf(t reflect.Type) []taggedField {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if cached, ok := rowFields.Load(t); ok {
		return cached.([]taggedField)
	}

	var fields []taggedField
	if t.Kind() == reflect.Struct {
		fields = collectFields(t, nil)
	}
	rowFields.Store(t, fields)
	return fields
}

func collectFields(t reflect.Type, prefix []int) []taggedField {
	var fields []taggedField
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		index := append(append([]int(nil), prefix...), i)

		if field.Anonymous && field.Type.Kind() == reflect.Struct {
			fields = append(fields, collectFields(field.Type, index)...)
			continue
		}

		tag := field.Tag.Get("db")
		if tag == "" || tag == "-" {
			continue
		}
		fields = append(fields, taggedField{column: tag, index: index})
	}
	return fields
}
