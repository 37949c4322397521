package datarecording

import (
	"reflect"
	"strings"

	"github.com/fatih/structs"
	"github.com/pkg/errors"
)

// A schema describes the columns of a table, derived from the exported
// fields of a sample struct. Only scalar fields can be recorded.
type schema struct {
	structType reflect.Type
	columns    []string
	types      []string
}

func newSchema(sample any) (*schema, error) {
	t := reflect.TypeOf(sample)
	if t == nil || t.Kind() != reflect.Struct {
		return nil, errors.Errorf("entry of type %T must be a struct", sample)
	}

	s := &schema{
		structType: t,
		columns:    structs.Names(sample),
	}

	for _, name := range s.columns {
		field, _ := t.FieldByName(name)

		sqlType, ok := columnType(field.Type.Kind())
		if !ok {
			return nil, errors.Errorf("field %s of kind %s cannot be recorded",
				field.Name, field.Type.Kind())
		}

		s.types = append(s.types, sqlType)
	}

	return s, nil
}

func columnType(kind reflect.Kind) (string, bool) {
	switch kind {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32,
		reflect.Uint64:
		return "INTEGER", true
	case reflect.Float32, reflect.Float64:
		return "REAL", true
	case reflect.String:
		return "TEXT", true
	default:
		return "", false
	}
}

func (s *schema) createStatement(table string) string {
	defs := make([]string, len(s.columns))
	for i, c := range s.columns {
		defs[i] = c + " " + s.types[i]
	}

	return "CREATE TABLE " + table + " (\n\t" +
		strings.Join(defs, ",\n\t") + "\n);"
}

func (s *schema) insertStatement(table string) string {
	placeholders := strings.TrimSuffix(
		strings.Repeat("?, ", len(s.columns)), ", ")

	return "INSERT INTO " + table +
		" (" + strings.Join(s.columns, ", ") + ")" +
		" VALUES (" + placeholders + ")"
}

// values returns the column values of an entry, in column order.
func (s *schema) values(entry any) []any {
	v := reflect.ValueOf(entry)

	values := make([]any, len(s.columns))
	for i, c := range s.columns {
		values[i] = v.FieldByName(c).Interface()
	}

	return values
}
