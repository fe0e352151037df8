package domain

import (
	"fmt"
	"reflect"

	"github.com/zoobzio/sentinel"
)

// RegisterStruct inspects T via github.com/zoobzio/sentinel and returns a
// Schema whose Columns/Fields/PrimaryKey are derived from the struct's `db`
// tags, generalizing field_registry.go's extractDBFields (which stored
// field names in a flat, package-global validFields set) into a per-schema
// record that composes into a Domain instead of a global side table.
func RegisterStruct[T any](table string) (Schema, error) {
	metadata := sentinel.Inspect[T]()

	columns := make(map[string]Column)
	var fields []string
	primaryKey := ""

	for _, f := range metadata.Fields {
		dbTag, ok := f.Tags["db"]
		if !ok || dbTag == "-" {
			continue
		}
		columns[dbTag] = Column{Type: goTypeToColumnType(f.Type)}
		fields = append(fields, dbTag)
		if pk, ok := f.Tags["pk"]; ok && pk == "true" {
			primaryKey = dbTag
		}
	}

	if len(columns) == 0 {
		return Schema{}, fmt.Errorf("domain: no `db`-tagged fields found on %T - ensure the struct has db tags", *new(T))
	}

	return Schema{
		Table:        table,
		PrimaryKey:   primaryKey,
		Fields:       fields,
		Columns:      columns,
		Associations: map[string]Association{},
	}, nil
}

func goTypeToColumnType(t reflect.Type) ColumnType {
	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return TypeInteger
	case reflect.Float32, reflect.Float64:
		return TypeFloat
	case reflect.Bool:
		return TypeBoolean
	case reflect.Struct:
		if t.String() == "time.Time" {
			return TypeDateTime
		}
		return TypeJSON
	case reflect.Slice, reflect.Array, reflect.Map:
		return TypeArray
	default:
		return TypeString
	}
}
