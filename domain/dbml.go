package domain

import (
	"fmt"

	"github.com/zoobzio/dbml"
)

// FromDBML seeds a Domain's schema columns and primary keys from a parsed
// DBML project, the way the teacher's instance.go builds its table/field
// indexes from dbml.Project.Tables in NewFromDBML. Associations and join
// specs still have to be supplied explicitly - DBML's "Ref" relationships
// describe foreign keys, not which join strategy (star, tagging,
// hierarchical, ...) a caller wants, so this only populates the schema
// shape, not the join graph.
func FromDBML(project *dbml.Project, sourceTable string) (Domain, error) {
	if project == nil {
		return Domain{}, fmt.Errorf("domain: dbml project is nil")
	}

	schemas := make(map[string]Schema, len(project.Tables))
	for _, t := range project.Tables {
		schemas[t.Name] = schemaFromDBMLTable(t)
	}

	source, ok := schemas[sourceTable]
	if !ok {
		return Domain{}, fmt.Errorf("domain: source table %q not found in dbml project", sourceTable)
	}
	delete(schemas, sourceTable)

	return Domain{
		Source:  source,
		Schemas: schemas,
		Joins:   map[string]JoinSpec{},
	}, nil
}

func schemaFromDBMLTable(t *dbml.Table) Schema {
	columns := make(map[string]Column, len(t.Columns))
	fields := make([]string, 0, len(t.Columns))
	primaryKey := ""
	for _, c := range t.Columns {
		columns[c.Name] = Column{Type: dbmlTypeToColumnType(c.Type)}
		fields = append(fields, c.Name)
		if c.PK {
			primaryKey = c.Name
		}
	}
	return Schema{
		Table:        t.Name,
		PrimaryKey:   primaryKey,
		Fields:       fields,
		Columns:      columns,
		Associations: map[string]Association{},
	}
}

func dbmlTypeToColumnType(t string) ColumnType {
	switch t {
	case "integer", "int", "bigint", "smallint", "serial":
		return TypeInteger
	case "float", "double", "real", "decimal", "numeric":
		return TypeFloat
	case "boolean", "bool":
		return TypeBoolean
	case "date":
		return TypeDate
	case "timestamp", "timestamptz", "datetime":
		return TypeDateTime
	case "json", "jsonb":
		return TypeJSON
	default:
		return TypeString
	}
}
