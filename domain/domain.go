// Package domain describes the static shape of a query domain: the root
// source table, the schemas reachable from it, and the join graph that
// bounds what a query built against the domain may reference. It is
// grounded on the teacher's (zoobzio/astql) DBML-backed schema validation
// in instance.go, generalized from "one flat table list" to the nested
// association/join graph spec.md's domain model requires.
package domain

// Cardinality describes an association's multiplicity.
type Cardinality string

const (
	OneToOne   Cardinality = "one_to_one"
	OneToMany  Cardinality = "one_to_many"
	ManyToOne  Cardinality = "many_to_one"
	ManyToMany Cardinality = "many_to_many"
)

// ColumnType is the declared SQL type of a column, used by the field
// resolver to type-check parameterized join arguments and by the clause
// builders to decide widening rules.
type ColumnType string

const (
	TypeString   ColumnType = "string"
	TypeInteger  ColumnType = "integer"
	TypeFloat    ColumnType = "float"
	TypeBoolean  ColumnType = "boolean"
	TypeDate     ColumnType = "date"
	TypeDateTime ColumnType = "datetime"
	TypeJSON     ColumnType = "json"
	TypeArray    ColumnType = "array"
)

// Column describes one column of a schema.
type Column struct {
	Type ColumnType
}

// Association links a schema to another queryable schema by a key pair.
type Association struct {
	Queryable   string
	Field       string
	OwnerKey    string
	RelatedKey  string
	Cardinality Cardinality
}

// Schema is a source-table-shaped record: the root source and every
// related schema share this shape.
type Schema struct {
	Table        string
	PrimaryKey   string
	Fields       []string
	RedactFields []string
	Columns      map[string]Column
	Associations map[string]Association
}

// HasField reports whether name is a declared, non-redacted field.
func (s Schema) HasField(name string) bool {
	redacted := make(map[string]bool, len(s.RedactFields))
	for _, f := range s.RedactFields {
		redacted[f] = true
	}
	if redacted[name] {
		return false
	}
	for _, f := range s.Fields {
		if f == name {
			return true
		}
	}
	_, ok := s.Columns[name]
	return ok && !redacted[name]
}

// JoinKind enumerates the supported join realizations (spec.md §3).
type JoinKind string

const (
	JoinLeft                    JoinKind = "left"
	JoinInner                   JoinKind = "inner"
	JoinSelf                    JoinKind = "self"
	JoinLateral                 JoinKind = "lateral"
	JoinCross                   JoinKind = "cross"
	JoinFullOuter                JoinKind = "full_outer"
	JoinConditional              JoinKind = "conditional"
	JoinStarDimension            JoinKind = "star_dimension"
	JoinSnowflakeDimension       JoinKind = "snowflake_dimension"
	JoinTagging                  JoinKind = "tagging"
	JoinHierarchicalAdjacency    JoinKind = "hierarchical_adjacency_list"
	JoinHierarchicalMaterialized JoinKind = "hierarchical_materialized_path"
	JoinHierarchicalClosure      JoinKind = "hierarchical_closure_table"
	JoinParameterized            JoinKind = "parameterized"
)

// ConditionKind enumerates the condition shapes a conditional join accepts.
type ConditionKind string

const (
	CondFieldComparison ConditionKind = "field_comparison"
	CondDateRange       ConditionKind = "date_range"
	CondCustomSQL       ConditionKind = "custom_sql"
)

// JoinCondition is one leg of a conditional join's conjunction.
type JoinCondition struct {
	Kind     ConditionKind
	LeftExpr string
	Op       string
	RightExpr string
	TimestampField string
	From, To string
	CustomFragment string // inlined verbatim; not run through CheckSafePhrase
}

// NormalizationJoin is one hop of a snowflake dimension's normalization
// chain: current.FKField = next table's PKField.
type NormalizationJoin struct {
	Table   string
	FKField string
	PKField string
}

// ParamDef declares one positional/typed parameter accepted by a
// parameterized join.
type ParamDef struct {
	Name     string
	Type     ColumnType
	Required bool
	Default  any
}

// HierarchicalSpec carries the fields specific to each hierarchical
// realization.
type HierarchicalSpec struct {
	Strategy JoinKind // one of the three hierarchical_* kinds

	// adjacency_list
	IDField       string
	NameField     string
	ParentField   string
	DepthLimit    int
	RootCondition string

	// materialized_path
	PathField string
	Separator string
	RootPrefix string

	// closure_table
	ClosureTable    string
	AncestorField   string
	DescendantField string
	DepthField      string
}

// JoinSpec declares how an association is realized in SQL.
type JoinSpec struct {
	Name         string
	Type         JoinKind
	RequiresJoin string // parent join id this join depends on; "" means root
	Table        string
	Alias        string

	// basic left/inner/full_outer
	OwnerKey   string
	RelatedKey string

	// self
	SelfKey        string
	TargetKey      string
	ConditionType  string

	// lateral
	LateralQuery string

	// conditional
	Conditions []JoinCondition

	// star_dimension
	DisplayField string

	// snowflake_dimension
	NormalizationJoins []NormalizationJoin

	// tagging
	JoinTable       string
	TagTable        string
	MainForeignKey  string
	TagForeignKey   string
	TagField        string

	// hierarchical
	Hierarchical HierarchicalSpec

	// parameterized
	Parameters    []ParamDef
	JoinCondition string

	CustomColumns map[string]string // name -> SQL expression template; "{alias}" is replaced with the join's quoted alias
	CustomFilters []string

	Joins map[string]JoinSpec // nested joins, parent is this join
}

// RootJoinName is the conventional id of the source root in a planned
// join set.
const RootJoinName = "selecto_root"

// FilterSpec is a named, reusable domain-level filter definition.
type FilterSpec struct {
	Name  string
	Field string
	Op    string
	Value any
}

// Domain is the parsed, immutable description of what a query may
// reference.
type Domain struct {
	Source           Schema
	Schemas          map[string]Schema
	Joins            map[string]JoinSpec
	Name             string
	DefaultSelected  []string
	DefaultAggregate string
	RequiredFilters  []FilterSpec
	Filters          map[string]FilterSpec
}
