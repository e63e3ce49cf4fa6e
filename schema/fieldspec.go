package schema

// Operator identifies how a reference field relates to its target type.
type Operator string

const (
	OpNone          Operator = ""
	OpForwardExact  Operator = "->"
	OpBackwardExact Operator = "<-"
	OpForwardFuzzy  Operator = "~>"
	OpBackwardFuzzy Operator = "<~"
)

// MatchMode distinguishes an exact relation lookup from a
// semantic-similarity resolution.
type MatchMode string

const (
	MatchExact MatchMode = "exact"
	MatchFuzzy MatchMode = "fuzzy"
)

// Direction records whether a reference was declared from the parent
// (forward) or is a reverse back-reference (backward).
type Direction string

const (
	DirForward  Direction = "forward"
	DirBackward Direction = "backward"
)

// FieldKind distinguishes a primitive scalar from a reference field.
type FieldKind string

const (
	KindPrimitive FieldKind = "primitive"
	KindRef       FieldKind = "ref"
)

// Primitive types recognized by the field-type grammar.
const (
	PrimString   = "string"
	PrimNumber   = "number"
	PrimBoolean  = "boolean"
	PrimDate     = "date"
	PrimDateTime = "datetime"
	PrimMarkdown = "markdown"
	PrimJSON     = "json"
)

var primitiveTypes = map[string]bool{
	PrimString: true, PrimNumber: true, PrimBoolean: true,
	PrimDate: true, PrimDateTime: true, PrimMarkdown: true, PrimJSON: true,
}

// FieldSpec is the structured result of parsing one field's type string.
type FieldSpec struct {
	Name        string
	Kind        FieldKind
	Primitive   string
	Operator    Operator
	TargetType  string
	Backref     string
	IsArray     bool
	IsOptional  bool
	MatchMode   MatchMode
	Direction   Direction
	UnionTypes  []string
	Prompt      string
	Default     any
	EnumValues  []string
	Indexed     bool
	Unique      bool
}

// IsReference reports whether the field is a relation to another type.
func (f *FieldSpec) IsReference() bool { return f.Kind == KindRef }

// IsHardDependency reports whether this field contributes a hard edge
// to the dependency graph: a required "->" reference.
func (f *FieldSpec) IsHardDependency() bool {
	return f.Operator == OpForwardExact && !f.IsOptional
}

// IsSoftDependency reports a soft edge: optional "->", or any fuzzy
// operator regardless of optionality.
func (f *FieldSpec) IsSoftDependency() bool {
	if f.Operator == OpForwardExact && f.IsOptional {
		return true
	}
	return f.Operator == OpForwardFuzzy || f.Operator == OpBackwardFuzzy
}

// Entity is a parsed schema for one entity type: an ordered list of
// field names (insertion order matters for graph tie-breaking) and
// their specs.
type Entity struct {
	Name       string
	FieldOrder []string
	Fields     map[string]*FieldSpec
}

// Schema is the full parsed schema: entity name -> parsed entity.
type Schema struct {
	EntityOrder []string
	Entities    map[string]*Entity
}

func NewSchema() *Schema {
	return &Schema{Entities: make(map[string]*Entity)}
}

// NewEntity returns an empty parsed entity ready for fields to be
// appended to its FieldOrder/Fields.
func NewEntity(name string) *Entity {
	return &Entity{Name: name, Fields: make(map[string]*FieldSpec)}
}
