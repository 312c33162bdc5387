// Package schema resolves declarative model definitions into immutable
// descriptors. A Catalog owns the definitions and builds the descriptor
// graph exactly once; the resulting Model values are shared read-only by
// the planner, executor, and crud packages.
package schema

// ColumnKind classifies the value space of a column or hybrid attribute.
// Operator compatibility in the filter compiler is gated on the kind.
type ColumnKind int

const (
	KindString ColumnKind = iota
	KindInt
	KindFloat
	KindBool
	KindTime
	KindBytes
	KindJSON
	KindUUID
)

func (k ColumnKind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindBool:
		return "bool"
	case KindTime:
		return "time"
	case KindBytes:
		return "bytes"
	case KindJSON:
		return "json"
	case KindUUID:
		return "uuid"
	default:
		return "unknown"
	}
}

// Comparable reports whether ordering comparisons (gt, lt, between, ...)
// apply to the kind.
func (k ColumnKind) Comparable() bool {
	switch k {
	case KindBytes, KindJSON, KindUUID:
		return false
	}
	return true
}

// Text reports whether pattern-match operators (like, ilike, ...) apply to
// the kind.
func (k ColumnKind) Text() bool {
	return k == KindString
}

// RelationKind classifies how a relationship maps rows between two models.
type RelationKind int

const (
	// BelongsTo joins a local foreign key to the target primary key.
	BelongsTo RelationKind = iota
	// HasOne joins the local primary key to a unique foreign key on the target.
	HasOne
	// HasMany joins the local primary key to a foreign key on the target.
	HasMany
	// ManyToMany joins through a junction table.
	ManyToMany
)

func (k RelationKind) String() string {
	switch k {
	case BelongsTo:
		return "belongs_to"
	case HasOne:
		return "has_one"
	case HasMany:
		return "has_many"
	case ManyToMany:
		return "many_to_many"
	default:
		return "unknown"
	}
}

// ToMany reports whether the relation yields multiple rows per parent.
func (k RelationKind) ToMany() bool {
	return k == HasMany || k == ManyToMany
}

// ColumnDef declares a physical column on a model.
type ColumnDef struct {
	Name          string
	Kind          ColumnKind
	Nullable      bool
	PrimaryKey    bool
	AutoIncrement bool

	// ReadOnly marks columns the CRUD layer refuses to accept in payloads.
	ReadOnly bool

	// BinaryUUID stores KindUUID values as BINARY(16) instead of CHAR(36).
	BinaryUUID bool
}

// HybridDef declares a computed attribute addressable in filters and sorts
// but never settable. Expr is a SQL expression in which {t} stands for the
// (possibly aliased) table qualifier, e.g.
//
//	CONCAT({t}.`first_name`, ' ', {t}.`last_name`)
//
// Kind defaults to KindString.
type HybridDef struct {
	Name string
	Expr string
	Kind ColumnKind
}

// RelationDef declares a relationship to another registered model. Column
// mappings left empty fall back to naming conventions: BelongsTo joins
// source.<target>_id to the target primary key, HasOne/HasMany join the
// source primary key to target.<source>_id, and ManyToMany junction columns
// default to <source>_id / <target>_id on the join table.
type RelationDef struct {
	Name   string
	Kind   RelationKind
	Target string

	LocalColumn  string
	RemoteColumn string

	// ManyToMany junction mapping. JoinTable is required for ManyToMany.
	JoinTable        string
	JoinLocalColumn  string
	JoinRemoteColumn string
}

// Definition declares a model. Table defaults to the pluralized snake_case
// form of Name.
type Definition struct {
	Name      string
	Table     string
	Columns   []ColumnDef
	Hybrids   []HybridDef
	Relations []RelationDef

	// Timestamps enables created/updated stamping in the CRUD layer. The
	// named columns must be declared in Columns.
	Timestamps      bool
	CreatedAtColumn string // default "created_at"
	UpdatedAtColumn string // default "updated_at"
}
