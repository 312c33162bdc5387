package schema

import (
	"sort"
	"strings"

	"smartquery/internal/sqlutil"
)

// Column is a resolved column descriptor.
type Column struct {
	Name          string
	Kind          ColumnKind
	Nullable      bool
	PrimaryKey    bool
	AutoIncrement bool
	ReadOnly      bool
	BinaryUUID    bool
}

// Hybrid is a resolved computed attribute.
type Hybrid struct {
	Name string
	Expr string
	Kind ColumnKind
}

// Render substitutes the quoted table qualifier for the {t} placeholder in
// the hybrid expression.
func (h *Hybrid) Render(qualifier string) string {
	return strings.ReplaceAll(h.Expr, "{t}", sqlutil.QuoteIdentifier(qualifier))
}

// Relation is a resolved relationship with a linked target descriptor.
// LocalColumn lives on the source model, RemoteColumn on the target, and a
// join condition is always source.LocalColumn = target.RemoteColumn. For
// ManyToMany the junction table sits in between: source.LocalColumn =
// junction.JoinLocalColumn and junction.JoinRemoteColumn = target.RemoteColumn.
type Relation struct {
	Name   string
	Kind   RelationKind
	Source *Model
	Target *Model

	LocalColumn  *Column
	RemoteColumn *Column

	JoinTable        string
	JoinLocalColumn  string
	JoinRemoteColumn string
}

// ToMany reports whether the relation yields multiple rows per parent.
func (r *Relation) ToMany() bool {
	return r.Kind.ToMany()
}

// Model is an immutable descriptor for a registered model. Built once by
// the Catalog and shared without locking afterwards.
type Model struct {
	Name  string
	Table string

	columns   []*Column
	columnsBy map[string]*Column
	hybridsBy map[string]*Hybrid
	relations map[string]*Relation
	primary   []*Column

	timestamps bool
	createdAt  string
	updatedAt  string
}

// Columns returns the declared columns in definition order.
func (m *Model) Columns() []*Column {
	return m.columns
}

// Column looks up a column by name.
func (m *Model) Column(name string) (*Column, bool) {
	c, ok := m.columnsBy[name]
	return c, ok
}

// Hybrid looks up a computed attribute by name.
func (m *Model) Hybrid(name string) (*Hybrid, bool) {
	h, ok := m.hybridsBy[name]
	return h, ok
}

// Relation looks up a relationship by name.
func (m *Model) Relation(name string) (*Relation, bool) {
	r, ok := m.relations[name]
	return r, ok
}

// Relations returns the relationships sorted by name.
func (m *Model) Relations() []*Relation {
	names := make([]string, 0, len(m.relations))
	for name := range m.relations {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]*Relation, 0, len(names))
	for _, name := range names {
		out = append(out, m.relations[name])
	}
	return out
}

// PrimaryKey returns the primary key columns in definition order. The
// catalog build guarantees at least one.
func (m *Model) PrimaryKey() []*Column {
	return m.primary
}

// HasTimestamps reports whether the CRUD layer stamps created/updated
// columns for this model.
func (m *Model) HasTimestamps() bool {
	return m.timestamps
}

// CreatedAtColumn returns the created-at column name, or "" when
// timestamps are disabled.
func (m *Model) CreatedAtColumn() string {
	return m.createdAt
}

// UpdatedAtColumn returns the updated-at column name, or "" when
// timestamps are disabled.
func (m *Model) UpdatedAtColumn() string {
	return m.updatedAt
}

// Settable reports whether the named column accepts caller-supplied values
// through the CRUD layer. Auto-increment, read-only, and engine-stamped
// timestamp columns are not settable; hybrids never are.
func (m *Model) Settable(name string) bool {
	col, ok := m.columnsBy[name]
	if !ok {
		return false
	}
	if col.ReadOnly || col.AutoIncrement {
		return false
	}
	if m.timestamps && (name == m.createdAt || name == m.updatedAt) {
		return false
	}
	return true
}
