// Package entity holds the generic record representation produced by query
// execution.
package entity

import (
	"fmt"
	"strings"

	"smartquery/internal/schema"
)

// Record is one database row materialized against its model descriptor.
// Attribute values are keyed by column name; related records attach under
// their relation names as eager loads resolve.
type Record struct {
	Model *schema.Model

	attrs map[string]interface{}
	one   map[string]*Record
	many  map[string][]*Record
}

// New returns an empty record for the model.
func New(model *schema.Model) *Record {
	return &Record{
		Model: model,
		attrs: make(map[string]interface{}, len(model.Columns())),
	}
}

// Set stores an attribute value under the column name.
func (r *Record) Set(name string, value interface{}) {
	r.attrs[name] = value
}

// Get returns the attribute value and whether it has been set.
func (r *Record) Get(name string) (interface{}, bool) {
	value, ok := r.attrs[name]
	return value, ok
}

// Attr returns the attribute value, nil when unset.
func (r *Record) Attr(name string) interface{} {
	return r.attrs[name]
}

// SetOne attaches a single related record under the relation name. A nil
// record marks the relation as loaded but absent.
func (r *Record) SetOne(name string, rec *Record) {
	if r.one == nil {
		r.one = make(map[string]*Record)
	}
	r.one[name] = rec
}

// One returns the single related record under the relation name and
// whether that relation has been loaded.
func (r *Record) One(name string) (*Record, bool) {
	rec, ok := r.one[name]
	return rec, ok
}

// SetMany attaches a related record list under the relation name. An empty
// slice marks the relation as loaded with no children.
func (r *Record) SetMany(name string, recs []*Record) {
	if r.many == nil {
		r.many = make(map[string][]*Record)
	}
	if recs == nil {
		recs = []*Record{}
	}
	r.many[name] = recs
}

// AddMany appends one record to the related list under the relation name.
func (r *Record) AddMany(name string, rec *Record) {
	if r.many == nil {
		r.many = make(map[string][]*Record)
	}
	r.many[name] = append(r.many[name], rec)
}

// Many returns the related record list under the relation name and whether
// that relation has been loaded.
func (r *Record) Many(name string) ([]*Record, bool) {
	recs, ok := r.many[name]
	return recs, ok
}

// PrimaryKey returns the record's primary key values in column order.
func (r *Record) PrimaryKey() []interface{} {
	pk := r.Model.PrimaryKey()
	values := make([]interface{}, len(pk))
	for i, col := range pk {
		values[i] = r.attrs[col.Name]
	}
	return values
}

// Key returns the record's identity string: the table name followed by
// each primary key value, colon separated. Used to deduplicate joined rows
// and to correlate log lines with individual records.
func (r *Record) Key() string {
	parts := make([]string, 0, 3)
	parts = append(parts, r.Model.Table)
	for _, value := range r.PrimaryKey() {
		parts = append(parts, fmt.Sprint(value))
	}
	return strings.Join(parts, ":")
}

// ToMap serializes the record's attributes in column order. When nested is
// set, loaded relations serialize one level deep.
func (r *Record) ToMap(nested bool) map[string]interface{} {
	depth := 0
	if nested {
		depth = 1
	}
	return r.ToMapDepth(depth)
}

// ToMapDepth serializes the record's attributes plus loaded relations up
// to depth levels deep. Relations that were never loaded are omitted; a
// loaded to-one relation with no row serializes as nil and a loaded
// to-many relation with no children as an empty list.
func (r *Record) ToMapDepth(depth int) map[string]interface{} {
	out := make(map[string]interface{}, len(r.attrs)+len(r.one)+len(r.many))
	for _, col := range r.Model.Columns() {
		if value, ok := r.attrs[col.Name]; ok {
			out[col.Name] = value
		}
	}
	if depth <= 0 {
		return out
	}
	for name, rec := range r.one {
		if rec == nil {
			out[name] = nil
			continue
		}
		out[name] = rec.ToMapDepth(depth - 1)
	}
	for name, recs := range r.many {
		nested := make([]map[string]interface{}, 0, len(recs))
		for _, rec := range recs {
			nested = append(nested, rec.ToMapDepth(depth-1))
		}
		out[name] = nested
	}
	return out
}
