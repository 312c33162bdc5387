package planner

import (
	"fmt"

	"smartquery/internal/attrpath"
	"smartquery/internal/schema"
	"smartquery/internal/sqlutil"
)

// aliasPrefix marks generated join aliases so they can never collide with a
// real table name.
const aliasPrefix = "__"

// junctionSuffix marks the alias the junction table of a many-to-many join
// pair is bound to.
const junctionSuffix = "__jt"

// Join is one LEFT JOIN edge in a query node, keyed by its relation path
// from the node's root model.
type Join struct {
	Path     string
	Parent   string
	Relation *schema.Relation

	// Eager marks joins whose target columns are selected and attached to
	// parent records. Joins added for filters and sorts stay lean.
	Eager bool
}

// Alias returns the table alias the join's target is bound to.
func (j *Join) Alias() string { return aliasPrefix + j.Path }

// JunctionAlias returns the alias of the junction table for many-to-many
// joins.
func (j *Join) JunctionAlias() string { return j.Alias() + junctionSuffix }

// JoinSet is a deduplicated, ordered collection of joins for one query
// node. Paths always register parents before children, so iterating in
// registration order renders a valid join sequence.
type JoinSet struct {
	root  *schema.Model
	joins map[string]*Join
	order []string
}

func NewJoinSet(root *schema.Model) *JoinSet {
	return &JoinSet{root: root, joins: map[string]*Join{}}
}

// Root returns the model the set's paths are anchored at.
func (s *JoinSet) Root() *schema.Model { return s.root }

// AddPath registers a join for every relation hop of the path. Hop-free
// paths register nothing.
func (s *JoinSet) AddPath(p *attrpath.Path) {
	parent := ""
	for _, hop := range p.Hops {
		j := s.add(parent, hop.Relation)
		parent = j.Path
	}
}

// Add registers a single relation joined beneath the given parent path and
// returns the join. Re-adding an existing path returns the original entry.
func (s *JoinSet) Add(parent string, rel *schema.Relation) *Join {
	return s.add(parent, rel)
}

func (s *JoinSet) add(parent string, rel *schema.Relation) *Join {
	path := rel.Name
	if parent != "" {
		path = parent + attrpath.Sep + rel.Name
	}
	if j, ok := s.joins[path]; ok {
		return j
	}
	j := &Join{Path: path, Parent: parent, Relation: rel}
	s.joins[path] = j
	s.order = append(s.order, path)
	return j
}

// Merge folds another set's joins into this one, preserving the other set's
// registration order and keeping eager marks.
func (s *JoinSet) Merge(other *JoinSet) {
	if other == nil {
		return
	}
	for _, path := range other.order {
		src := other.joins[path]
		dst := s.add(src.Parent, src.Relation)
		if src.Eager {
			dst.Eager = true
		}
	}
}

// Get looks up a join by relation path.
func (s *JoinSet) Get(path string) (*Join, bool) {
	j, ok := s.joins[path]
	return j, ok
}

// Joins returns the set in registration order.
func (s *JoinSet) Joins() []*Join {
	out := make([]*Join, len(s.order))
	for i, path := range s.order {
		out[i] = s.joins[path]
	}
	return out
}

// Len returns the number of registered joins.
func (s *JoinSet) Len() int { return len(s.order) }

// HasToMany reports whether any join crosses a to-many relationship, which
// multiplies root rows in the joined result.
func (s *JoinSet) HasToMany() bool {
	for _, path := range s.order {
		if s.joins[path].Relation.ToMany() {
			return true
		}
	}
	return false
}

// Qualifier returns the SQL qualifier for the path's terminal attribute:
// the unaliased root table for hop-free paths, the terminal join alias
// otherwise.
func (s *JoinSet) Qualifier(p *attrpath.Path) string {
	if len(p.Hops) == 0 {
		return s.root.Table
	}
	return aliasPrefix + p.RelationPath()
}

// Clauses renders the join as LEFT JOIN fragments for a query rooted at the
// set's model. Many-to-many relations produce two fragments, junction
// first.
func (s *JoinSet) Clauses(j *Join) []string {
	parentQ := s.root.Table
	if j.Parent != "" {
		parentQ = aliasPrefix + j.Parent
	}
	rel := j.Relation
	if rel.Kind == schema.ManyToMany {
		junctionAlias := j.JunctionAlias()
		junction := fmt.Sprintf("%s AS %s ON %s = %s",
			sqlutil.QuoteIdentifier(rel.JoinTable),
			sqlutil.QuoteIdentifier(junctionAlias),
			sqlutil.QualifyColumn(parentQ, rel.LocalColumn.Name),
			sqlutil.QualifyColumn(junctionAlias, rel.JoinLocalColumn),
		)
		target := fmt.Sprintf("%s AS %s ON %s = %s",
			sqlutil.QuoteIdentifier(rel.Target.Table),
			sqlutil.QuoteIdentifier(j.Alias()),
			sqlutil.QualifyColumn(junctionAlias, rel.JoinRemoteColumn),
			sqlutil.QualifyColumn(j.Alias(), rel.RemoteColumn.Name),
		)
		return []string{junction, target}
	}
	clause := fmt.Sprintf("%s AS %s ON %s = %s",
		sqlutil.QuoteIdentifier(rel.Target.Table),
		sqlutil.QuoteIdentifier(j.Alias()),
		sqlutil.QualifyColumn(parentQ, rel.LocalColumn.Name),
		sqlutil.QualifyColumn(j.Alias(), rel.RemoteColumn.Name),
	)
	return []string{clause}
}

// columnExpr renders the path's terminal attribute as a qualified SQL
// expression, expanding hybrid templates against the owning qualifier.
func columnExpr(joins *JoinSet, p *attrpath.Path) string {
	q := joins.Qualifier(p)
	if p.Hybrid != nil {
		return p.Hybrid.Render(q)
	}
	return sqlutil.QualifyColumn(q, p.Column.Name)
}
