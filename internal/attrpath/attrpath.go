// Package attrpath parses textual attribute references that may traverse
// relationships, e.g. "user___name" or "posts___comments___rating".
package attrpath

import (
	"fmt"
	"strings"

	"smartquery/internal/schema"
)

// Sep separates relationship hops in attribute path text. The token is
// reserved; the schema build rejects attribute names containing it.
const Sep = "___"

// Hop is one traversed relationship. Model is the hop's target descriptor.
type Hop struct {
	Relation *schema.Relation
	Model    *schema.Model
}

// Path is a resolved attribute path: zero or more relationship hops ending
// in a column or hybrid on the final model. Exactly one of Column and
// Hybrid is set.
type Path struct {
	Raw  string
	Hops []Hop

	Column *schema.Column
	Hybrid *schema.Hybrid

	// Model owns the terminal attribute.
	Model *schema.Model
}

// Terminal returns the leaf attribute name.
func (p *Path) Terminal() string {
	if p.Column != nil {
		return p.Column.Name
	}
	return p.Hybrid.Name
}

// Kind returns the leaf attribute kind.
func (p *Path) Kind() schema.ColumnKind {
	if p.Column != nil {
		return p.Column.Kind
	}
	return p.Hybrid.Kind
}

// RelationPath returns the Sep-joined relation names of the hops, the join
// identity of the path. A root attribute yields "".
func (p *Path) RelationPath() string {
	if len(p.Hops) == 0 {
		return ""
	}
	names := make([]string, len(p.Hops))
	for i, hop := range p.Hops {
		names[i] = hop.Relation.Name
	}
	return strings.Join(names, Sep)
}

// Resolve splits text on Sep and walks the model graph: every token but
// the last must name a relationship (advancing the current model), the
// last a column or hybrid. Resolution is purely structural; no queries
// run and the same input always yields the same path or error.
func Resolve(root *schema.Model, text string) (*Path, error) {
	if text == "" {
		return nil, &InvalidPathError{Text: text, Reason: "empty path"}
	}

	tokens := strings.Split(text, Sep)
	path := &Path{Raw: text}
	current := root

	for i, token := range tokens {
		if token == "" {
			return nil, &InvalidPathError{Text: text, Reason: "empty path segment"}
		}

		if i < len(tokens)-1 {
			rel, ok := current.Relation(token)
			if !ok {
				if _, isColumn := current.Column(token); isColumn {
					return nil, &InvalidPathError{Text: text, Reason: fmt.Sprintf("%q is a column on %s, not a relationship", token, current.Name)}
				}
				if _, isHybrid := current.Hybrid(token); isHybrid {
					return nil, &InvalidPathError{Text: text, Reason: fmt.Sprintf("%q is a hybrid on %s, not a relationship", token, current.Name)}
				}
				return nil, &UnknownAttributeError{Name: token, Model: current.Name}
			}
			path.Hops = append(path.Hops, Hop{Relation: rel, Model: rel.Target})
			current = rel.Target
			continue
		}

		if col, ok := current.Column(token); ok {
			path.Column = col
		} else if hyb, ok := current.Hybrid(token); ok {
			path.Hybrid = hyb
		} else {
			return nil, &UnknownAttributeError{Name: token, Model: current.Name}
		}
		path.Model = current
	}

	return path, nil
}
