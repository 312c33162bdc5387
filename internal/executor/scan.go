package executor

import (
	"database/sql"
	"fmt"

	"smartquery/internal/entity"
	"smartquery/internal/planner"
	"smartquery/internal/schema"
)

// scanState accumulates records across the rows of one result set. Joins
// multiply rows, so every record is canonicalized by its identity within
// its attachment point and repeated rows fold into the existing records.
type scanState struct {
	layout    *planner.ColumnLayout
	parentKey *schema.Column

	roots   []*entity.Record
	groups  map[string][]*entity.Record
	index   map[string]*entity.Record
	scanned int64
}

// newScanState prepares scanning for one result set. A non-nil parentKey
// switches on batch mode: rows then carry a trailing parent key column and
// records group by its value.
func newScanState(layout *planner.ColumnLayout, parentKey *schema.Column) *scanState {
	state := &scanState{
		layout:    layout,
		parentKey: parentKey,
		index:     make(map[string]*entity.Record),
	}
	if parentKey != nil {
		state.groups = make(map[string][]*entity.Record)
	}
	return state
}

// consume drains and closes the result set. Root queries may carry extra
// trailing columns beyond the layout (pagination sort helpers); those are
// ignored. Batch queries carry exactly one trailing parent key column.
func (s *scanState) consume(rows *sql.Rows) error {
	defer rows.Close()
	columns, err := rows.Columns()
	if err != nil {
		return err
	}
	need := s.layout.Width()
	if s.parentKey != nil {
		need++
	}
	if len(columns) < need {
		return fmt.Errorf("result set has %d columns, plan needs %d", len(columns), need)
	}
	for rows.Next() {
		values := make([]interface{}, len(columns))
		valuePtrs := make([]interface{}, len(columns))
		for i := range values {
			valuePtrs[i] = &values[i]
		}
		if err := rows.Scan(valuePtrs...); err != nil {
			return err
		}
		s.addRow(values)
		s.scanned++
	}
	return rows.Err()
}

// addRow folds one scanned row into the accumulated records: the root
// segment first, then each eager join segment attached to its canonical
// parent.
func (s *scanState) addRow(values []interface{}) {
	scope := ""
	if s.parentKey != nil {
		scope = fmt.Sprint(convertValue(s.parentKey, values[s.layout.Width()]))
	}

	nRoot := len(s.layout.Root)
	root := recordFrom(s.layout.Model, s.layout.Root, values[:nRoot])
	rootID := scope + "|" + root.Key()
	if existing, ok := s.index[rootID]; ok {
		root = existing
	} else {
		s.index[rootID] = root
		s.roots = append(s.roots, root)
		if s.groups != nil {
			s.groups[scope] = append(s.groups[scope], root)
		}
	}

	canon := map[string]*entity.Record{"": root}
	ids := map[string]string{"": rootID}
	pos := nRoot
	for _, seg := range s.layout.Eager {
		segValues := values[pos : pos+len(seg.Columns)]
		pos += len(seg.Columns)

		parent := canon[seg.Join.Parent]
		if parent == nil {
			canon[seg.Join.Path] = nil
			continue
		}
		rel := seg.Join.Relation
		child := joinedRecord(seg, segValues)
		if child == nil {
			markLoaded(parent, rel)
			canon[seg.Join.Path] = nil
			continue
		}
		childID := ids[seg.Join.Parent] + "|" + rel.Name + "|" + child.Key()
		if existing, ok := s.index[childID]; ok {
			child = existing
		} else {
			s.index[childID] = child
			if rel.ToMany() {
				parent.AddMany(rel.Name, child)
			} else {
				parent.SetOne(rel.Name, child)
			}
		}
		canon[seg.Join.Path] = child
		ids[seg.Join.Path] = childID
	}
}

// recordFrom materializes one record from a scanned value slice.
func recordFrom(model *schema.Model, columns []*schema.Column, values []interface{}) *entity.Record {
	rec := entity.New(model)
	for i, col := range columns {
		rec.Set(col.Name, convertValue(col, values[i]))
	}
	return rec
}

// joinedRecord materializes an eager join segment's record, nil when the
// left join matched no row (all primary key columns NULL).
func joinedRecord(seg planner.EagerSegment, values []interface{}) *entity.Record {
	present := false
	for i, col := range seg.Columns {
		if col.PrimaryKey && values[i] != nil {
			present = true
			break
		}
	}
	if !present {
		return nil
	}
	return recordFrom(seg.Join.Relation.Target, seg.Columns, values)
}

// markLoaded records that an eager relation was fetched for the parent
// even though this row carries no child, so absence serializes as loaded
// and empty rather than never loaded.
func markLoaded(parent *entity.Record, rel *schema.Relation) {
	if rel.ToMany() {
		if _, ok := parent.Many(rel.Name); !ok {
			parent.SetMany(rel.Name, nil)
		}
		return
	}
	if _, ok := parent.One(rel.Name); !ok {
		parent.SetOne(rel.Name, nil)
	}
}

// convertValue normalizes a scanned driver value for its column: byte
// slices become strings except on binary columns, and UUID columns render
// in canonical form.
func convertValue(col *schema.Column, value interface{}) interface{} {
	if value == nil {
		return nil
	}
	if col != nil {
		switch col.Kind {
		case schema.KindUUID:
			return schema.PresentUUID(value)
		case schema.KindBytes:
			return value
		}
	}
	if b, ok := value.([]byte); ok {
		return string(b)
	}
	return value
}
