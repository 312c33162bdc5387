package planner

import (
	"fmt"
	"reflect"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"smartquery/internal/attrpath"
	"smartquery/internal/schema"
)

// opSep attaches an operator token to the final segment of a filter key.
const opSep = "__"

// operatorTokens is the closed set of operator suffixes recognized in filter
// keys. A key whose final segment carries an unlisted suffix is rejected
// rather than silently treated as an attribute name.
var operatorTokens = map[string]struct{}{
	"eq":          {},
	"ne":          {},
	"gt":          {},
	"ge":          {},
	"lt":          {},
	"le":          {},
	"in":          {},
	"not_in":      {},
	"between":     {},
	"like":        {},
	"ilike":       {},
	"startswith":  {},
	"istartswith": {},
	"endswith":    {},
	"iendswith":   {},
	"contains":    {},
	"is_null":     {},
}

// SplitFilterKey splits a filter mapping key into attribute path text and
// operator token. Only the final path segment may carry an operator suffix;
// a key without one means equality.
func SplitFilterKey(key string) (string, string, error) {
	segments := strings.Split(key, attrpath.Sep)
	final := segments[len(segments)-1]
	idx := strings.LastIndex(final, opSep)
	if idx < 0 {
		return key, "eq", nil
	}
	token := final[idx+len(opSep):]
	if _, ok := operatorTokens[token]; !ok {
		return "", "", &InvalidOperatorError{Token: token, Key: key}
	}
	segments[len(segments)-1] = final[:idx]
	return strings.Join(segments, attrpath.Sep), token, nil
}

// buildOperatorCondition renders one operator application against a
// qualified column expression. The resolved path supplies the attribute kind
// for operator gating and UUID operand normalization.
func buildOperatorCondition(token, expr string, path *attrpath.Path, operand interface{}) (sq.Sqlizer, error) {
	switch token {
	case "eq":
		v, err := scalarOperand(token, path, operand)
		if err != nil {
			return nil, err
		}
		return sq.Eq{expr: v}, nil
	case "ne":
		v, err := scalarOperand(token, path, operand)
		if err != nil {
			return nil, err
		}
		return sq.NotEq{expr: v}, nil
	case "gt", "ge", "lt", "le":
		if err := requireComparable(token, path); err != nil {
			return nil, err
		}
		v, err := scalarOperand(token, path, operand)
		if err != nil {
			return nil, err
		}
		switch token {
		case "gt":
			return sq.Gt{expr: v}, nil
		case "ge":
			return sq.GtOrEq{expr: v}, nil
		case "lt":
			return sq.Lt{expr: v}, nil
		}
		return sq.LtOrEq{expr: v}, nil
	case "in", "not_in":
		values, ok := sequenceValues(operand)
		if !ok {
			return nil, &OperandArityError{Operator: token, Want: "a sequence of values", Got: operand}
		}
		normalized := make([]interface{}, len(values))
		for i, v := range values {
			nv, err := normalizeOperand(path, v)
			if err != nil {
				return nil, err
			}
			normalized[i] = nv
		}
		if token == "in" {
			return sq.Eq{expr: normalized}, nil
		}
		return sq.NotEq{expr: normalized}, nil
	case "between":
		values, ok := sequenceValues(operand)
		if !ok || len(values) != 2 {
			return nil, &OperandArityError{Operator: token, Want: "exactly two values", Got: operand}
		}
		if err := requireComparable(token, path); err != nil {
			return nil, err
		}
		lo, err := normalizeOperand(path, values[0])
		if err != nil {
			return nil, err
		}
		hi, err := normalizeOperand(path, values[1])
		if err != nil {
			return nil, err
		}
		return sq.Expr(expr+" BETWEEN ? AND ?", lo, hi), nil
	case "like":
		pattern, err := textOperand(token, path, operand)
		if err != nil {
			return nil, err
		}
		return sq.Like{expr: pattern}, nil
	case "ilike":
		pattern, err := textOperand(token, path, operand)
		if err != nil {
			return nil, err
		}
		return sq.Expr("LOWER("+expr+") LIKE LOWER(?)", pattern), nil
	case "startswith", "endswith", "contains":
		pattern, err := textOperand(token, path, operand)
		if err != nil {
			return nil, err
		}
		switch token {
		case "startswith":
			pattern += "%"
		case "endswith":
			pattern = "%" + pattern
		default:
			pattern = "%" + pattern + "%"
		}
		return sq.Like{expr: pattern}, nil
	case "istartswith", "iendswith":
		pattern, err := textOperand(token, path, operand)
		if err != nil {
			return nil, err
		}
		if token == "istartswith" {
			pattern += "%"
		} else {
			pattern = "%" + pattern
		}
		return sq.Expr("LOWER("+expr+") LIKE LOWER(?)", pattern), nil
	case "is_null":
		flag, ok := operand.(bool)
		if !ok {
			return nil, &OperandArityError{Operator: token, Want: "a boolean flag", Got: operand}
		}
		if flag {
			return sq.Eq{expr: nil}, nil
		}
		return sq.NotEq{expr: nil}, nil
	}
	return nil, &InvalidOperatorError{Token: token}
}

// scalarOperand rejects sequence operands and normalizes UUID values for
// single-value operators.
func scalarOperand(op string, path *attrpath.Path, v interface{}) (interface{}, error) {
	if _, ok := sequenceValues(v); ok {
		return nil, &OperandArityError{Operator: op, Want: "a single value", Got: v}
	}
	return normalizeOperand(path, v)
}

// textOperand gates pattern operators to string attributes and requires a
// string operand.
func textOperand(op string, path *attrpath.Path, v interface{}) (string, error) {
	if !path.Kind().Text() {
		return "", &InvalidOperatorError{
			Token:  op,
			Reason: fmt.Sprintf("attribute %q has kind %s; pattern matching requires a string attribute", path.Raw, path.Kind()),
		}
	}
	s, ok := v.(string)
	if !ok {
		return "", &OperandArityError{Operator: op, Want: "a string pattern", Got: v}
	}
	return s, nil
}

func requireComparable(op string, path *attrpath.Path) error {
	if !path.Kind().Comparable() {
		return &InvalidOperatorError{
			Token:  op,
			Reason: fmt.Sprintf("attribute %q has kind %s which does not support ordering", path.Raw, path.Kind()),
		}
	}
	return nil
}

// normalizeOperand canonicalizes operand values for UUID attributes so that
// string, byte and uuid.UUID inputs all match the stored representation.
func normalizeOperand(path *attrpath.Path, v interface{}) (interface{}, error) {
	if v == nil || path.Column == nil || path.Column.Kind != schema.KindUUID {
		return v, nil
	}
	return schema.NormalizeUUID(path.Column, v)
}

// sequenceValues flattens slice and array operands into a generic slice.
// Byte slices and strings stay scalar.
func sequenceValues(v interface{}) ([]interface{}, bool) {
	switch v.(type) {
	case nil, string, []byte:
		return nil, false
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	out := make([]interface{}, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}
