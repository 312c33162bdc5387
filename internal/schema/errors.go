package schema

import "fmt"

// SchemaError reports malformed model metadata discovered during the
// catalog build or a lookup of an unregistered model.
type SchemaError struct {
	Model  string
	Detail string
}

func (e *SchemaError) Error() string {
	if e.Model == "" {
		return fmt.Sprintf("schema: %s", e.Detail)
	}
	return fmt.Sprintf("schema: model %s: %s", e.Model, e.Detail)
}

func schemaErrorf(model, format string, args ...interface{}) *SchemaError {
	return &SchemaError{Model: model, Detail: fmt.Sprintf(format, args...)}
}
