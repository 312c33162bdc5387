package crud

import "fmt"

// ReadOnlyAttributeError reports a write to an attribute the model does
// not accept caller values for: auto-increment keys, engine-stamped
// timestamps, read-only columns, and computed attributes.
type ReadOnlyAttributeError struct {
	Attribute string
	Model     string
}

func (e *ReadOnlyAttributeError) Error() string {
	return fmt.Sprintf("attribute %q on model %s is read-only", e.Attribute, e.Model)
}
