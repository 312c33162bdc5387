package attrpath

import "fmt"

// InvalidPathError reports a structurally invalid attribute path: empty
// text, an empty segment, or a non-final segment that names something
// other than a relationship.
type InvalidPathError struct {
	Text   string
	Reason string
}

func (e *InvalidPathError) Error() string {
	return fmt.Sprintf("invalid attribute path %q: %s", e.Text, e.Reason)
}

// UnknownAttributeError reports a path segment absent from the model it
// was looked up in.
type UnknownAttributeError struct {
	Name  string
	Model string
}

func (e *UnknownAttributeError) Error() string {
	return fmt.Sprintf("unknown attribute %q on model %s", e.Name, e.Model)
}
