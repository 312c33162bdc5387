package schema

import (
	"fmt"

	"github.com/google/uuid"
)

// NormalizeUUID coerces a caller-supplied UUID value into the storage form
// declared for the column: the canonical lowercase string for text storage,
// a 16-byte slice for binary storage. Nil passes through for null tests.
func NormalizeUUID(col *Column, value interface{}) (interface{}, error) {
	if value == nil {
		return nil, nil
	}

	var parsed uuid.UUID
	switch v := value.(type) {
	case uuid.UUID:
		parsed = v
	case string:
		u, err := uuid.Parse(v)
		if err != nil {
			return nil, fmt.Errorf("invalid uuid %q for column %s: %w", v, col.Name, err)
		}
		parsed = u
	case []byte:
		u, err := uuid.FromBytes(v)
		if err != nil {
			// Not raw bytes; try the textual forms.
			u, err = uuid.ParseBytes(v)
			if err != nil {
				return nil, fmt.Errorf("invalid uuid bytes for column %s: %w", col.Name, err)
			}
		}
		parsed = u
	default:
		return nil, fmt.Errorf("unsupported uuid value type %T for column %s", value, col.Name)
	}

	if col.BinaryUUID {
		return parsed[:], nil
	}
	return parsed.String(), nil
}

// PresentUUID renders a scanned UUID storage value in the canonical
// lowercase string form. Values that do not parse as UUIDs pass through
// so callers still see the raw data.
func PresentUUID(value interface{}) interface{} {
	switch v := value.(type) {
	case nil:
		return nil
	case string:
		if u, err := uuid.Parse(v); err == nil {
			return u.String()
		}
		return v
	case []byte:
		if u, err := uuid.FromBytes(v); err == nil {
			return u.String()
		}
		if u, err := uuid.ParseBytes(v); err == nil {
			return u.String()
		}
		return string(v)
	default:
		return value
	}
}
