package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// JSONMap maps a jsonb column to a Go map. Implements driver.Valuer and
// sql.Scanner so it can be used directly in query parameters and row scans.
type JSONMap map[string]any

// Value serializes the map for storage. A nil map stores as an empty object
// rather than SQL NULL so reads never have to distinguish the two. The value
// is returned as a string: the pgx stdlib driver binds []byte parameters as
// bytea, which jsonb columns reject.
func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	encoded, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(encoded), nil
}

// Scan deserializes a jsonb column value.
func (m *JSONMap) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*m = JSONMap{}
		return nil
	case []byte:
		return json.Unmarshal(v, m)
	case string:
		return json.Unmarshal([]byte(v), m)
	default:
		return fmt.Errorf("unsupported jsonb source type %T", src)
	}
}

// Clone returns a shallow copy. Nested values are shared.
func (m JSONMap) Clone() JSONMap {
	out := make(JSONMap, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
