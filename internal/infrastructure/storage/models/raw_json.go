package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
)

// RawJSON stores an arbitrary JSON-marshaled Go value in a jsonb column,
// without forcing it through a map[string]interface{} shape —
// used for structured blobs like a canonical order or an issue list that
// are structs/slices, not maps.
type RawJSON []byte

func (j RawJSON) Value() (driver.Value, error) {
	if len(j) == 0 {
		return "null", nil
	}
	return string(j), nil
}

func (j *RawJSON) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}
	switch v := value.(type) {
	case []byte:
		*j = append(RawJSON(nil), v...)
		return nil
	case string:
		*j = RawJSON(v)
		return nil
	default:
		return errors.New("failed to scan RawJSON: unexpected type")
	}
}

// MarshalInto decodes the stored JSON into out.
func (j RawJSON) MarshalInto(out interface{}) error {
	if len(j) == 0 || string(j) == "null" {
		return nil
	}
	return json.Unmarshal(j, out)
}

// NewRawJSON marshals v into a RawJSON column value.
func NewRawJSON(v interface{}) (RawJSON, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return RawJSON(raw), nil
}
