package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/siherrmann/recaller/helper"
)

// Metadata is the free-form JSONB column of a document. Ingest stamps
// provenance into it, callers can attach their own annotations.
type Metadata map[string]interface{}

// Value implements driver.Valuer for writing the column.
func (m Metadata) Value() (driver.Value, error) {
	return m.Marshal()
}

// Scan implements sql.Scanner for reading the column.
func (m *Metadata) Scan(value interface{}) error {
	return m.Unmarshal(value)
}

// Marshal converts Metadata to JSON bytes.
func (m Metadata) Marshal() ([]byte, error) {
	return json.Marshal(m)
}

// Unmarshal fills Metadata from what the driver hands back. JSONB arrives
// as []byte or string depending on the driver path, nil means an empty map.
func (m *Metadata) Unmarshal(value interface{}) error {
	switch v := value.(type) {
	case nil:
		*m = Metadata{}
		return nil
	case Metadata:
		*m = v
		return nil
	case []byte:
		return json.Unmarshal(v, m)
	case string:
		return json.Unmarshal([]byte(v), m)
	default:
		return helper.NewError("metadata conversion", fmt.Errorf("unsupported metadata type %T", value))
	}
}
