package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// JSONB stores a free-form JSON object. Postgres keeps it in jsonb, SQLite in text.
type JSONB map[string]interface{}

func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	raw, err := json.Marshal(j)
	if err != nil {
		return nil, err
	}
	return string(raw), nil
}

func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}
	var raw []byte
	switch v := value.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("unsupported JSONB source type %T", value)
	}
	return json.Unmarshal(raw, j)
}

// String returns the value stored under key, or "" when absent.
func (j JSONB) String(key string) string {
	if j == nil {
		return ""
	}
	if v, ok := j[key]; ok && v != nil {
		return fmt.Sprint(v)
	}
	return ""
}
