package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// Value implements driver.Valuer; an empty value is stored as SQL NULL
func (j JSONValue) Value() (driver.Value, error) {
	if len(j) == 0 {
		return nil, nil
	}
	return []byte(j), nil
}

// Scan implements sql.Scanner
func (j *JSONValue) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*j = nil
	case []byte:
		*j = append((*j)[:0], v...)
	case string:
		*j = JSONValue(v)
	default:
		return fmt.Errorf("cannot scan %T into JSONValue", src)
	}
	return nil
}

func (j JSONValue) MarshalJSON() ([]byte, error) {
	if len(j) == 0 {
		return []byte("null"), nil
	}
	return []byte(j), nil
}

func (j *JSONValue) UnmarshalJSON(data []byte) error {
	if j == nil {
		return fmt.Errorf("JSONValue: UnmarshalJSON on nil pointer")
	}
	if string(data) == "null" {
		*j = nil
		return nil
	}
	*j = append((*j)[:0], data...)
	return nil
}

// MustJSON marshals v, panicking on failure; meant for values known to be encodable
func MustJSON(v interface{}) JSONValue {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return JSONValue(b)
}
