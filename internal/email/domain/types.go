package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// StringList stores a []string column as JSON. Serialization happens at the
// storage boundary only; everything above works with the slice.
type StringList []string

func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]string(l))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (l *StringList) Scan(src interface{}) error {
	if src == nil {
		*l = nil
		return nil
	}
	var data []byte
	switch v := src.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported type for StringList: %T", src)
	}
	return json.Unmarshal(data, (*[]string)(l))
}

// HeaderList stores internet headers as JSON.
type HeaderList []Header

type Header struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

func (h HeaderList) Value() (driver.Value, error) {
	if h == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]Header(h))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (h *HeaderList) Scan(src interface{}) error {
	if src == nil {
		*h = nil
		return nil
	}
	var data []byte
	switch v := src.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported type for HeaderList: %T", src)
	}
	return json.Unmarshal(data, (*[]Header)(h))
}
