package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// flexID accepts an id sent either as a JSON number or as a numeric string.
type flexID uint64

func (id *flexID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*id = 0
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		if s == "" {
			*id = 0
			return nil
		}
		b = []byte(s)
	}
	v, err := strconv.ParseUint(string(b), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid id %s", b)
	}
	*id = flexID(v)
	return nil
}

func (id *flexID) ptr() *uint64 {
	if id == nil {
		return nil
	}
	v := uint64(*id)
	return &v
}
