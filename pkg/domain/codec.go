package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// EncodeRecord renders a record as JSON, the body format shared by the
// durable stores.
func EncodeRecord(rec Record) ([]byte, error) {
	return json.Marshal(rec)
}

// DecodeRecord parses a body written by EncodeRecord. Numeric field values
// without a fraction or exponent come back as int64 so large integers keep
// their precision; other numbers come back as float64.
func DecodeRecord(data []byte) (Record, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var rec Record
	if err := dec.Decode(&rec); err != nil {
		return Record{}, err
	}
	for k, v := range rec.Fields {
		nv, err := normalizeNumbers(v)
		if err != nil {
			return Record{}, fmt.Errorf("field %q: %w", k, err)
		}
		rec.Fields[k] = nv
	}
	return rec, nil
}

func normalizeNumbers(v any) (any, error) {
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i, nil
		}
		return t.Float64()
	case map[string]any:
		for k, e := range t {
			ne, err := normalizeNumbers(e)
			if err != nil {
				return nil, err
			}
			t[k] = ne
		}
		return t, nil
	case []any:
		for i, e := range t {
			ne, err := normalizeNumbers(e)
			if err != nil {
				return nil, err
			}
			t[i] = ne
		}
		return t, nil
	default:
		return v, nil
	}
}
