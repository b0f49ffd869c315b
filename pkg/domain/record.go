package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// Ref points at another object by category and id.
type Ref struct {
	Category Category `json:"category"`
	ID       int64    `json:"id"`
}

func (r Ref) String() string { return Key(r.Category, r.ID) }

// Record is the persisted shape of a tracked object.
type Record struct {
	Category Category         `json:"category"`
	ID       int64            `json:"id"`
	Fields   map[string]any   `json:"fields,omitempty"`
	Refs     map[string][]Ref `json:"refs,omitempty"`
}

// Key returns the record's storage key.
func (r Record) Key() string { return Key(r.Category, r.ID) }

// Ref returns a reference to the record.
func (r Record) Ref() Ref { return Ref{Category: r.Category, ID: r.ID} }

// Clone returns a deep copy of the field and reference maps. Field values are
// copied shallowly.
func (r Record) Clone() Record {
	out := Record{Category: r.Category, ID: r.ID}
	if r.Fields != nil {
		out.Fields = make(map[string]any, len(r.Fields))
		for k, v := range r.Fields {
			out.Fields[k] = v
		}
	}
	if r.Refs != nil {
		out.Refs = make(map[string][]Ref, len(r.Refs))
		for k, v := range r.Refs {
			out.Refs[k] = append([]Ref(nil), v...)
		}
	}
	return out
}

// Key formats the storage key for a category and id.
func Key(category Category, id int64) string {
	return string(category) + "/" + strconv.FormatInt(id, 10)
}

// ParseKey splits a storage key produced by Key.
func ParseKey(key string) (Ref, error) {
	idx := strings.LastIndex(key, "/")
	if idx <= 0 || idx == len(key)-1 {
		return Ref{}, fmt.Errorf("malformed record key %q", key)
	}
	id, err := strconv.ParseInt(key[idx+1:], 10, 64)
	if err != nil {
		return Ref{}, fmt.Errorf("malformed record key %q: %w", key, err)
	}
	return Ref{Category: Category(key[:idx]), ID: id}, nil
}
