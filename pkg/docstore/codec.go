package docstore

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/oklog/ulid/v2"
)

// NewID returns a lexicographically sortable document id.
func NewID() string {
	return ulid.Make().String()
}

// ToData converts a struct or map into document fields. Field names come
// from json tags, so omitempty fields are dropped from the document.
func ToData(v any) (Data, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode document: %w", err)
	}
	var data Data
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("document must be an object: %w", err)
	}
	if data == nil {
		data = Data{}
	}
	return data, nil
}

// FromData decodes document fields into v.
func FromData(data Data, v any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to encode document: %w", err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("failed to decode document: %w", err)
	}
	return nil
}

// Lookup resolves a dotted field path inside data.
func Lookup(data Data, field string) (any, bool) {
	var cur any = map[string]any(data)
	for _, part := range strings.Split(field, ".") {
		m, ok := asMap(cur)
		if !ok {
			return nil, false
		}
		cur, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// Match reports whether data satisfies every filter of q. Values are
// compared in their JSON form so 5, int64(5) and 5.0 are equal.
func (q Query) Match(data Data) bool {
	for _, f := range q.Filters {
		v, ok := Lookup(data, f.Field)
		if !ok {
			return false
		}
		if !reflect.DeepEqual(canonical(v), canonical(f.Value)) {
			return false
		}
	}
	return true
}

func canonical(v any) any {
	raw, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return v
	}
	return out
}

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case Data:
		return m, true
	}
	return nil, false
}
