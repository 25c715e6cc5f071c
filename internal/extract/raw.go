package extract

import (
	"bytes"
	"encoding/json"
)

// Raw is the raw submitted-field collection: an insertion-ordered multimap.
// A name submitted once holds a scalar value; a repeated name (multi-select,
// checkbox group) upgrades to an ordered list. Marshals to a JSON object
// whose keys appear in order of first occurrence.
type Raw struct {
	keys   []string
	values map[string][]string
}

// NewRaw returns an empty Raw collection.
func NewRaw() *Raw {
	return &Raw{values: make(map[string][]string)}
}

// Add inserts a value under name, preserving submission order.
func (r *Raw) Add(name, value string) {
	if _, ok := r.values[name]; !ok {
		r.keys = append(r.keys, name)
	}
	r.values[name] = append(r.values[name], value)
}

// Keys returns the field names in order of first occurrence.
func (r *Raw) Keys() []string {
	return r.keys
}

// Values returns all values submitted under name, in submission order.
func (r *Raw) Values(name string) []string {
	return r.values[name]
}

// Len returns the number of distinct field names.
func (r *Raw) Len() int {
	return len(r.keys)
}

// MarshalJSON emits a JSON object preserving key insertion order.
// Single-valued names marshal as strings, multi-valued as arrays.
func (r *Raw) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range r.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')

		vals := r.values[k]
		var val []byte
		if len(vals) == 1 {
			val, err = json.Marshal(vals[0])
		} else {
			val, err = json.Marshal(vals)
		}
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
