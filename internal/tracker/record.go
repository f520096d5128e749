// SPDX-License-Identifier: MPL-2.0

package tracker

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/gigantum/gtm/internal/naming"
)

type (
	// Status is the build/publish state of one image tag.
	Status struct {
		Built     bool `json:"build"`
		Published bool `json:"publish"`
	}

	// Record maps image tags to their Status, preserving insertion order.
	// The zero value is an empty record ready for use.
	Record struct {
		order   []naming.ImageTag
		entries map[naming.ImageTag]Status
	}
)

// NewRecord returns an empty record.
func NewRecord() *Record {
	return &Record{entries: make(map[naming.ImageTag]Status)}
}

// Set inserts or overwrites the status of tag. Overwriting keeps the original position.
func (r *Record) Set(tag naming.ImageTag, s Status) {
	if r.entries == nil {
		r.entries = make(map[naming.ImageTag]Status)
	}
	if _, ok := r.entries[tag]; !ok {
		r.order = append(r.order, tag)
	}
	r.entries[tag] = s
}

// Get returns the status of tag and whether it is present.
func (r *Record) Get(tag naming.ImageTag) (Status, bool) {
	s, ok := r.entries[tag]
	return s, ok
}

// Tags returns all tags in insertion order.
func (r *Record) Tags() []naming.ImageTag {
	out := make([]naming.ImageTag, len(r.order))
	copy(out, r.order)
	return out
}

// Len returns the number of tracked tags.
func (r *Record) Len() int { return len(r.order) }

// MarshalJSON encodes the record as a JSON object whose keys follow insertion order.
func (r *Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, tag := range r.order {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(string(tag))
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(r.entries[tag])
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object into the record, keeping the key order of the input.
// Keys that are not valid image tags are rejected.
func (r *Record) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return errors.New("tracking record must be a JSON object")
	}

	out := NewRecord()
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("unexpected key token %v", keyTok)
		}
		tag, err := naming.ParseImageTag(key)
		if err != nil {
			return err
		}
		var s Status
		if err := dec.Decode(&s); err != nil {
			return fmt.Errorf("entry %q: %w", key, err)
		}
		out.Set(tag, s)
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	if dec.More() {
		return errors.New("trailing data after tracking record")
	}

	*r = *out
	return nil
}
