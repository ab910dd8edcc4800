// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package core

import (
	"encoding/json"
	"fmt"
	"sort"
)

// MetaKind discriminates the value union held by a MetaValue.
type MetaKind uint8

const (
	// MetaString holds a string value.
	MetaString MetaKind = iota + 1
	// MetaNumber holds a float64 value (JSON numbers decode to float64).
	MetaNumber
	// MetaBool holds a boolean value.
	MetaBool
	// MetaMap holds a nested metadata mapping.
	MetaMap
)

// MetaValue is a metadata value restricted to string, number, boolean, or a
// nested mapping. The restriction keeps the binary encoding deterministic.
type MetaValue struct {
	Kind MetaKind
	Str  string
	Num  float64
	Bool bool
	Map  Metadata
}

// Metadata is a string-keyed mapping of restricted values attached to a
// document. Keys are encoded in sorted order so identical metadata always
// serializes to identical bytes.
type Metadata map[string]MetaValue

// StringValue wraps a string as a MetaValue.
func StringValue(s string) MetaValue {
	return MetaValue{Kind: MetaString, Str: s}
}

// NumberValue wraps a float64 as a MetaValue.
func NumberValue(f float64) MetaValue {
	return MetaValue{Kind: MetaNumber, Num: f}
}

// BoolValue wraps a bool as a MetaValue.
func BoolValue(b bool) MetaValue {
	return MetaValue{Kind: MetaBool, Bool: b}
}

// MapValue wraps a nested Metadata mapping as a MetaValue.
func MapValue(m Metadata) MetaValue {
	return MetaValue{Kind: MetaMap, Map: m}
}

// SortedKeys returns the metadata keys in ascending order.
func (m Metadata) SortedKeys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Clone returns a deep copy of the metadata.
func (m Metadata) Clone() Metadata {
	if m == nil {
		return nil
	}
	out := make(Metadata, len(m))
	for k, v := range m {
		if v.Kind == MetaMap {
			v.Map = v.Map.Clone()
		}
		out[k] = v
	}
	return out
}

// MarshalJSON renders the value as its natural JSON form.
func (v MetaValue) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case MetaString:
		return json.Marshal(v.Str)
	case MetaNumber:
		return json.Marshal(v.Num)
	case MetaBool:
		return json.Marshal(v.Bool)
	case MetaMap:
		return json.Marshal(v.Map)
	default:
		return nil, fmt.Errorf("%w: unknown metadata kind %d", ErrInvalidMetadata, v.Kind)
	}
}

// UnmarshalJSON accepts a string, number, boolean, or nested object.
// Arrays and null are outside the value union and rejected.
func (v *MetaValue) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch t := raw.(type) {
	case string:
		*v = StringValue(t)
	case float64:
		*v = NumberValue(t)
	case bool:
		*v = BoolValue(t)
	case map[string]any:
		nested := make(Metadata, len(t))
		// Re-decode the object through Metadata so nesting stays validated.
		if err := json.Unmarshal(data, &nested); err != nil {
			return err
		}
		*v = MapValue(nested)
	default:
		return fmt.Errorf("%w: unsupported JSON value %s", ErrInvalidMetadata, string(data))
	}
	return nil
}
