package domain

import (
	"encoding/json"
	"fmt"
	"maps"
	"time"
)

// MetaKind is the shape of a metadata value.
type MetaKind uint8

const (
	MetaString MetaKind = iota + 1
	MetaTime
)

// MetaValue is a single audit entry value: either a string or a timestamp.
type MetaValue struct {
	kind MetaKind
	str  string
	t    time.Time
}

func StringValue(s string) MetaValue  { return MetaValue{kind: MetaString, str: s} }
func TimeValue(t time.Time) MetaValue { return MetaValue{kind: MetaTime, t: t.UTC()} }

func (v MetaValue) Kind() MetaKind  { return v.kind }
func (v MetaValue) IsTime() bool    { return v.kind == MetaTime }
func (v MetaValue) Time() time.Time { return v.t }
func (v MetaValue) Str() string     { return v.str }

func (v MetaValue) String() string {
	if v.kind == MetaTime {
		return v.t.Format(time.RFC3339Nano)
	}
	return v.str
}

type metaValueJSON struct {
	String *string    `json:"s,omitempty"`
	Time   *time.Time `json:"t,omitempty"`
}

func (v MetaValue) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case MetaTime:
		t := v.t
		return json.Marshal(metaValueJSON{Time: &t})
	case MetaString:
		s := v.str
		return json.Marshal(metaValueJSON{String: &s})
	default:
		return nil, fmt.Errorf("metadata value has no kind")
	}
}

func (v *MetaValue) UnmarshalJSON(b []byte) error {
	var raw metaValueJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	switch {
	case raw.Time != nil:
		*v = TimeValue(*raw.Time)
	case raw.String != nil:
		*v = StringValue(*raw.String)
	default:
		return fmt.Errorf("metadata value must carry s or t")
	}
	return nil
}

// Metadata is a flat audit map. Writers only ever add or overwrite keys.
type Metadata map[string]MetaValue

// Merge returns a copy of m with every entry of add applied on top.
func (m Metadata) Merge(add Metadata) Metadata {
	out := make(Metadata, len(m)+len(add))
	maps.Copy(out, m)
	maps.Copy(out, add)
	return out
}

func (m Metadata) Clone() Metadata {
	if m == nil {
		return nil
	}
	return maps.Clone(m)
}

// Flatten renders values as strings, for transport layers that do not need kinds.
func (m Metadata) Flatten() map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v.String()
	}
	return out
}
