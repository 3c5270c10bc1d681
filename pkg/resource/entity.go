package resource

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// DefaultIDField is the payload key holding an entity's identifier.
const DefaultIDField = "id"

// ErrMissingID is returned when a payload carries no usable identifier.
var ErrMissingID = errors.New("entity has no id")

// ID identifies an entity. The API assigns it on create. It may arrive as a
// JSON number or a JSON string and is encoded back in the same form.
type ID struct {
	value   string
	numeric bool
}

// IntID returns a numeric ID.
func IntID(n int64) ID {
	return ID{value: strconv.FormatInt(n, 10), numeric: true}
}

// StringID returns a string ID.
func StringID(s string) ID {
	return ID{value: s}
}

// ParseID interprets user input such as a CLI argument. Decimal integers
// become numeric IDs, anything else a string ID.
func ParseID(s string) ID {
	s = strings.TrimSpace(s)
	if _, err := strconv.ParseInt(s, 10, 64); err == nil {
		return ID{value: s, numeric: true}
	}
	return ID{value: s}
}

// String returns the textual form of the ID.
func (id ID) String() string { return id.value }

// IsZero reports whether the ID is unset.
func (id ID) IsZero() bool { return id.value == "" }

// Numeric reports whether the ID is encoded as a JSON number.
func (id ID) Numeric() bool { return id.numeric }

// Equal compares IDs by value, so IntID(1) equals StringID("1").
func (id ID) Equal(other ID) bool { return id.value == other.value }

// Value returns the ID as a JSON-compatible value (float64 or string).
func (id ID) Value() any {
	if id.numeric {
		if f, err := strconv.ParseFloat(id.value, 64); err == nil {
			return f
		}
	}
	return id.value
}

// MarshalJSON encodes the ID as a number or string.
func (id ID) MarshalJSON() ([]byte, error) {
	if id.numeric {
		return []byte(id.value), nil
	}
	return json.Marshal(id.value)
}

// UnmarshalJSON accepts a JSON number or string.
func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*id = ID{}
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = StringID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("invalid id %s: %w", b, err)
	}
	*id = ID{value: n.String(), numeric: true}
	return nil
}

// IDFromValue converts a decoded JSON value into an ID.
func IDFromValue(v any) (ID, bool) {
	switch t := v.(type) {
	case string:
		if t == "" {
			return ID{}, false
		}
		return StringID(t), true
	case float64:
		if t == math.Trunc(t) && !math.IsInf(t, 0) {
			return IntID(int64(t)), true
		}
		return ID{value: strconv.FormatFloat(t, 'f', -1, 64), numeric: true}, true
	case json.Number:
		return ID{value: t.String(), numeric: true}, true
	case int:
		return IntID(int64(t)), true
	case int64:
		return IntID(t), true
	}
	return ID{}, false
}

// Entity is one record of a resource. Fields is opaque to the store.
type Entity struct {
	ID     ID
	Fields map[string]any
}

// NewEntity builds an entity from an ID and its fields.
func NewEntity(id ID, fields map[string]any) Entity {
	if fields == nil {
		fields = make(map[string]any)
	}
	return Entity{ID: id, Fields: fields}
}

// Get returns a single field.
func (e Entity) Get(key string) (any, bool) {
	v, ok := e.Fields[key]
	return v, ok
}

// String returns a field as a string, or "" when absent.
func (e Entity) String(key string) string {
	v, ok := e.Fields[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// Bool reports whether a field holds a truthy flag.
func (e Entity) Bool(key string) bool {
	switch v := e.Fields[key].(type) {
	case bool:
		return v
	case float64:
		return v != 0
	case string:
		b, _ := strconv.ParseBool(v)
		return b
	}
	return false
}

// Clone returns a deep copy.
func (e Entity) Clone() Entity {
	fields := make(map[string]any, len(e.Fields))
	for k, v := range e.Fields {
		fields[k] = cloneValue(v)
	}
	return Entity{ID: e.ID, Fields: fields}
}

// Map flattens the entity into a JSON-compatible map keyed by idField.
func (e Entity) Map(idField string) map[string]any {
	if idField == "" {
		idField = DefaultIDField
	}
	out := make(map[string]any, len(e.Fields)+1)
	for k, v := range e.Fields {
		out[k] = cloneValue(v)
	}
	out[idField] = e.ID.Value()
	return out
}

// MarshalJSON flattens fields and id into a single object.
func (e Entity) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(e.Fields)+1)
	for k, v := range e.Fields {
		out[k] = v
	}
	out[DefaultIDField] = e.ID
	return json.Marshal(out)
}

// UnmarshalJSON decodes a flat object with an "id" key.
func (e *Entity) UnmarshalJSON(b []byte) error {
	decoded, err := Decode(b, DefaultIDField)
	if err != nil {
		return err
	}
	*e = decoded
	return nil
}

// Decode parses a JSON object into an Entity, extracting idField.
func Decode(raw []byte, idField string) (Entity, error) {
	if idField == "" {
		idField = DefaultIDField
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return Entity{}, fmt.Errorf("decode entity: %w", err)
	}
	rawID, ok := obj[idField]
	if !ok {
		return Entity{}, ErrMissingID
	}
	var id ID
	if err := id.UnmarshalJSON(rawID); err != nil {
		return Entity{}, fmt.Errorf("decode entity: %w", err)
	}
	if id.IsZero() {
		return Entity{}, ErrMissingID
	}
	fields := make(map[string]any, len(obj))
	for k, v := range obj {
		if k == idField {
			continue
		}
		var val any
		if err := json.Unmarshal(v, &val); err != nil {
			return Entity{}, fmt.Errorf("decode field %q: %w", k, err)
		}
		fields[k] = val
	}
	return Entity{ID: id, Fields: fields}, nil
}

// DecodeList parses a JSON array of objects into entities.
func DecodeList(raw []byte, idField string) ([]Entity, error) {
	var elems []json.RawMessage
	if err := json.Unmarshal(raw, &elems); err != nil {
		return nil, fmt.Errorf("decode list: %w", err)
	}
	items := make([]Entity, 0, len(elems))
	for i, el := range elems {
		e, err := Decode(el, idField)
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		items = append(items, e)
	}
	return items, nil
}

// FromMap converts an already decoded object into an Entity.
func FromMap(m map[string]any, idField string) (Entity, error) {
	if idField == "" {
		idField = DefaultIDField
	}
	id, ok := IDFromValue(m[idField])
	if !ok {
		return Entity{}, ErrMissingID
	}
	fields := make(map[string]any, len(m))
	for k, v := range m {
		if k == idField {
			continue
		}
		fields[k] = cloneValue(v)
	}
	return Entity{ID: id, Fields: fields}, nil
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, vv := range t {
			out[k] = cloneValue(vv)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, vv := range t {
			out[i] = cloneValue(vv)
		}
		return out
	default:
		return v
	}
}
