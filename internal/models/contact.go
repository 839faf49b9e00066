package models

import (
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// IDKey is the serialized key carrying a contact's identity.
const IDKey = "id"

// SentinelName marks a freshly added contact that still needs filling in.
const SentinelName = "?"

// Fields is the serialized form of a contact. Single-valued properties hold a
// string, multi-valued properties hold a []string.
type Fields map[string]any

// Clone returns a deep copy of f.
func (f Fields) Clone() Fields {
	if f == nil {
		return nil
	}
	out := make(Fields, len(f))
	for k, v := range f {
		if list, ok := v.([]string); ok {
			out[k] = slices.Clone(list)
			continue
		}
		out[k] = v
	}
	return out
}

type Contact struct {
	id     string
	single map[string]string
	multi  map[string][]string

	// keys outside the schema, kept so the remote gets back what it sent
	extra map[string]any
}

// NewContact builds a contact with the given id from serialized fields. An
// "id" entry in fields is ignored.
func NewContact(id string, fields Fields) *Contact {
	c := &Contact{
		id:     id,
		single: make(map[string]string),
		multi:  make(map[string][]string),
		extra:  make(map[string]any),
	}
	c.Update(fields)
	return c
}

// FromPayload builds a contact from a remote record, keeping its id or
// generating one when the payload has none.
func FromPayload(fields Fields) *Contact {
	id, _ := coerceString(fields[IDKey])
	if id == "" {
		id = NewID()
	}
	return NewContact(id, fields)
}

func NewID() string {
	return uuid.New().String()
}

func (c *Contact) ID() string {
	return c.id
}

// Serialize exports every present field plus the id. The result shares no
// memory with the contact.
func (c *Contact) Serialize() Fields {
	out := make(Fields, len(c.single)+len(c.multi)+len(c.extra)+1)
	maps.Copy(out, c.extra)
	for k, v := range c.single {
		out[k] = v
	}
	for k, v := range c.multi {
		out[k] = slices.Clone(v)
	}
	out[IDKey] = c.id
	return out
}

// Update merges partial into the contact. Keys not present in partial are left
// alone, a nil value removes the field and the id is never changed.
func (c *Contact) Update(partial Fields) {
	for key, value := range partial {
		if key == IDKey {
			continue
		}
		if value == nil {
			delete(c.single, key)
			delete(c.multi, key)
			delete(c.extra, key)
			continue
		}

		switch {
		case IsSingle(key):
			if s, ok := coerceString(value); ok {
				c.single[key] = s
			}
		case IsMulti(key):
			if list, ok := coerceList(value); ok {
				c.multi[key] = list
			}
		default:
			c.extra[key] = value
		}
	}
}

// Get returns the current value for key, or false when it is not set.
func (c *Contact) Get(key string) (any, bool) {
	if key == IDKey {
		return c.id, true
	}
	if v, ok := c.single[key]; ok {
		return v, true
	}
	if v, ok := c.multi[key]; ok {
		return slices.Clone(v), true
	}
	v, ok := c.extra[key]
	return v, ok
}

// String returns a single-valued property, or "" when unset.
func (c *Contact) String(key string) string {
	return c.single[key]
}

// List returns a copy of a multi-valued property.
func (c *Contact) List(key string) []string {
	return slices.Clone(c.multi[key])
}

func (c *Contact) Name() string {
	return c.single["name"]
}

func coerceString(v any) (string, bool) {
	switch t := v.(type) {
	case nil:
		return "", false
	case string:
		return t, true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case int:
		return strconv.Itoa(t), true
	case int64:
		return strconv.FormatInt(t, 10), true
	case bool:
		return strconv.FormatBool(t), true
	case fmt.Stringer:
		return t.String(), true
	case []string:
		return strings.Join(t, ", "), true
	case []any:
		parts := make([]string, 0, len(t))
		for _, item := range t {
			if s, ok := coerceString(item); ok {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ", "), true
	default:
		return fmt.Sprint(t), true
	}
}

func coerceList(v any) ([]string, bool) {
	switch t := v.(type) {
	case nil:
		return nil, false
	case []string:
		return slices.Clone(t), true
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			s, _ := coerceString(item)
			out = append(out, s)
		}
		return out, true
	default:
		s, ok := coerceString(t)
		if !ok {
			return nil, false
		}
		return []string{s}, true
	}
}
