package editsession

import (
	"maps"
	"slices"

	"devon-cli/internal/model"
)

// Values is a draft or snapshot keyed by field name.
type Values map[string]any

func (v Values) Clone() Values {
	out := make(Values, len(v))
	for k, x := range v {
		switch t := x.(type) {
		case []int64:
			out[k] = slices.Clone(t)
		case []model.PermissionRow:
			out[k] = slices.Clone(t)
		default:
			out[k] = x
		}
	}
	return out
}

func (v Values) String(name string) string { return asString(v[name]) }
func (v Values) Int64(name string) int64   { return asInt64(v[name]) }
func (v Values) Bool(name string) bool     { return asBool(v[name]) }

type Field struct {
	Name     string
	Label    string
	Type     FieldType
	Required bool
	// Draft fields are written through to the draft store on every change.
	Draft bool
	// CreateOnly fields are shown, validated and sent only while creating.
	CreateOnly bool
}

// Table declares the editable fields of one entity kind and how to read
// them out of a server snapshot.
type Table[T any] struct {
	Kind   model.Kind
	Fields []Field
	// Defaults seed the empty form in create mode.
	Defaults Values
	Extract  func(T) Values
	ID       func(T) int64
	// Check runs cross-field validation after the required checks pass.
	Check func(v Values, creating bool) error
	// Attachment names the multipart file field, empty when unsupported.
	Attachment string
}

func (t Table[T]) Field(name string) (Field, bool) {
	for _, f := range t.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Active returns the fields that participate in the given mode.
func (t Table[T]) Active(creating bool) []Field {
	out := make([]Field, 0, len(t.Fields))
	for _, f := range t.Fields {
		if f.CreateOnly && !creating {
			continue
		}
		out = append(out, f)
	}
	return out
}

// Normalize coerces every declared field of v; undeclared keys are dropped.
func (t Table[T]) Normalize(v Values) Values {
	out := make(Values, len(t.Fields))
	for _, f := range t.Fields {
		out[f.Name] = f.Type.Normalize(v[f.Name])
	}
	return out
}

// Snapshot extracts and normalizes the editable values of a server entity.
func (t Table[T]) Snapshot(entity T) Values {
	return t.Normalize(t.Extract(entity))
}

// Empty is the create-mode snapshot: zero values overlaid with Defaults.
func (t Table[T]) Empty() Values {
	v := Values{}
	maps.Copy(v, t.Defaults)
	return t.Normalize(v)
}

// Changed lists the fields whose values differ, in declaration order.
func (t Table[T]) Changed(a, b Values) []string {
	var out []string
	for _, f := range t.Fields {
		if !f.Type.Equal(a[f.Name], b[f.Name]) {
			out = append(out, f.Name)
		}
	}
	return out
}

func (t Table[T]) Equal(a, b Values) bool {
	return len(t.Changed(a, b)) == 0
}
