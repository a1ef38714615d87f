package editsession

import (
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"devon-cli/internal/model"
)

// FieldType is the declared comparison semantics of one form field: how a
// server or user value is normalized into draft form, and when two draft
// values count as equal.
//
// Draft representations:
//   - Text, LongText, Year, Secret: string
//   - Ref: int64 (0 means unset)
//   - Bool: bool
//   - RefSet: sorted, de-duplicated []int64
//   - Permissions: []model.PermissionRow, one row per module in model.Modules order
type FieldType struct {
	Name      string
	Normalize func(v any) any
	Equal     func(a, b any) bool
	IsEmpty   func(v any) bool
}

var (
	Text = FieldType{
		Name:      "text",
		Normalize: normalizeString,
		Equal: func(a, b any) bool {
			return strings.TrimSpace(asString(a)) == strings.TrimSpace(asString(b))
		},
		IsEmpty: emptyString,
	}

	LongText = FieldType{
		Name:      "long-text",
		Normalize: normalizeString,
		Equal: func(a, b any) bool {
			return normalizeNewlines(asString(a)) == normalizeNewlines(asString(b))
		},
		IsEmpty: emptyString,
	}

	// Year is edited as text and compared numerically when both sides parse.
	Year = FieldType{
		Name:      "year",
		Normalize: normalizeString,
		Equal: func(a, b any) bool {
			as, bs := strings.TrimSpace(asString(a)), strings.TrimSpace(asString(b))
			if as == bs {
				return true
			}
			ai, errA := strconv.Atoi(as)
			bi, errB := strconv.Atoi(bs)
			return errA == nil && errB == nil && ai == bi
		},
		IsEmpty: emptyString,
	}

	Ref = FieldType{
		Name:      "ref",
		Normalize: func(v any) any { return asInt64(v) },
		Equal:     func(a, b any) bool { return asInt64(a) == asInt64(b) },
		IsEmpty:   func(v any) bool { return asInt64(v) <= 0 },
	}

	Bool = FieldType{
		Name:      "bool",
		Normalize: func(v any) any { return asBool(v) },
		Equal:     func(a, b any) bool { return asBool(a) == asBool(b) },
		IsEmpty:   func(any) bool { return false },
	}

	RefSet = FieldType{
		Name:      "ref-set",
		Normalize: func(v any) any { return asIDSet(v) },
		Equal:     func(a, b any) bool { return slices.Equal(asIDSet(a), asIDSet(b)) },
		IsEmpty:   func(v any) bool { return len(asIDSet(v)) == 0 },
	}

	Permissions = FieldType{
		Name:      "permissions",
		Normalize: func(v any) any { return asPermissionRows(v) },
		Equal:     func(a, b any) bool { return slices.Equal(asPermissionRows(a), asPermissionRows(b)) },
		IsEmpty:   func(any) bool { return false },
	}

	// Secret values are never seeded from the server and never persisted as drafts.
	Secret = FieldType{
		Name:      "secret",
		Normalize: func(v any) any { return asString(v) },
		Equal:     func(a, b any) bool { return asString(a) == asString(b) },
		IsEmpty:   func(v any) bool { return asString(v) == "" },
	}
)

func normalizeString(v any) any { return asString(v) }

func emptyString(v any) bool { return strings.TrimSpace(asString(v)) == "" }

func normalizeNewlines(s string) string {
	return strings.ReplaceAll(s, "\r\n", "\n")
}

func asString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case *string:
		if t == nil {
			return ""
		}
		return *t
	case int:
		return strconv.Itoa(t)
	case *int:
		if t == nil {
			return ""
		}
		return strconv.Itoa(*t)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprint(t)
	}
}

func asInt64(v any) int64 {
	switch t := v.(type) {
	case nil:
		return 0
	case int64:
		return t
	case *int64:
		if t == nil {
			return 0
		}
		return *t
	case int:
		return int64(t)
	case float64:
		return int64(t)
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(t), 10, 64)
		if err != nil {
			return 0
		}
		return n
	}
	return 0
}

func asBool(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case *bool:
		return t != nil && *t
	case string:
		b, _ := strconv.ParseBool(strings.TrimSpace(t))
		return b
	}
	return false
}

func asIDSet(v any) []int64 {
	var ids []int64
	switch t := v.(type) {
	case []int64:
		ids = append(ids, t...)
	case []int:
		for _, x := range t {
			ids = append(ids, int64(x))
		}
	case []model.EmployeeRef:
		for _, x := range t {
			ids = append(ids, x.ID)
		}
	case string:
		for _, part := range strings.FieldsFunc(t, func(r rune) bool { return r == ',' || r == ' ' }) {
			if n := asInt64(part); n > 0 {
				ids = append(ids, n)
			}
		}
	}
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if id > 0 {
			out = append(out, id)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

func asPermissionRows(v any) []model.PermissionRow {
	byModule := map[model.Module]model.PermissionRow{}
	switch t := v.(type) {
	case []model.PermissionRow:
		for _, r := range t {
			byModule[r.Module] = r
		}
	case model.PermissionMatrix:
		for m, c := range t {
			byModule[m] = model.PermissionRow{Module: m, CanCreate: c.Create, CanRead: c.Read, CanUpdate: c.Update, CanDelete: c.Delete}
		}
	}
	out := make([]model.PermissionRow, 0, len(model.Modules))
	for _, m := range model.Modules {
		r := byModule[m]
		r.Module = m
		out = append(out, r)
	}
	return out
}

// wireValue converts a draft value to its JSON request representation.
func wireValue(f Field, v any) any {
	switch f.Type.Name {
	case Year.Name:
		s := strings.TrimSpace(asString(v))
		if s == "" {
			return nil
		}
		if n, err := strconv.Atoi(s); err == nil {
			return n
		}
		return s
	case Ref.Name:
		if id := asInt64(v); id > 0 {
			return id
		}
		return nil
	case Bool.Name:
		return asBool(v)
	case RefSet.Name:
		return asIDSet(v)
	case Permissions.Name:
		return asPermissionRows(v)
	case Text.Name:
		return strings.TrimSpace(asString(v))
	default:
		return asString(v)
	}
}

// formValue converts a draft value to a multipart form field.
func formValue(f Field, v any) string {
	switch f.Type.Name {
	case RefSet.Name, Permissions.Name:
		b, _ := json.Marshal(wireValue(f, v))
		return string(b)
	case Ref.Name:
		if id := asInt64(v); id > 0 {
			return strconv.FormatInt(id, 10)
		}
		return ""
	case Bool.Name:
		return strconv.FormatBool(asBool(v))
	case Text.Name, Year.Name:
		return strings.TrimSpace(asString(v))
	default:
		return asString(v)
	}
}
