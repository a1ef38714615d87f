package mutate

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"devon-cli/internal/editsession"
	"devon-cli/internal/model"
)

// Option is one selectable value of a reference field.
type Option struct {
	ID    int64  `json:"id"`
	Label string `json:"label"`
}

func optionLabel(opts []Option, id int64) string {
	for _, o := range opts {
		if o.ID == id {
			return fmt.Sprintf("%s (#%d)", o.Label, id)
		}
	}
	return fmt.Sprintf("#%d", id)
}

// ParseAssignment splits "field=value".
func ParseAssignment(s string) (field, value string, err error) {
	field, value, ok := strings.Cut(s, "=")
	field = strings.TrimSpace(field)
	if !ok || field == "" {
		return "", "", fmt.Errorf("expected field=value, got %q", s)
	}
	return field, value, nil
}

// ParseValue converts raw user text into the draft value of f.
func ParseValue(f editsession.Field, raw string) (any, error) {
	s := strings.TrimSpace(raw)
	switch f.Type.Name {
	case editsession.Bool.Name:
		switch strings.ToLower(s) {
		case "yes", "y", "on":
			return true, nil
		case "no", "n", "off":
			return false, nil
		}
		b, err := strconv.ParseBool(s)
		if err != nil {
			return nil, FieldError{Field: f.Name, Value: raw, Msg: "expected true or false"}
		}
		return b, nil
	case editsession.Ref.Name:
		if s == "" {
			return int64(0), nil
		}
		id, err := strconv.ParseInt(strings.TrimPrefix(s, "#"), 10, 64)
		if err != nil || id < 0 {
			return nil, FieldError{Field: f.Name, Value: raw, Msg: "expected an id"}
		}
		return id, nil
	case editsession.RefSet.Name:
		var ids []int64
		for _, part := range strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ' ' }) {
			id, err := strconv.ParseInt(strings.TrimPrefix(part, "#"), 10, 64)
			if err != nil || id <= 0 {
				return nil, FieldError{Field: f.Name, Value: raw, Msg: "expected comma-separated ids"}
			}
			ids = append(ids, id)
		}
		return ids, nil
	case editsession.Permissions.Name:
		rows, err := ParsePermissions(s)
		if err != nil {
			return nil, FieldError{Field: f.Name, Value: raw, Msg: err.Error()}
		}
		return rows, nil
	case editsession.Year.Name:
		if s == "" {
			return "", nil
		}
		if n, err := strconv.Atoi(s); err != nil || n <= 0 {
			return nil, FieldError{Field: f.Name, Value: raw, Msg: "expected a year"}
		}
		return s, nil
	case editsession.LongText.Name, editsession.Secret.Name:
		return raw, nil
	default:
		return s, nil
	}
}

var actionLetters = []struct {
	letter byte
	action model.Action
}{
	{'c', model.ActionCreate},
	{'r', model.ActionRead},
	{'u', model.ActionUpdate},
	{'d', model.ActionDelete},
}

// FormatPermissions renders rows as "authors:crud poems:-r-- ...".
func FormatPermissions(rows []model.PermissionRow) string {
	parts := make([]string, 0, len(rows))
	for _, r := range rows {
		b := make([]byte, 0, 4)
		for _, al := range actionLetters {
			if r.Get(al.action) {
				b = append(b, al.letter)
			} else {
				b = append(b, '-')
			}
		}
		parts = append(parts, string(r.Module)+":"+string(b))
	}
	return strings.Join(parts, " ")
}

// ParsePermissions accepts the FormatPermissions form, comma- or
// space-separated, or the JSON row array the API returns. Modules that are
// not mentioned get no permissions.
func ParsePermissions(s string) ([]model.PermissionRow, error) {
	s = strings.TrimSpace(s)
	rows := model.DefaultPermissionRows()
	if strings.HasPrefix(s, "[") {
		var in []model.PermissionRow
		if err := json.Unmarshal([]byte(s), &in); err != nil {
			return nil, err
		}
		for _, r := range in {
			if _, ok := model.ParseModule(string(r.Module)); !ok {
				return nil, fmt.Errorf("unknown module %q", r.Module)
			}
			for i := range rows {
				if rows[i].Module == r.Module {
					rows[i] = r
				}
			}
		}
		return rows, nil
	}
	for _, part := range strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ' ' }) {
		name, letters, ok := strings.Cut(part, ":")
		if !ok {
			name, letters, ok = strings.Cut(part, "=")
		}
		mod, known := model.ParseModule(name)
		if !ok || !known {
			return nil, fmt.Errorf("expected module:crud, got %q", part)
		}
		for i := range rows {
			if rows[i].Module != mod {
				continue
			}
			for _, ch := range strings.ToLower(letters) {
				switch ch {
				case '-':
				case 'c', 'r', 'u', 'd':
					for _, al := range actionLetters {
						if rune(al.letter) == ch {
							rows[i].Set(al.action, true)
						}
					}
				default:
					return nil, fmt.Errorf("unknown action %q in %q", ch, part)
				}
			}
		}
	}
	return rows, nil
}

// Display renders a normalized draft value for humans.
func Display(f editsession.Field, v any, opts []Option) string {
	switch f.Type.Name {
	case editsession.Bool.Name:
		if b, _ := v.(bool); b {
			return "yes"
		}
		return "no"
	case editsession.Ref.Name:
		id, _ := v.(int64)
		if id <= 0 {
			return "-"
		}
		return optionLabel(opts, id)
	case editsession.RefSet.Name:
		ids, _ := v.([]int64)
		if len(ids) == 0 {
			return "-"
		}
		labels := make([]string, 0, len(ids))
		for _, id := range ids {
			labels = append(labels, optionLabel(opts, id))
		}
		return strings.Join(labels, ", ")
	case editsession.Permissions.Name:
		rows, _ := v.([]model.PermissionRow)
		return FormatPermissions(rows)
	case editsession.Secret.Name:
		if s, _ := v.(string); s != "" {
			return strings.Repeat("*", 8)
		}
		return ""
	}
	if v == nil {
		return ""
	}
	return fmt.Sprint(v)
}

// FormatValue renders a draft value in the text form ParseValue accepts,
// for prefilling an input.
func FormatValue(f editsession.Field, v any) string {
	switch f.Type.Name {
	case editsession.Bool.Name:
		if b, _ := v.(bool); b {
			return "yes"
		}
		return "no"
	case editsession.Ref.Name:
		if id, _ := v.(int64); id > 0 {
			return strconv.FormatInt(id, 10)
		}
		return ""
	case editsession.RefSet.Name:
		ids, _ := v.([]int64)
		parts := make([]string, 0, len(ids))
		for _, id := range ids {
			parts = append(parts, strconv.FormatInt(id, 10))
		}
		return strings.Join(parts, ",")
	case editsession.Permissions.Name:
		rows, _ := v.([]model.PermissionRow)
		return FormatPermissions(rows)
	case editsession.Secret.Name:
		return ""
	}
	if v == nil {
		return ""
	}
	return fmt.Sprint(v)
}
