package mutate

import (
	"errors"
	"slices"
	"testing"

	"devon-cli/internal/editsession"
	"devon-cli/internal/model"
)

func field(t *testing.T, name string) editsession.Field {
	t.Helper()
	for _, f := range slices.Concat(editsession.AuthorTable.Fields, editsession.RoleTable.Fields, editsession.EmployeeTable.Fields) {
		if f.Name == name {
			return f
		}
	}
	t.Fatalf("no field %q", name)
	return editsession.Field{}
}

func TestParseValue(t *testing.T) {
	cases := []struct {
		field string
		raw   string
		want  any
	}{
		{"is_published", "yes", true},
		{"is_published", "0", false},
		{"full_name", "  Rumi  ", "Rumi"},
		{"biography_md", "  # Indented\n", "  # Indented\n"},
		{"birth_year", " 1207 ", "1207"},
		{"birth_year", "", ""},
		{"role_id", "#4", int64(4)},
		{"role_id", "", int64(0)},
		{"password", " spaced secret ", " spaced secret "},
	}
	for _, tc := range cases {
		got, err := ParseValue(field(t, tc.field), tc.raw)
		if err != nil {
			t.Fatalf("ParseValue(%s, %q): %v", tc.field, tc.raw, err)
		}
		if got != tc.want {
			t.Fatalf("ParseValue(%s, %q) = %#v, want %#v", tc.field, tc.raw, got, tc.want)
		}
	}

	ids, err := ParseValue(field(t, "employee_ids"), "3, 1 #2")
	if err != nil || !slices.Equal(ids.([]int64), []int64{3, 1, 2}) {
		t.Fatalf("employee_ids = %v, %v", ids, err)
	}
}

func TestParseValue_Rejects(t *testing.T) {
	cases := []struct{ field, raw string }{
		{"is_published", "maybe"},
		{"birth_year", "-5"},
		{"birth_year", "soon"},
		{"role_id", "admin"},
		{"employee_ids", "1,x"},
		{"permissions", "authors:crux"},
		{"permissions", "books:r"},
	}
	for _, tc := range cases {
		_, err := ParseValue(field(t, tc.field), tc.raw)
		var fe FieldError
		if !errors.As(err, &fe) || fe.Field != tc.field {
			t.Fatalf("ParseValue(%s, %q) err = %v, want FieldError", tc.field, tc.raw, err)
		}
	}
}

func TestParsePermissions_Forms(t *testing.T) {
	letters, err := ParsePermissions("roles:crud employees=r")
	if err != nil {
		t.Fatalf("letters: %v", err)
	}
	if got := FormatPermissions(letters); got != "authors:---- poems:---- employees:-r-- roles:crud" {
		t.Fatalf("letters form = %q", got)
	}

	rows, err := ParsePermissions(`[{"module":"poems","can_read":true,"can_update":true}]`)
	if err != nil {
		t.Fatalf("json: %v", err)
	}
	if len(rows) != len(model.Modules) {
		t.Fatalf("json form should fill every module, got %d rows", len(rows))
	}
	if got := FormatPermissions(rows); got != "authors:---- poems:-ru- employees:---- roles:----" {
		t.Fatalf("json form = %q", got)
	}

	if _, err := ParsePermissions(`[{"module":"books","can_read":true}]`); err == nil {
		t.Fatalf("unknown module accepted")
	}
	empty, err := ParsePermissions("")
	if err != nil || FormatPermissions(empty) != "authors:---- poems:---- employees:---- roles:----" {
		t.Fatalf("empty = %q, %v", FormatPermissions(empty), err)
	}
}

func TestParseAssignment(t *testing.T) {
	f, v, err := ParseAssignment("title=a=b")
	if err != nil || f != "title" || v != "a=b" {
		t.Fatalf("ParseAssignment = %q %q %v", f, v, err)
	}
	if _, _, err := ParseAssignment("=x"); err == nil {
		t.Fatalf("empty field accepted")
	}
	if _, _, err := ParseAssignment("title"); err == nil {
		t.Fatalf("missing = accepted")
	}
}

func TestDisplay(t *testing.T) {
	opts := []Option{{ID: 2, Label: "Editor"}}
	cases := []struct {
		field string
		v     any
		want  string
	}{
		{"role_id", int64(2), "Editor (#2)"},
		{"role_id", int64(9), "#9"},
		{"role_id", int64(0), "-"},
		{"employee_ids", []int64{}, "-"},
		{"employee_ids", []int64{2, 5}, "Editor (#2), #5"},
		{"is_active", true, "yes"},
		{"password", "secret-123", "********"},
		{"password", "", ""},
		{"full_name", "Rumi", "Rumi"},
	}
	for _, tc := range cases {
		if got := Display(field(t, tc.field), tc.v, opts); got != tc.want {
			t.Fatalf("Display(%s, %v) = %q, want %q", tc.field, tc.v, got, tc.want)
		}
	}
}

func TestFormatValue_RoundTrips(t *testing.T) {
	cases := []struct {
		field string
		v     any
	}{
		{"is_published", true},
		{"role_id", int64(4)},
		{"employee_ids", []int64{1, 3}},
		{"full_name", "Rumi"},
	}
	for _, tc := range cases {
		f := field(t, tc.field)
		back, err := ParseValue(f, FormatValue(f, tc.v))
		if err != nil {
			t.Fatalf("ParseValue(FormatValue(%v)): %v", tc.v, err)
		}
		if !f.Type.Equal(back, tc.v) {
			t.Fatalf("%s: %v -> %q -> %v", tc.field, tc.v, FormatValue(f, tc.v), back)
		}
	}
	if got := FormatValue(field(t, "password"), "secret-123"); got != "" {
		t.Fatalf("secret prefilled with %q", got)
	}
}
