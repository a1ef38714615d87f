package main

import (
	"reflect"
	"testing"
)

func TestRewriteDirectLookupArgs(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{
			name: "no args",
			in:   []string{"devon"},
			want: []string{"devon"},
		},
		{
			name: "direct poem first token",
			in:   []string{"devon", "poem:12"},
			want: []string{"devon", "poems", "show", "poem:12"},
		},
		{
			name: "direct author with slug",
			in:   []string{"devon", "author:7-rumi"},
			want: []string{"devon", "authors", "show", "author:7-rumi"},
		},
		{
			name: "after value flag",
			in:   []string{"devon", "--api", "http://localhost:8000", "role:3"},
			want: []string{"devon", "--api", "http://localhost:8000", "roles", "show", "role:3"},
		},
		{
			name: "after equals flag",
			in:   []string{"devon", "--format=table", "employee:4"},
			want: []string{"devon", "--format=table", "employees", "show", "employee:4"},
		},
		{
			name: "after bool flag",
			in:   []string{"devon", "--pretty", "poem:12"},
			want: []string{"devon", "--pretty", "poems", "show", "poem:12"},
		},
		{
			name: "after double dash",
			in:   []string{"devon", "--data-dir", "./tmp", "--", "poem:12"},
			want: []string{"devon", "--data-dir", "./tmp", "--", "poems", "show", "poem:12"},
		},
		{
			name: "normal subcommand not rewritten",
			in:   []string{"devon", "poems", "show", "12"},
			want: []string{"devon", "poems", "show", "12"},
		},
		{
			name: "unknown prefix not rewritten",
			in:   []string{"devon", "book:12"},
			want: []string{"devon", "book:12"},
		},
		{
			name: "empty reference not rewritten",
			in:   []string{"devon", "poem:"},
			want: []string{"devon", "poem:"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := rewriteDirectLookupArgs(tt.in)
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("rewriteDirectLookupArgs:\n got: %#v\nwant: %#v", got, tt.want)
			}
		})
	}
}
