package editor

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"testing"
)

func TestSplitShellWords(t *testing.T) {
	cases := []struct {
		in   string
		want []string
	}{
		{"vim", []string{"vim"}},
		{"  code --wait  ", []string{"code", "--wait"}},
		{`emacs -nw "my file"`, []string{"emacs", "-nw", "my file"}},
		{`sh -c 'echo "$1"'`, []string{"sh", "-c", `echo "$1"`}},
		{`a\ b c`, []string{"a b", "c"}},
		{`x ""`, []string{"x", ""}},
		{"", nil},
	}
	for _, tc := range cases {
		if got := SplitShellWords(tc.in); !slices.Equal(got, tc.want) {
			t.Fatalf("SplitShellWords(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestName_PrefersVisual(t *testing.T) {
	t.Setenv("VISUAL", "nano")
	t.Setenv("EDITOR", "vim")
	if got := Name(); got != "nano" {
		t.Fatalf("Name = %q", got)
	}
	t.Setenv("VISUAL", " ")
	if got := Name(); got != "vim" {
		t.Fatalf("Name = %q", got)
	}
	t.Setenv("EDITOR", "")
	if got := Name(); got != "vi" {
		t.Fatalf("Name = %q", got)
	}
}

func TestFinish_ReadsAndRemoves(t *testing.T) {
	e, err := Prepare("before", ".md")
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if err := os.WriteFile(e.Path(), []byte("after\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, changed, err := e.Finish(nil)
	if err != nil || got != "after\n" || !changed {
		t.Fatalf("Finish = %q %v %v", got, changed, err)
	}
	if _, err := os.Stat(e.Path()); !os.IsNotExist(err) {
		t.Fatalf("temp file kept: %v", err)
	}
}

func TestFinish_EditorFailureKeepsText(t *testing.T) {
	e, err := Prepare("keep me", ".md")
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	got, changed, err := e.Finish(errors.New("exit status 1"))
	if err == nil || got != "keep me" || changed {
		t.Fatalf("Finish = %q %v %v", got, changed, err)
	}
}

func TestEditText_RunsEditor(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("needs a POSIX shell")
	}
	script := filepath.Join(t.TempDir(), "ed.sh")
	if err := os.WriteFile(script, []byte("#!/bin/sh\nprintf 'Бахор\\n' >> \"$1\"\n"), 0o700); err != nil {
		t.Fatalf("write script: %v", err)
	}
	t.Setenv("VISUAL", script)

	got, changed, err := EditText(context.Background(), "title\n", ".md", nil, nil, nil)
	if err != nil {
		t.Fatalf("EditText: %v", err)
	}
	if got != "title\nБахор\n" || !changed {
		t.Fatalf("EditText = %q changed=%v", got, changed)
	}
}
