// Package editor hands long-form text to the operator's $VISUAL or $EDITOR.
package editor

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"unicode"
)

const fallback = "vi"

// Name returns the configured editor command line.
func Name() string {
	for _, env := range []string{"VISUAL", "EDITOR"} {
		if v := strings.TrimSpace(os.Getenv(env)); v != "" {
			return v
		}
	}
	return fallback
}

// SplitShellWords splits a command line into argv. Single quotes, double
// quotes and backslash escapes outside single quotes are honored.
func SplitShellWords(s string) []string {
	var (
		out    []string
		word   strings.Builder
		quote  rune
		escape bool
		inWord bool
	)
	for _, r := range s {
		switch {
		case escape:
			word.WriteRune(r)
			escape = false
		case r == '\\' && quote != '\'':
			escape, inWord = true, true
		case quote != 0 && r == quote:
			quote = 0
		case quote == 0 && (r == '\'' || r == '"'):
			quote, inWord = r, true
		case quote == 0 && unicode.IsSpace(r):
			if inWord {
				out = append(out, word.String())
				word.Reset()
				inWord = false
			}
		default:
			word.WriteRune(r)
			inWord = true
		}
	}
	if inWord {
		out = append(out, word.String())
	}
	return out
}

// Edit is one pending round trip through the editor. The text lives in a
// temporary file until Finish is called.
type Edit struct {
	path   string
	before string
}

// Prepare writes initial to a temporary file named with suffix (".md").
func Prepare(initial, suffix string) (*Edit, error) {
	f, err := os.CreateTemp("", "devon-*"+suffix)
	if err != nil {
		return nil, err
	}
	if _, err := f.WriteString(initial); err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return nil, err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(f.Name())
		return nil, err
	}
	return &Edit{path: f.Name(), before: initial}, nil
}

func (e *Edit) Path() string { return e.path }

// Command builds the editor process for the prepared file. Callers wire its
// standard streams or hand it to a terminal program.
func (e *Edit) Command(ctx context.Context) *exec.Cmd {
	args := SplitShellWords(Name())
	if len(args) == 0 {
		args = []string{fallback}
	}
	return exec.CommandContext(ctx, args[0], append(args[1:], e.path)...)
}

// Finish reads the edited text back and removes the file. runErr is the
// editor's exit error, if any; the text is left unchanged when it is set.
func (e *Edit) Finish(runErr error) (string, bool, error) {
	defer func() { _ = os.Remove(e.path) }()
	if runErr != nil {
		return e.before, false, fmt.Errorf("%s: %w", Name(), runErr)
	}
	b, err := os.ReadFile(e.path)
	if err != nil {
		return e.before, false, err
	}
	after := string(b)
	return after, strings.TrimSpace(after) != strings.TrimSpace(e.before), nil
}

// EditText runs the editor on initial in the foreground and returns the
// result and whether it differs from initial beyond surrounding whitespace.
func EditText(ctx context.Context, initial, suffix string, stdin io.Reader, stdout, stderr io.Writer) (string, bool, error) {
	e, err := Prepare(initial, suffix)
	if err != nil {
		return initial, false, err
	}
	cmd := e.Command(ctx)
	cmd.Stdin, cmd.Stdout, cmd.Stderr = stdin, stdout, stderr
	return e.Finish(cmd.Run())
}
