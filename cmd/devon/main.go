package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"devon-cli/internal/cli"
)

// lookupCommands maps a "<kind>:" prefix to the collection command that shows it.
var lookupCommands = map[string]string{
	"author":   "authors",
	"poem":     "poems",
	"role":     "roles",
	"employee": "employees",
}

// lookupCollection returns the collection for "poem:12"-style references.
func lookupCollection(s string) (string, bool) {
	prefix, rest, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok || rest == "" {
		return "", false
	}
	coll, ok := lookupCommands[strings.ToLower(prefix)]
	return coll, ok
}

func rewriteDirectLookupArgs(argv []string) []string {
	// `devon poem:12` works like `devon poems show poem:12`.
	//
	// Persistent flags may come first, so find the first positional token.
	if len(argv) < 2 {
		return argv
	}

	valueFlags := map[string]bool{
		"--api":       true,
		"--data-dir":  true,
		"--config":    true,
		"--format":    true,
		"--log-level": true,
		"--log-file":  true,
	}
	boolFlags := map[string]bool{
		"--pretty": true,
	}

	insert := func(i int, coll string) []string {
		out := make([]string, 0, len(argv)+2)
		out = append(out, argv[:i]...)
		out = append(out, coll, "show")
		return append(out, argv[i:]...)
	}

	for i := 1; i < len(argv); i++ {
		a := strings.TrimSpace(argv[i])
		if a == "" {
			continue
		}
		if a == "--" {
			if i+1 < len(argv) {
				if coll, ok := lookupCollection(argv[i+1]); ok {
					return insert(i+1, coll)
				}
			}
			return argv
		}
		if strings.HasPrefix(a, "-") {
			if strings.Contains(a, "=") || boolFlags[a] {
				continue
			}
			if valueFlags[a] {
				i++
			}
			continue
		}
		if coll, ok := lookupCollection(a); ok {
			return insert(i, coll)
		}
		return argv
	}
	return argv
}

func main() {
	os.Args = rewriteDirectLookupArgs(os.Args)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := cli.NewRootCmd()
	cmd.SetArgs(os.Args[1:])
	if err := cmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
