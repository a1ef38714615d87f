package cli

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"devon-cli/internal/api"
	"devon-cli/internal/editsession"
	"devon-cli/internal/lifecycle"
	"devon-cli/internal/mutate"
)

type usageError struct {
	msg string
}

func (e usageError) Error() string { return e.msg }

func errUsage(format string, args ...any) error {
	return usageError{msg: fmt.Sprintf(format, args...)}
}

// describe turns an error into the one line printed on stderr.
func describe(err error) string {
	var (
		apiErr *api.Error
		nf     mutate.NotFoundError
		verr   *editsession.ValidationError
	)
	switch {
	case errors.As(err, &nf):
		return fmt.Sprintf("%s #%d not found", nf.Kind, nf.ID)
	case errors.Is(err, lifecycle.ErrNotPermitted), errors.Is(err, editsession.ErrNotPermitted):
		return "permission denied: " + err.Error()
	case errors.As(err, &verr):
		return "invalid: " + verr.Error()
	case errors.As(err, &apiErr):
		msg := apiErr.Error()
		if fields := apiErr.FieldErrors(); len(fields) > 0 && errors.Is(err, api.ErrValidation) {
			names := make([]string, 0, len(fields))
			for k := range fields {
				names = append(names, k)
			}
			sort.Strings(names)
			parts := make([]string, 0, len(names))
			for _, k := range names {
				parts = append(parts, k+": "+fields[k])
			}
			if !strings.Contains(msg, parts[0]) {
				msg += " (" + strings.Join(parts, "; ") + ")"
			}
		}
		return msg
	}
	return err.Error()
}
