package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

// Sentinels for errors.Is classification of *Error and transport failures.
var (
	ErrValidation       = errors.New("validation failed")
	ErrUnauthorized     = errors.New("not authenticated")
	ErrPermissionDenied = errors.New("permission denied")
	ErrNotFound         = errors.New("not found")
	ErrTransport        = errors.New("transport failure")
)

// Error is a non-2xx API response.
type Error struct {
	Status  int
	Detail  string
	Payload map[string]any
}

func (e *Error) Error() string {
	return e.Detail
}

func (e *Error) Is(target error) bool {
	switch target {
	case ErrValidation:
		return e.Status == http.StatusBadRequest
	case ErrUnauthorized:
		return e.Status == http.StatusUnauthorized
	case ErrPermissionDenied:
		return e.Status == http.StatusForbidden
	case ErrNotFound:
		return e.Status == http.StatusNotFound
	case ErrTransport:
		return e.Status >= 500
	}
	return false
}

// FieldErrors returns per-field messages from a validation payload.
func (e *Error) FieldErrors() map[string]string {
	out := map[string]string{}
	for k, v := range e.Payload {
		if k == "detail" || k == "message" {
			continue
		}
		if msg := firstMessage(v); msg != "" {
			out[k] = msg
		}
	}
	return out
}

func newError(status int, body []byte) *Error {
	e := &Error{Status: status}
	if len(body) > 0 {
		var payload map[string]any
		if err := json.Unmarshal(body, &payload); err == nil {
			e.Payload = payload
		}
	}
	e.Detail = errorMessage(status, e.Payload)
	return e
}

// errorMessage picks detail, then message, then flattened field errors,
// then a generic status line.
func errorMessage(status int, payload map[string]any) string {
	if s, ok := payload["detail"].(string); ok && strings.TrimSpace(s) != "" {
		return s
	}
	if s, ok := payload["message"].(string); ok && strings.TrimSpace(s) != "" {
		return s
	}
	if len(payload) > 0 {
		keys := make([]string, 0, len(payload))
		for k := range payload {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		var parts []string
		for _, k := range keys {
			if msg := firstMessage(payload[k]); msg != "" {
				if k == "non_field_errors" {
					parts = append(parts, msg)
				} else {
					parts = append(parts, k+": "+msg)
				}
			}
		}
		if len(parts) > 0 {
			return strings.Join(parts, "; ")
		}
	}
	return fmt.Sprintf("Request failed: %d", status)
}

func firstMessage(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case []any:
		for _, x := range t {
			if s := firstMessage(x); s != "" {
				return s
			}
		}
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if s := firstMessage(t[k]); s != "" {
				return s
			}
		}
	}
	return ""
}
