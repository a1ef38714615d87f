package model

import "strings"

// Module is a resource category over which permissions are granted.
type Module string

const (
	ModuleAuthors   Module = "authors"
	ModulePoems     Module = "poems"
	ModuleEmployees Module = "employees"
	ModuleRoles     Module = "roles"
)

// Modules lists the closed set of permission modules in display order.
var Modules = []Module{ModuleAuthors, ModulePoems, ModuleEmployees, ModuleRoles}

func ParseModule(s string) (Module, bool) {
	m := Module(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Modules {
		if m == known {
			return m, true
		}
	}
	return "", false
}

type Action string

const (
	ActionCreate Action = "create"
	ActionRead   Action = "read"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

var Actions = []Action{ActionCreate, ActionRead, ActionUpdate, ActionDelete}

func ParseAction(s string) (Action, bool) {
	a := Action(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Actions {
		if a == known {
			return a, true
		}
	}
	return "", false
}

// Capabilities is the create/read/update/delete record for one module.
type Capabilities struct {
	Create bool `json:"create"`
	Read   bool `json:"read"`
	Update bool `json:"update"`
	Delete bool `json:"delete"`
}

func (c Capabilities) Allows(a Action) bool {
	switch a {
	case ActionCreate:
		return c.Create
	case ActionRead:
		return c.Read
	case ActionUpdate:
		return c.Update
	case ActionDelete:
		return c.Delete
	default:
		return false
	}
}

// PermissionMatrix maps a module to its capabilities.
// A missing module is equivalent to all-false.
type PermissionMatrix map[Module]Capabilities

func (m PermissionMatrix) Allows(mod Module, a Action) bool {
	if m == nil {
		return false
	}
	caps, ok := m[mod]
	if !ok {
		return false
	}
	return caps.Allows(a)
}

func (m PermissionMatrix) Clone() PermissionMatrix {
	if m == nil {
		return nil
	}
	out := make(PermissionMatrix, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

type RoleRef struct {
	ID       *int64 `json:"id"`
	Name     string `json:"name"`
	IsActive bool   `json:"is_active"`
}

// Identity is the authenticated principal as reported by the API.
//
// ID is nil for superusers without a dashboard profile.
type Identity struct {
	ID                 *int64           `json:"id"`
	FullName           string           `json:"full_name"`
	Email              string           `json:"email"`
	Role               RoleRef          `json:"role"`
	IsActive           bool             `json:"is_active"`
	MustChangePassword bool             `json:"must_change_password"`
	Permissions        PermissionMatrix `json:"permissions"`
}

// IsSelf reports whether employeeID refers to this identity's own employee record.
func (id Identity) IsSelf(employeeID int64) bool {
	return id.ID != nil && *id.ID == employeeID
}

// Page is the paginated list envelope returned by list endpoints.
type Page[T any] struct {
	Count    int `json:"count"`
	Page     int `json:"page"`
	PageSize int `json:"page_size"`
	Results  []T `json:"results"`
}

func (p Page[T]) Pages() int {
	if p.PageSize <= 0 {
		return 1
	}
	n := (p.Count + p.PageSize - 1) / p.PageSize
	if n < 1 {
		return 1
	}
	return n
}

// HomeStats is the dashboard landing summary.
type HomeStats struct {
	TotalPoems   int         `json:"total_poems"`
	TotalAuthors int         `json:"total_authors"`
	MonthLabel   string      `json:"month_label"`
	MonthVisits  int         `json:"month_visits"`
	TopPoems     []TopPoem   `json:"top_poems"`
	TopAuthors   []TopAuthor `json:"top_authors"`
}

// Home is the dashboard landing payload.
type Home struct {
	Profile Identity  `json:"profile"`
	Stats   HomeStats `json:"stats"`
}

type TopPoem struct {
	PoemID         int64  `json:"poem_id"`
	Title          string `json:"title"`
	AuthorID       int64  `json:"author_id"`
	AuthorFullName string `json:"author_full_name"`
	Visits         int    `json:"visits"`
}

type TopAuthor struct {
	AuthorID       int64  `json:"author_id"`
	AuthorFullName string `json:"author_full_name"`
	Visits         int    `json:"visits"`
}
