package model

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Kind identifies an editable entity type.
type Kind string

const (
	KindAuthor       Kind = "author"
	KindPoem         Kind = "poem"
	KindRole         Kind = "role"
	KindEmployee     Kind = "employee"
	KindSiteSettings Kind = "site-settings"
)

// ManageableKinds are the kinds that go through the trash lifecycle.
var ManageableKinds = []Kind{KindAuthor, KindPoem, KindEmployee, KindRole}

func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "author", "authors":
		return KindAuthor, nil
	case "poem", "poems":
		return KindPoem, nil
	case "role", "roles":
		return KindRole, nil
	case "employee", "employees", "user", "users":
		return KindEmployee, nil
	case "site-settings", "settings":
		return KindSiteSettings, nil
	default:
		return "", fmt.Errorf("unknown kind %q", s)
	}
}

// Module returns the permission module guarding this kind.
// Site settings are administered under the roles module.
func (k Kind) Module() Module {
	switch k {
	case KindAuthor:
		return ModuleAuthors
	case KindPoem:
		return ModulePoems
	case KindEmployee:
		return ModuleEmployees
	default:
		return ModuleRoles
	}
}

// Collection is the dashboard path segment for this kind.
func (k Kind) Collection() string {
	switch k {
	case KindAuthor:
		return "authors"
	case KindPoem:
		return "poems"
	case KindEmployee:
		return "employees"
	case KindRole:
		return "roles"
	default:
		return "site-settings"
	}
}

// Manageable reports whether the kind supports soft-delete, restore and hard-delete.
func (k Kind) Manageable() bool {
	return k != KindSiteSettings && k != ""
}

// Entity is implemented by every manageable record.
type Entity interface {
	Kind() Kind
	EntityID() int64
	Created() time.Time
	Deleted() *time.Time
}

// LifecycleState is derived from the deletion timestamp; Purged is absence.
type LifecycleState int

const (
	StateActive LifecycleState = iota
	StateTrashed
	StatePurged
)

func (s LifecycleState) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateTrashed:
		return "trashed"
	case StatePurged:
		return "purged"
	default:
		return "unknown"
	}
}

func StateOf(e Entity) LifecycleState {
	if e == nil {
		return StatePurged
	}
	if e.Deleted() != nil {
		return StateTrashed
	}
	return StateActive
}

type Author struct {
	ID          int64           `json:"id"`
	FullName    string          `json:"full_name"`
	BirthYear   *int            `json:"birth_year"`
	DeathYear   *int            `json:"death_year"`
	BiographyMD string          `json:"biography_md"`
	PhotoURL    string          `json:"photo_url"`
	AvatarCrop  json.RawMessage `json:"avatar_crop,omitempty"`
	IsPublished bool            `json:"is_published"`
	PoemsCount  int             `json:"poems_count"`
	Poems       []Poem          `json:"poems,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	DeletedAt   *time.Time      `json:"deleted_at"`
}

func (a Author) Kind() Kind          { return KindAuthor }
func (a Author) EntityID() int64     { return a.ID }
func (a Author) Created() time.Time  { return a.CreatedAt }
func (a Author) Deleted() *time.Time { return a.DeletedAt }

// Lifespan renders the birth and death years as "1207–1273", "1207–" or "".
func (a Author) Lifespan() string {
	switch {
	case a.BirthYear == nil && a.DeathYear == nil:
		return ""
	case a.DeathYear == nil:
		return fmt.Sprintf("%d–", *a.BirthYear)
	case a.BirthYear == nil:
		return fmt.Sprintf("–%d", *a.DeathYear)
	default:
		return fmt.Sprintf("%d–%d", *a.BirthYear, *a.DeathYear)
	}
}

type PoemAuthor struct {
	ID          int64      `json:"id"`
	FullName    string     `json:"full_name"`
	IsPublished bool       `json:"is_published"`
	DeletedAt   *time.Time `json:"deleted_at"`
}

type Poem struct {
	ID          int64      `json:"id"`
	Title       string     `json:"title"`
	Text        string     `json:"text"`
	Author      PoemAuthor `json:"author"`
	IsPublished bool       `json:"is_published"`
	Views       int        `json:"views"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	DeletedAt   *time.Time `json:"deleted_at"`
}

func (p Poem) Kind() Kind          { return KindPoem }
func (p Poem) EntityID() int64     { return p.ID }
func (p Poem) Created() time.Time  { return p.CreatedAt }
func (p Poem) Deleted() *time.Time { return p.DeletedAt }

// PermissionRow is one module line of a role's permission grid.
type PermissionRow struct {
	Module    Module `json:"module"`
	CanCreate bool   `json:"can_create"`
	CanRead   bool   `json:"can_read"`
	CanUpdate bool   `json:"can_update"`
	CanDelete bool   `json:"can_delete"`
}

func (r PermissionRow) Get(a Action) bool {
	switch a {
	case ActionCreate:
		return r.CanCreate
	case ActionRead:
		return r.CanRead
	case ActionUpdate:
		return r.CanUpdate
	case ActionDelete:
		return r.CanDelete
	}
	return false
}

func (r *PermissionRow) Set(a Action, v bool) {
	switch a {
	case ActionCreate:
		r.CanCreate = v
	case ActionRead:
		r.CanRead = v
	case ActionUpdate:
		r.CanUpdate = v
	case ActionDelete:
		r.CanDelete = v
	}
}

// DefaultPermissionRows returns one all-false row per module.
func DefaultPermissionRows() []PermissionRow {
	rows := make([]PermissionRow, 0, len(Modules))
	for _, m := range Modules {
		rows = append(rows, PermissionRow{Module: m})
	}
	return rows
}

type EmployeeRef struct {
	ID       int64  `json:"id"`
	FullName string `json:"full_name"`
}

type Role struct {
	ID             int64           `json:"id"`
	Name           string          `json:"name"`
	IsActive       bool            `json:"is_active"`
	EmployeesCount int             `json:"employees_count"`
	Permissions    []PermissionRow `json:"permissions"`
	Employees      []EmployeeRef   `json:"employees,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
	DeletedAt      *time.Time      `json:"deleted_at"`
}

func (r Role) Kind() Kind          { return KindRole }
func (r Role) EntityID() int64     { return r.ID }
func (r Role) Created() time.Time  { return r.CreatedAt }
func (r Role) Deleted() *time.Time { return r.DeletedAt }

// EmployeeIDs returns the ids of the employees attached to the role.
func (r Role) EmployeeIDs() []int64 {
	ids := make([]int64, 0, len(r.Employees))
	for _, e := range r.Employees {
		ids = append(ids, e.ID)
	}
	return ids
}

type Employee struct {
	ID                    int64      `json:"id"`
	FullName              string     `json:"full_name"`
	Email                 string     `json:"email"`
	Role                  *RoleRef   `json:"role"`
	IsActive              bool       `json:"is_active"`
	MustChangePassword    bool       `json:"must_change_password"`
	TempPasswordExpiresAt *time.Time `json:"temp_password_expires_at"`
	CreatedAt             time.Time  `json:"created_at"`
	UpdatedAt             time.Time  `json:"updated_at"`
	DeletedAt             *time.Time `json:"deleted_at"`
}

func (e Employee) Kind() Kind          { return KindEmployee }
func (e Employee) EntityID() int64     { return e.ID }
func (e Employee) Created() time.Time  { return e.CreatedAt }
func (e Employee) Deleted() *time.Time { return e.DeletedAt }

// SiteSettings is the singleton portal configuration. It has no lifecycle.
type SiteSettings struct {
	ID                              int64      `json:"id"`
	LogoURL                         *string    `json:"logo_url"`
	SEOTitle                        string     `json:"seo_title"`
	SEODescription                  string     `json:"seo_description"`
	ContactsPhone                   string     `json:"contacts_phone"`
	ContactsEmail                   string     `json:"contacts_email"`
	ContactsAddress                 string     `json:"contacts_address"`
	ContactsTelegram                string     `json:"contacts_telegram"`
	AboutMarkdown                   string     `json:"about_markdown"`
	AnalyticsGoogleAnalyticsTag     string     `json:"analytics_google_analytics_tag"`
	AnalyticsGoogleSearchConsoleTag string     `json:"analytics_google_search_console_tag"`
	AnalyticsYandexMetricaTag       string     `json:"analytics_yandex_metrica_tag"`
	AnalyticsYandexWebmasterTag     string     `json:"analytics_yandex_webmaster_tag"`
	CreatedAt                       time.Time  `json:"created_at"`
	UpdatedAt                       *time.Time `json:"updated_at"`
}

func (s SiteSettings) Kind() Kind          { return KindSiteSettings }
func (s SiteSettings) EntityID() int64     { return s.ID }
func (s SiteSettings) Created() time.Time  { return s.CreatedAt }
func (s SiteSettings) Deleted() *time.Time { return nil }
