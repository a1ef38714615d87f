package mutate

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"devon-cli/internal/api"
	"devon-cli/internal/editsession"
	"devon-cli/internal/format"
	"devon-cli/internal/lifecycle"
	"devon-cli/internal/model"
	"devon-cli/internal/perm"
)

// optionPages caps how many pages an option list may pull.
const optionPages = 10

type Service struct {
	Client  *api.Client
	Perms   *perm.Evaluator
	Drafts  editsession.DraftStore
	Confirm lifecycle.Confirmer
	Log     zerolog.Logger
}

// RefreshIdentity reloads the operator from the server so permission checks
// follow role changes made elsewhere. A rejected session clears the identity.
func (s *Service) RefreshIdentity(ctx context.Context) error {
	id, err := s.Client.Me(ctx)
	if errors.Is(err, api.ErrUnauthorized) {
		s.Perms.Clear()
		return err
	}
	if err != nil {
		return err
	}
	s.Perms.Set(id)
	s.Log.Debug().Str("role", id.Role.Name).Msg("identity refreshed")
	return nil
}

type binding[T model.Entity] struct {
	table   editsession.Table[T]
	edit    editsession.Backend[T]
	life    lifecycle.Backend[T]
	options func(ctx context.Context) map[string][]Option
	view    view[T]
	name    string
}

func (s *Service) authorBinding() binding[model.Author] {
	res := s.Client.Authors()
	return binding[model.Author]{
		table: editsession.AuthorTable, edit: res, life: res, name: "author",
		view: view[model.Author]{title: func(a model.Author) string { return a.FullName }, details: authorDetails,
			markdown: func(a model.Author) (string, string) { return "Biography", a.BiographyMD }},
	}
}

func (s *Service) poemBinding(authorID int64) binding[model.Poem] {
	res := s.Client.Poems()
	sp := binding[model.Poem]{
		table: editsession.PoemTable, edit: res, life: res, name: "poem",
		options: func(ctx context.Context) map[string][]Option {
			return map[string][]Option{"author_id": s.authorOptions(ctx)}
		},
		view: view[model.Poem]{title: func(p model.Poem) string { return p.Title }, details: poemDetails,
			markdown: func(p model.Poem) (string, string) { return "Text", p.Text }},
	}
	if authorID > 0 {
		sp.edit = authorPoemBackend{Resource: res, c: s.Client, authorID: authorID}
	}
	return sp
}

func (s *Service) roleBinding() binding[model.Role] {
	res := s.Client.Roles()
	return binding[model.Role]{
		table: editsession.RoleTable, edit: res, life: res, name: "role",
		options: func(ctx context.Context) map[string][]Option {
			return map[string][]Option{"employee_ids": s.employeeOptions(ctx)}
		},
		view: view[model.Role]{title: func(r model.Role) string { return r.Name }, details: roleDetails},
	}
}

func (s *Service) employeeBinding() binding[model.Employee] {
	res := s.Client.Employees()
	return binding[model.Employee]{
		table: editsession.EmployeeTable, edit: res, life: res, name: "employee",
		options: func(ctx context.Context) map[string][]Option {
			return map[string][]Option{"role_id": s.roleOptions(ctx)}
		},
		view: view[model.Employee]{title: func(e model.Employee) string { return e.FullName }, details: employeeDetails},
	}
}

func (s *Service) settingsBinding() binding[model.SiteSettings] {
	b := settingsBackend{c: s.Client}
	return binding[model.SiteSettings]{
		table: editsession.SiteSettingsTable, edit: b, life: b, name: "site settings",
		view: view[model.SiteSettings]{title: func(model.SiteSettings) string { return "Site settings" }, details: settingsDetails,
			markdown: func(st model.SiteSettings) (string, string) { return "About", st.AboutMarkdown }},
	}
}

// Open loads an entity and the option lists its form needs, concurrently.
// Option list failures degrade to empty lists.
func (s *Service) Open(ctx context.Context, kind model.Kind, id int64) (Handle, error) {
	switch kind {
	case model.KindAuthor:
		return open(ctx, s, s.authorBinding(), id)
	case model.KindPoem:
		return open(ctx, s, s.poemBinding(0), id)
	case model.KindRole:
		return open(ctx, s, s.roleBinding(), id)
	case model.KindEmployee:
		return open(ctx, s, s.employeeBinding(), id)
	case model.KindSiteSettings:
		return open(ctx, s, s.settingsBinding(), 0)
	default:
		return nil, fmt.Errorf("unknown kind %q", kind)
	}
}

// New starts a create-mode handle. For poems, a positive authorID fixes the
// author and routes creation through the author's endpoint.
func (s *Service) New(ctx context.Context, kind model.Kind, authorID int64) (Handle, error) {
	switch kind {
	case model.KindAuthor:
		return create(ctx, s, s.authorBinding(), "", nil), nil
	case model.KindPoem:
		if authorID > 0 {
			scope := "author-" + strconv.FormatInt(authorID, 10)
			return create(ctx, s, s.poemBinding(authorID), scope, editsession.Values{"author_id": authorID}), nil
		}
		return create(ctx, s, s.poemBinding(0), "", nil), nil
	case model.KindRole:
		return create(ctx, s, s.roleBinding(), "", nil), nil
	case model.KindEmployee:
		return create(ctx, s, s.employeeBinding(), "", nil), nil
	default:
		return nil, fmt.Errorf("%s cannot be created", kind)
	}
}

func open[T model.Entity](ctx context.Context, s *Service, sp binding[T], id int64) (Handle, error) {
	var (
		entity T
		opts   map[string][]Option
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		e, err := sp.edit.Get(gctx, id)
		if err != nil {
			return err
		}
		entity = e
		return nil
	})
	if sp.options != nil {
		g.Go(func() error {
			opts = sp.options(gctx)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if errors.Is(err, api.ErrNotFound) {
			return nil, NotFoundError{Kind: sp.table.Kind, ID: id}
		}
		return nil, err
	}
	h := newHandle(s, sp, opts)
	h.sess = editsession.Open(ctx, sp.table, h.sessDeps, entity)
	h.ctl = lifecycle.New(h.deps, entity)
	return h, nil
}

func create[T model.Entity](ctx context.Context, s *Service, sp binding[T], scope string, preset editsession.Values) Handle {
	var opts map[string][]Option
	if sp.options != nil {
		opts = sp.options(ctx)
	}
	h := newHandle(s, sp, opts)
	h.sess = editsession.OpenNew(ctx, sp.table, h.sessDeps, scope, preset)
	return h
}

func newHandle[T model.Entity](s *Service, sp binding[T], opts map[string][]Option) *handle[T] {
	perms, log := s.Perms, s.Log
	return &handle[T]{
		deps:     lifecycle.Deps[T]{Backend: sp.life, Confirm: s.Confirm, Perms: perms, Log: log},
		sessDeps: editsession.Deps[T]{Backend: sp.edit, Drafts: s.Drafts, Perms: perms, Log: log},
		options:  opts,
		view:     sp.view,
		newName:  sp.name,
	}
}

func collectOptions[T model.Entity](ctx context.Context, log zerolog.Logger, res api.Resource[T], q api.ListQuery, label func(T) string) []Option {
	q.PageSize = api.MaxPageSize
	var out []Option
	for page := 1; page <= optionPages; page++ {
		q.Page = page
		p, err := res.List(ctx, q)
		if err != nil {
			log.Warn().Err(err).Msg("load options")
			return out
		}
		for _, it := range p.Results {
			out = append(out, Option{ID: it.EntityID(), Label: label(it)})
		}
		if len(p.Results) == 0 || len(out) >= p.Count {
			break
		}
	}
	return out
}

func (s *Service) authorOptions(ctx context.Context) []Option {
	return collectOptions(ctx, s.Log, s.Client.Authors(), api.ListQuery{Trash: "active", Sort: "alphabetic"},
		func(a model.Author) string { return a.FullName })
}

func (s *Service) employeeOptions(ctx context.Context) []Option {
	return collectOptions(ctx, s.Log, s.Client.Employees(), api.ListQuery{Status: "active", Trash: "active"},
		func(e model.Employee) string { return e.FullName })
}

func (s *Service) roleOptions(ctx context.Context) []Option {
	return collectOptions(ctx, s.Log, s.Client.Roles(), api.ListQuery{Status: "active", Trash: "active"},
		func(r model.Role) string { return r.Name })
}

func fmtTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Local().Format("2006-01-02 15:04")
}

func fmtTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return fmtTime(*t)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func authorDetails(a model.Author) format.KV {
	poems := a.PoemsCount
	if len(a.Poems) > poems {
		poems = len(a.Poems)
	}
	return format.KV{
		{"id", strconv.FormatInt(a.ID, 10)},
		{"full_name", a.FullName},
		{"years", a.Lifespan()},
		{"published", yesNo(a.IsPublished)},
		{"poems", strconv.Itoa(poems)},
		{"photo", a.PhotoURL},
		{"created", fmtTime(a.CreatedAt)},
		{"updated", fmtTime(a.UpdatedAt)},
		{"deleted", fmtTimePtr(a.DeletedAt)},
	}
}

func poemDetails(p model.Poem) format.KV {
	author := p.Author.FullName
	if author == "" && p.Author.ID > 0 {
		author = "#" + strconv.FormatInt(p.Author.ID, 10)
	}
	return format.KV{
		{"id", strconv.FormatInt(p.ID, 10)},
		{"title", p.Title},
		{"author", author},
		{"published", yesNo(p.IsPublished)},
		{"views", strconv.Itoa(p.Views)},
		{"created", fmtTime(p.CreatedAt)},
		{"updated", fmtTime(p.UpdatedAt)},
		{"deleted", fmtTimePtr(p.DeletedAt)},
	}
}

func roleDetails(r model.Role) format.KV {
	names := make([]string, 0, len(r.Employees))
	for _, e := range r.Employees {
		names = append(names, e.FullName)
	}
	n := r.EmployeesCount
	if len(r.Employees) > n {
		n = len(r.Employees)
	}
	return format.KV{
		{"id", strconv.FormatInt(r.ID, 10)},
		{"name", r.Name},
		{"active", yesNo(r.IsActive)},
		{"permissions", FormatPermissions(fullRows(r.Permissions))},
		{"employees", fmt.Sprintf("%d %s", n, strings.Join(names, ", "))},
		{"created", fmtTime(r.CreatedAt)},
		{"deleted", fmtTimePtr(r.DeletedAt)},
	}
}

// fullRows fills missing modules so every role prints one entry per module.
func fullRows(rows []model.PermissionRow) []model.PermissionRow {
	v, _ := editsession.Permissions.Normalize(rows).([]model.PermissionRow)
	return v
}

func employeeDetails(e model.Employee) format.KV {
	role := ""
	if e.Role != nil {
		role = e.Role.Name
	}
	return format.KV{
		{"id", strconv.FormatInt(e.ID, 10)},
		{"full_name", e.FullName},
		{"email", e.Email},
		{"role", role},
		{"active", yesNo(e.IsActive)},
		{"must_change_password", yesNo(e.MustChangePassword)},
		{"created", fmtTime(e.CreatedAt)},
		{"deleted", fmtTimePtr(e.DeletedAt)},
	}
}

func settingsDetails(st model.SiteSettings) format.KV {
	logo := ""
	if st.LogoURL != nil {
		logo = *st.LogoURL
	}
	return format.KV{
		{"logo", logo},
		{"seo_title", st.SEOTitle},
		{"seo_description", st.SEODescription},
		{"contacts_phone", st.ContactsPhone},
		{"contacts_email", st.ContactsEmail},
		{"contacts_address", st.ContactsAddress},
		{"contacts_telegram", st.ContactsTelegram},
		{"analytics_google_analytics_tag", st.AnalyticsGoogleAnalyticsTag},
		{"analytics_google_search_console_tag", st.AnalyticsGoogleSearchConsoleTag},
		{"analytics_yandex_metrica_tag", st.AnalyticsYandexMetricaTag},
		{"analytics_yandex_webmaster_tag", st.AnalyticsYandexWebmasterTag},
		{"updated", fmtTimePtr(st.UpdatedAt)},
	}
}
