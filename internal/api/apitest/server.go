// Package apitest is an in-memory dashboard and portal API for tests.
// It speaks the same paths and payloads as the real server, enforces the
// session cookie, the CSRF header and the permission matrix, and records
// every request it receives.
package apitest

import (
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/http/httptest"
	"slices"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"devon-cli/internal/model"
)

const (
	CSRFToken     = "csrf-test-token"
	SessionCookie = "sessionid"
	sessionValue  = "session-test"
	Denied        = "Недостаточно прав."
)

type Server struct {
	*httptest.Server

	mu        sync.Mutex
	nextID    int64
	Authors   map[int64]*model.Author
	Poems     map[int64]*model.Poem
	Roles     map[int64]*model.Role
	Employees map[int64]*model.Employee
	Settings  model.SiteSettings
	Identity  model.Identity
	Password  string
	// reactions holds each visitor's single reaction per poem.
	reactions map[int64]map[string]model.ReactionType
	viewed    map[int64]map[string]bool
	// Fail makes the next matching "METHOD path" request return the status.
	Fail     map[string]int
	requests []string
	uploads  []string
}

// New starts a server seeded with an all-permissions administrator
// (admin@example.com / secret-123) and registers its shutdown with t.
func New(t testing.TB) *Server {
	t.Helper()
	s := &Server{
		nextID:    100,
		Authors:   map[int64]*model.Author{},
		Poems:     map[int64]*model.Poem{},
		Roles:     map[int64]*model.Role{},
		Employees: map[int64]*model.Employee{},
		Settings:  model.SiteSettings{ID: 1, SEOTitle: "Shoir"},
		Password:  "secret-123",
		reactions: map[int64]map[string]model.ReactionType{},
		viewed:    map[int64]map[string]bool{},
		Fail:      map[string]int{},
	}
	id := int64(1)
	all := model.Capabilities{Create: true, Read: true, Update: true, Delete: true}
	s.Identity = model.Identity{
		ID: &id, FullName: "Admin", Email: "admin@example.com", IsActive: true,
		Role:        model.RoleRef{Name: "Administrator", IsActive: true},
		Permissions: model.PermissionMatrix{model.ModuleAuthors: all, model.ModulePoems: all, model.ModuleEmployees: all, model.ModuleRoles: all},
	}
	s.Employees[1] = &model.Employee{ID: 1, FullName: "Admin", Email: "admin@example.com", IsActive: true}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	t.Cleanup(s.Close)
	return s
}

// SetPermissions replaces the identity's matrix.
func (s *Server) SetPermissions(m model.PermissionMatrix) {
	s.mu.Lock()
	s.Identity.Permissions = m
	s.mu.Unlock()
}

func (s *Server) AddAuthor(a model.Author) *model.Author {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.ID == 0 {
		a.ID = s.id()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}
	s.Authors[a.ID] = &a
	return &a
}

func (s *Server) AddPoem(p model.Poem) *model.Poem {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == 0 {
		p.ID = s.id()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	s.Poems[p.ID] = &p
	return &p
}

func (s *Server) AddRole(r model.Role) *model.Role {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r.ID == 0 {
		r.ID = s.id()
	}
	s.Roles[r.ID] = &r
	return &r
}

func (s *Server) AddEmployee(e model.Employee) *model.Employee {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e.ID == 0 {
		e.ID = s.id()
	}
	s.Employees[e.ID] = &e
	return &e
}

// Requests returns the "METHOD path" of every request so far.
func (s *Server) Requests() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.requests)
}

// Writes returns the non-GET requests so far.
func (s *Server) Writes() []string {
	var out []string
	for _, r := range s.Requests() {
		if !strings.HasPrefix(r, "GET ") {
			out = append(out, r)
		}
	}
	return out
}

// Uploads returns the names of multipart files received so far, as "field:filename".
func (s *Server) Uploads() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.uploads)
}

func (s *Server) id() int64 {
	s.nextID++
	return s.nextID
}

type reply struct {
	status int
	body   any
	cookie *http.Cookie
}

func ok(v any) reply              { return reply{status: http.StatusOK, body: v} }
func created(v any) reply         { return reply{status: http.StatusCreated, body: v} }
func message(m string) reply      { return reply{status: http.StatusOK, body: map[string]string{"message": m}} }
func fail(st int, d string) reply { return reply{status: st, body: map[string]string{"detail": d}} }

var notFound = fail(http.StatusNotFound, "Not found.")

func (s *Server) serve(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := r.Method + " " + r.URL.Path
	s.requests = append(s.requests, key)

	var rep reply
	if st, bad := s.Fail[key]; bad {
		delete(s.Fail, key)
		rep = fail(st, "Injected failure.")
	} else {
		rep = s.route(r)
	}
	if rep.cookie != nil {
		http.SetCookie(w, rep.cookie)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(rep.status)
	if rep.body != nil {
		_ = json.NewEncoder(w).Encode(rep.body)
	}
}

func (s *Server) authed(r *http.Request) bool {
	c, err := r.Cookie(SessionCookie)
	if err != nil || c.Value != sessionValue {
		return false
	}
	return r.Method == http.MethodGet || r.Header.Get("X-CSRFToken") == CSRFToken
}

func (s *Server) allowed(mod model.Module, a model.Action) bool {
	return s.Identity.Permissions.Allows(mod, a)
}

func (s *Server) route(r *http.Request) reply {
	path := strings.TrimSuffix(r.URL.Path, "/")
	switch {
	case strings.HasPrefix(path, "/api/v1/dashboard/"):
		return s.dashboard(r, strings.Split(strings.TrimPrefix(path, "/api/v1/dashboard/"), "/"))
	case strings.HasPrefix(path, "/api/v1/"):
		return s.portal(r, strings.Split(strings.TrimPrefix(path, "/api/v1/"), "/"))
	}
	return notFound
}

func (s *Server) dashboard(r *http.Request, parts []string) reply {
	if parts[0] == "auth" && len(parts) == 2 {
		return s.auth(r, parts[1])
	}
	if !s.authed(r) {
		return fail(http.StatusUnauthorized, "Учетные данные не были предоставлены.")
	}
	switch parts[0] {
	case "home":
		return ok(map[string]any{"profile": s.Identity, "stats": model.HomeStats{TotalPoems: len(s.Poems), TotalAuthors: len(s.Authors)}})
	case "site-settings":
		return s.settings(r)
	}
	kind, err := model.ParseKind(parts[0])
	if err != nil || !kind.Manageable() {
		return notFound
	}
	mod := kind.Module()
	if len(parts) == 1 {
		switch r.Method {
		case http.MethodGet:
			if !s.allowed(mod, model.ActionRead) {
				return fail(http.StatusForbidden, Denied)
			}
			return ok(s.list(kind, r))
		case http.MethodPost:
			if !s.allowed(mod, model.ActionCreate) {
				return fail(http.StatusForbidden, Denied)
			}
			body, err := s.body(r)
			if err != nil {
				return fail(http.StatusBadRequest, err.Error())
			}
			return s.create(kind, 0, body)
		}
		return fail(http.StatusMethodNotAllowed, "Method not allowed.")
	}

	id, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return notFound
	}
	if !s.exists(kind, id) {
		return notFound
	}
	if len(parts) == 3 {
		switch {
		case parts[2] == "restore" && r.Method == http.MethodPost:
			if !s.allowed(mod, model.ActionUpdate) {
				return fail(http.StatusForbidden, Denied)
			}
			s.setDeleted(kind, id, nil)
			return message("Восстановлено.")
		case parts[2] == "hard-delete" && r.Method == http.MethodDelete:
			if !s.allowed(mod, model.ActionDelete) {
				return fail(http.StatusForbidden, Denied)
			}
			if s.deletedAt(kind, id) == nil {
				return fail(http.StatusBadRequest, "Сначала переместите запись в корзину.")
			}
			s.purge(kind, id)
			return message("Удалено навсегда.")
		case parts[2] == "poems" && kind == model.KindAuthor:
			return s.authorPoems(r, id)
		case parts[2] == "reset-password" && kind == model.KindEmployee:
			if !s.allowed(mod, model.ActionUpdate) {
				return fail(http.StatusForbidden, Denied)
			}
			return message("Пароль обновлён.")
		}
		return notFound
	}

	switch r.Method {
	case http.MethodGet:
		if !s.allowed(mod, model.ActionRead) {
			return fail(http.StatusForbidden, Denied)
		}
		return ok(s.get(kind, id))
	case http.MethodPatch:
		if !s.allowed(mod, model.ActionUpdate) {
			return fail(http.StatusForbidden, Denied)
		}
		body, err := s.body(r)
		if err != nil {
			return fail(http.StatusBadRequest, err.Error())
		}
		return s.patch(kind, id, body)
	case http.MethodDelete:
		if !s.allowed(mod, model.ActionDelete) {
			return fail(http.StatusForbidden, Denied)
		}
		if kind == model.KindEmployee && s.Identity.IsSelf(id) {
			return fail(http.StatusBadRequest, "Нельзя удалить самого себя.")
		}
		now := time.Now()
		s.setDeleted(kind, id, &now)
		return message("Перемещено в корзину.")
	}
	return fail(http.StatusMethodNotAllowed, "Method not allowed.")
}

func (s *Server) auth(r *http.Request, action string) reply {
	switch action {
	case "login":
		var in struct{ Email, Password string }
		_ = json.NewDecoder(r.Body).Decode(&in)
		if !strings.EqualFold(in.Email, s.Identity.Email) || in.Password != s.Password {
			return fail(http.StatusBadRequest, "Неверный email или пароль.")
		}
		return reply{
			status: http.StatusOK,
			body:   loginBody{CSRF: CSRFToken, Profile: s.Identity},
			cookie: &http.Cookie{Name: SessionCookie, Value: sessionValue, Path: "/"},
		}
	case "me":
		if !s.authed(r) {
			return fail(http.StatusUnauthorized, "Учетные данные не были предоставлены.")
		}
		return ok(loginBody{CSRF: CSRFToken, Profile: s.Identity})
	case "logout":
		rep := message("Вы вышли из системы.")
		rep.cookie = &http.Cookie{Name: SessionCookie, Path: "/", MaxAge: -1}
		return rep
	case "change-password":
		if !s.authed(r) {
			return fail(http.StatusUnauthorized, "Учетные данные не были предоставлены.")
		}
		var in struct {
			NewPassword     string `json:"new_password"`
			ConfirmPassword string `json:"confirm_password"`
		}
		_ = json.NewDecoder(r.Body).Decode(&in)
		s.Password = in.NewPassword
		return message("Пароль изменён.")
	case "forgot-password":
		return message("Если адрес зарегистрирован, мы отправили письмо.")
	}
	return notFound
}

type loginBody struct {
	CSRF    string         `json:"csrf_token"`
	Profile model.Identity `json:"profile"`
}

// body decodes a JSON object or a multipart form into a flat map.
// Multipart values stay strings; files are recorded in uploads.
func (s *Server) body(r *http.Request) (map[string]any, error) {
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	out := map[string]any{}
	if ct == "multipart/form-data" {
		if err := r.ParseMultipartForm(8 << 20); err != nil {
			return nil, err
		}
		for k, v := range r.MultipartForm.Value {
			if len(v) > 0 {
				out[k] = v[0]
			}
		}
		for k, fhs := range r.MultipartForm.File {
			for _, fh := range fhs {
				s.uploads = append(s.uploads, k+":"+fh.Filename)
			}
		}
		return out, nil
	}
	b, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, err
	}
	if len(b) == 0 {
		return out, nil
	}
	return out, json.Unmarshal(b, &out)
}

func str(body map[string]any, k string) (string, bool) {
	v, ok := body[k]
	if !ok || v == nil {
		return "", ok
	}
	if s, isStr := v.(string); isStr {
		return s, true
	}
	return fmt.Sprint(v), true
}

func intPtr(body map[string]any, k string) (*int, bool) {
	v, ok := str(body, k)
	if !ok {
		return nil, false
	}
	v = strings.TrimSpace(v)
	if v == "" {
		return nil, true
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return nil, true
	}
	return &n, true
}

func id64(body map[string]any, k string) (int64, bool) {
	v, ok := str(body, k)
	if !ok {
		return 0, false
	}
	n, _ := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	return n, true
}

func boolean(body map[string]any, k string) (bool, bool) {
	v, ok := body[k]
	if !ok {
		return false, false
	}
	switch t := v.(type) {
	case bool:
		return t, true
	case string:
		b, _ := strconv.ParseBool(t)
		return b, true
	}
	return false, true
}

func decodeInto(body map[string]any, k string, dst any) bool {
	v, ok := body[k]
	if !ok {
		return false
	}
	var b []byte
	if s, isStr := v.(string); isStr {
		b = []byte(s)
	} else {
		b, _ = json.Marshal(v)
	}
	return json.Unmarshal(b, dst) == nil
}

func (s *Server) exists(kind model.Kind, id int64) bool {
	switch kind {
	case model.KindAuthor:
		return s.Authors[id] != nil
	case model.KindPoem:
		return s.Poems[id] != nil
	case model.KindRole:
		return s.Roles[id] != nil
	case model.KindEmployee:
		return s.Employees[id] != nil
	}
	return false
}

func (s *Server) deletedAt(kind model.Kind, id int64) *time.Time {
	switch kind {
	case model.KindAuthor:
		return s.Authors[id].DeletedAt
	case model.KindPoem:
		return s.Poems[id].DeletedAt
	case model.KindRole:
		return s.Roles[id].DeletedAt
	case model.KindEmployee:
		return s.Employees[id].DeletedAt
	}
	return nil
}

func (s *Server) setDeleted(kind model.Kind, id int64, at *time.Time) {
	switch kind {
	case model.KindAuthor:
		s.Authors[id].DeletedAt = at
	case model.KindPoem:
		s.Poems[id].DeletedAt = at
	case model.KindRole:
		s.Roles[id].DeletedAt = at
	case model.KindEmployee:
		s.Employees[id].DeletedAt = at
	}
}

func (s *Server) purge(kind model.Kind, id int64) {
	switch kind {
	case model.KindAuthor:
		delete(s.Authors, id)
	case model.KindPoem:
		delete(s.Poems, id)
	case model.KindRole:
		delete(s.Roles, id)
	case model.KindEmployee:
		delete(s.Employees, id)
	}
}

func (s *Server) authorView(a model.Author) model.Author {
	a.PoemsCount = 0
	for _, p := range s.Poems {
		if p.Author.ID == a.ID {
			a.PoemsCount++
		}
	}
	return a
}

func (s *Server) poemView(p model.Poem) model.Poem {
	if a := s.Authors[p.Author.ID]; a != nil {
		p.Author = model.PoemAuthor{ID: a.ID, FullName: a.FullName, IsPublished: a.IsPublished, DeletedAt: a.DeletedAt}
	}
	return p
}

func (s *Server) roleView(r model.Role) model.Role {
	r.Employees = nil
	for _, id := range sortedKeys(s.Employees) {
		e := s.Employees[id]
		if e.Role != nil && e.Role.ID != nil && *e.Role.ID == r.ID {
			r.Employees = append(r.Employees, model.EmployeeRef{ID: e.ID, FullName: e.FullName})
		}
	}
	r.EmployeesCount = len(r.Employees)
	return r
}

func (s *Server) get(kind model.Kind, id int64) any {
	switch kind {
	case model.KindAuthor:
		return s.authorView(*s.Authors[id])
	case model.KindPoem:
		return s.poemView(*s.Poems[id])
	case model.KindRole:
		return s.roleView(*s.Roles[id])
	default:
		return *s.Employees[id]
	}
}

func sortedKeys[V any](m map[int64]V) []int64 {
	keys := make([]int64, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

func trashMatch(trash string, deleted *time.Time) bool {
	switch trash {
	case "trash":
		return deleted != nil
	case "all":
		return true
	default:
		return deleted == nil
	}
}

func page[T any](items []T, r *http.Request) map[string]any {
	size, _ := strconv.Atoi(r.URL.Query().Get("page_size"))
	if size <= 0 {
		size = 20
	}
	n, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if n <= 0 {
		n = 1
	}
	start := min((n-1)*size, len(items))
	end := min(start+size, len(items))
	return map[string]any{"count": len(items), "page": n, "page_size": size, "results": items[start:end]}
}

func (s *Server) list(kind model.Kind, r *http.Request) map[string]any {
	q := strings.ToLower(r.URL.Query().Get("q"))
	trash := r.URL.Query().Get("trash")
	match := func(name string, deleted *time.Time) bool {
		return trashMatch(trash, deleted) && (q == "" || strings.Contains(strings.ToLower(name), q))
	}
	switch kind {
	case model.KindAuthor:
		var out []model.Author
		for _, id := range sortedKeys(s.Authors) {
			if a := s.Authors[id]; match(a.FullName, a.DeletedAt) {
				out = append(out, s.authorView(*a))
			}
		}
		return page(out, r)
	case model.KindPoem:
		var out []model.Poem
		for _, id := range sortedKeys(s.Poems) {
			if p := s.Poems[id]; match(p.Title, p.DeletedAt) {
				out = append(out, s.poemView(*p))
			}
		}
		return page(out, r)
	case model.KindRole:
		var out []model.Role
		for _, id := range sortedKeys(s.Roles) {
			if x := s.Roles[id]; match(x.Name, x.DeletedAt) {
				out = append(out, s.roleView(*x))
			}
		}
		return page(out, r)
	default:
		var out []model.Employee
		for _, id := range sortedKeys(s.Employees) {
			if e := s.Employees[id]; match(e.FullName, e.DeletedAt) {
				out = append(out, *e)
			}
		}
		return page(out, r)
	}
}

func (s *Server) authorPoems(r *http.Request, authorID int64) reply {
	switch r.Method {
	case http.MethodGet:
		if !s.allowed(model.ModulePoems, model.ActionRead) {
			return fail(http.StatusForbidden, Denied)
		}
		trash := r.URL.Query().Get("trash")
		var out []model.Poem
		for _, id := range sortedKeys(s.Poems) {
			if p := s.Poems[id]; p.Author.ID == authorID && trashMatch(trash, p.DeletedAt) {
				out = append(out, s.poemView(*p))
			}
		}
		return ok(page(out, r))
	case http.MethodPost:
		if !s.allowed(model.ModulePoems, model.ActionCreate) {
			return fail(http.StatusForbidden, Denied)
		}
		body, err := s.body(r)
		if err != nil {
			return fail(http.StatusBadRequest, err.Error())
		}
		return s.create(model.KindPoem, authorID, body)
	}
	return fail(http.StatusMethodNotAllowed, "Method not allowed.")
}

func (s *Server) create(kind model.Kind, authorID int64, body map[string]any) reply {
	now := time.Now()
	switch kind {
	case model.KindAuthor:
		a := &model.Author{ID: s.id(), CreatedAt: now, UpdatedAt: now}
		if rep, bad := s.applyAuthor(a, body); bad {
			return rep
		}
		s.Authors[a.ID] = a
		return created(s.authorView(*a))
	case model.KindPoem:
		p := &model.Poem{ID: s.id(), CreatedAt: now, UpdatedAt: now}
		if authorID > 0 {
			body["author_id"] = strconv.FormatInt(authorID, 10)
		}
		if rep, bad := s.applyPoem(p, body); bad {
			return rep
		}
		s.Poems[p.ID] = p
		return created(s.poemView(*p))
	case model.KindRole:
		x := &model.Role{ID: s.id(), CreatedAt: now, UpdatedAt: now}
		if rep, bad := s.applyRole(x, body); bad {
			return rep
		}
		s.Roles[x.ID] = x
		return created(s.roleView(*x))
	default:
		e := &model.Employee{ID: s.id(), CreatedAt: now, UpdatedAt: now}
		if rep, bad := s.applyEmployee(e, body); bad {
			return rep
		}
		s.Employees[e.ID] = e
		return created(*e)
	}
}

func (s *Server) patch(kind model.Kind, id int64, body map[string]any) reply {
	var (
		rep reply
		bad bool
	)
	switch kind {
	case model.KindAuthor:
		if rep, bad = s.applyAuthor(s.Authors[id], body); !bad {
			s.Authors[id].UpdatedAt = time.Now()
		}
	case model.KindPoem:
		if rep, bad = s.applyPoem(s.Poems[id], body); !bad {
			s.Poems[id].UpdatedAt = time.Now()
		}
	case model.KindRole:
		if rep, bad = s.applyRole(s.Roles[id], body); !bad {
			s.Roles[id].UpdatedAt = time.Now()
		}
	case model.KindEmployee:
		if rep, bad = s.applyEmployee(s.Employees[id], body); !bad {
			s.Employees[id].UpdatedAt = time.Now()
		}
	}
	if bad {
		return rep
	}
	return ok(s.get(kind, id))
}

func (s *Server) applyAuthor(a *model.Author, body map[string]any) (reply, bool) {
	if v, ok := str(body, "full_name"); ok {
		if strings.TrimSpace(v) == "" {
			return reply{status: http.StatusBadRequest, body: map[string][]string{"full_name": {"Обязательное поле."}}}, true
		}
		a.FullName = v
	}
	if v, ok := intPtr(body, "birth_year"); ok {
		a.BirthYear = v
	}
	if v, ok := intPtr(body, "death_year"); ok {
		a.DeathYear = v
	}
	if v, ok := str(body, "biography_md"); ok {
		a.BiographyMD = v
	}
	if v, ok := boolean(body, "is_published"); ok {
		a.IsPublished = v
	}
	if _, ok := body["avatar_crop"]; ok {
		var crop json.RawMessage
		if decodeInto(body, "avatar_crop", &crop) {
			a.AvatarCrop = crop
		}
	}
	return reply{}, false
}

func (s *Server) applyPoem(p *model.Poem, body map[string]any) (reply, bool) {
	if v, ok := str(body, "title"); ok {
		p.Title = v
	}
	if v, ok := str(body, "text"); ok {
		p.Text = v
	}
	if v, ok := id64(body, "author_id"); ok {
		if s.Authors[v] == nil {
			return reply{status: http.StatusBadRequest, body: map[string][]string{"author_id": {"Автор не найден."}}}, true
		}
		p.Author = model.PoemAuthor{ID: v}
	}
	if v, ok := boolean(body, "is_published"); ok {
		p.IsPublished = v
	}
	return reply{}, false
}

func (s *Server) applyRole(x *model.Role, body map[string]any) (reply, bool) {
	if v, ok := str(body, "name"); ok {
		x.Name = v
	}
	if v, ok := boolean(body, "is_active"); ok {
		x.IsActive = v
	}
	var rows []model.PermissionRow
	if decodeInto(body, "permissions", &rows) {
		x.Permissions = rows
	}
	var ids []int64
	if decodeInto(body, "employee_ids", &ids) {
		for _, e := range s.Employees {
			member := slices.Contains(ids, e.ID)
			attached := e.Role != nil && e.Role.ID != nil && *e.Role.ID == x.ID
			switch {
			case member:
				rid := x.ID
				e.Role = &model.RoleRef{ID: &rid, Name: x.Name, IsActive: x.IsActive}
			case attached:
				e.Role = nil
			}
		}
	}
	return reply{}, false
}

func (s *Server) applyEmployee(e *model.Employee, body map[string]any) (reply, bool) {
	if v, ok := str(body, "full_name"); ok {
		e.FullName = v
	}
	if v, ok := str(body, "email"); ok {
		e.Email = v
	}
	if v, ok := boolean(body, "is_active"); ok {
		e.IsActive = v
	}
	if v, ok := id64(body, "role_id"); ok {
		r := s.Roles[v]
		if r == nil {
			return reply{status: http.StatusBadRequest, body: map[string][]string{"role_id": {"Роль не найдена."}}}, true
		}
		rid := r.ID
		e.Role = &model.RoleRef{ID: &rid, Name: r.Name, IsActive: r.IsActive}
	}
	return reply{}, false
}

func (s *Server) settings(r *http.Request) reply {
	switch r.Method {
	case http.MethodGet:
		return ok(s.Settings)
	case http.MethodPatch:
		if !s.allowed(model.ModuleRoles, model.ActionUpdate) {
			return fail(http.StatusForbidden, Denied)
		}
		body, err := s.body(r)
		if err != nil {
			return fail(http.StatusBadRequest, err.Error())
		}
		st := &s.Settings
		for k, dst := range map[string]*string{
			"seo_title": &st.SEOTitle, "seo_description": &st.SEODescription,
			"contacts_phone": &st.ContactsPhone, "contacts_email": &st.ContactsEmail,
			"contacts_address": &st.ContactsAddress, "contacts_telegram": &st.ContactsTelegram,
			"about_markdown":                      &st.AboutMarkdown,
			"analytics_google_analytics_tag":      &st.AnalyticsGoogleAnalyticsTag,
			"analytics_google_search_console_tag": &st.AnalyticsGoogleSearchConsoleTag,
			"analytics_yandex_metrica_tag":        &st.AnalyticsYandexMetricaTag,
			"analytics_yandex_webmaster_tag":      &st.AnalyticsYandexWebmasterTag,
		} {
			if v, ok := str(body, k); ok {
				*dst = v
			}
		}
		if len(s.uploads) > 0 && strings.HasPrefix(s.uploads[len(s.uploads)-1], "logo:") {
			logo := "/media/site/" + strings.TrimPrefix(s.uploads[len(s.uploads)-1], "logo:")
			st.LogoURL = &logo
		}
		now := time.Now()
		st.UpdatedAt = &now
		return ok(s.Settings)
	}
	return fail(http.StatusMethodNotAllowed, "Method not allowed.")
}
