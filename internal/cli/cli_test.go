package cli

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"devon-cli/internal/api/apitest"
	"devon-cli/internal/model"
)

type harness struct {
	t   *testing.T
	srv *apitest.Server
	dir string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	t.Setenv("DEVON_API_URL", "")
	t.Setenv("DEVON_DATA_DIR", "")
	t.Setenv("DEVON_CONFIG", "")
	return &harness{t: t, srv: apitest.New(t), dir: t.TempDir()}
}

func runCLI(t *testing.T, stdin io.Reader, args []string) (stdout []byte, stderr []byte, err error) {
	t.Helper()

	cmd := NewRootCmd()

	var outBuf bytes.Buffer
	var errBuf bytes.Buffer
	cmd.SetOut(&outBuf)
	cmd.SetErr(&errBuf)
	if stdin == nil {
		stdin = strings.NewReader("")
	}
	cmd.SetIn(stdin)
	cmd.SetArgs(args)

	e := cmd.Execute()
	return outBuf.Bytes(), errBuf.Bytes(), e
}

func (h *harness) run(stdin string, args ...string) ([]byte, []byte, error) {
	h.t.Helper()
	full := append([]string{"--api", h.srv.URL, "--data-dir", h.dir}, args...)
	return runCLI(h.t, strings.NewReader(stdin), full)
}

func (h *harness) mustRun(stdin string, args ...string) map[string]any {
	h.t.Helper()
	out, errOut, err := h.run(stdin, args...)
	if err != nil {
		h.t.Fatalf("devon %s: %v\nstderr: %s", strings.Join(args, " "), err, errOut)
	}
	var env map[string]any
	if err := json.Unmarshal(out, &env); err != nil {
		h.t.Fatalf("decode output of %v: %v\n%s", args, err, out)
	}
	return env
}

func (h *harness) login() {
	h.t.Helper()
	h.mustRun(h.srv.Password+"\n", "login", "--email", "admin@example.com")
}

func data(t *testing.T, env map[string]any) map[string]any {
	t.Helper()
	d, ok := env["data"].(map[string]any)
	if !ok {
		t.Fatalf("data = %#v", env["data"])
	}
	return d
}

func writesWithPrefix(srv *apitest.Server, prefix string) int {
	n := 0
	for _, w := range srv.Writes() {
		if strings.HasPrefix(w, prefix) {
			n++
		}
	}
	return n
}

func idArg(n int64) string { return strconv.FormatInt(n, 10) }

func TestLogin_ThenWhoami(t *testing.T) {
	h := newHarness(t)

	env := h.mustRun(h.srv.Password+"\n", "login", "--email", "admin@example.com")
	if got := data(t, env)["email"]; got != "admin@example.com" {
		t.Fatalf("login email = %v", got)
	}

	env = h.mustRun("", "whoami")
	if got := data(t, env)["full_name"]; got != "Admin" {
		t.Fatalf("whoami full_name = %v", got)
	}
}

func TestLogin_WrongPassword(t *testing.T) {
	h := newHarness(t)
	_, stderr, err := h.run("nope\n", "login", "--email", "admin@example.com")
	if err == nil {
		t.Fatalf("expected error")
	}
	if len(stderr) == 0 {
		t.Fatalf("expected a message on stderr")
	}
}

func TestCommands_RequireLogin(t *testing.T) {
	h := newHarness(t)
	_, stderr, err := h.run("", "authors", "list")
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(string(stderr), "not logged in") {
		t.Fatalf("stderr = %q", stderr)
	}
}

func TestLogout_DropsSession(t *testing.T) {
	h := newHarness(t)
	h.login()

	env := h.mustRun("", "logout")
	if data(t, env)["logged_out"] != true {
		t.Fatalf("logout = %v", env)
	}
	if _, _, err := h.run("", "whoami"); err == nil {
		t.Fatalf("whoami after logout should fail")
	}
}

func TestAuthors_ListAndShow(t *testing.T) {
	h := newHarness(t)
	a := h.srv.AddAuthor(model.Author{FullName: "Rumi", IsPublished: true})
	h.srv.AddAuthor(model.Author{FullName: "Hafez"})
	h.login()

	env := h.mustRun("", "authors", "list", "-q", "rum")
	items, ok := env["data"].([]any)
	if !ok || len(items) != 1 {
		t.Fatalf("items = %#v", env["data"])
	}
	meta := env["meta"].(map[string]any)
	if meta["count"] != float64(1) {
		t.Fatalf("meta = %v", meta)
	}

	env = h.mustRun("", "authors", "show", idArg(a.ID)+"-rumi")
	if got := data(t, env)["full_name"]; got != "Rumi" {
		t.Fatalf("full_name = %v", got)
	}
	meta = env["meta"].(map[string]any)
	if meta["state"] != "active" {
		t.Fatalf("state = %v", meta["state"])
	}
	actions, _ := meta["actions"].([]any)
	if len(actions) != 1 || actions[0].(map[string]any)["action"] != "delete" {
		t.Fatalf("actions = %#v", meta["actions"])
	}
}

func TestAuthors_ShowTable(t *testing.T) {
	h := newHarness(t)
	a := h.srv.AddAuthor(model.Author{FullName: "Rumi"})
	h.login()

	out, stderr, err := h.run("", "--format", "table", "authors", "show", idArg(a.ID))
	if err != nil {
		t.Fatalf("show: %v\n%s", err, stderr)
	}
	if !strings.Contains(string(out), "Rumi") {
		t.Fatalf("table output = %q", out)
	}
}

func TestShow_NotFound(t *testing.T) {
	h := newHarness(t)
	h.login()
	_, stderr, err := h.run("", "authors", "show", "999")
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(string(stderr), "author #999 not found") {
		t.Fatalf("stderr = %q", stderr)
	}
}

func TestShow_BadID(t *testing.T) {
	h := newHarness(t)
	_, _, err := h.run("", "poems", "show", "abc")
	if err == nil {
		t.Fatalf("expected error")
	}
}

func TestAuthors_EditSet(t *testing.T) {
	h := newHarness(t)
	a := h.srv.AddAuthor(model.Author{FullName: "Rumi"})
	h.login()

	env := h.mustRun("", "authors", "edit", idArg(a.ID), "--set", "birth_year=1207", "--set", "is_published=true")
	changed, _ := env["meta"].(map[string]any)["changed"].([]any)
	if len(changed) != 2 {
		t.Fatalf("changed = %#v", changed)
	}
	got := h.srv.Authors[a.ID]
	if got.BirthYear == nil || *got.BirthYear != 1207 || !got.IsPublished {
		t.Fatalf("server author = %+v", got)
	}
}

func TestAuthors_EditNothingChanged(t *testing.T) {
	h := newHarness(t)
	a := h.srv.AddAuthor(model.Author{FullName: "Rumi"})
	h.login()
	before := writesWithPrefix(h.srv, "PATCH ")

	env := h.mustRun("", "authors", "edit", idArg(a.ID))
	if hints, _ := env["_hints"].([]any); len(hints) != 1 {
		t.Fatalf("hints = %#v", env["_hints"])
	}
	if writesWithPrefix(h.srv, "PATCH ") != before {
		t.Fatalf("no-op edit sent a PATCH")
	}
}

func TestAuthors_EditInvalidValue(t *testing.T) {
	h := newHarness(t)
	a := h.srv.AddAuthor(model.Author{FullName: "Rumi"})
	h.login()

	if _, _, err := h.run("", "authors", "edit", idArg(a.ID), "--set", "birth_year=soon"); err == nil {
		t.Fatalf("expected error")
	}
	if writesWithPrefix(h.srv, "PATCH ") != 0 {
		t.Fatalf("invalid value reached the server: %v", h.srv.Writes())
	}
}

func TestAuthors_CreateWithPhoto(t *testing.T) {
	h := newHarness(t)
	h.login()
	photo := filepath.Join(t.TempDir(), "rumi.jpg")
	if err := os.WriteFile(photo, []byte("jpeg"), 0o644); err != nil {
		t.Fatal(err)
	}

	env := h.mustRun("", "authors", "create", "--set", "full_name=Jalal ad-Din Rumi", "--photo", photo)
	if got := data(t, env)["full_name"]; got != "Jalal ad-Din Rumi" {
		t.Fatalf("full_name = %v", got)
	}
	uploads := h.srv.Uploads()
	if len(uploads) != 1 || uploads[0] != "photo:rumi.jpg" {
		t.Fatalf("uploads = %v", uploads)
	}
}

func TestAuthors_CreateRequiresName(t *testing.T) {
	h := newHarness(t)
	h.login()
	_, stderr, err := h.run("", "authors", "create", "--set", "birth_year=1207")
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(string(stderr), "full_name") {
		t.Fatalf("stderr = %q", stderr)
	}
}

func TestAuthors_AddPoem(t *testing.T) {
	h := newHarness(t)
	a := h.srv.AddAuthor(model.Author{FullName: "Rumi"})
	h.login()

	h.mustRun("", "authors", "add-poem", idArg(a.ID), "--set", "title=Reed", "--set", "text=Listen to the reed")
	env := h.mustRun("", "authors", "poems", idArg(a.ID))
	items, _ := env["data"].([]any)
	if len(items) != 1 {
		t.Fatalf("author poems = %#v", env["data"])
	}
}

func TestLifecycle_DeleteRestorePurge(t *testing.T) {
	h := newHarness(t)
	a := h.srv.AddAuthor(model.Author{FullName: "Rumi"})
	h.login()

	env := h.mustRun("y\n", "authors", "delete", idArg(a.ID))
	if got := data(t, env)["state"]; got != "trashed" {
		t.Fatalf("state after delete = %v", got)
	}
	if h.srv.Authors[a.ID].DeletedAt == nil {
		t.Fatalf("server author not trashed")
	}

	env = h.mustRun("", "authors", "restore", idArg(a.ID))
	if got := data(t, env)["state"]; got != "active" {
		t.Fatalf("state after restore = %v", got)
	}

	h.mustRun("", "authors", "delete", idArg(a.ID), "--yes")
	env = h.mustRun("", "authors", "purge", idArg(a.ID), "--yes")
	if got := data(t, env)["state"]; got != "purged" {
		t.Fatalf("state after purge = %v", got)
	}
	if _, ok := h.srv.Authors[a.ID]; ok {
		t.Fatalf("server author still present")
	}
}

func TestLifecycle_DeclinedConfirmSendsNothing(t *testing.T) {
	h := newHarness(t)
	a := h.srv.AddAuthor(model.Author{FullName: "Rumi"})
	h.login()
	before := len(h.srv.Writes())

	env := h.mustRun("n\n", "authors", "delete", idArg(a.ID))
	if data(t, env)["canceled"] != true {
		t.Fatalf("delete = %v", env)
	}
	if len(h.srv.Writes()) != before {
		t.Fatalf("writes after decline = %v", h.srv.Writes()[before:])
	}
	if h.srv.Authors[a.ID].DeletedAt != nil {
		t.Fatalf("author trashed despite decline")
	}
}

func TestLifecycle_PurgeActiveNotAvailable(t *testing.T) {
	h := newHarness(t)
	a := h.srv.AddAuthor(model.Author{FullName: "Rumi"})
	h.login()

	if _, _, err := h.run("", "authors", "purge", idArg(a.ID), "--yes"); err == nil {
		t.Fatalf("purge of an active author should fail")
	}
	if _, ok := h.srv.Authors[a.ID]; !ok {
		t.Fatalf("author was purged")
	}
}

func TestLifecycle_DeniedWithoutDeletePermission(t *testing.T) {
	h := newHarness(t)
	a := h.srv.AddAuthor(model.Author{FullName: "Rumi"})
	h.srv.SetPermissions(model.PermissionMatrix{model.ModuleAuthors: {Read: true}})
	h.login()

	_, stderr, err := h.run("", "authors", "delete", idArg(a.ID), "--yes")
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(string(stderr), "permission denied") {
		t.Fatalf("stderr = %q", stderr)
	}
	if writesWithPrefix(h.srv, "DELETE ") != 0 {
		t.Fatalf("delete reached the server")
	}
}

func TestDrafts_NoSaveThenResume(t *testing.T) {
	h := newHarness(t)
	a := h.srv.AddAuthor(model.Author{FullName: "Rumi"})
	h.login()

	h.mustRun("", "authors", "edit", idArg(a.ID), "--set", "biography_md=Born in Balkh", "--no-save")
	if h.srv.Authors[a.ID].BiographyMD != "" {
		t.Fatalf("--no-save reached the server")
	}

	env := h.mustRun("", "drafts", "list")
	items, _ := env["data"].([]any)
	if len(items) != 1 {
		t.Fatalf("drafts = %#v", env["data"])
	}
	key := items[0].(map[string]any)["key"]
	if key != "author/"+idArg(a.ID)+"/biography_md" {
		t.Fatalf("draft key = %v", key)
	}

	h.mustRun("", "authors", "edit", idArg(a.ID))
	if got := h.srv.Authors[a.ID].BiographyMD; got != "Born in Balkh" {
		t.Fatalf("biography = %q", got)
	}
	env = h.mustRun("", "drafts", "list")
	if items, _ := env["data"].([]any); len(items) != 0 {
		t.Fatalf("drafts after save = %#v", items)
	}
}

func TestDrafts_ClearAndPrune(t *testing.T) {
	h := newHarness(t)
	a := h.srv.AddAuthor(model.Author{FullName: "Rumi"})
	b := h.srv.AddAuthor(model.Author{FullName: "Hafez"})
	h.login()
	h.mustRun("", "authors", "edit", idArg(a.ID), "--set", "biography_md=one", "--no-save")
	h.mustRun("", "authors", "edit", idArg(b.ID), "--set", "biography_md=two", "--no-save")

	env := h.mustRun("", "drafts", "clear", "author/"+idArg(a.ID)+"/biography_md")
	if data(t, env)["cleared"] == nil {
		t.Fatalf("clear = %v", env)
	}
	time.Sleep(5 * time.Millisecond)
	env = h.mustRun("", "drafts", "prune", "--ttl", time.Millisecond.String())
	if data(t, env)["removed"] != float64(1) {
		t.Fatalf("prune = %v", env)
	}

	if _, _, err := h.run("", "drafts", "clear", "nonsense"); err == nil {
		t.Fatalf("expected a usage error for a bad key")
	}
}

func TestEmployees_ResetPassword(t *testing.T) {
	h := newHarness(t)
	e := h.srv.AddEmployee(model.Employee{FullName: "Editor", Email: "ed@example.com", IsActive: true})
	h.login()

	env := h.mustRun("new-pass-1\nnew-pass-1\n", "employees", "reset-password", idArg(e.ID))
	if data(t, env)["message"] == "" {
		t.Fatalf("reset = %v", env)
	}

	if _, _, err := h.run("new-pass-1\nother-pass\n", "employees", "reset-password", idArg(e.ID)); err == nil {
		t.Fatalf("mismatched confirmation should fail")
	}
}

func TestSettings_ShowAndEdit(t *testing.T) {
	h := newHarness(t)
	h.login()

	env := h.mustRun("", "settings", "show")
	if got := data(t, env)["seo_title"]; got != "Shoir" {
		t.Fatalf("seo_title = %v", got)
	}
	h.mustRun("", "settings", "edit", "--set", "contacts_email=info@example.com")
	if got := h.srv.Settings.ContactsEmail; got != "info@example.com" {
		t.Fatalf("contacts_email = %q", got)
	}
}

func TestRead_PoemCountsViewAndNeighbors(t *testing.T) {
	h := newHarness(t)
	a := h.srv.AddAuthor(model.Author{FullName: "Rumi", IsPublished: true})
	p1 := h.srv.AddPoem(model.Poem{Title: "Reed", Text: "Listen", Author: model.PoemAuthor{ID: a.ID}, IsPublished: true})
	h.srv.AddPoem(model.Poem{Title: "Guest House", Text: "This being human", Author: model.PoemAuthor{ID: a.ID}, IsPublished: true})

	env := h.mustRun("", "read", "poem", idArg(p1.ID)+"-reed")
	d := data(t, env)
	poem := d["poem"].(map[string]any)
	if poem["views"] != float64(1) {
		t.Fatalf("views = %v", poem["views"])
	}
	nb := d["neighbors"].(map[string]any)
	if next, _ := nb["next"].(map[string]any); next == nil || next["title"] != "Guest House" {
		t.Fatalf("neighbors = %#v", nb)
	}
	if path := env["meta"].(map[string]any)["path"]; path != "/poems/"+idArg(p1.ID)+"-reed" {
		t.Fatalf("path = %v", path)
	}
}

func TestRead_HiddenPoemNotFound(t *testing.T) {
	h := newHarness(t)
	a := h.srv.AddAuthor(model.Author{FullName: "Rumi", IsPublished: true})
	p := h.srv.AddPoem(model.Poem{Title: "Draft", Author: model.PoemAuthor{ID: a.ID}})

	if _, _, err := h.run("", "read", "poem", idArg(p.ID)); err == nil {
		t.Fatalf("unpublished poem should not be readable")
	}
}

func TestRead_SearchAndReact(t *testing.T) {
	h := newHarness(t)
	a := h.srv.AddAuthor(model.Author{FullName: "Rumi", IsPublished: true})
	p := h.srv.AddPoem(model.Poem{Title: "Reed", Text: "Listen", Author: model.PoemAuthor{ID: a.ID}, IsPublished: true})

	env := h.mustRun("", "read", "search", "reed")
	if got := env["meta"].(map[string]any)["poems"]; got != float64(1) {
		t.Fatalf("search poems = %v", got)
	}

	env = h.mustRun("", "read", "react", idArg(p.ID), "heart")
	counts := data(t, env)["counts_by_type"].(map[string]any)
	if counts["heart"] != float64(1) {
		t.Fatalf("counts = %v", counts)
	}
	env = h.mustRun("", "read", "react", idArg(p.ID), "heart")
	counts = data(t, env)["counts_by_type"].(map[string]any)
	if n, _ := counts["heart"].(float64); n != 0 {
		t.Fatalf("second toggle should remove the reaction: %v", counts)
	}

	if _, _, err := h.run("", "read", "react", idArg(p.ID), "angry"); err == nil {
		t.Fatalf("unknown reaction should fail")
	}
}

func TestFormat_Invalid(t *testing.T) {
	h := newHarness(t)
	if _, _, err := h.run("", "--format", "xml", "drafts", "list"); err == nil {
		t.Fatalf("expected error")
	}
}

func TestDoctor_HealthyAfterLogin(t *testing.T) {
	h := newHarness(t)
	h.login()

	env := h.mustRun("", "doctor")
	issues, _ := data(t, env)["issues"].([]any)
	if len(issues) != 0 {
		t.Fatalf("issues = %#v", issues)
	}
}

func TestDoctor_Offline(t *testing.T) {
	h := newHarness(t)
	env := h.mustRun("", "doctor", "--offline")
	if env["meta"].(map[string]any)["data_dir"] != h.dir {
		t.Fatalf("meta = %v", env["meta"])
	}
}

func TestDocs_TopicsAndRaw(t *testing.T) {
	h := newHarness(t)
	env := h.mustRun("", "docs")
	topics, _ := data(t, env)["topics"].([]any)
	if len(topics) == 0 {
		t.Fatalf("no topics")
	}

	out, _, err := h.run("", "docs", "drafts", "--raw")
	if err != nil || !strings.HasPrefix(string(out), "# Drafts") {
		t.Fatalf("raw docs = %q, %v", out, err)
	}
	if _, _, err := h.run("", "docs", "nope"); err == nil {
		t.Fatalf("expected unknown topic error")
	}
}
