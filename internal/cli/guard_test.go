package cli

import (
	"context"
	"io"
	"strings"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/spf13/cobra"

	"devon-cli/internal/api"
	"devon-cli/internal/api/apitest"
	"devon-cli/internal/lifecycle"
	"devon-cli/internal/logging"
	"devon-cli/internal/model"
	"devon-cli/internal/mutate"
	"devon-cli/internal/navguard"
	"devon-cli/internal/perm"
	"devon-cli/internal/store"
)

func openAuthor(t *testing.T) (mutate.Handle, *runtime) {
	t.Helper()
	ctx := context.Background()
	srv := apitest.New(t)
	a := srv.AddAuthor(model.Author{FullName: "Rumi"})
	c, err := api.New(srv.URL)
	if err != nil {
		t.Fatalf("api.New: %v", err)
	}
	id, err := c.Login(ctx, "admin@example.com", srv.Password)
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	ev := perm.NewEvaluator()
	ev.Set(id)
	svc := &mutate.Service{Client: c, Perms: ev, Drafts: store.NewMemoryDrafts(), Confirm: lifecycle.AlwaysConfirm}
	h, err := svc.Open(ctx, model.KindAuthor, a.ID)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	log, err := logging.New(logging.Options{})
	if err != nil {
		t.Fatalf("logging.New: %v", err)
	}
	return h, &runtime{log: log}
}

// answerReader hands out one answer and reports when it was read.
type answerReader struct {
	answer string
	read   chan struct{}
	once   sync.Once
}

func (r *answerReader) Read(p []byte) (int, error) {
	if r.answer == "" {
		<-make(chan struct{})
	}
	n := copy(p, r.answer)
	r.answer = r.answer[n:]
	r.once.Do(func() { close(r.read) })
	return n, nil
}

// lockedBuffer collects prompt output written from the watcher goroutine.
type lockedBuffer struct {
	mu sync.Mutex
	b  strings.Builder
}

func (l *lockedBuffer) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.b.Write(p)
}

func (l *lockedBuffer) String() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.b.String()
}

func guardedCmd(in io.Reader, out io.Writer) *cobra.Command {
	cmd := &cobra.Command{}
	cmd.SetContext(context.Background())
	cmd.SetIn(in)
	cmd.SetErr(out)
	return cmd
}

func interrupt(t *testing.T) {
	t.Helper()
	if err := syscall.Kill(syscall.Getpid(), syscall.SIGINT); err != nil {
		t.Fatalf("kill: %v", err)
	}
}

func TestEditorGuard_InterruptWithChangesAsks(t *testing.T) {
	h, rt := openAuthor(t)
	if err := h.SetFieldText(context.Background(), "full_name", "Rumi Balkhi"); err != nil {
		t.Fatalf("SetFieldText: %v", err)
	}
	prompt := &lockedBuffer{}
	cmd := guardedCmd(&answerReader{answer: "y\n", read: make(chan struct{})}, prompt)

	stop := editFlags{editFields: []string{"biography_md"}}.guard(cmd, rt, h)
	defer stop()
	ctx := cmd.Context()

	interrupt(t)
	select {
	case <-ctx.Done():
	case <-time.After(2 * time.Second):
		t.Fatalf("accepted interrupt did not end the edit")
	}
	if !strings.Contains(prompt.String(), navguard.Message) {
		t.Fatalf("prompt = %q", prompt.String())
	}
}

func TestEditorGuard_DeclinedInterruptKeepsEditing(t *testing.T) {
	h, rt := openAuthor(t)
	if err := h.SetFieldText(context.Background(), "full_name", "Rumi Balkhi"); err != nil {
		t.Fatalf("SetFieldText: %v", err)
	}
	in := &answerReader{answer: "n\n", read: make(chan struct{})}
	cmd := guardedCmd(in, &lockedBuffer{})

	stop := editFlags{editFields: []string{"biography_md"}}.guard(cmd, rt, h)
	ctx := cmd.Context()

	interrupt(t)
	select {
	case <-in.read:
	case <-time.After(2 * time.Second):
		t.Fatalf("interrupt did not ask")
	}
	time.Sleep(20 * time.Millisecond)
	if ctx.Err() != nil {
		t.Fatalf("declined interrupt canceled the edit")
	}
	stop()
	if ctx.Err() == nil {
		t.Fatalf("stop should release the edit context")
	}
}

func TestEditorGuard_CleanInterruptLeavesWithoutAsking(t *testing.T) {
	h, rt := openAuthor(t)
	prompt := &lockedBuffer{}
	cmd := guardedCmd(strings.NewReader(""), prompt)

	stop := editFlags{editFields: []string{"biography_md"}}.guard(cmd, rt, h)
	defer stop()
	ctx := cmd.Context()

	interrupt(t)
	select {
	case <-ctx.Done():
	case <-time.After(2 * time.Second):
		t.Fatalf("clean interrupt did not end the edit")
	}
	if prompt.String() != "" {
		t.Fatalf("clean interrupt asked: %q", prompt.String())
	}
}

func TestEditorGuard_OnlyForEditorRuns(t *testing.T) {
	h, rt := openAuthor(t)
	cmd := guardedCmd(strings.NewReader(""), &lockedBuffer{})
	before := cmd.Context()
	editFlags{sets: []string{"full_name=Rumi"}}.guard(cmd, rt, h)()
	if cmd.Context() != before {
		t.Fatalf("guard replaced the context without --editor")
	}
}
