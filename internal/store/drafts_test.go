package store

import (
	"context"
	"testing"
	"time"

	"devon-cli/internal/model"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), t.TempDir())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestDraftKey_StringAndParse(t *testing.T) {
	cases := []struct {
		key  DraftKey
		want string
	}{
		{DraftKey{Kind: model.KindAuthor, ID: 7, Field: "biography_md"}, "author/7/biography_md"},
		{DraftKey{Kind: model.KindPoem, Field: "text"}, "poem/create/text"},
		{DraftKey{Kind: model.KindPoem, Field: "text", Scope: "author-7"}, "poem/create:author-7/text"},
		{DraftKey{Kind: model.KindSiteSettings, ID: 1, Field: "about_markdown"}, "site-settings/1/about_markdown"},
	}
	for _, tc := range cases {
		if got := tc.key.String(); got != tc.want {
			t.Fatalf("String() = %q, want %q", got, tc.want)
		}
		back, err := ParseDraftKey(tc.want)
		if err != nil {
			t.Fatalf("parse %q: %v", tc.want, err)
		}
		if back != tc.key {
			t.Fatalf("parse %q = %+v, want %+v", tc.want, back, tc.key)
		}
	}

	for _, bad := range []string{"", "author/7", "planet/1/x", "author/-1/x", "author/abc/x"} {
		if _, err := ParseDraftKey(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}

func TestDrafts_WriteReadDelete(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	key := DraftKey{Kind: model.KindAuthor, ID: 7, Field: "biography_md"}

	if _, ok, err := s.ReadDraft(ctx, key); err != nil || ok {
		t.Fatalf("expected no draft, ok=%v err=%v", ok, err)
	}
	if err := s.WriteDraft(ctx, key, "Бахор"); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := s.WriteDraft(ctx, key, "Бахор омад"); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	v, ok, err := s.ReadDraft(ctx, key)
	if err != nil || !ok || v != "Бахор омад" {
		t.Fatalf("read = %q ok=%v err=%v", v, ok, err)
	}

	other := DraftKey{Kind: model.KindAuthor, ID: 8, Field: "biography_md"}
	if _, ok, _ := s.ReadDraft(ctx, other); ok {
		t.Fatalf("expected keys to be isolated per entity")
	}

	if err := s.DeleteDraft(ctx, key); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok, _ := s.ReadDraft(ctx, key); ok {
		t.Fatalf("expected draft to be gone")
	}
}

func TestDrafts_SurviveReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	key := DraftKey{Kind: model.KindPoem, ID: 12, Field: "text"}

	s, err := Open(ctx, dir)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := s.WriteDraft(ctx, key, "line one\nline two"); err != nil {
		t.Fatalf("write: %v", err)
	}
	_ = s.Close()

	s2, err := Open(ctx, dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()
	v, ok, err := s2.ReadDraft(ctx, key)
	if err != nil || !ok || v != "line one\nline two" {
		t.Fatalf("after reopen read = %q ok=%v err=%v", v, ok, err)
	}
}

func TestDrafts_PruneTTLAndCap(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	write := func(id int64, at time.Time) {
		t.Helper()
		s.now = func() time.Time { return at }
		if err := s.WriteDraft(ctx, DraftKey{Kind: model.KindPoem, ID: id, Field: "text"}, "x"); err != nil {
			t.Fatalf("write %d: %v", id, err)
		}
	}
	write(1, base)
	write(2, base.Add(40*24*time.Hour))
	write(3, base.Add(41*24*time.Hour))
	write(4, base.Add(42*24*time.Hour))

	s.now = func() time.Time { return base.Add(45 * 24 * time.Hour) }
	n, err := s.PruneDrafts(ctx, RetentionPolicy{TTL: 30 * 24 * time.Hour, MaxEntries: 2})
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 removed, got %d", n)
	}
	drafts, err := s.ListDrafts(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(drafts) != 2 || drafts[0].Key.ID != 4 || drafts[1].Key.ID != 3 {
		t.Fatalf("unexpected survivors: %+v", drafts)
	}

	cleared, err := s.ClearDrafts(ctx)
	if err != nil || cleared != 2 {
		t.Fatalf("clear = %d err=%v", cleared, err)
	}
}

func TestMemoryDrafts(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryDrafts()
	key := DraftKey{Kind: model.KindPoem, Field: "text"}
	_ = m.WriteDraft(ctx, key, "draft")
	if v, ok, _ := m.ReadDraft(ctx, key); !ok || v != "draft" {
		t.Fatalf("read = %q ok=%v", v, ok)
	}
	if got := m.Keys(); len(got) != 1 || got[0] != "poem/create/text" {
		t.Fatalf("keys = %v", got)
	}
	_ = m.DeleteDraft(ctx, key)
	if len(m.Keys()) != 0 {
		t.Fatalf("expected empty after delete")
	}
}
