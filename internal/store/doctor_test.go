package store

import (
	"context"
	"testing"
	"time"

	"devon-cli/internal/model"
)

func issueCodes(r DoctorReport) map[string]DoctorIssue {
	out := map[string]DoctorIssue{}
	for _, it := range r.Issues {
		out[it.Code] = it
	}
	return out
}

func TestDoctor_CleanStore(t *testing.T) {
	s := openTestStore(t)
	rep := s.Doctor(context.Background(), DefaultRetention)
	if len(rep.Issues) != 0 || rep.HasErrors() {
		t.Fatalf("issues = %+v", rep.Issues)
	}
}

func TestDoctor_DraftIssues(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now.Add(-48 * time.Hour) }
	if err := s.WriteDraft(ctx, DraftKey{Kind: model.KindPoem, ID: 3, Field: "text"}, "old"); err != nil {
		t.Fatalf("write: %v", err)
	}
	s.now = func() time.Time { return now }
	if err := s.WriteDraft(ctx, DraftKey{Kind: model.KindPoem, Field: "text"}, "new"); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := s.db.ExecContext(ctx, `INSERT INTO drafts(key, kind, entity, field, value, updated_at_unixms) VALUES('garbage', 'x', 'y', 'z', 'v', ?)`, now.UnixMilli()); err != nil {
		t.Fatalf("insert: %v", err)
	}

	rep := s.Doctor(ctx, RetentionPolicy{TTL: 24 * time.Hour, MaxEntries: 2})
	codes := issueCodes(rep)
	if it, ok := codes["draft_key_invalid"]; !ok || it.Key != "garbage" {
		t.Fatalf("missing draft_key_invalid: %+v", rep.Issues)
	}
	if _, ok := codes["drafts_stale"]; !ok {
		t.Fatalf("missing drafts_stale: %+v", rep.Issues)
	}
	if _, ok := codes["drafts_over_cap"]; !ok {
		t.Fatalf("missing drafts_over_cap: %+v", rep.Issues)
	}
	if rep.HasErrors() {
		t.Fatalf("draft findings are warnings: %+v", rep.Issues)
	}
}

func TestDoctor_ExpiredSession(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	past := time.Now().Add(-time.Hour)
	err := s.SaveSession(ctx, Session{
		BaseURL:   "http://archive.test",
		CSRFToken: "t",
		Cookies:   []SavedCookie{{Name: "sessionid", Value: "v", Expires: &past}},
	})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	codes := issueCodes(s.Doctor(ctx, DefaultRetention))
	if it, ok := codes["session_expired"]; !ok || it.Key != "http://archive.test" {
		t.Fatalf("issues = %+v", codes)
	}
}
