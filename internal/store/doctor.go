package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

type DoctorIssueLevel string

const (
	DoctorIssueLevelError DoctorIssueLevel = "error"
	DoctorIssueLevelWarn  DoctorIssueLevel = "warn"
)

type DoctorIssue struct {
	Level   DoctorIssueLevel `json:"level"`
	Code    string           `json:"code"`
	Message string           `json:"message"`
	Key     string           `json:"key,omitempty"`
}

type DoctorReport struct {
	Issues []DoctorIssue `json:"issues"`
}

func (r DoctorReport) HasErrors() bool {
	for _, it := range r.Issues {
		if it.Level == DoctorIssueLevelError {
			return true
		}
	}
	return false
}

func (r *DoctorReport) add(level DoctorIssueLevel, code, key, format string, args ...any) {
	r.Issues = append(r.Issues, DoctorIssue{Level: level, Code: code, Key: key, Message: fmt.Sprintf(format, args...)})
}

// Doctor inspects the local database: sqlite integrity, draft rows that no
// longer parse, drafts the retention policy would drop, and sessions whose
// cookies have all expired. It never modifies anything.
func (s *Store) Doctor(ctx context.Context, p RetentionPolicy) DoctorReport {
	rep := DoctorReport{Issues: []DoctorIssue{}}

	var integrity string
	if err := s.db.QueryRowContext(ctx, `PRAGMA integrity_check;`).Scan(&integrity); err != nil {
		rep.add(DoctorIssueLevelError, "db_unreadable", "", "%v", err)
		return rep
	}
	if integrity != "ok" {
		rep.add(DoctorIssueLevelError, "db_corrupt", "", "integrity check: %s", integrity)
	}

	s.doctorDrafts(ctx, p, &rep)
	s.doctorSessions(ctx, &rep)
	return rep
}

func (s *Store) doctorDrafts(ctx context.Context, p RetentionPolicy, rep *DoctorReport) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, updated_at_unixms FROM drafts ORDER BY updated_at_unixms DESC, key`)
	if err != nil {
		rep.add(DoctorIssueLevelError, "drafts_unreadable", "", "%v", err)
		return
	}
	defer rows.Close()

	var (
		n     int
		stale int
	)
	cutoff := s.now().Add(-p.TTL)
	for rows.Next() {
		var (
			key string
			ms  int64
		)
		if err := rows.Scan(&key, &ms); err != nil {
			rep.add(DoctorIssueLevelError, "drafts_unreadable", "", "%v", err)
			return
		}
		n++
		if _, err := ParseDraftKey(key); err != nil {
			rep.add(DoctorIssueLevelWarn, "draft_key_invalid", key, "%v; remove it with `devon drafts clear`", err)
		}
		if p.TTL > 0 && time.UnixMilli(ms).Before(cutoff) {
			stale++
		}
	}
	if err := rows.Err(); err != nil {
		rep.add(DoctorIssueLevelError, "drafts_unreadable", "", "%v", err)
		return
	}
	if stale > 0 {
		rep.add(DoctorIssueLevelWarn, "drafts_stale", "", "%d draft(s) older than %s will be pruned", stale, p.TTL)
	}
	if p.MaxEntries > 0 && n > p.MaxEntries {
		rep.add(DoctorIssueLevelWarn, "drafts_over_cap", "", "%d drafts exceed the cap of %d", n, p.MaxEntries)
	}
}

func (s *Store) doctorSessions(ctx context.Context, rep *DoctorReport) {
	rows, err := s.db.QueryContext(ctx, `SELECT base_url, cookies_json FROM session ORDER BY base_url`)
	if err != nil {
		rep.add(DoctorIssueLevelError, "sessions_unreadable", "", "%v", err)
		return
	}
	defer rows.Close()

	now := s.now()
	for rows.Next() {
		var base, raw string
		if err := rows.Scan(&base, &raw); err != nil {
			rep.add(DoctorIssueLevelError, "sessions_unreadable", "", "%v", err)
			return
		}
		var cookies []SavedCookie
		if err := json.Unmarshal([]byte(raw), &cookies); err != nil {
			rep.add(DoctorIssueLevelError, "session_invalid_json", base, "%v; run `devon logout`", err)
			continue
		}
		if len(cookies) > 0 && allExpired(cookies, now) {
			rep.add(DoctorIssueLevelWarn, "session_expired", base, "session cookies expired; run `devon login`")
		}
	}
	if err := rows.Err(); err != nil {
		rep.add(DoctorIssueLevelError, "sessions_unreadable", "", "%v", err)
	}
}

func allExpired(cookies []SavedCookie, now time.Time) bool {
	for _, c := range cookies {
		if c.Expires == nil || c.Expires.After(now) || strings.TrimSpace(c.Value) == "" {
			return false
		}
	}
	return true
}
