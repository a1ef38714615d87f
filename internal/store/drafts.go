package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"devon-cli/internal/model"
)

// DraftKey addresses one draft entry: an entity kind, an entity id (0 while
// creating) and a field. Scope distinguishes creation drafts opened from a
// parent context, e.g. a poem created from author 7.
type DraftKey struct {
	Kind  model.Kind
	ID    int64
	Field string
	Scope string
}

// String renders "<kind>/<id|create>/<field>", with "create:<scope>" for scoped creation.
func (k DraftKey) String() string {
	entity := "create"
	if k.ID > 0 {
		entity = strconv.FormatInt(k.ID, 10)
	} else if k.Scope != "" {
		entity = "create:" + k.Scope
	}
	return string(k.Kind) + "/" + entity + "/" + k.Field
}

func (k DraftKey) entity() string {
	parts := strings.SplitN(k.String(), "/", 3)
	return parts[1]
}

func ParseDraftKey(s string) (DraftKey, error) {
	parts := strings.SplitN(strings.TrimSpace(s), "/", 3)
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return DraftKey{}, fmt.Errorf("invalid draft key %q", s)
	}
	kind, err := model.ParseKind(parts[0])
	if err != nil {
		return DraftKey{}, err
	}
	k := DraftKey{Kind: kind, Field: parts[2]}
	switch {
	case parts[1] == "create":
	case strings.HasPrefix(parts[1], "create:"):
		k.Scope = strings.TrimPrefix(parts[1], "create:")
	default:
		id, err := strconv.ParseInt(parts[1], 10, 64)
		if err != nil || id <= 0 {
			return DraftKey{}, fmt.Errorf("invalid draft key %q: bad entity id", s)
		}
		k.ID = id
	}
	return k, nil
}

type Draft struct {
	Key       DraftKey
	Value     string
	UpdatedAt time.Time
}

// RetentionPolicy bounds the draft table. Zero values disable a bound.
type RetentionPolicy struct {
	TTL        time.Duration
	MaxEntries int
}

var DefaultRetention = RetentionPolicy{TTL: 30 * 24 * time.Hour, MaxEntries: 500}

func (s *Store) ReadDraft(ctx context.Context, key DraftKey) (string, bool, error) {
	var v string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM drafts WHERE key = ?`, key.String()).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (s *Store) WriteDraft(ctx context.Context, key DraftKey, value string) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO drafts(key, kind, entity, field, value, updated_at_unixms)
		VALUES(?, ?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at_unixms = excluded.updated_at_unixms`,
		key.String(), string(key.Kind), key.entity(), key.Field, value, s.now().UnixMilli())
	return err
}

func (s *Store) DeleteDraft(ctx context.Context, key DraftKey) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM drafts WHERE key = ?`, key.String())
	return err
}

// ClearDrafts removes every draft and returns how many were removed.
func (s *Store) ClearDrafts(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM drafts`)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// ListDrafts returns drafts newest first.
func (s *Store) ListDrafts(ctx context.Context) ([]Draft, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value, updated_at_unixms FROM drafts ORDER BY updated_at_unixms DESC, key`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Draft
	for rows.Next() {
		var (
			raw   string
			value string
			ms    int64
		)
		if err := rows.Scan(&raw, &value, &ms); err != nil {
			return nil, err
		}
		key, err := ParseDraftKey(raw)
		if err != nil {
			// Unreadable rows are left for Prune/Clear.
			continue
		}
		out = append(out, Draft{Key: key, Value: value, UpdatedAt: time.UnixMilli(ms).UTC()})
	}
	return out, rows.Err()
}

// PruneDrafts drops drafts older than the TTL, then the oldest entries beyond MaxEntries.
func (s *Store) PruneDrafts(ctx context.Context, p RetentionPolicy) (int, error) {
	removed := 0
	if p.TTL > 0 {
		cutoff := s.now().Add(-p.TTL).UnixMilli()
		res, err := s.db.ExecContext(ctx, `DELETE FROM drafts WHERE updated_at_unixms < ?`, cutoff)
		if err != nil {
			return removed, err
		}
		n, _ := res.RowsAffected()
		removed += int(n)
	}
	if p.MaxEntries > 0 {
		res, err := s.db.ExecContext(ctx, `DELETE FROM drafts WHERE key NOT IN (
			SELECT key FROM drafts ORDER BY updated_at_unixms DESC, key LIMIT ?
		)`, p.MaxEntries)
		if err != nil {
			return removed, err
		}
		n, _ := res.RowsAffected()
		removed += int(n)
	}
	return removed, nil
}

// MemoryDrafts is an in-process draft store used by tests and by --no-drafts runs.
type MemoryDrafts struct {
	mu     sync.Mutex
	values map[string]string
}

func NewMemoryDrafts() *MemoryDrafts {
	return &MemoryDrafts{values: map[string]string{}}
}

func (m *MemoryDrafts) ReadDraft(_ context.Context, key DraftKey) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key.String()]
	return v, ok, nil
}

func (m *MemoryDrafts) WriteDraft(_ context.Context, key DraftKey, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key.String()] = value
	return nil
}

func (m *MemoryDrafts) DeleteDraft(_ context.Context, key DraftKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key.String())
	return nil
}

// Keys returns the stored keys in sorted order.
func (m *MemoryDrafts) Keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.values))
	for k := range m.values {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
