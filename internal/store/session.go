package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"
)

type SavedCookie struct {
	Name     string     `json:"name"`
	Value    string     `json:"value"`
	Path     string     `json:"path,omitempty"`
	Domain   string     `json:"domain,omitempty"`
	Expires  *time.Time `json:"expires,omitempty"`
	Secure   bool       `json:"secure,omitempty"`
	HttpOnly bool       `json:"httpOnly,omitempty"`
}

// Session is the persisted API session for one base URL.
type Session struct {
	BaseURL   string
	CSRFToken string
	Cookies   []SavedCookie
	UpdatedAt time.Time
}

func normalizeBaseURL(u string) string {
	return strings.TrimRight(strings.TrimSpace(u), "/")
}

// LoadSession returns the saved session for baseURL, if any.
func (s *Store) LoadSession(ctx context.Context, baseURL string) (Session, bool, error) {
	baseURL = normalizeBaseURL(baseURL)
	var (
		token string
		raw   string
		ms    int64
	)
	err := s.db.QueryRowContext(ctx, `SELECT csrf_token, cookies_json, updated_at_unixms FROM session WHERE base_url = ?`, baseURL).
		Scan(&token, &raw, &ms)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, false, nil
	}
	if err != nil {
		return Session{}, false, err
	}
	sess := Session{BaseURL: baseURL, CSRFToken: token, UpdatedAt: time.UnixMilli(ms).UTC()}
	if strings.TrimSpace(raw) != "" {
		if err := json.Unmarshal([]byte(raw), &sess.Cookies); err != nil {
			return Session{}, false, err
		}
	}
	return sess, true, nil
}

func (s *Store) SaveSession(ctx context.Context, sess Session) error {
	if sess.Cookies == nil {
		sess.Cookies = []SavedCookie{}
	}
	b, err := json.Marshal(sess.Cookies)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `INSERT OR REPLACE INTO session(base_url, csrf_token, cookies_json, updated_at_unixms) VALUES(?, ?, ?, ?)`,
		normalizeBaseURL(sess.BaseURL), sess.CSRFToken, string(b), s.now().UnixMilli())
	return err
}

func (s *Store) DeleteSession(ctx context.Context, baseURL string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM session WHERE base_url = ?`, normalizeBaseURL(baseURL))
	return err
}
