package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"devon-cli/internal/store"
)

const (
	dashboardPrefix = "/api/v1/dashboard"
	publicPrefix    = "/api/v1"

	csrfHeader      = "X-CSRFToken"
	requestIDHeader = "X-Request-ID"
	visitorCookie   = "shoieron_uid"
)

// SessionStore persists the CSRF token and session cookies between runs.
type SessionStore interface {
	LoadSession(ctx context.Context, baseURL string) (store.Session, bool, error)
	SaveSession(ctx context.Context, sess store.Session) error
	DeleteSession(ctx context.Context, baseURL string) error
}

// Client talks to the archive API. It is safe for concurrent use.
type Client struct {
	base     *url.URL
	http     *http.Client
	jar      http.CookieJar
	log      zerolog.Logger
	sessions SessionStore

	timeout time.Duration

	mu   sync.RWMutex
	csrf string
}

type Option func(*Client)

// WithHTTPClient uses a copy of hc for requests. The copy gets the client's
// own cookie jar; hc itself is left untouched.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			cp := *hc
			c.http = &cp
		}
	}
}

// WithTimeout overrides the request timeout regardless of option order.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) { c.log = l }
}

func WithSessionStore(s SessionStore) Option {
	return func(c *Client) { c.sessions = s }
}

// WithVisitorID sets the anonymous visitor cookie used by the public portal.
func WithVisitorID(id string) Option {
	return func(c *Client) {
		id = strings.TrimSpace(id)
		if id == "" {
			return
		}
		c.jar.SetCookies(c.base, []*http.Cookie{{Name: visitorCookie, Value: id, Path: "/"}})
	}
}

func New(baseURL string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("api: base url not set")
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("api: parse base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("api: unsupported scheme %q", u.Scheme)
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	c := &Client{
		base: u,
		http: &http.Client{Timeout: 30 * time.Second},
		jar:  jar,
		log:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.timeout > 0 {
		c.http.Timeout = c.timeout
	}
	c.http.Jar = c.jar
	return c, nil
}

func (c *Client) BaseURL() string { return c.base.String() }

func (c *Client) CSRFToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.csrf
}

func (c *Client) setCSRF(tok string) {
	tok = strings.TrimSpace(tok)
	if tok == "" {
		return
	}
	c.mu.Lock()
	c.csrf = tok
	c.mu.Unlock()
}

// Restore loads a previously saved session into the cookie jar.
// It reports whether a session was found.
func (c *Client) Restore(ctx context.Context) (bool, error) {
	if c.sessions == nil {
		return false, nil
	}
	sess, ok, err := c.sessions.LoadSession(ctx, c.BaseURL())
	if err != nil || !ok {
		return false, err
	}
	c.setCSRF(sess.CSRFToken)
	cookies := make([]*http.Cookie, 0, len(sess.Cookies))
	for _, sc := range sess.Cookies {
		ck := &http.Cookie{
			Name:     sc.Name,
			Value:    sc.Value,
			Path:     sc.Path,
			Secure:   sc.Secure,
			HttpOnly: sc.HttpOnly,
		}
		if ck.Path == "" {
			ck.Path = "/"
		}
		if sc.Expires != nil {
			ck.Expires = *sc.Expires
		}
		cookies = append(cookies, ck)
	}
	c.jar.SetCookies(c.base, cookies)
	return true, nil
}

func (c *Client) persistSession(ctx context.Context) {
	if c.sessions == nil {
		return
	}
	var saved []store.SavedCookie
	for _, ck := range c.jar.Cookies(c.base) {
		if ck.Name == visitorCookie {
			continue
		}
		saved = append(saved, store.SavedCookie{Name: ck.Name, Value: ck.Value, Path: "/"})
	}
	err := c.sessions.SaveSession(ctx, store.Session{BaseURL: c.BaseURL(), CSRFToken: c.CSRFToken(), Cookies: saved})
	if err != nil {
		c.log.Warn().Err(err).Msg("persist session")
	}
}

func (c *Client) forgetSession(ctx context.Context) {
	c.mu.Lock()
	c.csrf = ""
	c.mu.Unlock()
	var expired []*http.Cookie
	for _, ck := range c.jar.Cookies(c.base) {
		if ck.Name == visitorCookie {
			continue
		}
		expired = append(expired, &http.Cookie{Name: ck.Name, Path: "/", MaxAge: -1})
	}
	c.jar.SetCookies(c.base, expired)
	if c.sessions != nil {
		if err := c.sessions.DeleteSession(ctx, c.BaseURL()); err != nil {
			c.log.Warn().Err(err).Msg("delete session")
		}
	}
}

func (c *Client) resolve(path string, query url.Values) string {
	u := *c.base
	u.Path = strings.TrimRight(c.base.Path, "/") + path
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	} else {
		u.RawQuery = ""
	}
	return u.String()
}

// do sends one request. body may be nil, a *Multipart, or any JSON-encodable value.
// out may be nil to discard the response body.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any, out any) error {
	var (
		reader      io.Reader
		contentType string
	)
	switch b := body.(type) {
	case nil:
	case *Multipart:
		buf, ct, err := b.encode()
		if err != nil {
			return err
		}
		reader, contentType = buf, ct
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		reader, contentType = bytes.NewReader(raw), "application/json"
	}

	req, err := http.NewRequestWithContext(ctx, method, c.resolve(path, query), reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if method != http.MethodGet && method != http.MethodHead {
		if tok := c.CSRFToken(); tok != "" {
			req.Header.Set(csrfHeader, tok)
		}
	}
	reqID := uuid.NewString()
	req.Header.Set(requestIDHeader, reqID)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Error().Err(err).Str("method", method).Str("path", path).Str("request_id", reqID).Msg("request failed")
		return fmt.Errorf("%w: %s %s: %v", ErrTransport, method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: read %s %s: %v", ErrTransport, method, path, err)
	}

	ev := c.log.Debug()
	if resp.StatusCode >= 400 {
		ev = c.log.Warn()
	}
	ev.Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Str("request_id", reqID).
		Msg("api request")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return newError(resp.StatusCode, raw)
	}
	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

type messageResponse struct {
	Message string `json:"message"`
	Detail  string `json:"detail"`
}

func (m messageResponse) text() string {
	if m.Message != "" {
		return m.Message
	}
	return m.Detail
}
