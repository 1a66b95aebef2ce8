package portal

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"

	"golang.org/x/net/publicsuffix"
)

const maxBody = 1 << 20

// Session is one account's browser-like state: a cookie jar and the client using it.
// Reset drops all cookies; the next Login starts from a clean jar.
type Session struct {
	cfg Config

	mu     sync.Mutex
	client *http.Client
	base   http.RoundTripper
}

type SessionOption func(*Session)

// WithRoundTripper replaces the HTTP transport (tests, proxies).
func WithRoundTripper(rt http.RoundTripper) SessionOption {
	return func(s *Session) { s.base = rt }
}

func NewSession(cfg Config, opts ...SessionOption) *Session {
	s := &Session{cfg: cfg.normalized()}
	for _, o := range opts {
		o(s)
	}
	s.Reset()
	return s
}

// Reset swaps in an empty cookie jar.
func (s *Session) Reset() {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		// cookiejar.New never fails with a non-nil options struct.
		panic(err)
	}
	s.mu.Lock()
	s.client = &http.Client{Jar: jar, Timeout: s.cfg.Timeout, Transport: s.base}
	s.mu.Unlock()
}

func (s *Session) httpClient() *http.Client {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.client
}

// FetchAntiForgery loads the entry page and returns the URL-decoded XSRF token.
func (s *Session) FetchAntiForgery(ctx context.Context) (string, error) {
	const op = "entry"
	c := s.httpClient()
	req, err := s.newRequest(ctx, http.MethodGet, s.cfg.EntryPath, "", nil)
	if err != nil {
		return "", &Error{Op: op, Err: err}
	}
	resp, err := c.Do(req)
	if err != nil {
		return "", &Error{Op: op, Err: err}
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	_ = resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &Error{Op: op, StatusCode: resp.StatusCode, Body: body}
	}

	u, err := url.Parse(s.cfg.BaseURL)
	if err != nil {
		return "", &Error{Op: op, Err: err}
	}
	var token string
	var haveSession bool
	for _, ck := range c.Jar.Cookies(u) {
		if ck.Name == s.cfg.XSRFCookie {
			token = ck.Value
		}
		if s.cfg.SessionCookie != "" && strings.Contains(ck.Name, s.cfg.SessionCookie) {
			haveSession = true
		}
	}
	if token == "" {
		return "", &Error{Op: op, Err: ErrNoAntiForgery}
	}
	if s.cfg.SessionCookie != "" && !haveSession {
		return "", &Error{Op: op, Err: ErrNoSession}
	}
	decoded, err := url.QueryUnescape(token)
	if err != nil {
		return "", &Error{Op: op, Err: fmt.Errorf("decode token: %w", err)}
	}
	return decoded, nil
}

// Login posts credentials. The decoded reply is returned as-is; callers decide
// what a non-OK status means.
func (s *Session) Login(ctx context.Context, token string, creds Credentials) (*Reply, error) {
	return s.postForm(ctx, "login", s.cfg.LoginPath, token, creds.Form())
}

// Probe reports whether the authenticated session is still alive (any 200).
func (s *Session) Probe(ctx context.Context, token string) error {
	const op = "probe"
	req, err := s.newRequest(ctx, http.MethodGet, s.cfg.ProfilePath, token, nil)
	if err != nil {
		return &Error{Op: op, Err: err}
	}
	resp, err := s.httpClient().Do(req)
	if err != nil {
		return &Error{Op: op, Err: err}
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBody))
	if resp.StatusCode != http.StatusOK {
		return &Error{Op: op, StatusCode: resp.StatusCode}
	}
	return nil
}

// NearestDay asks for the nearest open day starting at date (DD-MM-YYYY).
func (s *Session) NearestDay(ctx context.Context, token, date string) (*Reply, error) {
	return s.postForm(ctx, "nearest", s.cfg.NearestPath, token, nearestForm(s.cfg, date))
}

func (s *Session) postForm(ctx context.Context, op, path, token string, form url.Values) (*Reply, error) {
	req, err := s.newRequest(ctx, http.MethodPost, path, token, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, &Error{Op: op, Err: err}
	}
	req.Header.Set("Content-Type", formContentType)

	resp, err := s.httpClient().Do(req)
	if err != nil {
		return nil, &Error{Op: op, Err: err}
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, &Error{Op: op, StatusCode: resp.StatusCode, Err: err}
	}

	reply, decErr := ParseReply(body)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if decErr != nil {
			reply = nil
		}
		return nil, &Error{Op: op, StatusCode: resp.StatusCode, Body: body, Reply: reply}
	}
	if decErr != nil {
		return nil, &Error{Op: op, StatusCode: resp.StatusCode, Body: body, Err: fmt.Errorf("decode reply: %w", decErr)}
	}
	return reply, nil
}

func (s *Session) newRequest(ctx context.Context, method, path, token string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, s.cfg.url(path), body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", s.cfg.UserAgent)
	req.Header.Set("Accept", "application/json, text/javascript, */*; q=0.01")
	req.Header.Set("X-Requested-With", ajaxMarker)
	if token != "" {
		req.Header.Set("X-XSRF-TOKEN", token)
	}
	return req, nil
}
