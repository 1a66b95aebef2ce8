package orchestrator

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"

	"slotwatch/internal/apperr"
	"slotwatch/internal/metrics"
	"slotwatch/internal/portal"
	logx "slotwatch/pkg/logx"
)

// Transport is one account's upstream connection. *portal.Session implements it.
type Transport interface {
	Reset()
	FetchAntiForgery(ctx context.Context) (string, error)
	Login(ctx context.Context, token string, creds portal.Credentials) (*portal.Reply, error)
	Probe(ctx context.Context, token string) error
	NearestDay(ctx context.Context, token, date string) (*portal.Reply, error)
}

type TransportFactory func() Transport

// PortalTransports builds real portal sessions from cfg.
func PortalTransports(cfg portal.Config) TransportFactory {
	return func() Transport { return portal.NewSession(cfg) }
}

type session struct {
	token         string
	authenticated bool
	tr            Transport
}

// SessionStore owns one session per account identity. Sessions are created on
// first use and never removed.
type SessionStore struct {
	reg          *Registry
	newTransport TransportFactory
	log          logx.Logger

	mu       sync.Mutex
	sessions map[string]*session

	flight singleflight.Group
}

func NewSessionStore(reg *Registry, factory TransportFactory, log logx.Logger) *SessionStore {
	return &SessionStore{
		reg:          reg,
		newTransport: factory,
		log:          log,
		sessions:     map[string]*session{},
	}
}

func (s *SessionStore) entry(i int) *session {
	id := s.reg.Identity(i)
	s.mu.Lock()
	defer s.mu.Unlock()
	se, ok := s.sessions[id]
	if !ok {
		se = &session{tr: s.newTransport()}
		s.sessions[id] = se
	}
	return se
}

func (s *SessionStore) state(i int) (token string, authenticated bool, tr Transport) {
	se := s.entry(i)
	s.mu.Lock()
	defer s.mu.Unlock()
	return se.token, se.authenticated, se.tr
}

// EnsureAuthenticated returns a live token, logging in when the session is new,
// unauthenticated or fails the profile probe.
func (s *SessionStore) EnsureAuthenticated(ctx context.Context, i int) (string, error) {
	token, ok, tr := s.state(i)
	if !ok {
		s.log.Debug("no active session, logging in", logx.Int("account", i+1))
		return s.Login(ctx, i)
	}
	if err := tr.Probe(ctx, token); err != nil {
		s.log.Debug("session probe failed, logging in", logx.Int("account", i+1), logx.Err(err))
		return s.Login(ctx, i)
	}
	return token, nil
}

// Login runs a fresh login. Concurrent logins for the same account share one flight.
func (s *SessionStore) Login(ctx context.Context, i int) (string, error) {
	v, err, _ := s.flight.Do(s.reg.Identity(i), func() (any, error) {
		return s.login(context.WithoutCancel(ctx), i)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (s *SessionStore) login(ctx context.Context, i int) (string, error) {
	_, _, tr := s.state(i)
	acc := s.reg.Get(i)

	token, err := s.doLogin(ctx, tr, acc)
	if err != nil {
		s.Invalidate(i)
		metrics.RecordLogin("failed")
		return "", err
	}

	se := s.entry(i)
	s.mu.Lock()
	se.token = token
	se.authenticated = true
	s.mu.Unlock()

	metrics.RecordLogin("ok")
	s.log.Info("logged in", logx.String("account", s.reg.Label(i)))
	return token, nil
}

func (s *SessionStore) doLogin(ctx context.Context, tr Transport, acc Account) (string, error) {
	tr.Reset()
	token, err := tr.FetchAntiForgery(ctx)
	if err != nil {
		return "", apperr.Auth("login", "fetch anti-forgery token", err)
	}
	reply, err := tr.Login(ctx, token, acc.Credentials)
	if err != nil {
		return "", apperr.Auth("login", "submit credentials", err)
	}
	if reply.Status != portal.StatusOK {
		return "", apperr.Auth("login", "login rejected", nil).WithPayload(reply.Raw)
	}
	return token, nil
}

// Invalidate forces the next use of account i to log in again.
func (s *SessionStore) Invalidate(i int) {
	se := s.entry(i)
	s.mu.Lock()
	se.token = ""
	se.authenticated = false
	s.mu.Unlock()
}

// NearestDay queries availability on account i's transport.
func (s *SessionStore) NearestDay(ctx context.Context, i int, token, date string) (*portal.Reply, error) {
	_, _, tr := s.state(i)
	return tr.NearestDay(ctx, token, date)
}

// Authenticated reports whether account i currently holds a session.
func (s *SessionStore) Authenticated(i int) bool {
	id := s.reg.Identity(i)
	s.mu.Lock()
	defer s.mu.Unlock()
	se, ok := s.sessions[id]
	return ok && se.authenticated
}
