package portal

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePortal struct {
	logins   atomic.Int32
	lastForm atomic.Value // map[string]string
	nearest  string
	status   int
}

func (f *fakePortal) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/hy/hqb", func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "XSRF-TOKEN", Value: "abc%3D%3D", Path: "/"})
		http.SetCookie(w, &http.Cookie{Name: "roadpolice_session", Value: "s1", Path: "/"})
		_, _ = w.Write([]byte("<html></html>"))
	})
	mux.HandleFunc("/hy/hqb-sw/login", func(w http.ResponseWriter, r *http.Request) {
		f.logins.Add(1)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "abc==", r.Header.Get("X-XSRF-TOKEN"))
		assert.Equal(t, "XMLHttpRequest", r.Header.Get("X-Requested-With"))
		assert.Equal(t, formContentType, r.Header.Get("Content-Type"))
		assert.NoError(t, r.ParseForm())
		f.lastForm.Store(map[string]string{
			"psn": r.PostForm.Get("psn"), "phone_number": r.PostForm.Get("phone_number"),
			"country": r.PostForm.Get("country"), "login_type": r.PostForm.Get("login_type"),
		})
		_, _ = w.Write([]byte(`{"status":"OK"}`))
	})
	mux.HandleFunc("/hy/hqb-profile", func(w http.ResponseWriter, r *http.Request) {
		if _, err := r.Cookie("roadpolice_session"); err != nil {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte("{}"))
	})
	mux.HandleFunc("/hy/hqb-nearest-day", func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "39", r.PostForm.Get("branchId"))
		assert.Equal(t, "300692", r.PostForm.Get("serviceId"))
		assert.Equal(t, "01-09-2025", r.PostForm.Get("date"))
		if f.status != 0 {
			w.WriteHeader(f.status)
		}
		_, _ = w.Write([]byte(f.nearest))
	})
	return mux
}

func newTestSession(t *testing.T, f *fakePortal) *Session {
	srv := httptest.NewServer(f.handler(t))
	t.Cleanup(srv.Close)
	cfg := DefaultConfig()
	cfg.BaseURL = srv.URL
	cfg.SessionCookie = "session"
	return NewSession(cfg)
}

func TestLoginFlow(t *testing.T) {
	f := &fakePortal{}
	s := newTestSession(t, f)
	ctx := context.Background()

	token, err := s.FetchAntiForgery(ctx)
	require.NoError(t, err)
	assert.Equal(t, "abc==", token)

	reply, err := s.Login(ctx, token, Credentials{PSN: "123", Phone: "98111222"})
	require.NoError(t, err)
	assert.Equal(t, StatusOK, reply.Status)
	assert.Equal(t, map[string]string{
		"psn": "123", "phone_number": "98111222", "country": "374", "login_type": "hqb",
	}, f.lastForm.Load())

	require.NoError(t, s.Probe(ctx, token))
	s.Reset()
	require.Error(t, s.Probe(ctx, token))
}

func TestMissingAntiForgeryCookie(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))
	t.Cleanup(srv.Close)
	s := NewSession(Config{BaseURL: srv.URL})

	_, err := s.FetchAntiForgery(context.Background())
	require.ErrorIs(t, err, ErrNoAntiForgery)
}

func TestNearestDayDecodesSlots(t *testing.T) {
	f := &fakePortal{nearest: `{"status":"OK","data":{"day":"15-10-2025","slots":[{"value":"09:15"},"10:00",{"id":7}]}}`}
	s := newTestSession(t, f)

	reply, err := s.NearestDay(context.Background(), "tok", "01-09-2025")
	require.NoError(t, err)
	assert.Equal(t, "15-10-2025", reply.Day())
	assert.Equal(t, 3, reply.SlotCount())
	assert.Equal(t, "09:15", reply.FirstSlot())
	assert.Equal(t, "10:00", reply.Data.Slots[1].Value)
	assert.Equal(t, "", reply.Data.Slots[2].Value)
}

func TestNearestDayErrorEnvelope(t *testing.T) {
	f := &fakePortal{nearest: `{"status":"ERROR","error":"quota","data":[]}`}
	s := newTestSession(t, f)

	reply, err := s.NearestDay(context.Background(), "tok", "01-09-2025")
	require.NoError(t, err)
	assert.Equal(t, "ERROR", reply.Status)
	assert.Nil(t, reply.Data)
	assert.Equal(t, "N/A", reply.FirstSlot())
}

func TestNon2xxKeepsBody(t *testing.T) {
	f := &fakePortal{status: http.StatusInternalServerError, nearest: `{"message":"Server Error"}`}
	s := newTestSession(t, f)

	_, err := s.NearestDay(context.Background(), "tok", "01-09-2025")
	pe, ok := AsError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusInternalServerError, pe.StatusCode)
	require.NotNil(t, pe.Reply)
	assert.Equal(t, "Server Error", pe.Reply.Message)
	assert.JSONEq(t, `{"message":"Server Error"}`, string(pe.Body))
}

func TestUndecodableBody(t *testing.T) {
	f := &fakePortal{nearest: `<html>oops</html>`}
	s := newTestSession(t, f)

	_, err := s.NearestDay(context.Background(), "tok", "01-09-2025")
	pe, ok := AsError(err)
	require.True(t, ok)
	assert.Equal(t, "<html>oops</html>", string(pe.Body))
	assert.Nil(t, pe.Reply)
}
