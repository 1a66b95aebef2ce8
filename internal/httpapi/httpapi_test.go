package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"slotwatch/internal/orchestrator"
	logx "slotwatch/pkg/logx"
)

type stubWatcher struct {
	result orchestrator.Result
	panics bool
	calls  []int
}

func (s *stubWatcher) RunCycle(_ context.Context, account int) orchestrator.Result {
	s.calls = append(s.calls, account)
	if s.panics {
		panic("boom")
	}
	return s.result
}

func (s *stubWatcher) Snapshot() orchestrator.Snapshot {
	return orchestrator.Snapshot{Current: 1, Interval: "30s"}
}

func do(t *testing.T, h http.Handler, method, target string, hdr map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestCheckStatusCodes(t *testing.T) {
	cases := []struct {
		status orchestrator.Status
		code   int
	}{
		{orchestrator.StatusSuccess, http.StatusOK},
		{orchestrator.StatusNoChange, http.StatusOK},
		{orchestrator.StatusTemporaryError, http.StatusOK},
		{orchestrator.StatusPaused, http.StatusOK},
		{orchestrator.StatusAccountSwitched, http.StatusOK},
		{orchestrator.StatusAllAccountsLimited, http.StatusOK},
		{orchestrator.StatusError, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(string(tc.status), func(t *testing.T) {
			w := &stubWatcher{result: orchestrator.Result{Status: tc.status, Message: "m"}}
			h := NewHandler(w, "", false, logx.Nop())
			for _, method := range []string{http.MethodGet, http.MethodPost} {
				rec := do(t, h, method, "/check", nil)
				assert.Equal(t, tc.code, rec.Code)

				var body map[string]any
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
				assert.Equal(t, string(tc.status), body["status"])
			}
			assert.Equal(t, []int{orchestrator.AnyAccount, orchestrator.AnyAccount}, w.calls)
		})
	}
}

func TestCheckPanicIs500(t *testing.T) {
	h := NewHandler(&stubWatcher{panics: true}, "", false, logx.Nop())
	rec := do(t, h, http.MethodPost, "/check", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"error"`)
}

func TestTokenGuard(t *testing.T) {
	h := NewHandler(&stubWatcher{result: orchestrator.Result{Status: orchestrator.StatusNoChange}}, "s3cret", false, logx.Nop())

	assert.Equal(t, http.StatusUnauthorized, do(t, h, http.MethodGet, "/status", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, do(t, h, http.MethodGet, "/check?token=nope", nil).Code)
	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/status?token=s3cret", nil).Code)
	assert.Equal(t, http.StatusOK, do(t, h, http.MethodPost, "/check", map[string]string{"Authorization": "Bearer s3cret"}).Code)
	assert.Equal(t, http.StatusUnauthorized, do(t, h, http.MethodGet, "/status?token=s3cre", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, do(t, h, http.MethodGet, "/status", map[string]string{"Authorization": "Bearer s3cretX"}).Code)

	// open endpoints
	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/healthz", nil).Code)
	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/metrics", nil).Code)
}

func TestTokenEqual(t *testing.T) {
	assert.True(t, tokenEqual("s3cret", "s3cret"))
	assert.False(t, tokenEqual("s3cre", "s3cret"))
	assert.False(t, tokenEqual("s3cret ", "s3cret"))
	assert.False(t, tokenEqual("", "s3cret"))
}

func TestPprofMountedOnlyWhenEnabled(t *testing.T) {
	w := &stubWatcher{}
	assert.Equal(t, http.StatusNotFound, do(t, NewHandler(w, "", false, logx.Nop()), http.MethodGet, "/debug/pprof/cmdline", nil).Code)
	assert.Equal(t, http.StatusOK, do(t, NewHandler(w, "", true, logx.Nop()), http.MethodGet, "/debug/pprof/cmdline", nil).Code)
}

func TestServiceRefusesPublicBindWithoutToken(t *testing.T) {
	s := New(Config{Enabled: true, Addr: "0.0.0.0:0"}, &stubWatcher{}, logx.Nop())
	assert.Error(t, s.Start(context.Background()))
}

func TestServiceServesOnLoopback(t *testing.T) {
	s := New(Config{Enabled: true, Addr: "127.0.0.1:0"}, &stubWatcher{}, logx.Nop())
	require.NoError(t, s.Start(context.Background()))
	require.Eventually(t, func() bool { return s.Addr() != "" }, 2*time.Second, 10*time.Millisecond)

	resp, err := http.Get("http://" + s.Addr() + "/healthz")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	assert.Equal(t, "ok", string(body))

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))
}

func TestIsLoopbackAddr(t *testing.T) {
	assert.True(t, isLoopbackAddr("127.0.0.1:8080"))
	assert.True(t, isLoopbackAddr("localhost:8080"))
	assert.True(t, isLoopbackAddr("[::1]:8080"))
	assert.False(t, isLoopbackAddr(":8080"))
	assert.False(t, isLoopbackAddr("0.0.0.0:8080"))
}
