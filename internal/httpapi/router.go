package httpapi

import (
	"context"
	"crypto/subtle"
	"net/http"
	hpprof "net/http/pprof"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"slotwatch/internal/orchestrator"
	logx "slotwatch/pkg/logx"
)

// Watcher is what the HTTP surface needs from the orchestrator.
type Watcher interface {
	RunCycle(ctx context.Context, account int) orchestrator.Result
	Snapshot() orchestrator.Snapshot
}

// NewHandler builds the gin engine. /healthz and /metrics stay open; /check,
// /status and pprof require the token when one is set.
func NewHandler(w Watcher, token string, pprof bool, log logx.Logger) http.Handler {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.CustomRecovery(func(c *gin.Context, rec any) {
		log.Error("http handler panicked", logx.String("path", c.Request.URL.Path), logx.Any("panic", rec))
		c.AbortWithStatusJSON(http.StatusInternalServerError, orchestrator.Result{
			Status:  orchestrator.StatusError,
			Message: "internal error",
		})
	}))
	engine.Use(requestLog(log))

	engine.GET("/healthz", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	secured := engine.Group("")
	secured.Use(tokenAuth(token))

	check := func(c *gin.Context) {
		res := w.RunCycle(c.Request.Context(), orchestrator.AnyAccount)
		code := http.StatusOK
		if res.Status == orchestrator.StatusError {
			code = http.StatusInternalServerError
		}
		c.JSON(code, res)
	}
	secured.GET("/check", check)
	secured.POST("/check", check)
	secured.GET("/status", func(c *gin.Context) { c.JSON(http.StatusOK, w.Snapshot()) })

	if pprof {
		dbg := secured.Group("/debug/pprof")
		dbg.GET("/", gin.WrapF(hpprof.Index))
		dbg.GET("/cmdline", gin.WrapF(hpprof.Cmdline))
		dbg.GET("/profile", gin.WrapF(hpprof.Profile))
		dbg.GET("/symbol", gin.WrapF(hpprof.Symbol))
		dbg.POST("/symbol", gin.WrapF(hpprof.Symbol))
		dbg.GET("/trace", gin.WrapF(hpprof.Trace))
		dbg.GET("/:name", func(c *gin.Context) {
			hpprof.Handler(c.Param("name")).ServeHTTP(c.Writer, c.Request)
		})
	}
	return engine
}

// tokenAuth accepts either "Authorization: Bearer <token>" or ?token=<token>.
func tokenAuth(token string) gin.HandlerFunc {
	tok := strings.TrimSpace(token)
	return func(c *gin.Context) {
		if tok == "" {
			c.Next()
			return
		}
		if got := c.Query("token"); got != "" {
			if tokenEqual(got, tok) {
				c.Next()
				return
			}
			unauthorized(c)
			return
		}
		const p = "Bearer "
		if ah := c.GetHeader("Authorization"); strings.HasPrefix(ah, p) && tokenEqual(strings.TrimSpace(strings.TrimPrefix(ah, p)), tok) {
			c.Next()
			return
		}
		unauthorized(c)
	}
}

func tokenEqual(got, want string) bool {
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}

func unauthorized(c *gin.Context) {
	c.Header("WWW-Authenticate", "Bearer")
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
}

func requestLog(log logx.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		d := time.Since(start)
		fields := []logx.Field{
			logx.String("method", c.Request.Method),
			logx.String("path", c.Request.URL.Path),
			logx.Int("status", c.Writer.Status()),
			logx.Duration("dur", d),
		}
		if c.Request.URL.Path == "/metrics" || c.Request.URL.Path == "/healthz" {
			log.Debug("http request", fields...)
			return
		}
		log.Info("http request", fields...)
	}
}
