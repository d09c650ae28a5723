package web

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"visioncraft/internal/session"
)

const (
	sessionIDKey  = "session_id"
	sessionCtxKey = "session"
)

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.Request.URL.Path
		status := c.Writer.Status()

		level := slog.LevelInfo
		switch {
		case status >= http.StatusInternalServerError:
			level = slog.LevelError
		case status >= http.StatusBadRequest:
			level = slog.LevelWarn
		case !strings.HasPrefix(path, "/api/"):
			level = slog.LevelDebug
		}

		attrs := []any{
			"method", c.Request.Method,
			"path", path,
			"status", status,
			"dur_ms", time.Since(start).Milliseconds(),
			"client_ip", c.ClientIP(),
		}
		if id := c.GetString(sessionIDKey); id != "" {
			attrs = append(attrs, "session_id", id)
		}
		if len(c.Errors) > 0 {
			attrs = append(attrs, "err", c.Errors.String())
		}
		logger.Log(c.Request.Context(), level, "http request", attrs...)
	}
}

// withSession resolves the cookie session to a studio, creating both on the
// first request. The cookie is re-issued on every request so its Max-Age
// slides together with the studio's idle TTL.
func (s *Server) withSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		cookieSession := sessions.Default(c)

		id, _ := cookieSession.Get(sessionIDKey).(string)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		cookieSession.Set(sessionIDKey, id)
		if err := cookieSession.Save(); err != nil {
			s.logger.Error("failed to save session cookie", "err", err)
			abortWithError(c, http.StatusInternalServerError, "session unavailable")
			return
		}

		c.Set(sessionIDKey, id)
		c.Set(sessionCtxKey, s.store.GetOrCreate(id))
		c.Next()
	}
}

func currentSession(c *gin.Context) *session.Session {
	return c.MustGet(sessionCtxKey).(*session.Session)
}

func abortWithError(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, gin.H{"error": message})
}
