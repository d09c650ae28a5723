// Package web serves the studio over HTTP: a JSON API, a websocket that
// pushes state changes and the embedded single-page UI.
package web

import (
	"embed"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"visioncraft/internal/session"
)

//go:embed static/*
var staticFS embed.FS

const cookieName = "visioncraft"

type Options struct {
	Store  *session.Store
	Logger *slog.Logger

	// SessionSecret signs the session cookie.
	SessionSecret string
	SessionTTL    time.Duration
	CORSOrigins   []string
	// RequestTimeout bounds the blocking generate and advice calls.
	RequestTimeout time.Duration
	Debug          bool
}

type Server struct {
	store          *session.Store
	logger         *slog.Logger
	requestTimeout time.Duration
	origins        []string
	upgrader       websocket.Upgrader
	engine         *gin.Engine
}

func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = 180 * time.Second
	}

	ttl := opts.SessionTTL
	if ttl <= 0 {
		ttl = 60 * time.Minute
	}

	if opts.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		store:          opts.Store,
		logger:         logger,
		requestTimeout: timeout,
		origins:        opts.CORSOrigins,
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 64 << 10,
		CheckOrigin:     s.checkOrigin,
	}

	cookieStore := cookie.NewStore([]byte(opts.SessionSecret))
	cookieStore.Options(sessions.Options{
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger(logger))
	if len(opts.CORSOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     opts.CORSOrigins,
			AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
			AllowHeaders:     []string{"Origin", "Content-Type"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/api/ws"})))
	r.Use(sessions.Sessions(cookieName, cookieStore))

	s.registerRoutes(r)

	staticSub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}
	files := http.FileServer(http.FS(staticSub))
	r.NoRoute(func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, "/api/") {
			abortWithError(c, http.StatusNotFound, "not found")
			return
		}
		files.ServeHTTP(c.Writer, c.Request)
	})

	s.engine = r
	return s
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) registerRoutes(r *gin.Engine) {
	api := r.Group("/api")
	api.Use(s.withSession())
	{
		api.GET("/state", s.getState)
		api.GET("/catalog", s.getCatalog)
		api.GET("/ws", s.serveWS)

		image := api.Group("/image")
		{
			image.POST("", s.uploadImage)
			image.DELETE("", s.clearImage)
			image.GET("/:variant", s.getImage)
		}

		api.PATCH("/settings", s.patchSettings)
		api.PUT("/theme", s.putTheme)
		api.PUT("/background-removal", s.putBackgroundRemoval)
		api.PUT("/canvas/view", s.putCanvasView)
		api.POST("/reset", s.reset)

		api.POST("/generate", s.generate)
		api.POST("/advice", s.advice)

		posterGroup := api.Group("/poster")
		{
			posterGroup.GET("/download", s.download)
			posterGroup.GET("/pdf", s.exportPDF)
		}
	}
}

// checkOrigin accepts same-host pages and the configured CORS origins.
func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	if strings.TrimPrefix(strings.TrimPrefix(origin, "http://"), "https://") == r.Host {
		return true
	}
	for _, allowed := range s.origins {
		if allowed == origin || allowed == "*" {
			return true
		}
	}
	return false
}
