// Package testserver is an in-memory fake of the Kazi service, faithful to
// its wire surface: OAuth2 password token exchange, `{detail}` error
// payloads and bearer-token protected endpoints. The real service is an
// external collaborator; this fake exists so the client and the auth
// lifecycle can be exercised against a live HTTP boundary in tests.
package testserver

import (
	"net/http"
	"sync"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	glog "github.com/labstack/gommon/log"

	"github.com/trezcool/kazi/core"
	"github.com/trezcool/kazi/core/assignment"
)

type (
	Options struct {
		SecretKey      []byte
		DisableReqLogs bool
	}

	Server struct {
		opts *Options
		app  *echo.Echo

		validate   *validator.Validate
		translator ut.Translator

		mutex       sync.RWMutex
		accounts    map[string]*account // keyed by user ID
		assignments map[string]*assignment.Assignment
		submissions map[string]*assignment.Submission
		hits        map[string]int // request count per method+path
	}
)

var _ http.Handler = (*Server)(nil)

func NewServer(opts *Options) *Server {
	if opts == nil {
		opts = &Options{}
	}
	if len(opts.SecretKey) == 0 {
		opts.SecretKey = []byte("kazi-testserver-secret")
	}

	validate, translator := core.NewValidator()
	s := &Server{
		opts:        opts,
		app:         echo.New(),
		validate:    validate,
		translator:  translator,
		accounts:    make(map[string]*account),
		assignments: make(map[string]*assignment.Assignment),
		submissions: make(map[string]*assignment.Submission),
		hits:        make(map[string]int),
	}
	s.setup()
	return s
}

func (s *Server) setup() {
	s.app.Pre(middleware.RemoveTrailingSlash())
	s.app.Use(s.countHits)
	if s.opts.DisableReqLogs {
		s.app.Logger.SetLevel(glog.OFF)
	} else {
		s.app.Use(middleware.Logger())
	}
	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.translator)
	s.app.HideBanner = true

	api := s.app.Group("/api")

	// un-authed endpoints
	api.POST("/auth/signup", s.signup)
	api.POST("/auth/token", s.token)

	// authed endpoints
	jwt := middleware.JWTWithConfig(s.jwtConfig())
	ag := api.Group("", jwt)
	ag.GET("/users/me", s.me)
	ag.GET("/users/:id", s.retrieveUser)
	ag.POST("/assignments", s.createAssignment)
	ag.GET("/assignments", s.queryAssignments)
	ag.GET("/assignments/:id", s.retrieveAssignment)
	ag.PUT("/assignments/:id", s.updateAssignment)
	ag.GET("/assignments/:id/submissions", s.querySubmissions)
	ag.POST("/assignments/submit", s.submit)
	ag.POST("/analyze", s.analyze)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.app.ServeHTTP(w, r)
}

// countHits records how many times each endpoint was called, so tests can
// assert that an operation did (or did not) reach the service.
func (s *Server) countHits(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		s.mutex.Lock()
		s.hits[ctx.Request().Method+" "+ctx.Request().URL.Path]++
		s.mutex.Unlock()
		return next(ctx)
	}
}

// Hits reports how many requests reached method+path (e.g. "GET /api/users/me").
func (s *Server) Hits(methodAndPath string) int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.hits[methodAndPath]
}
