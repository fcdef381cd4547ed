package httpapi

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/conduit-realworld/conduitauth"
	"github.com/conduit-realworld/conduitauth/internal/appconfig"
	"github.com/conduit-realworld/conduitauth/middleware"
)

// ProfileStore resolves public profiles by username.
type ProfileStore interface {
	GetUserByUsername(ctx context.Context, username string) (conduitauth.User, error)
}

// Options configures a Server. Engine and Profiles are required.
type Options struct {
	Engine           *conduitauth.Engine
	Profiles         ProfileStore
	Metrics          http.Handler
	DefaultUserImage string
	Logger           *slog.Logger
}

// Server serves the account and profile endpoints of the Conduit API.
type Server struct {
	engine       *conduitauth.Engine
	profiles     ProfileStore
	metrics      http.Handler
	defaultImage string
	logger       *slog.Logger
}

func New(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.DefaultUserImage == "" {
		opts.DefaultUserImage = appconfig.DefaultUserImage
	}
	return &Server{
		engine:       opts.Engine,
		profiles:     opts.Profiles,
		metrics:      opts.Metrics,
		defaultImage: opts.DefaultUserImage,
		logger:       opts.Logger.With("component", "httpapi"),
	}
}

// Handler returns the routed API.
func (s *Server) Handler() http.Handler {
	required := middleware.Require(s.engine)
	optional := middleware.Optional(s.engine)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/users", s.register)
	mux.HandleFunc("POST /api/users/login", s.login)

	mux.Handle("GET /api/user", required(http.HandlerFunc(s.currentUser)))
	mux.Handle("PUT /api/user", required(http.HandlerFunc(s.updateUser)))
	mux.Handle("POST /api/user/logout", required(http.HandlerFunc(s.logout)))
	mux.Handle("GET /api/user/sessions", required(http.HandlerFunc(s.listSessions)))
	mux.Handle("DELETE /api/user/sessions", required(http.HandlerFunc(s.logoutAll)))

	mux.Handle("GET /api/profiles/{username}", optional(http.HandlerFunc(s.profile)))

	mux.HandleFunc("GET /healthz", s.health)
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics)
	}
	return mux
}
