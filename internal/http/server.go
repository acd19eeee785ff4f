package http

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"time"

	"unfinial/internal/cache"
	"unfinial/internal/core"
	"unfinial/internal/dashboard"
	"unfinial/internal/events"
	applog "unfinial/internal/log"
	"unfinial/internal/middleware/ratelimit"
	"unfinial/internal/middleware/security"
	"unfinial/internal/middleware/trace"
	"unfinial/internal/session"
	appweb "unfinial/web"
)

const (
	defaultSessionTTL       = 24 * time.Hour
	defaultSessionCacheSize = 500
	cacheCleanupInterval    = 5 * time.Minute
	dashboardReloadAfter    = 5 * time.Second
	staticMaxAge            = 3600
)

// Backend is the finance API as the web layer uses it.
type Backend interface {
	dashboard.Backend
	Register(ctx context.Context, name, email, password string) (core.User, error)
	Login(ctx context.Context, email, password string) (core.Token, error)
	Ping(ctx context.Context) error
}

// Options configures the server. Zero values select defaults.
type Options struct {
	Addr               string
	APIBaseURL         string
	CookieSecure       bool
	SessionTTL         time.Duration
	SessionCacheSize   int
	RateLimitPerMinute int
	TrustedProxies     []string
}

// Deps are the collaborators the server is built on. Backend is required.
type Deps struct {
	Backend   Backend
	Sessions  session.Store
	Publisher events.Publisher
	Caches    *cache.Manager
	Logger    *applog.Logger
}

type Server struct {
	http.Server

	templates  *template.Template
	backend    Backend
	auth       *session.Auth
	cookies    session.Cookies
	dashboards *dashboard.Registry
	caches     *cache.Manager
	apiBaseURL string

	// reloadAfter is how old a dashboard load must be before a full page
	// visit fetches again.
	reloadAfter time.Duration

	rateLimiter      *ratelimit.Limiter
	securityDetector *security.Detector
	traceMiddleware  *trace.Middleware

	logger     *applog.Logger
	structured *applog.StructuredLogger
	appMetrics *appMetrics
}

// appMetrics counts user-level outcomes for /metrics.
type appMetrics struct {
	logins        int64
	loginFailures int64
	registrations int64
	transactions  int64
	uploads       int64
	chatQuestions int64
	uptime        time.Time
}

func NewServer(opts Options, deps Deps) (*Server, error) {
	if deps.Backend == nil {
		return nil, errors.New("http server: backend is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	store := deps.Sessions
	if store == nil {
		store = session.NewMemoryStore()
	}
	caches := deps.Caches
	if caches == nil {
		caches = cache.NewManager(logger.WithComponent(applog.ComponentCache).Slog())
	}
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = defaultSessionTTL
	}
	if opts.SessionCacheSize <= 0 {
		opts.SessionCacheSize = defaultSessionCacheSize
	}

	detector, err := security.NewDetector(opts.TrustedProxies...)
	if err != nil {
		return nil, fmt.Errorf("trusted proxies: %w", err)
	}

	httpLogger := logger.WithComponent(applog.ComponentHTTP)
	s := &Server{
		Server: http.Server{
			Addr: opts.Addr,
		},
		backend:     deps.Backend,
		auth:        session.NewAuth(store, logger.WithComponent(applog.ComponentSession).Slog()),
		cookies:     session.Cookies{Secure: opts.CookieSecure, MaxAge: opts.SessionTTL},
		caches:      caches,
		apiBaseURL:  opts.APIBaseURL,
		reloadAfter: dashboardReloadAfter,
		dashboards: dashboard.NewRegistry(deps.Backend, deps.Publisher,
			logger.WithComponent(applog.ComponentDashboard).Slog(), opts.SessionCacheSize, opts.SessionTTL),
		rateLimiter:      ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimitPerMinute}),
		securityDetector: detector,
		logger:           httpLogger,
		structured:       applog.NewStructuredLogger(logger),
		appMetrics:       &appMetrics{uptime: time.Now()},
	}
	s.traceMiddleware = trace.NewMiddleware(detector.ExtractClientIP, logger)

	s.caches.Register("dashboards", s.dashboards)
	s.caches.StartCleanup(cacheCleanupInterval)

	// Readiness reports a nil template set; the server still starts.
	t, err := parseTemplates()
	if err != nil {
		httpLogger.Warn("Failed parsing templates", applog.FieldError, err)
	}
	s.templates = t

	mux := http.NewServeMux()
	s.routes(mux)
	s.Handler = s.middleware(mux)
	return s, nil
}

func (s *Server) routes(mux *http.ServeMux) {
	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("/static/", security.StaticAssetMiddleware(staticMaxAge)(static))
	} else {
		s.logger.Warn("Failed to mount embedded static FS", applog.FieldError, err)
	}

	mux.HandleFunc("/", s.handleLanding)
	mux.HandleFunc("/login", s.handleLogin)
	mux.HandleFunc("/logout", s.handleLogout)

	mux.HandleFunc("/dashboard", s.handleDashboard)
	mux.HandleFunc("/dashboard/refresh", s.handleRefresh)
	mux.HandleFunc("/dashboard/prediction", s.handlePrediction)
	mux.HandleFunc("/dashboard/transactions", s.handleCreateTransaction)
	mux.HandleFunc("/dashboard/upload", s.handleUpload)
	mux.HandleFunc("/dashboard/chat", s.handleChat)

	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/readyz", s.handleReady)
	mux.HandleFunc("/metrics", s.handleMetrics)
}

// middleware wraps h, outermost first: request logger, tracing, suspicious
// request detection, security headers, then POST rate limiting.
func (s *Server) middleware(h http.Handler) http.Handler {
	h = s.rateLimiter.Middleware(s.securityDetector.ExtractClientIP, s.onRateLimit, http.MethodPost)(h)
	h = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(h)
	h = s.securityDetector.Middleware(s.logger)(h)
	h = s.traceMiddleware.Middleware(h)
	return applog.Middleware(s.logger)(h)
}

func (s *Server) onRateLimit(w http.ResponseWriter, r *http.Request) {
	s.logger.WithComponent(applog.ComponentRateLimit).WarnContext(r.Context(), "Rate limit exceeded",
		applog.FieldClientIP, s.securityDetector.ExtractClientIP(r),
		applog.FieldPath, r.URL.Path)
	TooManyRequestsError("Terlalu banyak permintaan. Coba lagi dalam satu menit.").Write(w)
}

// Shutdown stops background cleanup and gracefully shuts the server down.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down server", applog.FieldOperation, applog.OpShutdown)
	s.caches.Stop()
	s.rateLimiter.Stop()
	return s.Server.Shutdown(ctx)
}
