// Package web provides the HTTP API of the analytics platform.
package web

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/JonMunkholm/excel-analytics/internal/config"
	"github.com/JonMunkholm/excel-analytics/internal/core"
	webmw "github.com/JonMunkholm/excel-analytics/internal/web/middleware"
)

// Dependency is an external service the health check pings.
type Dependency struct {
	Name string
	Ping func(ctx context.Context) error
}

// Server is the HTTP server of the analytics API.
type Server struct {
	service  *core.Service
	cfg      *config.Config
	deps     []Dependency
	router   *chi.Mux
	server   *http.Server
	limiters []*rateLimiter
	started  time.Time
}

// NewServer creates a Server serving service. deps are reported by the
// health endpoint.
func NewServer(service *core.Service, cfg *config.Config, deps ...Dependency) *Server {
	s := &Server{
		service: service,
		cfg:     cfg,
		deps:    deps,
		router:  chi.NewRouter(),
		started: time.Now(),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// setupMiddleware configures middleware for all routes.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(webmw.TrustedRealIP(s.cfg.Security.TrustedProxies))
	s.router.Use(webmw.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(s.cfg.Server.RequestTimeout))

	s.router.Use(securityHeaders(s.cfg.Security.EnableCSP))
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.cfg.Security.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Requested-With", "Cache-Control"},
		ExposedHeaders:   []string{"Content-Disposition", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	if s.cfg.Rate.Enabled {
		s.router.Use(s.newRateLimiter(s.cfg.Rate.RequestsPerMinute, time.Minute).middleware)
	}
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	requireAuth := webmw.JWTAuth(s.service, s.fail)
	requireAdmin := webmw.RequireAdmin(s.fail)

	uploadLimit := func(next http.Handler) http.Handler { return next }
	if s.cfg.Rate.Enabled {
		uploadLimit = s.newRateLimiter(s.cfg.Rate.UploadLimit, time.Minute).middleware
	}

	s.router.Get("/health", s.handleHealth)
	s.router.NotFound(s.handleNotFound)

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/", s.handleAPIInfo)
		r.Get("/health", s.handleHealth)

		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", s.handleRegister)
			r.Post("/login", s.handleLogin)
			r.Post("/forgot-password", s.handleForgotPassword)
			r.Post("/reset-password", s.handleResetPassword)
			r.Post("/refresh", s.handleRefresh)

			r.Group(func(r chi.Router) {
				r.Use(requireAuth)
				r.Post("/logout", s.handleLogout)
				r.Get("/profile", s.handleGetProfile)
				r.Put("/profile", s.handleUpdateProfile)
			})
		})

		r.Route("/upload", func(r chi.Router) {
			r.Use(requireAuth)
			r.With(uploadLimit).Post("/excel", s.handleUploadExcel)
			r.Get("/history", s.handleUploadHistory)
			r.Get("/{id}", s.handleGetUpload)
			r.Delete("/{id}", s.handleDeleteUpload)
			r.Get("/{id}/download", s.handleDownloadUpload)
			r.Get("/{id}/preview", s.handlePreview)
			r.With(uploadLimit).Post("/{id}/sheet", s.handleSelectSheet)
		})

		r.Route("/chart", func(r chi.Router) {
			r.Use(requireAuth)
			r.Post("/generate", s.handleGenerateChart)
			r.Get("/user", s.handleUserCharts)
			r.Get("/{id}", s.handleGetChart)
			r.Put("/{id}", s.handleUpdateChart)
			r.Delete("/{id}", s.handleDeleteChart)
			r.Post("/{id}/download", s.handleDownloadChart)
		})

		r.Route("/user", func(r chi.Router) {
			r.Use(requireAuth)
			r.Get("/profile", s.handleGetProfile)
			r.Put("/profile", s.handleUpdateProfile)
			r.Get("/stats", s.handleUserStats)
			r.Get("/activity", s.handleUserActivity)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Post("/login", s.handleAdminLogin)

			r.Group(func(r chi.Router) {
				r.Use(requireAuth, requireAdmin)
				r.Get("/profile", s.handleAdminProfile)

				r.Get("/users", s.handleListUsers)
				r.Get("/users/{id}", s.handleGetUser)
				r.Put("/users/{id}", s.handleUpdateUser)
				r.Delete("/users/{id}", s.handleDeleteUser)

				r.Get("/analytics", s.handleAnalytics)
				r.Get("/uploads", s.handleAdminUploads)
				r.Get("/charts", s.handleAdminCharts)
				r.Post("/bulk-delete", s.handleBulkDelete)

				r.Get("/settings", s.handleGetSettings)
				r.Put("/settings", s.handleUpdateSettings)
			})
		})
	})
}

// Start begins listening on the configured address. It returns
// http.ErrServerClosed after Shutdown.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.cfg.Server.Addr(),
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	slog.Info("starting server", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server and its rate limiters.
func (s *Server) Shutdown(ctx context.Context) error {
	for _, rl := range s.limiters {
		rl.stop()
	}
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

type dependencyStatus struct {
	Connected bool   `json:"connected"`
	Error     string `json:"error,omitempty"`
}

// handleHealth reports process and dependency status. Any failing
// dependency turns the response into a 503.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	status := http.StatusOK
	deps := make(map[string]dependencyStatus, len(s.deps))
	for _, d := range s.deps {
		if err := d.Ping(ctx); err != nil {
			deps[d.Name] = dependencyStatus{Error: err.Error()}
			status = http.StatusServiceUnavailable
			continue
		}
		deps[d.Name] = dependencyStatus{Connected: true}
	}

	state := "OK"
	if status != http.StatusOK {
		state = "DEGRADED"
	}
	writeJSON(w, status, struct {
		Status       string                      `json:"status"`
		Timestamp    time.Time                   `json:"timestamp"`
		Uptime       float64                     `json:"uptime"`
		Dependencies map[string]dependencyStatus `json:"dependencies"`
		Uploads      core.UploadLimiterStatus    `json:"uploads"`
	}{state, time.Now().UTC(), time.Since(s.started).Seconds(), deps, s.service.UploadLimiterStatus()})
}

func (s *Server) handleAPIInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":   s.service.Settings().General.AppName + " API",
		"status": "Running",
		"endpoints": map[string]string{
			"auth":   "/api/auth",
			"upload": "/api/upload",
			"chart":  "/api/chart",
			"user":   "/api/user",
			"admin":  "/api/admin",
			"health": "/api/health",
		},
	})
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	s.respondError(w, r, errRouteNotFound, http.StatusNotFound)
}

// securityHeaders adds security headers to all responses.
func securityHeaders(enableCSP bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-Frame-Options", "DENY")
			h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
			// The API only serves JSON, files and error fragments.
			if enableCSP {
				h.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
			}
			next.ServeHTTP(w, r)
		})
	}
}

// rateLimiter is a fixed-window request limiter per client IP.
type rateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	rate     int           // requests per window
	window   time.Duration // time window
	fail     webmw.ErrorResponder
	now      func() time.Time
	done     chan struct{}
	stopOnce sync.Once
}

type visitor struct {
	tokens    int
	lastReset time.Time
}

// newRateLimiter creates a limiter that is stopped by Shutdown.
func (s *Server) newRateLimiter(rate int, window time.Duration) *rateLimiter {
	rl := &rateLimiter{
		visitors: make(map[string]*visitor),
		rate:     rate,
		window:   window,
		fail:     s.fail,
		now:      time.Now,
		done:     make(chan struct{}),
	}
	s.limiters = append(s.limiters, rl)
	go rl.cleanup()
	return rl
}

// cleanup removes stale visitor entries every window until stop.
func (rl *rateLimiter) cleanup() {
	ticker := time.NewTicker(rl.window)
	defer ticker.Stop()
	for {
		select {
		case <-rl.done:
			return
		case <-ticker.C:
			rl.mu.Lock()
			for ip, v := range rl.visitors {
				if rl.now().Sub(v.lastReset) > rl.window*2 {
					delete(rl.visitors, ip)
				}
			}
			rl.mu.Unlock()
		}
	}
}

func (rl *rateLimiter) stop() {
	rl.stopOnce.Do(func() { close(rl.done) })
}

// allow checks if the request should be allowed and consumes a token if so.
func (rl *rateLimiter) allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	v, exists := rl.visitors[ip]
	if !exists || now.Sub(v.lastReset) > rl.window {
		rl.visitors[ip] = &visitor{tokens: rl.rate - 1, lastReset: now}
		return rl.rate > 0
	}
	if v.tokens <= 0 {
		return false
	}
	v.tokens--
	return true
}

// middleware rejects clients that used up their window with a 429.
func (rl *rateLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}
		if !rl.allow(webmw.ClientIP(r)) {
			rl.fail(w, r, errRateLimited)
			return
		}
		next.ServeHTTP(w, r)
	})
}
