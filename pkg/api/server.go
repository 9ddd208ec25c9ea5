package api

import (
	"net/http"
	"regexp"
	"sort"
	"strings"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/platinummonkey/jobportal/pkg/accounts"
	"github.com/platinummonkey/jobportal/pkg/apperr"
	"github.com/platinummonkey/jobportal/pkg/auth"
	"github.com/platinummonkey/jobportal/pkg/authz"
	"github.com/platinummonkey/jobportal/pkg/catalog"
	"github.com/platinummonkey/jobportal/pkg/httputil"
	"github.com/platinummonkey/jobportal/pkg/middleware"
	"github.com/platinummonkey/jobportal/pkg/observability"
	"github.com/platinummonkey/jobportal/pkg/otp"
	"github.com/platinummonkey/jobportal/pkg/upload"
)

// APIPrefix is the path prefix of every versioned route
const APIPrefix = "/api/v1"

// Deps are the collaborators the HTTP layer is built from. Limiters, Health,
// Registry and Metrics are optional.
type Deps struct {
	Codes      *otp.Service
	Accounts   *accounts.Service
	Catalog    *catalog.Service
	Authorizer *authz.Authorizer
	Uploader   *upload.Uploader
	Audit      *auth.AuditLogger
	Logger     *observability.Logger

	OTPLimiter middleware.Limiter
	APILimiter middleware.Limiter

	Health   *observability.HealthChecker
	Registry *prometheus.Registry
	Metrics  *observability.Metrics

	// LocalUploadDir is served under UploadsPath when set
	LocalUploadDir string
	UploadsPath    string
	CORSOrigins    []string
	// ServiceName enables otelhttp server spans when set
	ServiceName string
	// MaxBodyBytes bounds JSON request bodies
	MaxBodyBytes int64
}

// Server is the jobportal HTTP API
type Server struct {
	deps    Deps
	router  *mux.Router
	auth    *AuthHandlers
	users   *UserHandlers
	catalog *CatalogHandlers
	uploads *UploadHandlers
	maxBody int64
	handler http.Handler
	// paths lists every method-restricted route for 405 detection
	paths []routePath
}

type routePath struct {
	pattern *regexp.Regexp
	methods []string
}

// NewServer creates the API server and registers every route
func NewServer(deps Deps) *Server {
	if deps.Audit == nil {
		deps.Audit = auth.NewAuditLogger(deps.Logger)
	}
	if deps.MaxBodyBytes <= 0 {
		deps.MaxBodyBytes = 1 << 20
	}
	s := &Server{
		deps:    deps,
		router:  mux.NewRouter(),
		maxBody: deps.MaxBodyBytes,
	}
	s.auth = NewAuthHandlers(deps.Codes, deps.Accounts, deps.Uploader, deps.Audit)
	s.users = NewUserHandlers(deps.Accounts)
	s.catalog = NewCatalogHandlers(deps.Catalog, deps.Uploader)
	s.uploads = NewUploadHandlers(deps.Uploader)

	s.setupRoutes()
	s.indexRoutes()
	s.handler = s.wrap(s.router)
	return s
}

// Router exposes the underlying router
func (s *Server) Router() *mux.Router {
	return s.router
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

func (s *Server) wrap(h http.Handler) http.Handler {
	chain := []func(http.Handler) http.Handler{
		httputil.RequestIDMiddleware,
		httputil.RequestLoggerMiddleware(s.deps.Logger),
		httputil.RecoveryMiddleware,
	}
	if len(s.deps.CORSOrigins) > 0 {
		chain = append(chain, httputil.CORSMiddleware(s.deps.CORSOrigins))
	}
	if s.deps.ServiceName != "" {
		chain = append(chain, observability.TracingMiddleware(s.deps.ServiceName))
	}
	return httputil.Chain(chain...)(h)
}

func (s *Server) setupRoutes() {
	if s.deps.Metrics != nil {
		s.router.Use(mux.MiddlewareFunc(observability.HTTPMetricsMiddleware(s.deps.Metrics)))
	}
	s.router.NotFoundHandler = http.HandlerFunc(s.unmatched)
	s.router.MethodNotAllowedHandler = http.HandlerFunc(s.unmatched)

	if s.deps.Health != nil {
		observability.RegisterHealthRoutes(s.router, s.deps.Health)
	}
	if s.deps.Registry != nil {
		s.router.Handle("/metrics", observability.MetricsHandler(s.deps.Registry)).Methods(http.MethodGet)
	}
	if s.deps.LocalUploadDir != "" {
		prefix := "/" + strings.Trim(s.deps.UploadsPath, "/") + "/"
		files := http.StripPrefix(prefix, http.FileServer(http.Dir(s.deps.LocalUploadDir)))
		s.router.PathPrefix(prefix).Handler(files).Methods(http.MethodGet, http.MethodHead)
	}

	api := s.router.PathPrefix(APIPrefix).Subrouter()
	if s.deps.APILimiter != nil {
		api.Use(mux.MiddlewareFunc(middleware.RateLimit(s.deps.APILimiter, "api", middleware.ClientIPKey, s.deps.Audit, s.deps.Metrics)))
	}
	api.Use(mux.MiddlewareFunc(s.limitBody))

	s.auth.RegisterRoutes(api, s.deps.Authorizer, s.deps.OTPLimiter, s.deps.Metrics)
	s.users.RegisterRoutes(api, s.deps.Authorizer)
	s.catalog.RegisterRoutes(api, s.deps.Authorizer)
	s.uploads.RegisterRoutes(api, s.deps.Authorizer)
}

// limitBody caps JSON bodies. Multipart bodies are bounded by the uploader.
func (s *Server) limitBody(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		limit := s.maxBody
		if httputil.IsMultipart(r) && s.deps.Uploader != nil {
			limit = s.deps.Uploader.MaxRequestSize()
		}
		if r.Body != nil {
			r.Body = http.MaxBytesReader(w, r.Body, limit)
		}
		next.ServeHTTP(w, r)
	})
}

// indexRoutes records the path pattern and methods of every route. Subrouter
// routes share the prefix matcher, and mux clears a method mismatch whenever a
// later sibling matches that prefix, so unmatched requests are resolved here.
func (s *Server) indexRoutes() {
	_ = s.router.Walk(func(route *mux.Route, _ *mux.Router, _ []*mux.Route) error {
		methods, err := route.GetMethods()
		if err != nil || len(methods) == 0 {
			return nil
		}
		expr, err := route.GetPathRegexp()
		if err != nil {
			return nil
		}
		pattern, err := regexp.Compile(expr)
		if err != nil {
			return nil
		}
		s.paths = append(s.paths, routePath{pattern: pattern, methods: methods})
		return nil
	})
}

// allowedMethods returns the methods registered for the request path
func (s *Server) allowedMethods(path string) []string {
	seen := map[string]bool{}
	var allowed []string
	for _, p := range s.paths {
		if !p.pattern.MatchString(path) {
			continue
		}
		for _, m := range p.methods {
			if !seen[m] {
				seen[m] = true
				allowed = append(allowed, m)
			}
		}
	}
	sort.Strings(allowed)
	return allowed
}

// unmatched answers 405 when the path exists under another method and 404 otherwise
func (s *Server) unmatched(w http.ResponseWriter, r *http.Request) {
	if allowed := s.allowedMethods(r.URL.Path); len(allowed) > 0 {
		w.Header().Set("Allow", strings.Join(allowed, ", "))
		methodNotAllowed(w, r)
		return
	}
	notFound(w, r)
}

func notFound(w http.ResponseWriter, r *http.Request) {
	httputil.WriteFailure(w, r, apperr.NotFound("route not found"))
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	_ = httputil.WriteJSON(w, http.StatusMethodNotAllowed, httputil.FailureResponse{
		Status: httputil.StatusFailure,
		Error: httputil.FailureBody{
			Kind:      apperr.KindBadRequest,
			Message:   "method not allowed",
			RequestID: observability.GetRequestID(r.Context()),
		},
	})
}

// route wraps h with the authorizer when roles is not nil
func route(a *authz.Authorizer, roles authz.RoleSet, h http.HandlerFunc) http.Handler {
	if roles == nil {
		return h
	}
	return a.Require(roles...)(h)
}
