package api

import (
	"context"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"
	"golang.org/x/time/rate"

	"github.com/smazurov/pdfnode/internal/api/models"
	"github.com/smazurov/pdfnode/internal/converter"
	"github.com/smazurov/pdfnode/internal/events"
	"github.com/smazurov/pdfnode/internal/logging"
	"github.com/smazurov/pdfnode/internal/process"
	"github.com/smazurov/pdfnode/internal/version"
	"github.com/smazurov/pdfnode/ui"
)

const authRealm = `Basic realm="pdfnode API"`

// shutdownTimeout bounds how long Stop waits for in-flight conversions.
const shutdownTimeout = 10 * time.Second

// PoolInspector exposes pool state to the API.
type PoolInspector interface {
	Stats() process.Stats
}

// Server represents the Huma v2 API server
type Server struct {
	api        huma.API
	mux        *http.ServeMux
	httpServer *http.Server
	converter  *converter.Service
	pool       PoolInspector
	eventBus   *events.Bus
	limiter    *rate.Limiter
	options    *Options
	logger     *slog.Logger
}

// Options configures the API server
type Options struct {
	AuthUsername      string
	AuthPassword      string
	Converter         *converter.Service
	Pool              PoolInspector
	EventBus          *events.Bus
	PrometheusHandler http.Handler // Optional Prometheus metrics handler
	ConverterVersion  string       // Reported by /api/version when known

	// RateLimit caps /api/generate requests per second (0 disables).
	RateLimit float64
	// RateBurst is the number of requests allowed above RateLimit at once.
	RateBurst int
	// MaxBodyBytes caps the HTML upload size (0 disables).
	MaxBodyBytes int64

	// OnListening is called once the listener is bound, before serving.
	OnListening func(addr net.Addr)
}

// credentialsFromRequest extracts basic auth credentials from the
// Authorization header, or from the base64 "auth" query parameter that
// EventSource clients use since they cannot set headers.
func credentialsFromRequest(authHeader, queryAuth string) (string, string, error) {
	var encoded string
	switch {
	case authHeader != "":
		const prefix = "Basic "
		if !strings.HasPrefix(authHeader, prefix) {
			return "", "", errors.New("invalid authentication type")
		}
		encoded = authHeader[len(prefix):]
	case queryAuth != "":
		encoded = queryAuth
	default:
		return "", "", errors.New("authentication required")
	}

	decoded, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", "", errors.New("invalid credentials format")
	}

	username, password, ok := strings.Cut(string(decoded), ":")
	if !ok {
		return "", "", errors.New("invalid credentials format")
	}
	return username, password, nil
}

// checkCredentials compares in constant time.
func (s *Server) checkCredentials(username, password string) bool {
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(s.options.AuthUsername)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(password), []byte(s.options.AuthPassword)) == 1
	return userOK && passOK
}

func (s *Server) authEnabled() bool {
	return s.options.AuthUsername != "" && s.options.AuthPassword != ""
}

// basicAuthMiddleware creates middleware for HTTP basic authentication
func (s *Server) basicAuthMiddleware(ctx huma.Context, next func(huma.Context)) {
	// Skip auth for operations without security requirements
	op := ctx.Operation()
	if op != nil && len(op.Security) == 0 {
		next(ctx)
		return
	}

	username, password, err := credentialsFromRequest(ctx.Header("Authorization"), ctx.Query("auth"))
	if err != nil {
		ctx.SetHeader("WWW-Authenticate", authRealm)
		huma.WriteErr(s.api, ctx, http.StatusUnauthorized, err.Error())
		return
	}

	if !s.checkCredentials(username, password) {
		ctx.SetHeader("WWW-Authenticate", authRealm)
		huma.WriteErr(s.api, ctx, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	next(ctx)
}

// NewServer creates a new API server with Huma v2 using Go 1.22+ native routing
func NewServer(opts *Options) *Server {
	mux := http.NewServeMux()

	corsConfig := DefaultCORSConfig()

	// Add CORS preflight handler for all OPTIONS requests
	AddCORSHandler(mux, corsConfig)

	config := huma.DefaultConfig("pdfnode API", version.Get().Version)
	config.Info.Description = "HTML to PDF conversion on a pool of pre-warmed wkhtmltopdf workers"
	// Empty servers list will make OpenAPI use relative paths, working with any host
	config.Servers = []*huma.Server{}

	config.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"basicAuth": {
			Type:   "http",
			Scheme: "basic",
		},
	}

	api := humago.New(mux, config)

	server := &Server{
		api:       api,
		mux:       mux,
		converter: opts.Converter,
		pool:      opts.Pool,
		eventBus:  opts.EventBus,
		options:   opts,
		logger:    logging.GetLogger("api"),
	}

	if opts.RateLimit > 0 {
		burst := max(opts.RateBurst, 1)
		server.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}

	// Apply CORS middleware first (before auth)
	api.UseMiddleware(NewCORSMiddleware(corsConfig))

	// Apply HTTP logging middleware after CORS but before auth
	api.UseMiddleware(HTTPLoggingMiddleware)

	if server.authEnabled() {
		api.UseMiddleware(server.basicAuthMiddleware)
	}

	// Prometheus scrapes without credentials
	if opts.PrometheusHandler != nil {
		mux.Handle("GET /metrics", opts.PrometheusHandler)
	}

	// Streaming endpoint lives outside huma, which buffers request bodies
	mux.Handle("POST /api/generate", WithCORS(corsConfig, http.HandlerFunc(server.handleGenerate)))

	server.registerRoutes()

	// Conversion playground at the root
	if frontendHandler, err := ui.Handler(); err == nil {
		mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
			if strings.HasPrefix(r.URL.Path, "/api") {
				http.NotFound(w, r)
				return
			}
			frontendHandler.ServeHTTP(w, r)
		})
	}

	return server
}

// GetMux returns the underlying HTTP ServeMux for additional setup
func (s *Server) GetMux() *http.ServeMux {
	return s.mux
}

// GetAPI returns the Huma API instance
func (s *Server) GetAPI() huma.API {
	return s.api
}

// Start binds addr and serves until Stop. It returns nil after a clean Stop.
func (s *Server) Start(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	s.logger.Info("Starting pdfnode API server", "addr", ln.Addr().String())
	s.logger.Info("OpenAPI documentation available", "url", "http://"+ln.Addr().String()+"/docs")

	s.httpServer = &http.Server{
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	if s.options.OnListening != nil {
		s.options.OnListening(ln.Addr())
	}

	if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop stops accepting requests and waits a bounded time for in-flight
// conversions before closing their connections.
func (s *Server) Stop() error {
	s.logger.Info("Stopping API server")

	if s.httpServer == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Warn("Graceful shutdown timed out, closing connections", "error", err)
		return s.httpServer.Close()
	}
	return nil
}

// registerRoutes sets up all API endpoints
func (s *Server) registerRoutes() {
	// Health check endpoint - no auth required
	huma.Register(s.api, huma.Operation{
		OperationID: "health-check",
		Method:      http.MethodGet,
		Path:        "/api/health",
		Summary:     "Health",
		Description: "Check API health status",
		Tags:        []string{"health"},
		Security:    []map[string][]string{}, // Empty security = no auth required
	}, func(ctx context.Context, input *struct{}) (*models.HealthResponse, error) {
		if s.pool != nil && s.pool.Stats().Closed {
			return nil, huma.Error503ServiceUnavailable("converter pool is shut down")
		}
		return &models.HealthResponse{
			Body: models.HealthData{
				Status:  "ok",
				Message: "API is healthy",
			},
		}, nil
	})

	// Version endpoint - no auth required
	huma.Register(s.api, huma.Operation{
		OperationID: "get-version",
		Method:      http.MethodGet,
		Path:        "/api/version",
		Summary:     "Version",
		Description: "Get application version information",
		Tags:        []string{"system"},
		Security:    []map[string][]string{}, // Empty security = no auth required
	}, func(ctx context.Context, input *struct{}) (*models.VersionResponse, error) {
		versionInfo := version.Get()
		return &models.VersionResponse{
			Body: models.VersionData{
				Version:   versionInfo.Version,
				GitCommit: versionInfo.GitCommit,
				BuildDate: versionInfo.BuildDate,
				BuildID:   versionInfo.BuildID,
				GoVersion: versionInfo.GoVersion,
				Compiler:  versionInfo.Compiler,
				Platform:  versionInfo.Platform,

				ConverterVersion: s.options.ConverterVersion,
			},
		}, nil
	})

	s.registerPoolRoutes()
	s.registerOptionsRoutes()

	if s.eventBus != nil {
		s.registerSSERoutes()
		s.registerLogRoutes()
	}
}

// withAuth returns security requirement for basic auth
func withAuth() []map[string][]string {
	return []map[string][]string{
		{"basicAuth": {}},
	}
}
