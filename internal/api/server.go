package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"
	"github.com/smazurov/vop2ctl/internal/api/models"
	"github.com/smazurov/vop2ctl/internal/display"
	"github.com/smazurov/vop2ctl/internal/events"
	"github.com/smazurov/vop2ctl/internal/led"
	"github.com/smazurov/vop2ctl/internal/logging"
	"github.com/smazurov/vop2ctl/internal/version"
	"github.com/smazurov/vop2ctl/internal/vop2"
)

// Display is the part of display.Service the API drives.
type Display interface {
	Status() display.Status
	Registers(block string) (map[string]uint32, error)
	Route(mode vop2.OutputMode, port int) error
	Enable(mode vop2.OutputMode) error
	SetPolarity(mode vop2.OutputMode, pol vop2.Polarity) error
	Commit(ctx context.Context, wait bool, port int, timeout time.Duration) (display.CommitResult, error)
}

// Options configures the API server.
type Options struct {
	AuthUsername string
	AuthPassword string

	Display       Display
	CommitTimeout time.Duration
	EventBus      *events.Bus
	LEDController led.Controller

	// PrometheusHandler is mounted at GET /metrics without auth.
	PrometheusHandler http.Handler
}

// Server is the huma API over a net/http mux.
type Server struct {
	api        huma.API
	mux        *http.ServeMux
	httpServer *http.Server
	options    *Options
	display    Display
	eventBus   *events.Bus
	logger     *slog.Logger
}

// NewServer builds the API and registers every route.
func NewServer(opts *Options) *Server {
	mux := http.NewServeMux()
	cors := DefaultCORSConfig()
	AddCORSHandler(mux, cors)

	config := huma.DefaultConfig("vop2ctl API", version.Get().Version)
	config.Info.Description = "Display pipeline control for the Rockchip RK356x VOP2"
	config.Servers = []*huma.Server{}
	config.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"basicAuth": {Type: "http", Scheme: "basic"},
	}

	api := humago.New(mux, config)
	if opts.CommitTimeout <= 0 {
		opts.CommitTimeout = 100 * time.Millisecond
	}

	s := &Server{
		api:      api,
		mux:      mux,
		options:  opts,
		display:  opts.Display,
		eventBus: opts.EventBus,
		logger:   logging.GetLogger("api"),
	}

	api.UseMiddleware(NewCORSMiddleware(cors))
	api.UseMiddleware(HTTPLoggingMiddleware)
	if opts.AuthUsername != "" && opts.AuthPassword != "" {
		api.UseMiddleware(s.basicAuthMiddleware(opts.AuthUsername, opts.AuthPassword))
	}

	if opts.PrometheusHandler != nil {
		mux.Handle("GET /metrics", opts.PrometheusHandler)
	}

	s.registerRoutes()
	return s
}

// GetMux returns the underlying mux.
func (s *Server) GetMux() *http.ServeMux {
	return s.mux
}

// GetAPI returns the huma API.
func (s *Server) GetAPI() huma.API {
	return s.api
}

// Start serves on addr until Stop.
func (s *Server) Start(addr string) error {
	s.logger.Info("Starting API server", "addr", addr)
	s.logger.Info("OpenAPI documentation available", "url", "http://"+addr+"/docs")

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s.httpServer.ListenAndServe()
}

// Stop closes the listener and every open connection, SSE streams
// included.
func (s *Server) Stop() error {
	s.logger.Info("Stopping API server")
	if s.httpServer != nil {
		return s.httpServer.Close()
	}
	return nil
}

func (s *Server) registerRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "health-check",
		Method:      http.MethodGet,
		Path:        "/api/health",
		Summary:     "Health",
		Description: "Check API health and whether the VOP2 has been probed",
		Tags:        []string{"health"},
		Security:    []map[string][]string{},
	}, func(_ context.Context, _ *struct{}) (*models.HealthResponse, error) {
		resp := &models.HealthResponse{Body: models.HealthData{Status: "ok", Message: "API is healthy"}}
		if s.display != nil {
			resp.Body.Ready = s.display.Status().Ready
		}
		return resp, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-version",
		Method:      http.MethodGet,
		Path:        "/api/version",
		Summary:     "Version",
		Description: "Get build information",
		Tags:        []string{"system"},
		Security:    []map[string][]string{},
	}, func(_ context.Context, _ *struct{}) (*models.VersionResponse, error) {
		return &models.VersionResponse{Body: version.Get()}, nil
	})

	if s.display != nil {
		s.registerDisplayRoutes()
	}
	s.registerLEDRoutes()
	s.registerSSERoutes()
	s.registerLogRoutes()
	s.registerMetricsRoutes()
}

func withAuth() []map[string][]string {
	return []map[string][]string{
		{"basicAuth": {}},
	}
}
