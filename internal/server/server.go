package server

import (
	"context"
	"embed"
	"html/template"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/cognicore/reviewtopics/internal/metrics"
	"github.com/cognicore/reviewtopics/pkg/reviewtopics"
	"github.com/cognicore/reviewtopics/pkg/reviewtopics/inference"
	"github.com/cognicore/reviewtopics/pkg/reviewtopics/store"
)

//go:embed templates
var templates embed.FS

const (
	readTimeout  = 30 * time.Second
	writeTimeout = 60 * time.Second
)

// Backend is what the server needs from the topic viewer.
type Backend interface {
	Ready() bool
	LoadErr() error
	ModelPath() string
	Topics() []reviewtopics.Topic
	Classify(text string) inference.Result
	Examples(ctx context.Context, n int) ([]store.Review, error)
	TopicCounts(ctx context.Context) (map[int]int, error)
	VisualizationHTML() ([]byte, error)
}

// Server serves the viewer pages and the JSON API.
type Server struct {
	e       *echo.Echo
	backend Backend
	log     *zap.Logger
	metrics *metrics.Metrics
	page    *template.Template
	printer *message.Printer
}

// New builds the router. m may be nil, in which case a fresh registry is
// created.
func New(backend Backend, log *zap.Logger, m *metrics.Metrics) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	if m == nil {
		m = metrics.New(backend, log)
	}
	m.SetModelReady(backend.Ready())

	s := &Server{
		e:       echo.New(),
		backend: backend,
		log:     log,
		metrics: m,
		page:    template.Must(template.New("index.html").Funcs(pageFuncs).ParseFS(templates, "templates/index.html")),
		printer: message.NewPrinter(language.English),
	}

	e := s.e
	e.HideBanner = true
	e.HidePort = true
	e.Server.ReadTimeout = readTimeout
	e.Server.WriteTimeout = writeTimeout

	e.Use(RequestID())
	e.Use(Logger(log))
	e.Use(middleware.Recover())

	e.GET("/", s.index)
	e.POST("/", s.index)
	e.GET("/visualization", s.visualization)
	e.GET("/healthz", s.health)
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})))

	api := e.Group("/api")
	api.GET("/topics", s.topics)
	api.POST("/classify", s.classify)
	api.GET("/reviews", s.reviews)

	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.e
}

// Start listens on addr and blocks until the server stops. It returns
// http.ErrServerClosed after Shutdown.
func (s *Server) Start(addr string) error {
	s.log.Info("Starting server", zap.String("address", addr))
	return s.e.Start(addr)
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.e.Shutdown(ctx)
}
