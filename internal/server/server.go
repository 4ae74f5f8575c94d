package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/claude/summitchronicles/internal/cache"
	"github.com/claude/summitchronicles/internal/ingest/schedule"
	"github.com/claude/summitchronicles/internal/models"
	"github.com/claude/summitchronicles/internal/storage"
	"github.com/claude/summitchronicles/internal/weather"
	"github.com/go-chi/chi/v5"
)

// ImportLogStore records plan uploads. *storage.DB satisfies it.
type ImportLogStore interface {
	InsertImportLog(ctx context.Context, log storage.ImportLog) (int64, error)
	UpdateImportLog(ctx context.Context, id int64, log storage.ImportLog) error
	QueryImportLogs(ctx context.Context, limit int) ([]storage.ImportLog, error)
}

// PlanCatalog lists uploaded plans. *storage.DB satisfies it.
type PlanCatalog interface {
	ListPlans(ctx context.Context, limit int) ([]models.TrainingPlan, error)
}

// Pinger reports database reachability. *storage.DB satisfies it.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the components the HTTP API serves. Plans and Logs are nil when
// no database is configured; Weather is nil when weather lookups are off.
type Deps struct {
	Loader  *schedule.Loader
	Plans   *schedule.Provider
	Logs    ImportLogStore
	Catalog PlanCatalog
	DB      Pinger
	Queries *cache.Queries
	Weather *weather.Client
	APIKey  string
	Log     *slog.Logger
	Now     func() time.Time
}

// Server holds dependencies for HTTP handlers.
type Server struct {
	loader  *schedule.Loader
	plans   *schedule.Provider
	logs    ImportLogStore
	catalog PlanCatalog
	db      Pinger
	queries *cache.Queries
	weather *weather.Client
	log     *slog.Logger
	apiKey  string
	now     func() time.Time
	router  chi.Router
}

// New creates a new Server with all routes configured.
func New(d Deps) *Server {
	if d.Now == nil {
		d.Now = time.Now
	}
	s := &Server{
		loader:  d.Loader,
		plans:   d.Plans,
		logs:    d.Logs,
		catalog: d.Catalog,
		db:      d.DB,
		queries: d.Queries,
		weather: d.Weather,
		log:     d.Log,
		apiKey:  d.APIKey,
		now:     d.Now,
		router:  chi.NewRouter(),
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.router.Use(RequestLogging(s.log))
	s.router.Use(CORS)

	s.router.Route("/api/v1/training", func(r chi.Router) {
		r.Get("/workouts", s.handleWorkouts)
		r.Get("/workouts/{week}", s.handleWorkoutWeek)
		r.Get("/plans", s.handleImportLogs)
		r.Get("/plans/stored", s.handleStoredPlans)
		r.With(APIKeyAuth(s.apiKey)).Post("/plans", s.handleUploadPlan)
	})

	s.router.Get("/api/v1/health", s.handleHealth)
	s.router.Get("/api/v1/weather", s.handleWeather)
	s.router.Get("/api/v1/weather/conditions", s.handleConditions)

	s.router.With(APIKeyAuth(s.apiKey)).Delete("/api/v1/cache", s.handleInvalidateCache)
}

// SetMCP mounts an MCP streamable HTTP handler at /mcp.
func (s *Server) SetMCP(h http.Handler) {
	s.router.Mount("/mcp", h)
}
