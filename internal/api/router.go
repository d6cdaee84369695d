package api

import (
	"context"
	"encoding/json"
	"net/http"
	goruntime "runtime"
	"sync/atomic"
	"time"

	"github.com/Harshitk-cp/bdi/internal/api/handlers"
	mw "github.com/Harshitk-cp/bdi/internal/api/middleware"
	"github.com/Harshitk-cp/bdi/internal/runtime"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Pinger reports whether a backing service is reachable. *pgxpool.Pool
// satisfies it.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options configures the control surface.
type Options struct {
	Runner *runtime.Runner
	Logger *zap.Logger
	// Registerer receives the HTTP metrics and Gatherer serves /metrics.
	// Both default to a fresh registry.
	Registerer prometheus.Registerer
	Gatherer   prometheus.Gatherer
	// Health is pinged by /health when set.
	Health         Pinger
	Token          string
	RateLimitRPS   float64
	RateLimitBurst int
}

// App holds the router and its request counters.
type App struct {
	Router       *chi.Mux
	runner       *runtime.Runner
	startTime    time.Time
	requestCount atomic.Int64
	errorCount   atomic.Int64
}

func NewApp(opts Options) *App {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Registerer == nil || opts.Gatherer == nil {
		reg := prometheus.NewRegistry()
		opts.Registerer, opts.Gatherer = reg, reg
	}

	agentHandler := handlers.NewAgentHandler(opts.Runner, opts.Logger)

	r := chi.NewRouter()
	app := &App{
		Router:    r,
		runner:    opts.Runner,
		startTime: time.Now(),
	}

	metricsCollector := mw.NewMetricsCollector(&app.requestCount, &app.errorCount, opts.Registerer)

	// Order matters: the request id must exist before logging.
	r.Use(mw.RequestID)
	r.Use(middleware.RealIP)
	r.Use(metricsCollector.Middleware)
	r.Use(mw.Logging(opts.Logger))
	r.Use(middleware.Recoverer)
	r.Use(mw.RateLimit(opts.RateLimitRPS, opts.RateLimitBurst))

	r.Get("/health", healthHandler(opts.Health))
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}))
	r.Get("/stats", app.statsHandler())

	r.Route("/v1", func(r chi.Router) {
		r.Use(mw.BearerToken(opts.Token))

		r.Route("/agents", func(r chi.Router) {
			r.Get("/", agentHandler.List)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", agentHandler.GetByID)
				r.Get("/plans", agentHandler.Plans)
				r.Get("/beliefs", agentHandler.Beliefs)
				r.Post("/triggers", agentHandler.Inject)
			})
		})
	})

	return app
}

func healthHandler(p Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if p != nil {
			if err := p.Ping(r.Context()); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				_ = json.NewEncoder(w).Encode(map[string]string{"status": "error", "error": err.Error()})
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}
}

func (app *App) statsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var memStats goruntime.MemStats
		goruntime.ReadMemStats(&memStats)

		uptime := time.Since(app.startTime)

		response := map[string]any{
			"uptime_seconds": uptime.Seconds(),
			"uptime_human":   uptime.Round(time.Second).String(),
			"request_count":  app.requestCount.Load(),
			"error_count":    app.errorCount.Load(),
			"goroutines":     goruntime.NumGoroutine(),
			"runner":         app.runner.Stats(),
			"memory": map[string]any{
				"alloc_mb": float64(memStats.Alloc) / 1024 / 1024,
				"sys_mb":   float64(memStats.Sys) / 1024 / 1024,
				"num_gc":   memStats.NumGC,
			},
			"go_version": goruntime.Version(),
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(response)
	}
}
