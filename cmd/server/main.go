package main

import (
	"context"
	"crowd-route-service/internal/adapters/importer"
	"crowd-route-service/internal/adapters/signals"
	"crowd-route-service/internal/adapters/weather"
	"crowd-route-service/internal/api"
	"crowd-route-service/internal/config"
	"crowd-route-service/internal/crowd"
	"crowd-route-service/internal/platform/db"
	"crowd-route-service/internal/platform/httpx"
	"crowd-route-service/internal/platform/obs"
	"crowd-route-service/internal/ports"
	"crowd-route-service/internal/routing"
	"crowd-route-service/internal/services"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
)

// redisMaxAge is how old a published reading may be before it is treated as missing.
const redisMaxAge = 2 * time.Minute

// main is the application composition root.
// It wires concrete adapters (Postgres or JSON topology, crowd feeds, weather) behind ports
// and starts the HTTP server.
func main() {
	config.Load()

	cfg, err := config.FromEnv()
	if err != nil {
		log.Fatal(err)
	}

	tables, err := config.LoadTables(cfg.TablesPath)
	if err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	loader, closeLoader, err := newLoader(ctx, cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer closeLoader()

	// An invalid topology is fatal: the process never serves a partial graph.
	graph, err := services.LoadGraph(ctx, loader)
	if err != nil {
		log.Fatal(err)
	}
	log.Printf("topology loaded locations=%d connections=%d", graph.Len(), len(graph.Connections()))

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := obs.NewMetrics(reg)

	source, err := newSignalSource(cfg, tables.Multipliers)
	if err != nil {
		log.Fatal(err)
	}

	model := crowd.NewModel(graph, source,
		crowd.WithWeather(newWeather(cfg)),
		crowd.WithPredictor(crowd.NewTablePredictor(tables.Multipliers)),
		crowd.WithMetrics(metrics),
		crowd.WithDebounce(cfg.RefreshDebounce),
		crowd.WithRefreshTimeout(cfg.RefreshTimeout),
	)

	initCtx, cancel := context.WithTimeout(ctx, cfg.RefreshTimeout)
	err = model.Init(initCtx)
	cancel()
	if err != nil {
		log.Fatal(err)
	}

	planner, err := routing.NewPlanner(tables.Weights, metrics)
	if err != nil {
		log.Fatal(err)
	}

	svc, err := services.NewVenueService(graph, services.VenueDeps{
		Loader:     loader,
		Model:      model,
		Planner:    planner,
		Thresholds: tables.Thresholds,
		Metrics:    metrics,
	})
	if err != nil {
		log.Fatal(err)
	}
	svc.RecordAlerts()

	sched, err := crowd.NewScheduler(model, cfg.RefreshSchedule, cfg.RefreshTimeout)
	if err != nil {
		log.Fatal(err)
	}
	sched.OnRefresh(func(context.Context) { svc.RecordAlerts() })
	sched.Start()

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           api.NewRouter(svc, reg),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		sched.Stop(shutdownCtx)
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("server shutdown failed: %v", err)
		}
	}()

	log.Printf("Server listening addr=:%s source=%s", cfg.Port, model.SourceName())
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal(err)
	}
}

// newLoader prefers Postgres when DATABASE_URL is set and falls back to the JSON topology file.
func newLoader(ctx context.Context, cfg config.Settings) (ports.TopologyLoader, func(), error) {
	if cfg.DatabaseURL == "" {
		return importer.NewJSONLoader(cfg.TopologyPath), func() {}, nil
	}

	conn, err := db.Open(ctx, cfg.DatabaseURL, db.DefaultPool())
	if err != nil {
		return nil, nil, fmt.Errorf("new loader: %w", err)
	}
	return importer.NewSQLLoader(conn), func() { closeDB(conn) }, nil
}

func closeDB(conn *sql.DB) {
	if err := conn.Close(); err != nil {
		log.Printf("close database failed: %v", err)
	}
}

func newSignalSource(cfg config.Settings, table crowd.Table) (ports.SignalSource, error) {
	switch cfg.CrowdSource {
	case config.SourceRedis:
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		return signals.NewRedisSource(rdb, redisMaxAge), nil
	case config.SourceHTTP:
		client := httpx.New(cfg.FeedTimeout, httpx.WithRateLimit(cfg.FeedRPS, int(cfg.FeedRPS)+1))
		return signals.NewHTTPSource(cfg.FeedURL, client), nil
	case config.SourceSynthetic:
		return crowd.NewSyntheticSource(table, cfg.SyntheticSeed), nil
	}
	return nil, fmt.Errorf("new signal source: unknown source %q", cfg.CrowdSource)
}

func newWeather(cfg config.Settings) ports.WeatherProvider {
	if cfg.WeatherURL == "" {
		return weather.Static{Factor: cfg.WeatherValue}
	}
	return weather.NewHTTP(cfg.WeatherURL, httpx.New(cfg.FeedTimeout))
}
