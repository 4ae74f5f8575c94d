package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/claude/summitchronicles/internal/cache"
	"github.com/claude/summitchronicles/internal/config"
	"github.com/claude/summitchronicles/internal/ingest/schedule"
	"github.com/claude/summitchronicles/internal/mcp"
	"github.com/claude/summitchronicles/internal/server"
	"github.com/claude/summitchronicles/internal/storage"
	"github.com/claude/summitchronicles/internal/weather"
	"tailscale.com/tsnet"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	migrateOnly := flag.Bool("migrate-only", false, "run migrations and exit")
	mcpStdio := flag.Bool("mcp", false, "serve MCP over stdio instead of HTTP")
	remote := flag.String("remote", "", "with -mcp, read data from this summit server URL instead of local config")
	flag.Parse()

	// In stdio mode stdout carries the protocol.
	var logOut io.Writer = os.Stdout
	if *mcpStdio {
		logOut = os.Stderr
	}
	log := slog.New(slog.NewTextHandler(logOut, &slog.HandlerOptions{Level: slog.LevelInfo}))
	log.Info("summit starting", "version", Version)

	if *mcpStdio && *remote != "" {
		log.Info("mcp remote mode", "server", *remote)
		if err := mcp.ServeStdio(mcp.New(mcp.NewHTTPClient(*remote), Version, log)); err != nil {
			log.Error("mcp server error", "error", err)
			os.Exit(1)
		}
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	// Database is optional: without it plans come from files only.
	var db *storage.DB
	if cfg.Database.Enabled() {
		dsn := cfg.Database.DSN()
		if err := storage.RunMigrations(dsn, "migrations"); err != nil {
			log.Error("migration failed", "error", err)
			os.Exit(1)
		}
		log.Info("migrations applied")

		if *migrateOnly {
			log.Info("migrate-only: exiting")
			return
		}

		db, err = storage.New(ctx, dsn, cfg.Database.MaxConns)
		if err != nil {
			log.Error("failed to connect database", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		log.Info("database connected")
	} else if *migrateOnly {
		log.Error("migrate-only requires a database")
		os.Exit(1)
	}

	store, closeStore, err := openCacheStore(cfg.Cache, db)
	if err != nil {
		log.Error("failed to open cache store", "error", err)
		os.Exit(1)
	}
	defer closeStore()
	log.Info("cache ready", "backend", cfg.Cache.Backend, "max_size", cfg.Cache.MaxSize)

	c := cache.New(store, cache.Options{MaxSize: cfg.Cache.MaxSize}, log)
	queries := cache.NewQueries(c, log)

	week1, _ := cfg.Schedule.Week1() // validated by config.Load
	opts := schedule.Options{Week1Start: week1, Sheet: cfg.Schedule.Sheet}

	// plans stays a nil interface without a database.
	var plans schedule.PlanStore
	var provider *schedule.Provider
	var logs server.ImportLogStore
	var catalog server.PlanCatalog
	var pinger server.Pinger
	if db != nil {
		plans = db
		provider = schedule.NewProvider(db, opts, log)
		logs = db
		catalog = db
		pinger = db
	}

	loader := schedule.NewLoader(plans, queries, schedule.LoaderConfig{
		XLSXPath: cfg.Schedule.XLSXPath,
		CSVPath:  cfg.Schedule.CSVPath,
		Options:  opts,
		Cache:    cache.Config(cfg.Cache.Schedule),
	}, log)

	var wx *weather.Client
	if cfg.Weather.BaseURL != "" {
		api := cache.NewAPICache(queries, nil, log)
		wx = weather.New(cfg.Weather.BaseURL, cfg.Weather.APIKey, api, cache.Config(cfg.Cache.Weather))
		if len(cfg.Weather.Warmup) > 0 {
			points := make([][2]float64, 0, len(cfg.Weather.Warmup))
			for _, l := range cfg.Weather.Warmup {
				points = append(points, [2]float64{l.Lat, l.Lon})
			}
			go wx.Warmup(ctx, points)
		}
	}

	mcpServer := mcp.New(&mcp.Local{Loader: loader, WeatherClient: wx}, Version, log)

	if *mcpStdio {
		if err := mcp.ServeStdio(mcpServer); err != nil {
			log.Error("mcp server error", "error", err)
		}
		shutdownQueries(queries, log)
		return
	}

	srv := server.New(server.Deps{
		Loader:  loader,
		Plans:   provider,
		Logs:    logs,
		Catalog: catalog,
		DB:      pinger,
		Queries: queries,
		Weather: wx,
		APIKey:  cfg.Auth.APIKey,
		Log:     log,
	})
	srv.SetMCP(mcp.HTTPHandler(mcpServer))

	// Start server: tsnet or plain HTTP
	var listener net.Listener
	var tsServer *tsnet.Server

	if cfg.Tailscale.Enabled {
		tsServer = &tsnet.Server{
			Hostname: cfg.Tailscale.Hostname,
			Dir:      cfg.Tailscale.StateDir,
		}
		if err := tsServer.Start(); err != nil {
			log.Error("tsnet start failed", "error", err)
			os.Exit(1)
		}
		defer tsServer.Close()

		listener, err = tsServer.Listen("tcp", ":80")
		if err != nil {
			log.Error("tsnet listen failed", "error", err)
			os.Exit(1)
		}
		log.Info("tsnet server starting", "hostname", cfg.Tailscale.Hostname)
	} else {
		addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		listener, err = net.Listen("tcp", addr)
		if err != nil {
			log.Error("listen failed", "addr", addr, "error", err)
			os.Exit(1)
		}
		log.Info("server starting", "addr", addr, "mode", "dev (no tailscale)")
	}

	httpSrv := &http.Server{Handler: srv, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		if err := httpSrv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.Info("shutting down", "signal", sig)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", "error", err)
	}
	shutdownQueries(queries, log)
	log.Info("server stopped")
}

// openCacheStore returns the durable cache tier for the configured backend
// and a func that releases it. A nil store means memory only.
func openCacheStore(cfg config.CacheConfig, db *storage.DB) (cache.Store, func(), error) {
	switch cfg.Backend {
	case config.BackendSQLite:
		s, err := cache.OpenSQLiteStore(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { s.Close() }, nil
	case config.BackendPostgres:
		return storage.NewCacheStore(db), func() {}, nil
	default:
		return nil, func() {}, nil
	}
}

// shutdownQueries waits briefly for background revalidations so their
// results reach the durable tier.
func shutdownQueries(q *cache.Queries, log *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := q.Shutdown(ctx); err != nil {
		log.Warn("background revalidations still running at exit", "error", err)
	}
}
