package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/mlava/better-tasks/internal/attrsync"
	"github.com/mlava/better-tasks/internal/config"
	"github.com/mlava/better-tasks/internal/graph"
	"github.com/mlava/better-tasks/internal/pipeline"
	"github.com/mlava/better-tasks/internal/server"
)

func main() {
	var (
		addr      = flag.String("addr", ":8484", "listen address")
		cfgPath   = flag.String("config", "", "settings yaml (defaults + env when empty)")
		dataDir   = flag.String("data", "data", "data directory")
		storeKind = flag.String("store", "file", "graph store: memory | file | sqlite")
	)
	flag.Parse()

	logger := log.Default()

	settings := config.FromEnv()
	if *cfgPath != "" {
		loaded, err := config.Load(*cfgPath)
		if err != nil {
			log.Fatalf("load config: %v", err)
		}
		settings = *loaded
	}

	store, closeStore, err := openStore(*storeKind, *dataDir)
	if err != nil {
		log.Fatalf("open %s store: %v", *storeKind, err)
	}
	defer closeStore()

	syncer := attrsync.NewSyncer(store, settings, logger)
	coord := pipeline.NewCoordinator(store, settings, pipeline.Options{
		Logger:     logger,
		OnShutdown: []func(){syncer.Shutdown},
	})

	handler := server.NewHandler(store, coord, syncer, logger)
	srv := &http.Server{Addr: *addr, Handler: handler.Routes()}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		_ = srv.Shutdown(context.Background())
		coord.Shutdown()
	}()

	logger.Printf("listening on http://localhost%s (%s store)", *addr, *storeKind)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal(err)
	}
}

func openStore(kind, dataDir string) (graph.Store, func(), error) {
	switch kind {
	case "memory":
		return graph.NewMemoryStore(), func() {}, nil
	case "sqlite":
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, nil, err
		}
		s, err := graph.NewSQLiteStore(filepath.Join(dataDir, "graph.db"))
		if err != nil {
			return nil, nil, err
		}
		return s, func() { _ = s.Close() }, nil
	default:
		s, err := graph.NewFileStore(dataDir)
		if err != nil {
			return nil, nil, err
		}
		return s, func() {}, nil
	}
}
