// Command pluginsortd runs the read-only HTTP data API over a single
// game installation, wiring config, logging, the plugin/load-order
// collaborators and the sort façade together. Grounded on the teacher's
// cmd/server/main.go entry point shape (load config, build mux, graceful
// shutdown on SIGINT/SIGTERM).
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/pluginsort/core/internal/buildinfo"
	"github.com/pluginsort/core/internal/config"
	"github.com/pluginsort/core/internal/gamestate"
	"github.com/pluginsort/core/internal/gametype"
	"github.com/pluginsort/core/internal/httpapi"
	"github.com/pluginsort/core/internal/loadorderio"
	"github.com/pluginsort/core/internal/logging"
	"github.com/pluginsort/core/internal/metadatalist"
	"github.com/pluginsort/core/internal/pluginfile"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "pluginsortd:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	logSetup := logging.Setup(logging.Config{LogDir: cfg.LogDir, Verbose: cfg.Verbose})
	defer logSetup.Cleanup()
	logger := logSetup.Logger
	logger.Info("starting pluginsortd", "version", buildinfo.Full(), "game_type", cfg.GameType)

	gt, err := gametype.Parse(cfg.GameType)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	loh := loadorderio.New()
	if err := loh.Initialize(ctx, gt, cfg.GameDir, cfg.LocalAppDataDir); err != nil {
		return fmt.Errorf("initialize load order handler: %w", err)
	}

	reader := pluginfile.NewFileReader(cfg.DataDir)
	game := gamestate.New(gt, cfg.GameDir, cfg.DataDir, cfg.LocalAppDataDir, reader, loh, logger)

	if ml, err := loadMetadataList(cfg.MasterlistPath()); err != nil {
		logger.Warn("failed to load masterlist, continuing without it", "error", err)
	} else {
		game.Masterlist = ml
	}
	if ul, err := loadMetadataList(cfg.UserlistPath()); err != nil {
		logger.Warn("failed to load userlist, continuing without it", "error", err)
	} else {
		game.Userlist = ul
	}

	server := httpapi.NewServer(httpapi.Config{Port: cfg.Port, CORSOrigins: cfg.CORSOrigins}, game, logger)

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("listening", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-serveErr:
		return fmt.Errorf("server error: %w", err)
	}

	if err := httpapi.Shutdown(context.Background(), server); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	logger.Info("pluginsortd stopped")
	return nil
}

func loadMetadataList(path string) (*metadatalist.MetadataList, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return metadatalist.Parse(f)
}
