// Command snowglobe runs a local Snowflake emulator backed by DuckDB.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/snowglobe-io/snowglobe/pkg/catalog"
	"github.com/snowglobe-io/snowglobe/pkg/config"
	"github.com/snowglobe-io/snowglobe/pkg/engine"
	"github.com/snowglobe-io/snowglobe/pkg/executor"
	"github.com/snowglobe-io/snowglobe/pkg/history"
	"github.com/snowglobe-io/snowglobe/pkg/logbuf"
	"github.com/snowglobe-io/snowglobe/pkg/session"
	"github.com/snowglobe-io/snowglobe/pkg/worksheet"
	"github.com/snowglobe-io/snowglobe/server/handlers"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(config.ExitConfig)
	}

	sink := logbuf.NewSink(cfg.LogBufferCapacity)
	log := logbuf.NewLogger(cfg.LogLevel, sink)

	if err := run(cfg, log, sink); err != nil {
		log.Errorf("fatal: %v", err)
		os.Exit(config.ExitStartup)
	}
}

func run(cfg *config.Config, log *logrus.Logger, sink *logbuf.Sink) error {
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir %s: %w", cfg.DataDir, err)
	}

	eng, err := engine.Open(filepath.Join(cfg.DataDir, "snowglobe.duckdb"), cfg.QueryDeadline(), log)
	if err != nil {
		return fmt.Errorf("open engine: %w", err)
	}
	defer eng.Close()

	cat := catalog.New(catalog.DefaultPath(cfg.DataDir), log)
	if err := cat.Load(); err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}
	if !cat.HasDatabase(config.DefaultDatabase) {
		if err := cat.CreateDatabase(config.DefaultDatabase, catalog.CreateOptions{}); err != nil {
			return fmt.Errorf("bootstrap default database: %w", err)
		}
		log.Infof("created default database %s", config.DefaultDatabase)
	}

	worksheets := worksheet.New(worksheet.DefaultPath(cfg.DataDir))
	if err := worksheets.Load(); err != nil {
		return fmt.Errorf("load worksheets: %w", err)
	}

	sessions := session.NewManager(session.Defaults{
		Database:  config.DefaultDatabase,
		Schema:    config.DefaultSchema,
		Warehouse: config.DefaultWarehouse,
		Role:      config.DefaultRole,
	}, cfg.SessionIdle())

	exec := executor.New(cat, eng, log, config.ServerVersion, config.DefaultWarehouse)
	hist := history.New(cfg.HistoryCapacity)

	srv := handlers.New(cfg, log, sessions, exec, cat, hist, sink, worksheets)
	router := srv.Routes()

	plain := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler: router,
	}

	errCh := make(chan error, 2)
	go func() {
		log.Infof("listening on %s", plain.Addr)
		if err := plain.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	var secure *http.Server
	if cfg.EnableHTTPS {
		if !cfg.CertFilesPresent() {
			log.Errorf("HTTPS enabled but %s or %s is missing", cfg.CertPath, cfg.KeyPath)
			os.Exit(config.ExitCertificate)
		}
		secure = &http.Server{
			Addr:    fmt.Sprintf("%s:%d", cfg.Host, cfg.HTTPSPort),
			Handler: router,
		}
		go func() {
			log.Infof("listening on %s (TLS)", secure.Addr)
			if err := secure.ListenAndServeTLS(cfg.CertPath, cfg.KeyPath); !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}()
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-stop:
		log.Infof("received %s, shutting down", sig)
	case err := <-errCh:
		return fmt.Errorf("serve: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace())
	defer cancel()
	if err := plain.Shutdown(ctx); err != nil {
		log.Warnf("plaintext shutdown: %v", err)
	}
	if secure != nil {
		if err := secure.Shutdown(ctx); err != nil {
			log.Warnf("TLS shutdown: %v", err)
		}
	}
	if err := cat.Persist(); err != nil {
		log.Warnf("final catalog persist: %v", err)
	}
	return nil
}
