// foodshare - surplus food donation service
// Copyright (C) 2025  foodshare contributors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/jredh-dev/foodshare/config"
	"github.com/jredh-dev/foodshare/internal/approver"
	"github.com/jredh-dev/foodshare/internal/donation"
	"github.com/jredh-dev/foodshare/internal/geocode"
	"github.com/jredh-dev/foodshare/internal/web/handlers"
	"github.com/jredh-dev/foodshare/internal/web/middleware"
)

var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	if *showVersion {
		fmt.Printf("foodshare-server %s\n", version)
		fmt.Printf("Commit: %s\n", commit)
		fmt.Printf("Built: %s\n", buildDate)
		os.Exit(0)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("configuration error", "error", err)
		os.Exit(1)
	}

	level, _ := cfg.SlogLevel()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	b, err := openBackends(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer b.Close()

	m := donation.New(donation.Deps{
		Store:    b.store,
		Verifier: b.verifier,
		Objects:  b.objects,
		Geocoder: geocode.NewStub(),
	}, donation.Config{
		Approval:       cfg.ApprovalPolicy(),
		AuthorityRole:  cfg.Auth.AuthorityRole,
		PickupLocation: cfg.PickupLocation(),
		Logger:         logger,
	})

	if cfg.ApprovalPolicy().Mode == donation.ApprovalAuto {
		stopSweeper := approver.New(m, cfg.Approval.SweepInterval, logger).Start(ctx)
		defer stopSweeper()
	}

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.NewSlogLogger(logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.NewCORSHandler(cfg.Server.CORSOrigins))
	r.Use(middleware.NewMaxBodySizeHandler(cfg.Server.MaxBodyBytes))
	r.Use(chimiddleware.Timeout(30 * time.Second))

	handlers.New(m, logger).Mount(r)
	if b.media != nil {
		r.Handle("/media/*", http.StripPrefix("/media/", b.media))
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting",
			"addr", srv.Addr,
			"env", cfg.Server.Env,
			"store", cfg.Store.Backend,
			"auth", cfg.Auth.Provider,
			"objects", cfg.Objects.Backend,
			"approval", cfg.Approval.Mode,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info("server stopped")
	return nil
}
