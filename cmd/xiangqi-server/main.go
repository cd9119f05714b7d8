package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/park285/Cheese-Xiangqi/internal/appbuilder"
	appcfg "github.com/park285/Cheese-Xiangqi/internal/config"
	"github.com/park285/Cheese-Xiangqi/internal/obslog"
	"go.uber.org/zap"
)

func main() {
	cfg, err := appcfg.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if err := obslog.Init(cfg.Log); err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	logger := obslog.L()
	defer func() { _ = logger.Sync() }()

	app, err := appbuilder.New(cfg, logger)
	if err != nil {
		logger.Fatal("app_init_failed", zap.Error(err))
	}

	relaySrv := &http.Server{
		Addr:              cfg.RelayAddr,
		Handler:           app.RelayHandler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 2)
	go func() {
		if err := app.API.ListenAndServe(cfg.HTTPAddr); err != nil {
			errCh <- err
		}
	}()
	go func() {
		logger.Info("relay_listen", zap.String("addr", cfg.RelayAddr))
		if err := relaySrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		logger.Info("shutdown_signal", zap.String("signal", sig.String()))
	case err := <-errCh:
		logger.Error("listener_failed", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	var result *multierror.Error
	if err := relaySrv.Shutdown(ctx); err != nil {
		result = multierror.Append(result, err)
	}
	if err := app.Shutdown(ctx); err != nil {
		result = multierror.Append(result, err)
	}
	if err := result.ErrorOrNil(); err != nil {
		logger.Error("shutdown_incomplete", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("shutdown_complete")
}
