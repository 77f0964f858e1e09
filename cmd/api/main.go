package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cmlabs-hris/payroll-engine/internal/app"
	"github.com/cmlabs-hris/payroll-engine/internal/config"
	appHTTP "github.com/cmlabs-hris/payroll-engine/internal/handler/http"
	"github.com/cmlabs-hris/payroll-engine/internal/jobs"
	"github.com/cmlabs-hris/payroll-engine/internal/pkg/cron"
	"github.com/cmlabs-hris/payroll-engine/internal/pkg/jwt"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error loading config:", err)
		os.Exit(1)
	}

	logger := app.NewLogger(cfg.App)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	container, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer container.Close()

	var dispatcher appHTTP.Dispatcher
	if cfg.Queue.Enabled {
		client := jobs.NewClient(container.QueueOpts())
		defer client.Close()
		dispatcher = client
		logger.Info("async processing enabled")
	} else {
		scheduler := cron.NewScheduler(logger)
		cron.NewPayrollJobs(container.Cycles, logger).RegisterJobs(scheduler, cfg.Payroll.OpenCyclesInterval)
		scheduler.Start(ctx)
		defer scheduler.Stop()
	}

	JWTService := jwt.NewJWTService(cfg.JWT.SecretKey, cfg.JWT.AccessTokenTTL)

	router := appHTTP.NewRouter(appHTTP.RouterConfig{
		Logger:            logger,
		AllowedOrigins:    cfg.App.AllowedOrigins,
		Production:        cfg.IsProduction(),
		JWTService:        JWTService,
		Metrics:           container.Metrics.Handler(),
		PayrollHandler:    appHTTP.NewPayrollHandler(container.Cycles, dispatcher),
		SettlementHandler: appHTTP.NewSettlementHandler(container.Settlements, dispatcher),
		TaxRuleHandler:    appHTTP.NewTaxRuleHandler(container.TaxRules),
	})

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.App.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	logger.Info("shutting down server")
	return server.Shutdown(shutdownCtx)
}
