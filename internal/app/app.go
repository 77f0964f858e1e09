// Package app wires configuration, storage and services into the process
// shared by the API server and the queue worker.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/cmlabs-hris/payroll-engine/internal/config"
	"github.com/cmlabs-hris/payroll-engine/internal/domain/report"
	"github.com/cmlabs-hris/payroll-engine/internal/domain/taxrule"
	"github.com/cmlabs-hris/payroll-engine/internal/pkg/database"
	"github.com/cmlabs-hris/payroll-engine/internal/pkg/lock"
	"github.com/cmlabs-hris/payroll-engine/internal/pkg/metrics"
	"github.com/cmlabs-hris/payroll-engine/internal/repository/postgresql"
	payrollService "github.com/cmlabs-hris/payroll-engine/internal/service/payroll"
	reportService "github.com/cmlabs-hris/payroll-engine/internal/service/report"
	settlementService "github.com/cmlabs-hris/payroll-engine/internal/service/settlement"
	taxruleService "github.com/cmlabs-hris/payroll-engine/internal/service/taxrule"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
)

// NewLogger builds the process logger from LOG_FORMAT and LOG_LEVEL.
func NewLogger(cfg config.AppConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if strings.EqualFold(cfg.LogFormat, "text") {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}
	return slog.New(handler).With("env", cfg.Env)
}

// Container holds the long-lived dependencies of one process.
type Container struct {
	Config  *config.Config
	Logger  *slog.Logger
	DB      *database.DB
	Redis   *redis.Client
	Metrics *metrics.Metrics

	TaxRules    taxrule.Service
	Cycles      *payrollService.CycleServiceImpl
	Settlements *settlementService.SettlementServiceImpl

	closers []func() error
}

func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Container, error) {
	c := &Container{Config: cfg, Logger: logger, Metrics: metrics.New()}

	db, err := database.NewPostgreSQLDB(ctx, cfg.DatabaseURL(), cfg.Database.MaxConns, cfg.Database.MinConns)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	c.DB = db
	c.closers = append(c.closers, func() error { db.Close(); return nil })

	var locker lock.Locker
	if cfg.Redis.Addr != "" {
		c.Redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := c.Redis.Ping(ctx).Err(); err != nil {
			c.Close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		c.closers = append(c.closers, c.Redis.Close)
		locker = lock.NewRedisLocker(c.Redis)
	} else {
		logger.Warn("REDIS_ADDR not set, using in-process locks")
		locker = lock.NewLocalLocker()
	}

	var exporter report.Exporter
	if cfg.Report.ExportFile != "" {
		jsonl, err := reportService.OpenJSONLinesExporter(cfg.Report.ExportFile)
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("open report export file: %w", err)
		}
		c.closers = append(c.closers, jsonl.Close)
		exporter = jsonl
	}

	txManager := postgresql.NewTxManager(db)
	staffRepo := postgresql.NewStaffRepository(db)
	entryRepo := postgresql.NewEntryRepository(db)
	attendanceRepo := postgresql.NewAttendanceRepository(db)
	commissionRepo := postgresql.NewCommissionRepository(db)
	tipRepo := postgresql.NewTipRepository(db)
	advanceRepo := postgresql.NewAdvanceRepository(db)

	c.TaxRules = taxruleService.NewTaxRuleService(postgresql.NewRuleSetRepository(db))

	aggregator := payrollService.NewEarningsAggregator(
		attendanceRepo,
		commissionRepo,
		tipRepo,
		cfg.Payroll.StandardDaysPerMonth,
		cfg.Payroll.OvertimeMultiplier,
	)
	c.Cycles = payrollService.NewCycleService(payrollService.Dependencies{
		TxManager:      txManager,
		CycleRepo:      postgresql.NewCycleRepository(db),
		EntryRepo:      entryRepo,
		StaffRepo:      staffRepo,
		CommissionRepo: commissionRepo,
		AdvanceRepo:    advanceRepo,
		TaxRules:       c.TaxRules,
		Aggregator:     aggregator,
		Locker:         locker,
		Exporter:       exporter,
		Metrics:        c.Metrics,
		Logger:         logger.With("component", "payroll"),
	}, payrollService.Options{
		Workers:  cfg.Payroll.Workers,
		LockTTL:  cfg.Payroll.LockTTL,
		Currency: cfg.App.Currency,
	})

	c.Settlements = settlementService.NewSettlementService(settlementService.Dependencies{
		TxManager:      txManager,
		ExitRepo:       postgresql.NewExitRepository(db),
		StaffRepo:      staffRepo,
		EntryRepo:      entryRepo,
		AttendanceRepo: attendanceRepo,
		CommissionRepo: commissionRepo,
		TipRepo:        tipRepo,
		AdvanceRepo:    advanceRepo,
		Locker:         locker,
		Exporter:       exporter,
		Metrics:        c.Metrics,
		Logger:         logger.With("component", "settlement"),
	}, settlementService.Options{
		StandardDaysPerMonth: cfg.Payroll.StandardDaysPerMonth,
		GratuityMinYears:     cfg.Settlement.GratuityMinYears,
		GratuityDaysPerYear:  cfg.Settlement.GratuityDaysPerYear,
		GratuityDivisor:      cfg.Settlement.GratuityDivisor,
		LockTTL:              cfg.Payroll.LockTTL,
		Currency:             cfg.App.Currency,
	})

	return c, nil
}

// QueueOpts returns the asynq connection for the configured Redis.
func (c *Container) QueueOpts() asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     c.Config.Redis.Addr,
		Password: c.Config.Redis.Password,
		DB:       c.Config.Redis.DB,
	}
}

// Close releases resources in reverse order of acquisition.
func (c *Container) Close() error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	return errors.Join(errs...)
}
