package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cmlabs-hris/payroll-engine/internal/domain/apperror"
	"github.com/cmlabs-hris/payroll-engine/internal/domain/payroll"
	"github.com/cmlabs-hris/payroll-engine/internal/domain/settlement"
	"github.com/cmlabs-hris/payroll-engine/internal/pkg/validator"
	"github.com/hibiken/asynq"
)

// Handlers runs queued payroll work against the services.
type Handlers struct {
	cycles      payroll.CycleService
	settlements settlement.Service
	logger      *slog.Logger
	now         func() time.Time
}

func NewHandlers(cycles payroll.CycleService, settlements settlement.Service, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{cycles: cycles, settlements: settlements, logger: logger, now: time.Now}
}

func (h *Handlers) HandleProcessCycle(ctx context.Context, t *asynq.Task) error {
	var p ProcessCyclePayload
	if err := decodePayload(t, &p); err != nil {
		return err
	}

	result, err := h.cycles.ProcessCycle(ctx, p.CompanyID, p.CycleID)
	if err != nil {
		h.logger.Error("process cycle task failed", "cycle_id", p.CycleID, "company_id", p.CompanyID, "error", err)
		return classify(err)
	}

	h.logger.Info("process cycle task completed",
		"cycle_id", p.CycleID,
		"status", result.Status,
		"staff_count", result.StaffCount,
	)
	return nil
}

func (h *Handlers) HandleCalculateSettlement(ctx context.Context, t *asynq.Task) error {
	var p CalculateSettlementPayload
	if err := decodePayload(t, &p); err != nil {
		return err
	}

	result, err := h.settlements.CalculateSettlement(ctx, p.CompanyID, p.ExitID)
	if err != nil {
		h.logger.Error("calculate settlement task failed", "exit_id", p.ExitID, "company_id", p.CompanyID, "error", err)
		return classify(err)
	}

	h.logger.Info("calculate settlement task completed", "exit_id", p.ExitID, "net_settlement", result.NetSettlement)
	return nil
}

func (h *Handlers) HandleOpenCycles(ctx context.Context, t *asynq.Task) error {
	var p OpenCyclesPayload
	if err := decodePayload(t, &p); err != nil {
		return err
	}
	if p.Year == 0 || p.Month == 0 {
		now := h.now().UTC()
		p.Year, p.Month = now.Year(), int(now.Month())
	}

	opened, err := h.cycles.OpenCycles(ctx, p.Year, p.Month)
	if err != nil {
		return classify(err)
	}

	h.logger.Info("open cycles task completed", "year", p.Year, "month", p.Month, "opened", opened)
	return nil
}

// classify marks errors that a retry cannot fix. Lock conflicts and
// infrastructure errors stay retryable.
func classify(err error) error {
	var validationErrs validator.ValidationErrors
	switch {
	case errors.Is(err, apperror.ErrConcurrencyConflict):
		return err
	case errors.As(err, &validationErrs),
		errors.Is(err, apperror.ErrStateTransition),
		errors.Is(err, apperror.ErrConfig),
		errors.Is(err, apperror.ErrDataIncomplete),
		errors.Is(err, apperror.ErrNegativeBalance),
		errors.Is(err, payroll.ErrCycleNotFound),
		errors.Is(err, payroll.ErrNoTaxRuleConfigured),
		errors.Is(err, settlement.ErrExitNotFound):
		return fmt.Errorf("%w: %w", asynq.SkipRetry, err)
	}
	return err
}

// Worker wraps the asynq server and its optional scheduler.
type Worker struct {
	server    *asynq.Server
	mux       *asynq.ServeMux
	scheduler *asynq.Scheduler
	logger    *slog.Logger
}

// CronRegistration wires a cron expression to a prepared task.
type CronRegistration struct {
	Spec    string
	Task    *asynq.Task
	Options []asynq.Option
}

type WorkerConfig struct {
	RedisOpts   asynq.RedisConnOpt
	Concurrency int
	Logger      *slog.Logger
	Handlers    *Handlers
	Cron        []CronRegistration
}

// MonthlyOpenCycles opens the new month's cycles shortly after midnight UTC
// on the first day.
func MonthlyOpenCycles() (CronRegistration, error) {
	task, err := NewOpenCyclesTask(0, 0)
	if err != nil {
		return CronRegistration{}, err
	}
	return CronRegistration{Spec: "5 0 1 * *", Task: task, Options: []asynq.Option{asynq.Queue(QueueDefault)}}, nil
}

func NewWorker(cfg WorkerConfig) (*Worker, error) {
	if cfg.Handlers == nil {
		return nil, errors.New("worker: handlers are required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 5
	}

	srv := asynq.NewServer(cfg.RedisOpts, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			QueueCritical: 6,
			QueueDefault:  3,
		},
		Logger:   newAsynqLogger(cfg.Logger),
		LogLevel: asynq.InfoLevel,
	})

	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskProcessCycle, cfg.Handlers.HandleProcessCycle)
	mux.HandleFunc(TaskCalculateSettlement, cfg.Handlers.HandleCalculateSettlement)
	mux.HandleFunc(TaskOpenCycles, cfg.Handlers.HandleOpenCycles)

	var scheduler *asynq.Scheduler
	if len(cfg.Cron) > 0 {
		scheduler = asynq.NewScheduler(cfg.RedisOpts, &asynq.SchedulerOpts{Location: time.UTC})
		for _, entry := range cfg.Cron {
			if entry.Spec == "" || entry.Task == nil {
				continue
			}
			if _, err := scheduler.Register(entry.Spec, entry.Task, entry.Options...); err != nil {
				return nil, fmt.Errorf("register cron %q: %w", entry.Spec, err)
			}
		}
	}

	return &Worker{server: srv, mux: mux, scheduler: scheduler, logger: cfg.Logger}, nil
}

// Run processes tasks until ctx is canceled.
func (w *Worker) Run(ctx context.Context) error {
	if w == nil {
		return errors.New("worker: not configured")
	}
	if w.scheduler != nil {
		if err := w.scheduler.Start(); err != nil {
			return err
		}
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- w.server.Run(w.mux)
	}()

	w.logger.Info("worker started")
	select {
	case <-ctx.Done():
		if w.scheduler != nil {
			w.scheduler.Shutdown()
		}
		w.server.Shutdown()
		w.logger.Info("worker stopped")
		return nil
	case err := <-errCh:
		if w.scheduler != nil {
			w.scheduler.Shutdown()
		}
		return err
	}
}

// asynqLogger routes asynq's internal logging through slog.
type asynqLogger struct {
	l *slog.Logger
}

func newAsynqLogger(l *slog.Logger) *asynqLogger {
	return &asynqLogger{l: l.With("component", "asynq")}
}

func (a *asynqLogger) Debug(args ...interface{}) { a.l.Debug(fmt.Sprint(args...)) }
func (a *asynqLogger) Info(args ...interface{})  { a.l.Info(fmt.Sprint(args...)) }
func (a *asynqLogger) Warn(args ...interface{})  { a.l.Warn(fmt.Sprint(args...)) }
func (a *asynqLogger) Error(args ...interface{}) { a.l.Error(fmt.Sprint(args...)) }
func (a *asynqLogger) Fatal(args ...interface{}) { a.l.Error(fmt.Sprint(args...)) }
