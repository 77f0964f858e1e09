package cron

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cmlabs-hris/payroll-engine/internal/domain/payroll"
)

type PayrollJobs struct {
	cycles payroll.CycleService
	logger *slog.Logger
	now    func() time.Time
}

func NewPayrollJobs(cycles payroll.CycleService, logger *slog.Logger) *PayrollJobs {
	if logger == nil {
		logger = slog.Default()
	}
	return &PayrollJobs{cycles: cycles, logger: logger, now: time.Now}
}

func (j *PayrollJobs) RegisterJobs(scheduler *Scheduler, interval time.Duration) {
	scheduler.AddJob("open_payroll_cycles", interval, j.OpenCurrentCycles)
}

// OpenCurrentCycles makes sure every company has a draft cycle for the
// current month. Companies that already have one are left alone, so running
// it on every tick is safe.
func (j *PayrollJobs) OpenCurrentCycles(ctx context.Context) error {
	now := j.now().UTC()
	opened, err := j.cycles.OpenCycles(ctx, now.Year(), int(now.Month()))
	if err != nil {
		return fmt.Errorf("open payroll cycles for %d-%02d: %w", now.Year(), now.Month(), err)
	}
	if opened > 0 {
		j.logger.Info("Cron: opened payroll cycles", "year", now.Year(), "month", int(now.Month()), "opened", opened)
	}
	return nil
}
