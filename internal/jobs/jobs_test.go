package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/cmlabs-hris/payroll-engine/internal/domain/apperror"
	"github.com/cmlabs-hris/payroll-engine/internal/domain/payroll"
	"github.com/cmlabs-hris/payroll-engine/internal/domain/settlement"
	"github.com/cmlabs-hris/payroll-engine/internal/pkg/validator"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCycles struct {
	payroll.CycleService
	err        error
	processed  []string
	openedYear int
	openedMon  int
}

func (f *fakeCycles) ProcessCycle(_ context.Context, companyID, cycleID string) (payroll.CycleResponse, error) {
	f.processed = append(f.processed, companyID+"/"+cycleID)
	if f.err != nil {
		return payroll.CycleResponse{}, f.err
	}
	return payroll.CycleResponse{ID: cycleID, Status: "pending_approval", StaffCount: 3}, nil
}

func (f *fakeCycles) OpenCycles(_ context.Context, year, month int) (int, error) {
	f.openedYear, f.openedMon = year, month
	return 2, f.err
}

type fakeSettlements struct {
	settlement.Service
	err     error
	exitIDs []string
}

func (f *fakeSettlements) CalculateSettlement(_ context.Context, _, exitID string) (settlement.ExitResponse, error) {
	f.exitIDs = append(f.exitIDs, exitID)
	if f.err != nil {
		return settlement.ExitResponse{}, f.err
	}
	return settlement.ExitResponse{ID: exitID, Status: "calculated"}, nil
}

func TestTaskConstructors(t *testing.T) {
	task, err := NewProcessCycleTask("company-1", "cycle-1")
	require.NoError(t, err)
	assert.Equal(t, TaskProcessCycle, task.Type())
	assert.JSONEq(t, `{"company_id":"company-1","cycle_id":"cycle-1"}`, string(task.Payload()))

	task, err = NewOpenCyclesTask(0, 0)
	require.NoError(t, err)
	assert.JSONEq(t, `{}`, string(task.Payload()))
}

func TestHandleProcessCycle(t *testing.T) {
	cycles := &fakeCycles{}
	h := NewHandlers(cycles, &fakeSettlements{}, nil)

	task, err := NewProcessCycleTask("company-1", "cycle-1")
	require.NoError(t, err)

	require.NoError(t, h.HandleProcessCycle(context.Background(), task))
	assert.Equal(t, []string{"company-1/cycle-1"}, cycles.processed)
}

func TestHandleProcessCycleBadPayloadSkipsRetry(t *testing.T) {
	cycles := &fakeCycles{}
	h := NewHandlers(cycles, &fakeSettlements{}, nil)

	err := h.HandleProcessCycle(context.Background(), asynq.NewTask(TaskProcessCycle, []byte("{")))
	require.Error(t, err)
	assert.ErrorIs(t, err, asynq.SkipRetry)
	assert.Empty(t, cycles.processed)
}

func TestHandleCalculateSettlement(t *testing.T) {
	settlements := &fakeSettlements{}
	h := NewHandlers(&fakeCycles{}, settlements, nil)

	task, err := NewCalculateSettlementTask("company-1", "exit-1")
	require.NoError(t, err)

	require.NoError(t, h.HandleCalculateSettlement(context.Background(), task))
	assert.Equal(t, []string{"exit-1"}, settlements.exitIDs)
}

func TestHandleOpenCyclesDefaultsToCurrentMonth(t *testing.T) {
	cycles := &fakeCycles{}
	h := NewHandlers(cycles, &fakeSettlements{}, nil)
	h.now = func() time.Time { return time.Date(2025, 6, 1, 0, 5, 0, 0, time.UTC) }

	task, err := NewOpenCyclesTask(0, 0)
	require.NoError(t, err)
	require.NoError(t, h.HandleOpenCycles(context.Background(), task))
	assert.Equal(t, 2025, cycles.openedYear)
	assert.Equal(t, 6, cycles.openedMon)

	task, err = NewOpenCyclesTask(2024, 12)
	require.NoError(t, err)
	require.NoError(t, h.HandleOpenCycles(context.Background(), task))
	assert.Equal(t, 2024, cycles.openedYear)
	assert.Equal(t, 12, cycles.openedMon)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		skipRetry bool
	}{
		{"lock conflict retries", &apperror.ConcurrencyConflictError{Resource: "payroll_cycle:1"}, false},
		{"infrastructure retries", errors.New("connection refused"), false},
		{"state transition", &apperror.StateTransitionError{Entity: "payroll_cycle", From: "paid", To: "processing"}, true},
		{"config", apperror.NewConfigError("tax_rule_set", "slabs", "overlap"), true},
		{"every staff failed", &payroll.CycleFailedError{CycleID: "c-1"}, true},
		{"missing cycle", payroll.ErrCycleNotFound, true},
		{"missing exit", settlement.ErrExitNotFound, true},
		{"validation", validator.ValidationErrors{{Field: "reference", Message: "is required"}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classify(tt.err)
			assert.Contains(t, got.Error(), tt.err.Error())
			assert.Equal(t, tt.skipRetry, errors.Is(got, asynq.SkipRetry))
		})
	}
}

func TestHandleProcessCycleStateErrorSkipsRetry(t *testing.T) {
	cycles := &fakeCycles{err: &apperror.StateTransitionError{Entity: "payroll_cycle", From: "locked", To: "processing"}}
	h := NewHandlers(cycles, &fakeSettlements{}, nil)

	task, err := NewProcessCycleTask("company-1", "cycle-1")
	require.NoError(t, err)

	err = h.HandleProcessCycle(context.Background(), task)
	assert.ErrorIs(t, err, asynq.SkipRetry)
	assert.ErrorIs(t, err, apperror.ErrStateTransition)
}

func TestClientDeduplicatesPendingTasks(t *testing.T) {
	mr := miniredis.RunT(t)
	client := NewClient(asynq.RedisClientOpt{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	ctx := context.Background()
	first, err := client.EnqueueProcessCycle(ctx, "company-1", "cycle-1")
	require.NoError(t, err)
	assert.Equal(t, TaskProcessCycle+":cycle-1", first)

	second, err := client.EnqueueProcessCycle(ctx, "company-1", "cycle-1")
	require.NoError(t, err)
	assert.Equal(t, first, second)

	other, err := client.EnqueueCalculateSettlement(ctx, "company-1", "exit-1")
	require.NoError(t, err)
	assert.Equal(t, TaskCalculateSettlement+":exit-1", other)
}

func TestNewWorkerRequiresHandlers(t *testing.T) {
	_, err := NewWorker(WorkerConfig{RedisOpts: asynq.RedisClientOpt{Addr: "localhost:0"}})
	assert.Error(t, err)

	cron, err := MonthlyOpenCycles()
	require.NoError(t, err)
	assert.Equal(t, TaskOpenCycles, cron.Task.Type())
}
