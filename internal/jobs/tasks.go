package jobs

import (
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

const (
	TaskProcessCycle        = "payroll:process_cycle"
	TaskCalculateSettlement = "settlement:calculate"
	TaskOpenCycles          = "payroll:open_cycles"
)

const (
	QueueCritical = "critical"
	QueueDefault  = "default"
)

type ProcessCyclePayload struct {
	CompanyID string `json:"company_id"`
	CycleID   string `json:"cycle_id"`
}

type CalculateSettlementPayload struct {
	CompanyID string `json:"company_id"`
	ExitID    string `json:"exit_id"`
}

// OpenCyclesPayload names the period to open. A zero period means the
// current month at the time the task runs.
type OpenCyclesPayload struct {
	Year  int `json:"year,omitempty"`
	Month int `json:"month,omitempty"`
}

func NewProcessCycleTask(companyID, cycleID string) (*asynq.Task, error) {
	return newTask(TaskProcessCycle, ProcessCyclePayload{CompanyID: companyID, CycleID: cycleID})
}

func NewCalculateSettlementTask(companyID, exitID string) (*asynq.Task, error) {
	return newTask(TaskCalculateSettlement, CalculateSettlementPayload{CompanyID: companyID, ExitID: exitID})
}

func NewOpenCyclesTask(year, month int) (*asynq.Task, error) {
	return newTask(TaskOpenCycles, OpenCyclesPayload{Year: year, Month: month})
}

func newTask(taskType string, payload any) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", taskType, err)
	}
	return asynq.NewTask(taskType, data), nil
}

// decodePayload rejects malformed payloads without retrying them.
func decodePayload(t *asynq.Task, v any) error {
	if err := json.Unmarshal(t.Payload(), v); err != nil {
		return fmt.Errorf("decode %s payload: %v: %w", t.Type(), err, asynq.SkipRetry)
	}
	return nil
}
