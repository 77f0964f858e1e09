package jobs

import (
	"context"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
)

// Client enqueues payroll work on the asynq queues. One pending task per
// cycle or exit is allowed; a second request while the first is queued
// returns the id of the queued task.
type Client struct {
	client *asynq.Client
}

func NewClient(opt asynq.RedisConnOpt) *Client {
	return &Client{client: asynq.NewClient(opt)}
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

func (c *Client) EnqueueProcessCycle(ctx context.Context, companyID, cycleID string) (string, error) {
	task, err := NewProcessCycleTask(companyID, cycleID)
	if err != nil {
		return "", err
	}
	return c.enqueueUnique(ctx, task, TaskProcessCycle+":"+cycleID, QueueCritical)
}

func (c *Client) EnqueueCalculateSettlement(ctx context.Context, companyID, exitID string) (string, error) {
	task, err := NewCalculateSettlementTask(companyID, exitID)
	if err != nil {
		return "", err
	}
	return c.enqueueUnique(ctx, task, TaskCalculateSettlement+":"+exitID, QueueCritical)
}

func (c *Client) EnqueueOpenCycles(ctx context.Context, year, month int) (string, error) {
	task, err := NewOpenCyclesTask(year, month)
	if err != nil {
		return "", err
	}
	return c.enqueueUnique(ctx, task, fmt.Sprintf("%s:%04d-%02d", TaskOpenCycles, year, month), QueueDefault)
}

func (c *Client) enqueueUnique(ctx context.Context, task *asynq.Task, taskID, queue string) (string, error) {
	info, err := c.client.EnqueueContext(ctx, task, asynq.TaskID(taskID), asynq.Queue(queue))
	if err != nil {
		if errors.Is(err, asynq.ErrTaskIDConflict) {
			return taskID, nil
		}
		return "", fmt.Errorf("enqueue %s: %w", task.Type(), err)
	}
	return info.ID, nil
}
