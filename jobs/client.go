package jobs

import (
	"context"
	"time"

	"github.com/hibiken/asynq"
)

const (
	warmupMaxRetry  = 3
	warmupRetention = 24 * time.Hour
)

// Client submits jobs to the queue.
type Client struct {
	client *asynq.Client
}

// NewClient constructs an Asynq client.
func NewClient(redisOpts asynq.RedisClientOpt) (*Client, error) {
	return &Client{client: asynq.NewClient(redisOpts)}, nil
}

// EnqueueReportsWarmup enqueues a warmup for day. A second call for the same
// day while the first is retained returns asynq.ErrTaskIDConflict.
func (c *Client) EnqueueReportsWarmup(ctx context.Context, day time.Time, companyIDs ...int64) (*asynq.TaskInfo, error) {
	task, err := NewReportsWarmupTask(ReportsWarmupPayload{
		Day:        day.UTC().Format(dayLayout),
		CompanyIDs: companyIDs,
	})
	if err != nil {
		return nil, err
	}
	return c.client.EnqueueContext(ctx, task,
		asynq.TaskID(WarmupTaskID(day)),
		asynq.MaxRetry(warmupMaxRetry),
		asynq.Retention(warmupRetention),
	)
}

// Close releases client resources.
func (c *Client) Close() error {
	return c.client.Close()
}
