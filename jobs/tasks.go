package jobs

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskReportsWarmup prebuilds cached reports for every active company.
	TaskReportsWarmup = "reports:warmup"

	dayLayout = "2006-01-02"
)

// taskNamespace scopes deterministic task ids.
var taskNamespace = uuid.MustParse("6f1c1d1e-8d3a-4f57-9a43-3b0f5f0e2a61")

// ReportsWarmupPayload selects the day and companies to warm. An empty Day
// means the day the task runs; no CompanyIDs means every active company.
type ReportsWarmupPayload struct {
	Day        string  `json:"day,omitempty"`
	CompanyIDs []int64 `json:"company_ids,omitempty"`
}

// NewReportsWarmupTask constructs the warmup task used by the cron schedule.
func NewReportsWarmupTask(payload ReportsWarmupPayload, opts ...asynq.Option) (*asynq.Task, error) {
	if payload.Day != "" {
		if _, err := time.Parse(dayLayout, payload.Day); err != nil {
			return nil, fmt.Errorf("jobs: warmup day: %w", err)
		}
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	opts = append([]asynq.Option{asynq.Queue(QueueDefault)}, opts...)
	return asynq.NewTask(TaskReportsWarmup, body, opts...), nil
}

// WarmupTaskID returns the id used to enqueue at most one warmup per day.
func WarmupTaskID(day time.Time) string {
	return uuid.NewSHA1(taskNamespace, []byte(TaskReportsWarmup+":"+day.UTC().Format(dayLayout))).String()
}
