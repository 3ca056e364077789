package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/spf13/cobra"

	"github.com/odyssey-erp/ledgerline/internal/app"
	"github.com/odyssey-erp/ledgerline/internal/platform/cache"
	"github.com/odyssey-erp/ledgerline/jobs"
)

// JobsCLI wraps manual management helpers for Asynq jobs.
type JobsCLI struct {
	client    *jobs.Client
	inspector *asynq.Inspector
}

// NewJobsCLI initialises the CLI helpers against the given Redis instance.
func NewJobsCLI(redis cache.Options) (*JobsCLI, error) {
	opts := redis.Asynq()
	client, err := jobs.NewClient(opts)
	if err != nil {
		return nil, err
	}
	return &JobsCLI{client: client, inspector: asynq.NewInspector(opts)}, nil
}

// Close releases underlying resources.
func (c *JobsCLI) Close() error {
	var err error
	if c.inspector != nil {
		if closeErr := c.inspector.Close(); closeErr != nil {
			err = closeErr
		}
	}
	if c.client != nil {
		if closeErr := c.client.Close(); closeErr != nil {
			err = closeErr
		}
	}
	return err
}

// Trigger enqueues a supported job by name.
func (c *JobsCLI) Trigger(ctx context.Context, name string, day time.Time, companyIDs []int64) (*asynq.TaskInfo, error) {
	if c == nil || c.client == nil {
		return nil, errors.New("jobs cli: client not configured")
	}
	switch name {
	case jobs.TaskReportsWarmup:
		return c.client.EnqueueReportsWarmup(ctx, day, companyIDs...)
	default:
		return nil, fmt.Errorf("jobs cli: unsupported job %s", name)
	}
}

// Pending reports the queue depth of the default queue.
func (c *JobsCLI) Pending() (int, error) {
	if c == nil || c.inspector == nil {
		return 0, errors.New("jobs cli: inspector not configured")
	}
	info, err := c.inspector.GetQueueInfo(jobs.QueueDefault)
	if err != nil {
		return 0, err
	}
	return info.Pending, nil
}

func newJobsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Trigger and inspect background jobs",
	}

	var day string
	var companyIDs []int64
	trigger := &cobra.Command{
		Use:   "trigger <task>",
		Short: "Enqueue a job, e.g. reports:warmup",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			when := time.Now().UTC()
			if day != "" {
				parsed, err := time.Parse("2006-01-02", day)
				if err != nil {
					return fmt.Errorf("parse --day: %w", err)
				}
				when = parsed
			}
			jc, err := jobsCLIFromConfig()
			if err != nil {
				return err
			}
			defer jc.Close()

			info, err := jc.Trigger(cmd.Context(), args[0], when, companyIDs)
			if errors.Is(err, asynq.ErrTaskIDConflict) {
				fmt.Fprintf(cmd.OutOrStdout(), "%s already enqueued for %s\n", args[0], when.Format("2006-01-02"))
				return nil
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "enqueued %s id=%s queue=%s\n", info.Type, info.ID, info.Queue)
			return nil
		},
	}
	trigger.Flags().StringVar(&day, "day", "", "day to warm (YYYY-MM-DD, default today)")
	trigger.Flags().Int64SliceVar(&companyIDs, "company", nil, "limit to these company ids")

	status := &cobra.Command{
		Use:   "status",
		Short: "Show the default queue depth",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			jc, err := jobsCLIFromConfig()
			if err != nil {
				return err
			}
			defer jc.Close()
			pending, err := jc.Pending()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "queue=%s pending=%d\n", jobs.QueueDefault, pending)
			return nil
		},
	}

	cmd.AddCommand(trigger, status)
	return cmd
}

func jobsCLIFromConfig() (*JobsCLI, error) {
	cfg, err := app.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return NewJobsCLI(cfg.Redis())
}
