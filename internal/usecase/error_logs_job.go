package usecase

import (
	"context"

	applogger "SigPull/pkg/logger"
	pkgqueue "SigPull/pkg/queue"
)

// ErrorLogsType is the queue message type for aggregated error logs.
const ErrorLogsType = "error_logs"

// ErrorLogsJob drains aggregated error batches from the log collector and
// emits one summary line per batch. Info level keeps it out of the collector.
type ErrorLogsJob struct {
	log *applogger.Logger
}

func NewErrorLogsJob(log *applogger.Logger) *ErrorLogsJob {
	return &ErrorLogsJob{log: log}
}

func (j *ErrorLogsJob) Name() string { return "error-logs" }

func (j *ErrorLogsJob) Type() string { return ErrorLogsType }

func (j *ErrorLogsJob) Handle(ctx context.Context, payload interface{}) error {
	entries, err := pkgqueue.ParsePayload[[]applogger.AggregatedLogEntry](payload)
	if err != nil {
		return err
	}
	for _, e := range *entries {
		j.log.Info("aggregated errors",
			applogger.String("message", e.Message),
			applogger.Int("count", e.Count),
			applogger.String("caller", e.Caller),
		)
	}
	return nil
}

var _ pkgqueue.Job = (*ErrorLogsJob)(nil)
