package river

import (
	"context"
	"log/slog"

	"github.com/riverqueue/river"
)

// TransitionWorker processes workflow transition jobs from the River
// queue. For now it logs the transition; future versions will dispatch
// to customer notifications and reporting exports.
type TransitionWorker struct {
	river.WorkerDefaults[TransitionJobArgs]
}

// Work processes a single transition job.
func (w *TransitionWorker) Work(ctx context.Context, job *river.Job[TransitionJobArgs]) error {
	slog.InfoContext(ctx, "processing transition",
		"intervention_id", job.Args.InterventionID,
		"tenant_id", job.Args.TenantID,
		"from", job.Args.From,
		"to", job.Args.To,
		"forced", job.Args.Forced,
		"progress", job.Args.Progress,
		"job_id", job.ID,
		"attempt", job.Attempt,
	)
	return nil
}
