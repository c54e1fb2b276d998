package orchestrator

import (
	"context"
	"log/slog"
	"sync"
	"time"

	ddsTypes "github.com/ddsurveys/dds-backend/pkg/dds/types"
)

// RunFunc has the signature of Orchestrator.Run.
type RunFunc func(ctx context.Context, instanceID string, projectID string, respondentID string) (Outcome, error)

// RunBatch runs the injection for every pending pair of an instance with at most workers runs
// in flight, each bounded by timeout. It returns the number of runs per final status.
func RunBatch(ctx context.Context, run RunFunc, instanceID string, pending []ddsTypes.PendingInjection, workers int, timeout time.Duration) map[Status]int {
	if workers <= 0 {
		workers = 1
	}

	queue := make(chan ddsTypes.PendingInjection)
	counts := map[Status]int{}
	var mu sync.Mutex
	var wg sync.WaitGroup

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for p := range queue {
				runCtx, cancel := context.WithTimeout(ctx, timeout)
				out, err := run(runCtx, instanceID, p.ProjectID, p.RespondentID)
				cancel()

				status := out.Status
				if err != nil {
					status = STATUS_FAILED
					slog.Error("injection run failed",
						slog.String("instanceID", instanceID),
						slog.String("projectID", p.ProjectID),
						slog.String("respondentID", p.RespondentID),
						slog.String("runID", out.RunID),
						slog.Bool("retryable", IsRetryable(err)),
						slog.String("error", err.Error()),
					)
				}

				mu.Lock()
				counts[status]++
				mu.Unlock()
			}
		}()
	}

	for _, p := range pending {
		if ctx.Err() != nil {
			break
		}
		queue <- p
	}
	close(queue)
	wg.Wait()

	return counts
}
