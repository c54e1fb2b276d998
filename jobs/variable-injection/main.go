package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/ddsurveys/dds-backend/pkg/dds/orchestrator"
)

func main() {
	slog.Info("Starting variable injection job")
	start := time.Now()

	counts := map[orchestrator.Status]int{}
	for _, instanceID := range conf.InstanceIDs {
		pending, err := projectDBService.FindRespondentsPendingInjection(instanceID, conf.Injection.BatchLimit)
		if err != nil {
			slog.Error("Failed to find respondents pending injection", slog.String("instanceID", instanceID), slog.String("error", err.Error()))
			continue
		}
		slog.Info("Pending injections", slog.String("instanceID", instanceID), slog.Int("count", len(pending)))

		for status, n := range orchestrator.RunBatch(context.Background(), injector.Run, instanceID, pending, conf.Injection.Workers, runTimeout) {
			counts[status] += n
		}
	}

	slog.Info("Variable injection job completed",
		slog.Int("succeeded", counts[orchestrator.STATUS_SUCCEEDED]),
		slog.Int("partial", counts[orchestrator.STATUS_PARTIAL]),
		slog.Int("failed", counts[orchestrator.STATUS_FAILED]),
		slog.Int("alreadyCompleted", counts[orchestrator.STATUS_ALREADY_COMPLETED]),
		slog.String("duration", time.Since(start).String()),
	)
}
