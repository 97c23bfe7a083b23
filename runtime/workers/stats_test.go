package workers

import (
	"chat-relay/observability"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

func TestStatsWorker_Refreshes_Until_Cancel(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	monitoring := observability.NewMonitoringManager(log)
	worker := NewStatsWorker(log, monitoring, 5*time.Millisecond)

	// Given nothing has been sampled yet
	req.True(monitoring.GetLatest().UpdatedAt.IsZero())

	// When the worker runs for a few ticks
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	req.NoError(worker.Run(ctx))

	// Then a snapshot is available
	stats := monitoring.GetLatest()
	req.False(stats.UpdatedAt.IsZero())
	req.Positive(stats.Goroutines)
}
