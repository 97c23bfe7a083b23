package workers

import (
	"chat-relay/contract"
	"chat-relay/observability"
	"context"
	"log/slog"
	"time"
)

var _ contract.Worker = (*StatsWorker)(nil)

// StatsWorker refreshes process metrics at a fixed interval.
type StatsWorker struct {
	log            *slog.Logger
	monitoring     *observability.MonitoringManager
	metricInterval time.Duration
}

func NewStatsWorker(log *slog.Logger, monitoring *observability.MonitoringManager, metricInterval time.Duration) *StatsWorker {
	return &StatsWorker{log: log, monitoring: monitoring, metricInterval: metricInterval}
}

func (w *StatsWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.metricInterval)
	defer ticker.Stop()

	w.monitoring.Refresh()
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping stats refresh")
			return nil
		case <-ticker.C:
			w.monitoring.Refresh()
		}
	}
}
