package workers

import (
	"chat-relay/contract"
	"context"
	"log/slog"
	"sort"
	"time"

	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

var _ contract.Worker = (*HealthWorker)(nil)

// ServiceName is the gRPC health service name reported for the relay.
const ServiceName = "chat.relay"

// HealthWorker probes the dependencies of the relay and publishes the result
// on the gRPC health server.
type HealthWorker struct {
	log      *slog.Logger
	health   *health.Server
	checks   map[string]contract.Pinger
	interval time.Duration
	timeout  time.Duration
	serving  *bool
}

func NewHealthWorker(log *slog.Logger, server *health.Server, checks map[string]contract.Pinger, interval time.Duration) *HealthWorker {
	return &HealthWorker{
		log:      log,
		health:   server,
		checks:   checks,
		interval: interval,
		timeout:  interval / 2,
	}
}

func (w *HealthWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.Probe(ctx)
	for {
		select {
		case <-ctx.Done():
			w.health.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
			return nil
		case <-ticker.C:
			w.Probe(ctx)
		}
	}
}

// Probe pings every dependency once and updates the serving status.
func (w *HealthWorker) Probe(ctx context.Context) bool {
	names := make([]string, 0, len(w.checks))
	for name := range w.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	serving := true
	for _, name := range names {
		pingCtx, cancel := context.WithTimeout(ctx, w.timeout)
		err := w.checks[name].Ping(pingCtx)
		cancel()
		if err != nil {
			serving = false
			w.log.Warn("Dependency check failed", "dependency", name, "error", err)
		}
	}

	if w.serving == nil || *w.serving != serving {
		w.log.Info("Health status changed", "serving", serving)
	}
	w.serving = &serving

	status := healthpb.HealthCheckResponse_SERVING
	if !serving {
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	w.health.SetServingStatus(ServiceName, status)
	w.health.SetServingStatus("", status)
	return serving
}
