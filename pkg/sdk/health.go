package assessdex

import (
	"context"
	"time"
)

// HealthStatus is the aggregated system health.
type HealthStatus struct {
	Status  string            // "ok", "degraded" or "error"
	Checks  map[string]string // component name to "ok" or "error"
	Latency map[string]time.Duration
}

// Health probes the store and the embedding provider.
func (c *Client) Health(ctx context.Context) HealthStatus {
	report := c.health.Check(ctx)
	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}
	return HealthStatus{
		Status:  string(report.Status),
		Checks:  checks,
		Latency: report.Latency,
	}
}
