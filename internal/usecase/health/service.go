// Package health aggregates store and embedding provider probes.
package health

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/assessdex/internal/logger"
)

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates that some components fail.
	Degraded Status = "degraded"
	// Unhealthy indicates that every component fails.
	Unhealthy Status = "error"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
)

// Component names reported in Report.Checks.
const (
	ComponentStore     = "store"
	ComponentEmbedding = "embedding"
)

// DefaultTimeout bounds every probe.
const DefaultTimeout = 3 * time.Second

// Report aggregates health check results.
type Report struct {
	Status  Status
	Checks  map[string]CheckResult
	Latency map[string]time.Duration
}

// Service coordinates health checks.
type Service struct {
	store    StorePinger
	provider ProviderChecker
	timeout  time.Duration
}

// New creates a Service. provider can be nil.
func New(store StorePinger, provider ProviderChecker) *Service {
	return &Service{store: store, provider: provider, timeout: DefaultTimeout}
}

// WithTimeout overrides the per-probe timeout.
func (s *Service) WithTimeout(d time.Duration) *Service {
	if d > 0 {
		s.timeout = d
	}
	return s
}

// Check runs every probe concurrently.
func (s *Service) Check(ctx context.Context) Report {
	probes := map[string]func(context.Context) error{ComponentStore: s.store.Ping}
	if s.provider != nil {
		probes[ComponentEmbedding] = s.provider.HealthCheck
	}

	r := Report{
		Checks:  make(map[string]CheckResult, len(probes)),
		Latency: make(map[string]time.Duration, len(probes)),
	}
	var mu sync.Mutex
	var g errgroup.Group
	for name, probe := range probes {
		g.Go(func() error {
			pctx, cancel := context.WithTimeout(ctx, s.timeout)
			defer cancel()

			start := time.Now()
			err := probe(pctx)
			elapsed := time.Since(start)

			res := CheckOK
			if err != nil {
				res = CheckError
				logger.FromContext(ctx).Warn("Health probe failed",
					zap.String("component", name),
					zap.Duration("duration", elapsed),
					zap.Error(err),
				)
			}

			mu.Lock()
			r.Checks[name] = res
			r.Latency[name] = elapsed
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	for _, v := range r.Checks {
		if v == CheckError {
			failed++
		}
	}
	switch {
	case failed == 0:
		r.Status = Healthy
	case failed == len(r.Checks):
		r.Status = Unhealthy
	default:
		r.Status = Degraded
	}
	return r
}
