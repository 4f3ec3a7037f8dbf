package assessdex

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Operation names. They label SDK metrics and log lines.
const (
	opPing     = "ping"
	opIngest   = "document.ingest"
	opGet      = "document.get"
	opDelete   = "document.delete"
	opSearch   = "search.query"
	opSimilar  = "search.similar"
	opInsights = "insights.find"
	opEnhance  = "enhance"
	opStats    = "admin.stats"
	opRebuild  = "admin.rebuild"
	opTestEmb  = "admin.test_embedding"
)

const sdkSubsystem = "sdk"

type sdkMetrics struct {
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	tokens     prometheus.Counter
}

// newSDKMetrics registers the SDK collectors on reg. Several clients may share
// one registry; the second one picks up the collectors of the first.
func newSDKMetrics(reg prometheus.Registerer) (*sdkMetrics, error) {
	operations, err := shared(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "assessdex",
		Subsystem: sdkSubsystem,
		Name:      "operations_total",
		Help:      "SDK calls by operation and outcome.",
	}, []string{"operation", "status"}))
	if err != nil {
		return nil, err
	}
	duration, err := shared(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "assessdex",
		Subsystem: sdkSubsystem,
		Name:      "operation_duration_seconds",
		Help:      "SDK call latency by operation.",
		Buckets:   []float64{0.001, 0.005, 0.025, 0.1, 0.25, 1, 2.5, 10, 30},
	}, []string{"operation"}))
	if err != nil {
		return nil, err
	}
	tokens, err := shared(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "assessdex",
		Subsystem: sdkSubsystem,
		Name:      "embedding_tokens_total",
		Help:      "Embedding tokens billed to SDK calls.",
	}))
	if err != nil {
		return nil, err
	}
	return &sdkMetrics{operations: operations, duration: duration, tokens: tokens}, nil
}

// shared registers c, or returns the equal collector already on reg.
func shared[T prometheus.Collector](reg prometheus.Registerer, c T) (T, error) {
	err := reg.Register(c)
	var dup prometheus.AlreadyRegisteredError
	switch {
	case err == nil:
		return c, nil
	case !errors.As(err, &dup):
		return c, fmt.Errorf("assessdex: register metric: %w", err)
	}
	existing, ok := dup.ExistingCollector.(T)
	if !ok {
		return c, fmt.Errorf("assessdex: metric registered as %T", dup.ExistingCollector)
	}
	return existing, nil
}

// observer logs and measures SDK calls. Its methods are no-ops on a nil observer,
// and logging or metrics are skipped when not configured.
type observer struct {
	logger  *slog.Logger
	metrics *sdkMetrics
}

func newObserver(logger *slog.Logger, reg prometheus.Registerer) (*observer, error) {
	if reg == nil {
		return &observer{logger: logger}, nil
	}
	m, err := newSDKMetrics(reg)
	if err != nil {
		return nil, err
	}
	return &observer{logger: logger, metrics: m}, nil
}

// observe is deferred by every public method with its named error result.
// attrs are slog key/value pairs.
func (o *observer) observe(op string, start time.Time, err error, attrs ...any) {
	if o == nil {
		return
	}
	elapsed := time.Since(start)

	if m := o.metrics; m != nil {
		m.operations.WithLabelValues(op, outcome(err)).Inc()
		m.duration.WithLabelValues(op).Observe(elapsed.Seconds())
	}
	if o.logger == nil {
		return
	}

	attrs = append(attrs, "op", op, "duration", elapsed)
	if err != nil {
		o.logger.Warn("assessdex call failed", append(attrs, "error", err)...)
	} else {
		o.logger.Debug("assessdex call done", attrs...)
	}
}

func (o *observer) addTokens(n int) {
	if o != nil && o.metrics != nil && n > 0 {
		o.metrics.tokens.Add(float64(n))
	}
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
