package aggregates

import (
	"strings"
	"time"

	"github.com/leasingborsen/listing-reconciler/internal/observability"
	"github.com/leasingborsen/listing-reconciler/internal/platform/logger"
)

// Hooks receives one event per aggregate write.
type Hooks interface {
	ObserveOperation(name, status string, dur time.Duration)
	IncConflict(name string)
	IncRetry(name string)
}

type noopHooks struct{}

func (noopHooks) ObserveOperation(string, string, time.Duration) {}
func (noopHooks) IncConflict(string)                             {}
func (noopHooks) IncRetry(string)                                {}

// NewObservabilityHooks returns no-op hooks when metrics are disabled.
func NewObservabilityHooks(metrics *observability.Metrics) Hooks {
	if metrics == nil {
		return noopHooks{}
	}
	return metricsHooks{m: metrics}
}

type metricsHooks struct{ m *observability.Metrics }

func (h metricsHooks) ObserveOperation(name, status string, dur time.Duration) {
	h.m.ObserveAggregateOperation(strings.TrimSpace(name), strings.TrimSpace(status), dur)
}
func (h metricsHooks) IncConflict(name string) { h.m.IncAggregateConflict(strings.TrimSpace(name)) }
func (h metricsHooks) IncRetry(name string)    { h.m.IncAggregateRetry(strings.TrimSpace(name)) }

// NewLogHooks reports lost compare-and-sets and retryable failures so reviewers
// racing each other show up in the logs.
func NewLogHooks(log *logger.Logger) Hooks {
	if log == nil {
		return noopHooks{}
	}
	return logHooks{log: log.With("component", "aggregate_hooks")}
}

type logHooks struct{ log *logger.Logger }

func (h logHooks) ObserveOperation(name, status string, dur time.Duration) {
	if status != "success" {
		h.log.Debug("aggregate write failed", "op", name, "status", status, "duration_ms", dur.Milliseconds())
	}
}
func (h logHooks) IncConflict(name string) { h.log.Warn("aggregate conflict", "op", name) }
func (h logHooks) IncRetry(name string)    { h.log.Warn("aggregate retryable failure", "op", name) }

// FanOut forwards every event to each non-nil hook in order.
func FanOut(hooks ...Hooks) Hooks {
	out := make(fanOut, 0, len(hooks))
	for _, h := range hooks {
		if h != nil {
			out = append(out, h)
		}
	}
	if len(out) == 0 {
		return noopHooks{}
	}
	return out
}

type fanOut []Hooks

func (f fanOut) ObserveOperation(name, status string, dur time.Duration) {
	for _, h := range f {
		h.ObserveOperation(name, status, dur)
	}
}

func (f fanOut) IncConflict(name string) {
	for _, h := range f {
		h.IncConflict(name)
	}
}

func (f fanOut) IncRetry(name string) {
	for _, h := range f {
		h.IncRetry(name)
	}
}
