package observability

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/leasingborsen/listing-reconciler/internal/platform/envutil"
	"github.com/leasingborsen/listing-reconciler/internal/platform/logger"
)

type Metrics struct {
	apiRequests *CounterVec
	apiLatency  *HistogramVec
	apiInflight *Gauge

	aggregateOps       *HistogramVec
	aggregateConflicts *CounterVec
	aggregateRetries   *CounterVec

	changesClassified *CounterVec
	recordsFailed     *CounterVec
	changesApplied    *CounterVec
	applyDuration     *HistogramVec
	lockWait          *HistogramVec
}

var (
	initOnce sync.Once
	instance *Metrics
)

func Enabled() bool {
	return envutil.Bool("METRICS_ENABLED", false)
}

// Current returns nil until Init ran with metrics enabled. Every method is nil-safe.
func Current() *Metrics {
	return instance
}

func Init(log *logger.Logger) *Metrics {
	if !Enabled() {
		return nil
	}
	initOnce.Do(func() {
		instance = NewMetrics()
		if log != nil {
			log.Info("metrics initialized")
		}
	})
	return instance
}

// NewMetrics builds an unregistered set; tests use it directly.
func NewMetrics() *Metrics {
	return &Metrics{
		apiRequests: NewCounterVec("lr_api_requests_total", "API requests by method/route/status.", []string{"method", "route", "status"}),
		apiLatency: NewHistogramVec(
			"lr_api_request_duration_seconds",
			"API request latency in seconds by method/route/status.",
			[]string{"method", "route", "status"},
			[]float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		),
		apiInflight: NewGauge("lr_api_inflight_requests", "In-flight API requests."),
		aggregateOps: NewHistogramVec(
			"lr_aggregate_operation_duration_seconds",
			"Aggregate write duration by operation/status.",
			[]string{"op", "status"},
			[]float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		),
		aggregateConflicts: NewCounterVec("lr_aggregate_conflicts_total", "Aggregate compare-and-set conflicts by operation.", []string{"op"}),
		aggregateRetries:   NewCounterVec("lr_aggregate_retryable_total", "Aggregate retryable failures by operation.", []string{"op"}),
		changesClassified:  NewCounterVec("lr_changes_classified_total", "Classified changes by type/match method.", []string{"change_type", "match_method"}),
		recordsFailed:      NewCounterVec("lr_records_classify_failed_total", "Staged records that failed classification by reason.", []string{"reason"}),
		changesApplied:     NewCounterVec("lr_changes_applied_total", "Apply outcomes by change type/status.", []string{"change_type", "status"}),
		applyDuration: NewHistogramVec(
			"lr_apply_change_duration_seconds",
			"Per-change apply duration by change type/status.",
			[]string{"change_type", "status"},
			[]float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		),
		lockWait: NewHistogramVec(
			"lr_listing_lock_wait_seconds",
			"Time spent waiting for a per-listing lock by backend.",
			[]string{"backend"},
			[]float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		),
	}
}

func (m *Metrics) StartServer(ctx context.Context, log *logger.Logger, addr string) {
	if m == nil {
		return
	}
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           http.HandlerFunc(m.WriteHTTP),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = srv.Shutdown(shutdownCtx)
		cancel()
	}()
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			if log != nil {
				log.Error("metrics server failed", "error", err, "addr", addr)
			}
		}
	}()
}

func (m *Metrics) WriteHTTP(w http.ResponseWriter, r *http.Request) {
	if m == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	_ = m.WritePrometheus(w)
}

type promWriter interface {
	WritePrometheus(w io.Writer) error
}

func (m *Metrics) WritePrometheus(w io.Writer) error {
	if m == nil {
		return nil
	}
	for _, pw := range []promWriter{
		m.apiRequests, m.apiLatency, m.apiInflight,
		m.aggregateOps, m.aggregateConflicts, m.aggregateRetries,
		m.changesClassified, m.recordsFailed, m.changesApplied, m.applyDuration, m.lockWait,
	} {
		if err := pw.WritePrometheus(w); err != nil {
			return err
		}
	}
	return nil
}

func (m *Metrics) ObserveAPI(method, route string, status int, dur time.Duration) {
	if m == nil {
		return
	}
	if method == "" {
		method = "UNKNOWN"
	}
	code := strconv.Itoa(status)
	m.apiRequests.Inc(method, route, code)
	m.apiLatency.Observe(dur.Seconds(), method, route, code)
}

func (m *Metrics) ApiInflightInc() {
	if m == nil {
		return
	}
	m.apiInflight.Inc()
}

func (m *Metrics) ApiInflightDec() {
	if m == nil {
		return
	}
	m.apiInflight.Dec()
}

func (m *Metrics) ObserveAggregateOperation(op, status string, dur time.Duration) {
	if m == nil {
		return
	}
	m.aggregateOps.Observe(dur.Seconds(), op, status)
}

func (m *Metrics) IncAggregateConflict(op string) {
	if m == nil {
		return
	}
	m.aggregateConflicts.Inc(op)
}

func (m *Metrics) IncAggregateRetry(op string) {
	if m == nil {
		return
	}
	m.aggregateRetries.Inc(op)
}

func (m *Metrics) IncChangeClassified(changeType, matchMethod string) {
	if m == nil {
		return
	}
	m.changesClassified.Inc(changeType, matchMethod)
}

func (m *Metrics) IncRecordFailed(reason string) {
	if m == nil {
		return
	}
	m.recordsFailed.Inc(reason)
}

func (m *Metrics) ObserveApply(changeType, status string, dur time.Duration) {
	if m == nil {
		return
	}
	m.changesApplied.Inc(changeType, status)
	m.applyDuration.Observe(dur.Seconds(), changeType, status)
}

func (m *Metrics) ObserveLockWait(backend string, dur time.Duration) {
	if m == nil {
		return
	}
	m.lockWait.Observe(dur.Seconds(), backend)
}

// AppliedCount is exposed for tests and the apply report.
func (m *Metrics) AppliedCount(changeType, status string) float64 {
	if m == nil {
		return 0
	}
	return m.changesApplied.Value(changeType, status)
}
