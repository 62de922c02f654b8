package monitor

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"os"
	"time"

	"ShelfLayoutServer/engine"
	"ShelfLayoutServer/logger"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shirou/gopsutil/v4/process"
	"go.uber.org/zap"
)

// Metrics holds every collector of the server on a private registry.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry   *prometheus.Registry
	memUsage   prometheus.Gauge
	cpuUsage   prometheus.Gauge
	queueDepth prometheus.Gauge
	requests   *prometheus.CounterVec
	analyses   *prometheus.CounterVec
	dropped    *prometheus.CounterVec
	duration   prometheus.Histogram
	answers    *prometheus.CounterVec
	attempts   prometheus.Counter
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		memUsage: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "memory_usage_Megabytes",
			Help: "Memory usage in Megabytes",
		}),
		cpuUsage: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "cpu_usage_percent",
			Help: "CPU usage in percent",
		}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "shelf_pipeline_queue_depth",
			Help: "Analyses waiting for a free worker",
		}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "shelf_requests_total",
			Help: "Requests received, by transport",
		}, []string{"transport"}),
		analyses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "shelf_analyses_total",
			Help: "Pipeline runs, by outcome",
		}, []string{"outcome"}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "shelf_detections_dropped_total",
			Help: "Detections removed by the normalizer, by reason",
		}, []string{"reason"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "shelf_analysis_duration_seconds",
			Help:    "Wall time of one analysis including the detection call",
			Buckets: prometheus.ExponentialBuckets(0.0005, 4, 10),
		}),
		answers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "shelf_answers_total",
			Help: "Question answering outcomes",
		}, []string{"outcome"}),
		attempts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "shelf_answer_attempts_total",
			Help: "Calls made to the answer collaborator, retries included",
		}),
	}
	m.registry.MustRegister(m.memUsage, m.cpuUsage, m.queueDepth, m.requests, m.analyses,
		m.dropped, m.duration, m.answers, m.attempts)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) IncRequest(transport string) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(transport).Inc()
}

func (m *Metrics) ObserveAnalysis(report engine.NormalizeReport, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	m.duration.Observe(elapsed.Seconds())
	if err != nil {
		m.analyses.WithLabelValues("error").Inc()
		return
	}
	m.analyses.WithLabelValues("ok").Inc()
	m.dropped.WithLabelValues("low_confidence").Add(float64(report.LowConfidence))
	m.dropped.WithLabelValues("invalid_geometry").Add(float64(report.InvalidGeometry))
	m.dropped.WithLabelValues("suppressed").Add(float64(report.Suppressed))
}

func (m *Metrics) ObserveAnswer(outcome string, attempts int) {
	if m == nil {
		return
	}
	m.answers.WithLabelValues(outcome).Inc()
	m.attempts.Add(float64(attempts))
}

func (m *Metrics) SetQueueDepth(n int) {
	if m == nil {
		return
	}
	m.queueDepth.Set(float64(n))
}

func (m *Metrics) sampleProcess(p *process.Process) {
	if memInfo, err := p.MemoryInfo(); err == nil {
		m.memUsage.Set(float64(memInfo.RSS / 1024 / 1024))
	}
	if cpu, err := p.CPUPercent(); err == nil {
		m.cpuUsage.Set(math.Round(cpu*100) / 100)
	}
}

// Handler exposes the registry in the prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// StartMon serves /metrics on port and samples process usage until ctx is done.
func StartMon(ctx context.Context, port int, m *Metrics) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log().Error("metrics server stopped", zap.Error(err))
		}
	}()

	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		logger.Log().Warn("process sampling disabled", zap.Error(err))
	}
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()
checkPcs:
	for {
		select {
		case <-ctx.Done():
			break checkPcs
		case <-ticker.C:
			if p != nil {
				m.sampleProcess(p)
			}
		}
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Log().Error("metrics server shutdown", zap.Error(err))
	}
}
