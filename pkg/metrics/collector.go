// Package metrics exports job progress as Prometheus metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/dimits-ts/syndisco/pkg/job"
	"github.com/dimits-ts/syndisco/yarn"
)

// DefaultNamespace prefixes every metric name.
const DefaultNamespace = "syndisco"

// Collector records job events on its own registry. It implements
// job.Observer and is safe for concurrent jobs.
type Collector struct {
	registry *prometheus.Registry

	turnsTotal          *prometheus.CounterVec
	messagesTotal       *prometheus.CounterVec
	participantsRemoved prometheus.Counter
	generationFailures  *prometheus.CounterVec
	jobsTotal           *prometheus.CounterVec
	jobDuration         *prometheus.HistogramVec
	jobMessages         *prometheus.HistogramVec
	jobsRunning         *prometheus.GaugeVec

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	logger *zap.Logger
}

var _ job.Observer = (*Collector)(nil)

// NewCollector creates a collector with a fresh registry. Go runtime and
// process metrics are registered alongside the job metrics.
func NewCollector(namespace string, logger *zap.Logger) *Collector {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	c := &Collector{
		registry: reg,
		logger:   logger.With(zap.String("component", "metrics")),
	}

	c.turnsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_total",
			Help:      "Total number of scheduled turns and annotation items",
		},
		[]string{"kind"},
	)

	c.messagesTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_total",
			Help:      "Total number of messages appended to discussions",
		},
		[]string{"model"},
	)

	c.participantsRemoved = factory.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "participants_removed_total",
			Help:      "Participants removed from a discussion after generation failures",
		},
	)

	c.generationFailures = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generation_failures_total",
			Help:      "Generations that failed after retries, by job kind",
		},
		[]string{"kind"},
	)

	c.jobsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_total",
			Help:      "Finished jobs by kind, status and termination reason",
		},
		[]string{"kind", "status", "reason"},
	)

	c.jobDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "job_duration_seconds",
			Help:      "Wall time of finished jobs",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		},
		[]string{"kind"},
	)

	c.jobMessages = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "job_messages",
			Help:      "Messages per finished discussion or items per annotation",
			Buckets:   prometheus.LinearBuckets(0, 5, 10),
		},
		[]string{"kind"},
	)

	c.jobsRunning = factory.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "jobs_running",
			Help:      "Jobs started and not yet finished",
		},
		[]string{"kind"},
	)

	c.httpRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	c.httpRequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	return c
}

// Registry returns the registry the collector writes to.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

func (c *Collector) OnStart(kind job.Kind, jobID string) {
	c.jobsRunning.WithLabelValues(string(kind)).Inc()
}

func (c *Collector) OnTurn(kind job.Kind, jobID string, turn int, speaker string) {
	c.turnsTotal.WithLabelValues(string(kind)).Inc()
}

func (c *Collector) OnMessage(jobID string, msg *yarn.Message) {
	c.messagesTotal.WithLabelValues(msg.Model).Inc()
}

func (c *Collector) OnParticipantRemoved(jobID, participant string, err error) {
	c.participantsRemoved.Inc()
}

func (c *Collector) OnFinish(s job.Summary) {
	kind := string(s.Kind)
	c.jobsTotal.WithLabelValues(kind, string(s.Status), s.Reason).Inc()
	c.jobDuration.WithLabelValues(kind).Observe(s.Duration.Seconds())
	c.jobMessages.WithLabelValues(kind).Observe(float64(s.Messages))
	c.generationFailures.WithLabelValues(kind).Add(float64(s.Failures))
	c.jobsRunning.WithLabelValues(kind).Dec()
	c.logger.Debug("job recorded",
		zap.String("kind", kind),
		zap.String("id", s.ID),
		zap.String("status", string(s.Status)))
}

// RecordHTTPRequest records one served request.
func (c *Collector) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	c.httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	c.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}
