package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// OperatorMetrics tracks task handling and chain submissions
type OperatorMetrics struct {
	EventsReceived     *prometheus.CounterVec
	TasksHandled       *prometheus.CounterVec
	TaskDuration       *prometheus.HistogramVec
	TasksInFlight      prometheus.Gauge
	Submissions        *prometheus.CounterVec
	SubmissionAttempts *prometheus.HistogramVec
	SubmissionDuration *prometheus.HistogramVec
	Registered         prometheus.Gauge
}

var (
	taskDurationBuckets       = []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300}
	submissionAttemptsBuckets = []float64{1, 2, 3, 4, 5, 8, 10}
)

func NewOperatorMetrics(collector *Collector) *OperatorMetrics {
	s := collector.subsystem("operator")

	return &OperatorMetrics{
		EventsReceived:     s.counterVec("events_received_total", "Task events received from the chain", "kind"),
		TasksHandled:       s.counterVec("tasks_handled_total", "Tasks reaching a terminal outcome", "kind", "outcome"),
		TaskDuration:       s.histogramVec("task_duration_seconds", "Time from dispatch to terminal outcome", taskDurationBuckets, "kind"),
		TasksInFlight:      s.gauge("tasks_in_flight", "Task handlers currently running"),
		Submissions:        s.counterVec("submissions_total", "Contract write submissions by outcome", "method", "outcome"),
		SubmissionAttempts: s.histogramVec("submission_attempts", "Broadcast attempts per submission", submissionAttemptsBuckets, "method"),
		SubmissionDuration: s.histogramVec("submission_duration_seconds", "Time from first attempt to confirmation or failure", taskDurationBuckets, "method"),
		Registered:         s.gauge("registered", "1 when the operator is registered with the AVS"),
	}
}

func (m *OperatorMetrics) ObserveEvent(kind string) {
	m.EventsReceived.WithLabelValues(kind).Inc()
}

func (m *OperatorMetrics) ObserveTask(kind, outcome string, elapsed time.Duration) {
	m.TasksHandled.WithLabelValues(kind, outcome).Inc()
	m.TaskDuration.WithLabelValues(kind).Observe(elapsed.Seconds())
}

func (m *OperatorMetrics) TaskStarted() {
	m.TasksInFlight.Inc()
}

func (m *OperatorMetrics) TaskFinished() {
	m.TasksInFlight.Dec()
}

// ObserveSubmission satisfies submission.Recorder
func (m *OperatorMetrics) ObserveSubmission(method, outcome string, attempts int, elapsed time.Duration) {
	m.Submissions.WithLabelValues(method, outcome).Inc()
	if attempts > 0 {
		m.SubmissionAttempts.WithLabelValues(method).Observe(float64(attempts))
	}
	m.SubmissionDuration.WithLabelValues(method).Observe(elapsed.Seconds())
}

func (m *OperatorMetrics) SetRegistered(registered bool) {
	if registered {
		m.Registered.Set(1)
		return
	}
	m.Registered.Set(0)
}
