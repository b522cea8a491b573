package sinks

import (
	"context"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ashishsingh-beep/dreamforce-bot-playwright/internal/progress"
)

// PrometheusSink exports orchestration metrics: job and worker lifecycle plus
// per-item outcomes derived from cumulative worker counters.
type PrometheusSink struct {
	jobsStarted    prometheus.Counter
	jobsFinished   *prometheus.CounterVec
	jobsRunning    prometheus.Gauge
	jobRuntime     *prometheus.HistogramVec
	workersRunning prometheus.Gauge
	workersDone    *prometheus.CounterVec
	items          *prometheus.CounterVec

	mu      sync.Mutex
	running map[string]struct{}
	live    map[workerKey]struct{}
	last    map[workerKey]counts
}

type workerKey struct {
	jobID  string
	worker int
}

type counts struct {
	success int
	failure int
}

// NewPrometheusSink registers the collectors against the provided registry.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PrometheusSink{
		jobsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scrape_jobs_started_total",
			Help: "Total jobs accepted and launched.",
		}),
		jobsFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scrape_jobs_finished_total",
			Help: "Jobs that reached a terminal status, by status.",
		}, []string{"status"}),
		jobsRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "scrape_jobs_running",
			Help: "Jobs with at least one worker still running.",
		}),
		jobRuntime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "scrape_job_runtime_seconds",
			Help:    "Wall time per finished job.",
			Buckets: []float64{10, 30, 60, 300, 600, 1800, 3600, 7200},
		}, []string{"status"}),
		workersRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "scrape_workers_running",
			Help: "Workers currently holding a browser session.",
		}),
		workersDone: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scrape_workers_finished_total",
			Help: "Workers that reached a terminal state, by outcome.",
		}, []string{"outcome"}),
		items: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scrape_items_processed_total",
			Help: "Work items processed, by result.",
		}, []string{"result"}),
		running: make(map[string]struct{}),
		live:    make(map[workerKey]struct{}),
		last:    make(map[workerKey]counts),
	}
	for _, collector := range []prometheus.Collector{
		s.jobsStarted,
		s.jobsFinished,
		s.jobsRunning,
		s.jobRuntime,
		s.workersRunning,
		s.workersDone,
		s.items,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register progress collector: %w", err)
		}
	}
	return s, nil
}

// Consume updates the collectors. It is safe for concurrent use.
func (s *PrometheusSink) Consume(_ context.Context, batch []progress.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, evt := range batch {
		s.consumeEvent(evt)
	}
	return nil
}

func (s *PrometheusSink) consumeEvent(evt progress.Event) {
	switch evt.Stage {
	case progress.StageJobStart:
		s.jobsStarted.Inc()
		if _, ok := s.running[evt.JobID]; !ok {
			s.running[evt.JobID] = struct{}{}
			s.jobsRunning.Inc()
		}
	case progress.StageJobDone, progress.StageJobError:
		status := "completed"
		if evt.Stage == progress.StageJobError {
			status = "error"
		}
		s.jobsFinished.WithLabelValues(status).Inc()
		if evt.Dur > 0 {
			s.jobRuntime.WithLabelValues(status).Observe(evt.Dur.Seconds())
		}
		if _, ok := s.running[evt.JobID]; ok {
			delete(s.running, evt.JobID)
			s.jobsRunning.Dec()
		}
	case progress.StageWorkerStart:
		key := workerKey{evt.JobID, evt.Worker}
		if _, ok := s.live[key]; !ok {
			s.live[key] = struct{}{}
			s.workersRunning.Inc()
		}
	case progress.StageWorkerProgress:
		s.observeItems(evt)
	case progress.StageWorkerDone, progress.StageWorkerError:
		s.observeItems(evt)
		outcome := "done"
		if evt.Stage == progress.StageWorkerError {
			outcome = "error"
		}
		s.workersDone.WithLabelValues(outcome).Inc()
		key := workerKey{evt.JobID, evt.Worker}
		delete(s.last, key)
		if _, ok := s.live[key]; ok {
			delete(s.live, key)
			s.workersRunning.Dec()
		}
	}
}

// observeItems converts cumulative counters into deltas since the last event
// for the same worker.
func (s *PrometheusSink) observeItems(evt progress.Event) {
	key := workerKey{evt.JobID, evt.Worker}
	prev := s.last[key]
	if d := evt.Success - prev.success; d > 0 {
		s.items.WithLabelValues("success").Add(float64(d))
		prev.success = evt.Success
	}
	if d := evt.Failure - prev.failure; d > 0 {
		s.items.WithLabelValues("failure").Add(float64(d))
		prev.failure = evt.Failure
	}
	s.last[key] = prev
}

// Close implements the Sink interface; it performs no action.
func (s *PrometheusSink) Close(context.Context) error {
	return nil
}
