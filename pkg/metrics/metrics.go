// Package metrics collects Prometheus metrics about a fetch run, to be
// written to a node-exporter textfile collector file when the run is done.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "cfy_fetch"

// Metrics holds the collectors of a single run. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	registry *prometheus.Registry

	BuildsResolved      *prometheus.CounterVec
	ArtifactsDownloaded *prometheus.CounterVec
	ArtifactsFailed     *prometheus.CounterVec
	ArtifactBytes       *prometheus.CounterVec
	Repositories        *prometheus.GaugeVec
	RunDuration         prometheus.Gauge
	LastRunTimestamp    prometheus.Gauge
}

// New returns metrics registered to a new registry of their own.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		BuildsResolved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "builds_resolved_total",
			Help:      "Number of jobs resolved to a successful build.",
		}, []string{"repo", "branch"}),
		ArtifactsDownloaded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "artifacts_downloaded_total",
			Help:      "Number of artifacts written to the output.",
		}, []string{"repo"}),
		ArtifactsFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "artifacts_failed_total",
			Help:      "Number of matching artifacts that could not be downloaded.",
		}, []string{"repo"}),
		ArtifactBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "artifact_bytes_total",
			Help:      "Number of artifact bytes written to the output.",
		}, []string{"repo"}),
		Repositories: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "repositories",
			Help:      "Number of repositories per final state.",
		}, []string{"state"}),
		RunDuration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Duration of the last run.",
		}),
		LastRunTimestamp: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time when the last run finished.",
		}),
	}
	m.registry.MustRegister(
		m.BuildsResolved,
		m.ArtifactsDownloaded,
		m.ArtifactsFailed,
		m.ArtifactBytes,
		m.Repositories,
		m.RunDuration,
		m.LastRunTimestamp,
	)
	return m
}

// Gatherer returns the registry holding the metrics.
func (m *Metrics) Gatherer() prometheus.Gatherer {
	return m.registry
}

// BuildResolved records a job resolved to a build on the given branch.
func (m *Metrics) BuildResolved(repo, branch string) {
	if m == nil {
		return
	}
	m.BuildsResolved.WithLabelValues(repo, branch).Inc()
}

// Downloaded records one artifact written to the output.
func (m *Metrics) Downloaded(repo string, bytes int64) {
	if m == nil {
		return
	}
	m.ArtifactsDownloaded.WithLabelValues(repo).Inc()
	m.ArtifactBytes.WithLabelValues(repo).Add(float64(bytes))
}

// DownloadsFailed records matching artifacts that could not be downloaded.
func (m *Metrics) DownloadsFailed(repo string, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.ArtifactsFailed.WithLabelValues(repo).Add(float64(count))
}

// RepoFinished records the final state of a repository.
func (m *Metrics) RepoFinished(state string) {
	if m == nil {
		return
	}
	m.Repositories.WithLabelValues(state).Inc()
}

// RunFinished records the duration of the run.
func (m *Metrics) RunFinished(took time.Duration, now time.Time) {
	if m == nil {
		return
	}
	m.RunDuration.Set(took.Seconds())
	m.LastRunTimestamp.Set(float64(now.Unix()))
}

// WriteTextfile writes the metrics in the Prometheus text format to the named
// file, replacing it atomically.
func (m *Metrics) WriteTextfile(filename string) error {
	return prometheus.WriteToTextfile(filename, m.registry)
}
