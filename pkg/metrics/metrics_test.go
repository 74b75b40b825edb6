package metrics

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsRecord(t *testing.T) {
	m := New()
	m.BuildResolved("cloudify-cosmo/cloudify-manager", "master")
	m.Downloaded("cloudify-cosmo/cloudify-manager", 1024)
	m.Downloaded("cloudify-cosmo/cloudify-manager", 24)
	m.DownloadsFailed("cloudify-cosmo/cloudify-manager", 2)
	m.DownloadsFailed("cloudify-cosmo/cloudify-manager", 0)
	m.RepoFinished("done")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.BuildsResolved.WithLabelValues("cloudify-cosmo/cloudify-manager", "master")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.ArtifactsDownloaded.WithLabelValues("cloudify-cosmo/cloudify-manager")))
	assert.Equal(t, 1048.0, testutil.ToFloat64(m.ArtifactBytes.WithLabelValues("cloudify-cosmo/cloudify-manager")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.ArtifactsFailed.WithLabelValues("cloudify-cosmo/cloudify-manager")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Repositories.WithLabelValues("done")))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.BuildResolved("a/b", "master")
		m.Downloaded("a/b", 1)
		m.DownloadsFailed("a/b", 1)
		m.RepoFinished("failed")
		m.RunFinished(time.Second, time.Now())
	})
}

func TestWriteTextfile(t *testing.T) {
	m := New()
	m.RunFinished(1500*time.Millisecond, time.Unix(1700000000, 0))
	name := filepath.Join(t.TempDir(), "cfy-fetch.prom")

	require.NoError(t, m.WriteTextfile(name))

	content, err := os.ReadFile(name)
	require.NoError(t, err)
	assert.Contains(t, string(content), "cfy_fetch_run_duration_seconds 1.5")
	assert.Contains(t, string(content), "cfy_fetch_last_run_timestamp_seconds 1.7e+09")
}
