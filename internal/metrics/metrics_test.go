package metrics

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveStage("clean-css", 1, 1, 10, 5, time.Millisecond)
	m.ObserveBuild(nil)
	m.ObserveUpload(ResultUploaded, 10)
	m.ObserveDeploy(time.Second)
	assert.Nil(t, m.Registry())
	assert.NoError(t, m.WriteTextfile(filepath.Join(t.TempDir(), "x.prom")))
}

func TestObserveStage(t *testing.T) {
	m := New("")
	m.ObserveStage("clean-css", 3, 2, 300, 120, 10*time.Millisecond)
	m.ObserveStage("clean-css", 1, 0, 50, 50, time.Millisecond)

	assert.Equal(t, 4.0, testutil.ToFloat64(m.stageFiles.WithLabelValues("clean-css")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.stageChanged.WithLabelValues("clean-css")))
	assert.Equal(t, 350.0, testutil.ToFloat64(m.stageBytesIn.WithLabelValues("clean-css")))
	assert.Equal(t, 170.0, testutil.ToFloat64(m.stageBytesOut.WithLabelValues("clean-css")))
}

func TestObserveUpload(t *testing.T) {
	m := New("")
	m.ObserveUpload(ResultUploaded, 100)
	m.ObserveUpload(ResultSkipped, 100)
	m.ObserveUpload(ResultFailed, 100)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.uploadsTotal.WithLabelValues(ResultUploaded)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.uploadsTotal.WithLabelValues(ResultSkipped)))
	assert.Equal(t, 100.0, testutil.ToFloat64(m.uploadBytes))
}

func TestObserveBuild(t *testing.T) {
	m := New("")
	m.ObserveBuild(nil)
	m.ObserveBuild(errors.New("boom"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.buildsTotal.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.buildsTotal.WithLabelValues("error")))
	assert.Greater(t, testutil.ToFloat64(m.lastBuild), 0.0)
}

func TestWriteTextfile(t *testing.T) {
	m := New("site")
	m.ObserveUpload(ResultUploaded, 42)

	path := filepath.Join(t.TempDir(), "site.prom")
	require.NoError(t, m.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `site_deploy_objects_total{result="uploaded"} 1`)
	assert.Contains(t, string(data), "site_deploy_uploaded_bytes_total 42")
}
