package metrics_test

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"annotation-service/internal/entity"
	"annotation-service/internal/metrics"
	"annotation-service/internal/repository/pebbledb"
)

func TestMetricsExposition(t *testing.T) {
	m := metrics.New()
	m.JobAssigned(entity.StatusToAnnotate)
	m.JobAssigned(entity.StatusToAnnotate)
	m.JobClosed(entity.StatusDone)
	m.JobInterrupted()
	m.BatchFlushed(10, 2048)
	m.ObserveRequest("GET", "/tasks/{task}", 200, 5*time.Millisecond)

	eng, err := pebbledb.OpenInMemory()
	require.NoError(t, err)
	defer eng.Close()
	require.NoError(t, m.Register(metrics.NewPebbleCollector(eng.DB())))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	text := string(body)

	for _, want := range []string{
		`annotation_jobs_assigned_total{objective="to_annotate"} 2`,
		`annotation_jobs_closed_total{status="done"} 1`,
		`annotation_jobs_interrupted_total 1`,
		`annotation_batch_flushes_total 1`,
		`annotation_http_requests_total{code="200",method="GET",route="/tasks/{task}"} 1`,
		`annotation_pebble_wal_files`,
	} {
		assert.True(t, strings.Contains(text, want), "missing %q", want)
	}
}
