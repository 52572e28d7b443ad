package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"workhorse/internal/metrics"
	"workhorse/internal/processor"
	"workhorse/internal/store"
)

type fakeStatsSource struct {
	stats store.Stats
	err   error
}

func (f *fakeStatsSource) Snapshot(ctx context.Context, queues []string) (store.Stats, error) {
	return f.stats, f.err
}

type fakeController struct {
	stopping  bool
	processor []*processor.Processor
}

func (f *fakeController) Stopping() bool                     { return f.stopping }
func (f *fakeController) Processors() []*processor.Processor { return f.processor }

func TestHealthzReturnsOK(t *testing.T) {
	s := New(&fakeStatsSource{}, &fakeController{}, []string{"default"}, metrics.New())

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestStatsReturnsSnapshot(t *testing.T) {
	fake := &fakeStatsSource{stats: store.Stats{
		QueueLengths: map[string]int64{"default": 5},
		RetryCount:   2,
		DeadCount:    1,
	}}
	ctrl := &fakeController{stopping: false, processor: make([]*processor.Processor, 3)}
	s := New(fake, ctrl, []string{"default"}, metrics.New())

	req := httptest.NewRequest(http.MethodGet, "/stats", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, float64(2), body["retry"])
	assert.Equal(t, float64(1), body["dead"])
	assert.Equal(t, false, body["stopping"])
	assert.Equal(t, float64(3), body["processors"])
}

func TestStatsReportsStoppingFlag(t *testing.T) {
	fake := &fakeStatsSource{}
	ctrl := &fakeController{stopping: true}
	s := New(fake, ctrl, []string{"default"}, metrics.New())

	req := httptest.NewRequest(http.MethodGet, "/stats", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, true, body["stopping"])
	assert.Equal(t, float64(0), body["processors"])
}

func TestMetricsEndpointServesPrometheusFormat(t *testing.T) {
	s := New(&fakeStatsSource{}, &fakeController{}, []string{"default"}, metrics.New())

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/plain")
}
