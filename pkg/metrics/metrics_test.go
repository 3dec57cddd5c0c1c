package metrics

import (
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestHandlerServesScrapeFormat(t *testing.T) {
	req := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()
	Handler().ServeHTTP(w, req)

	assert.Equal(t, 200, w.Code)
	assert.Contains(t, w.Body.String(), "falconeri_jobs_created_total")
}

func TestTimerObserveDurationRecordsOneSample(t *testing.T) {
	hist := prometheus.NewHistogram(prometheus.HistogramOpts{Name: "test_duration_seconds"})
	timer := NewTimer()
	timer.ObserveDuration(hist)

	assert.Equal(t, 1, testutil.CollectAndCount(hist))
}

func TestTimerObserveDurationVecRecordsLabeledSample(t *testing.T) {
	vec := prometheus.NewHistogramVec(prometheus.HistogramOpts{Name: "test_labeled_duration_seconds"}, []string{"op"})
	timer := NewTimer()
	timer.ObserveDurationVec(vec, "reserve")

	count := testutil.CollectAndCount(vec)
	assert.Equal(t, 1, count)
}
