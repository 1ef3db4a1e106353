package metrics

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"choircal/internal/model"
	"choircal/internal/schedule"
)

func TestRecorderFetches(t *testing.T) {
	reg := prometheus.NewRegistry()
	r, err := NewRecorder(reg)
	require.NoError(t, err)

	r.ObserveFetch("scu", "ok", 120*time.Millisecond)
	r.ObserveFetch("scu", "cache", 0)
	r.ObserveFetch("scu", "cache", 0)

	expected := `
# HELP choircal_source_fetch_total Schedule export fetches by how they were served
# TYPE choircal_source_fetch_total counter
choircal_source_fetch_total{result="cache",source="scu"} 2
choircal_source_fetch_total{result="ok",source="scu"} 1
`
	assert.NoError(t, testutil.CollectAndCompare(r.fetches, strings.NewReader(expected)))
	assert.Equal(t, 1, testutil.CollectAndCount(r.fetchTime))
}

func TestRecorderIngest(t *testing.T) {
	reg := prometheus.NewRegistry()
	r, err := NewRecorder(reg)
	require.NoError(t, err)

	r.RecordIngest(schedule.Dataset{
		Records: []model.Record{
			{Category: model.CategoryLarge},
			{Category: model.CategoryLarge},
			{Category: model.CategoryMixed},
		},
		Dropped:      2,
		MusicianOnly: 1,
	})

	assert.Equal(t, 2.0, testutil.ToFloat64(r.records.WithLabelValues("large")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.records.WithLabelValues("mixed")))
	assert.Equal(t, 0.0, testutil.ToFloat64(r.records.WithLabelValues("small")))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.discarded.WithLabelValues("dropped")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.discarded.WithLabelValues("musician_only")))

	r.RecordUnavailable()
	assert.Equal(t, 1.0, testutil.ToFloat64(r.unavailable))
}

func TestRecorderReusesRegisteredCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := NewRecorder(reg)
	require.NoError(t, err)
	second, err := NewRecorder(reg)
	require.NoError(t, err)

	first.RecordUnavailable()
	second.RecordUnavailable()
	assert.Equal(t, 2.0, testutil.ToFloat64(first.unavailable))
}
