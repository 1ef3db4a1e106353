package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"choircal/internal/model"
	"choircal/internal/schedule"
)

// Recorder exports fetch and ingestion metrics to Prometheus.
type Recorder struct {
	fetches     *prometheus.CounterVec
	fetchTime   *prometheus.HistogramVec
	records     *prometheus.GaugeVec
	discarded   *prometheus.GaugeVec
	unavailable prometheus.Counter
}

// NewRecorder registers the collectors on reg. If reg is nil, the default
// registerer is used. Collectors that are already registered are reused.
func NewRecorder(reg prometheus.Registerer) (*Recorder, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	r := &Recorder{
		fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "choircal_source_fetch_total",
			Help: "Schedule export fetches by how they were served",
		}, []string{"source", "result"}),
		fetchTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "choircal_source_fetch_seconds",
			Help:    "Upstream fetch latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"source"}),
		records: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "choircal_records",
			Help: "Records in the last ingested dataset by category",
		}, []string{"category"}),
		discarded: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "choircal_rows_discarded",
			Help: "Rows discarded or degraded in the last ingestion by reason",
		}, []string{"reason"}),
		unavailable: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "choircal_source_unavailable_total",
			Help: "Boards rendered without a readable source",
		}),
	}

	var err error
	if r.fetches, err = register(reg, r.fetches); err != nil {
		return nil, err
	}
	if r.fetchTime, err = register(reg, r.fetchTime); err != nil {
		return nil, err
	}
	if r.records, err = register(reg, r.records); err != nil {
		return nil, err
	}
	if r.discarded, err = register(reg, r.discarded); err != nil {
		return nil, err
	}
	if r.unavailable, err = register(reg, r.unavailable); err != nil {
		return nil, err
	}
	return r, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// ObserveFetch implements sheet.FetchObserver.
func (r *Recorder) ObserveFetch(source, result string, d time.Duration) {
	r.fetches.WithLabelValues(source, result).Inc()
	if d > 0 {
		r.fetchTime.WithLabelValues(source).Observe(d.Seconds())
	}
}

// RecordIngest replaces the dataset gauges with the latest pass.
func (r *Recorder) RecordIngest(in schedule.Dataset) {
	counts := map[model.Category]int{
		model.CategorySmall: 0,
		model.CategoryLarge: 0,
		model.CategoryMixed: 0,
	}
	for _, rec := range in.Records {
		counts[rec.Category]++
	}
	for cat, n := range counts {
		r.records.WithLabelValues(string(cat)).Set(float64(n))
	}
	r.discarded.WithLabelValues("skipped").Set(float64(in.Skipped))
	r.discarded.WithLabelValues("dropped").Set(float64(in.Dropped))
	r.discarded.WithLabelValues("musician_only").Set(float64(in.MusicianOnly))
	r.discarded.WithLabelValues("undated").Set(float64(in.Undated))
}

// RecordUnavailable counts a board served without source data.
func (r *Recorder) RecordUnavailable() {
	r.unavailable.Inc()
}
