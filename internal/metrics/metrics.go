package metrics

import (
	"context"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
)

var reviewsPerTopicDesc = prometheus.NewDesc(
	"reviewtopics_dataset_reviews",
	"Reviews in the example dataset by dominant topic",
	[]string{"topic"},
	nil,
)

// TopicCounter reports dataset reviews per topic.
type TopicCounter interface {
	TopicCounts(ctx context.Context) (map[int]int, error)
}

// DatasetCollector reads review counts from the dataset on each scrape.
type DatasetCollector struct {
	src TopicCounter
	log *zap.Logger
}

// Describe sends the metric descriptor to the channel.
func (c *DatasetCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- reviewsPerTopicDesc
}

// Collect emits one gauge per topic present in the dataset.
func (c *DatasetCollector) Collect(ch chan<- prometheus.Metric) {
	counts, err := c.src.TopicCounts(context.Background())
	if err != nil {
		c.log.Error("failed to collect dataset metrics", zap.Error(err))
		return
	}
	for topic, n := range counts {
		ch <- prometheus.MustNewConstMetric(
			reviewsPerTopicDesc,
			prometheus.GaugeValue,
			float64(n),
			strconv.Itoa(topic),
		)
	}
}

// Metrics holds the classification instruments and the registry they are
// registered with.
type Metrics struct {
	Registry *prometheus.Registry

	classifications *prometheus.CounterVec
	predictedTopics *prometheus.CounterVec
	latency         prometheus.Histogram
	modelReady      prometheus.Gauge
}

// New creates a registry with process collectors and the classification
// metrics. src may be nil when there is no dataset.
func New(src TopicCounter, log *zap.Logger) *Metrics {
	if log == nil {
		log = zap.NewNop()
	}
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		classifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reviewtopics_classifications_total",
			Help: "Classification requests by outcome",
		}, []string{"outcome"}),
		predictedTopics: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reviewtopics_predicted_topic_total",
			Help: "Successful classifications by predicted topic",
		}, []string{"topic"}),
		latency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "reviewtopics_classification_seconds",
			Help:    "Time spent classifying one text",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 8),
		}),
		modelReady: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "reviewtopics_model_ready",
			Help: "1 when a topic model is loaded",
		}),
	}
	m.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.classifications,
		m.predictedTopics,
		m.latency,
		m.modelReady,
	)
	if src != nil {
		m.Registry.MustRegister(&DatasetCollector{src: src, log: log})
	}
	return m
}

// ObserveClassification records one classification. outcome is "ok" or an
// error kind; topic is ignored unless outcome is "ok".
func (m *Metrics) ObserveClassification(outcome string, topic int, took time.Duration) {
	m.classifications.WithLabelValues(outcome).Inc()
	if outcome == "ok" {
		m.predictedTopics.WithLabelValues(strconv.Itoa(topic)).Inc()
	}
	m.latency.Observe(took.Seconds())
}

// SetModelReady updates the model readiness gauge.
func (m *Metrics) SetModelReady(ready bool) {
	if ready {
		m.modelReady.Set(1)
		return
	}
	m.modelReady.Set(0)
}
