package metrics

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCounts struct {
	counts map[int]int
	err    error
}

func (f fakeCounts) TopicCounts(context.Context) (map[int]int, error) {
	return f.counts, f.err
}

func TestObserveClassification(t *testing.T) {
	m := New(nil, nil)

	m.ObserveClassification("ok", 1, time.Millisecond)
	m.ObserveClassification("ok", 1, time.Millisecond)
	m.ObserveClassification("empty_input", 0, time.Microsecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.classifications.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.classifications.WithLabelValues("empty_input")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.predictedTopics.WithLabelValues("1")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.predictedTopics))
}

func TestModelReady(t *testing.T) {
	m := New(nil, nil)

	m.SetModelReady(true)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.modelReady))
	m.SetModelReady(false)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.modelReady))
}

func TestDatasetCollector(t *testing.T) {
	c := &DatasetCollector{src: fakeCounts{counts: map[int]int{0: 4, 2: 1}}}

	expected := `
# HELP reviewtopics_dataset_reviews Reviews in the example dataset by dominant topic
# TYPE reviewtopics_dataset_reviews gauge
reviewtopics_dataset_reviews{topic="0"} 4
reviewtopics_dataset_reviews{topic="2"} 1
`
	require.NoError(t, testutil.CollectAndCompare(c, strings.NewReader(expected)))
}

func TestDatasetCollectorError(t *testing.T) {
	m := New(fakeCounts{err: errors.New("db down")}, nil)

	families, err := m.Registry.Gather()
	require.NoError(t, err)
	for _, f := range families {
		assert.NotEqual(t, "reviewtopics_dataset_reviews", f.GetName())
	}
}
