package vis

import (
	"bytes"
	"errors"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cognicore/reviewtopics/pkg/reviewtopics/lda"
	"github.com/cognicore/reviewtopics/pkg/reviewtopics/vocab"
)

func fixture(t *testing.T) (*lda.Model, *vocab.Dictionary) {
	t.Helper()
	tw := make([][]float64, 3)
	for k := range tw {
		tw[k] = make([]float64, 6)
		for w := range tw[k] {
			tw[k][w] = 0.1
		}
		tw[k][2*k] = 50
		tw[k][2*k+1] = 50
	}
	m, err := lda.New(lda.Params{Alpha: []float64{0.1, 0.1, 0.1}, TopicWord: tw})
	if err != nil {
		t.Fatal(err)
	}
	d, err := vocab.New(map[string]int{
		"broken": 0, "screen": 1, "delivery": 2, "fast": 3, "support": 4, "refund": 5,
	})
	if err != nil {
		t.Fatal(err)
	}
	return m, d
}

func TestPrepare(t *testing.T) {
	m, d := fixture(t)
	corpus := []vocab.BagOfWords{
		{0: 3, 1: 3},
		{0: 2, 1: 2},
		{2: 1},
		{4: 1},
	}

	data, err := Prepare(m, corpus, d, Options{TopTerms: 2, Labels: []string{"Quality", "Shipping"}})
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if len(data.Topics) != 3 || len(data.Terms) != 3 {
		t.Fatalf("Expected 3 topics, got %d/%d", len(data.Topics), len(data.Terms))
	}

	var sum float64
	for _, tp := range data.Topics {
		sum += tp.Prevalence
	}
	if math.Abs(sum-1) > 1e-9 {
		t.Errorf("prevalence should sum to 1, got %v", sum)
	}
	if data.Topics[0].Prevalence <= data.Topics[1].Prevalence {
		t.Errorf("topic 0 dominates the corpus, prevalence %v", data.Topics)
	}

	if data.Topics[0].Label != "Quality" || data.Topics[2].Label != "Topic 2" {
		t.Errorf("unexpected labels %q %q", data.Topics[0].Label, data.Topics[2].Label)
	}

	if len(data.Terms[1]) != 2 {
		t.Fatalf("Expected 2 terms, got %d", len(data.Terms[1]))
	}
	for _, term := range data.Terms[1] {
		if term.Token != "delivery" && term.Token != "fast" {
			t.Errorf("unexpected top term %q for topic 1", term.Token)
		}
	}
	if data.Lambda != DefaultLambda {
		t.Errorf("Lambda = %v", data.Lambda)
	}
}

func TestPrepareWithoutCorpus(t *testing.T) {
	m, d := fixture(t)

	data, err := Prepare(m, nil, d, Options{})
	if err != nil {
		t.Fatal(err)
	}
	for _, tp := range data.Topics {
		if math.Abs(tp.Prevalence-1.0/3) > 1e-9 {
			t.Errorf("Expected uniform prevalence, got %v", tp.Prevalence)
		}
	}
	if len(data.Terms[0]) != 6 {
		t.Errorf("TopTerms default should keep every term of a small vocabulary, got %d", len(data.Terms[0]))
	}
}

func TestPrepareRejectsBadLambda(t *testing.T) {
	m, d := fixture(t)
	if _, err := Prepare(m, nil, d, Options{Lambda: 1.5}); err == nil {
		t.Error("Expected error for lambda > 1")
	}
	if _, err := Prepare(nil, nil, d, Options{}); err == nil {
		t.Error("Expected error for nil model")
	}
}

func TestSymmetricTopicsAreEquidistant(t *testing.T) {
	m, d := fixture(t)
	data, err := Prepare(m, nil, d, Options{})
	if err != nil {
		t.Fatal(err)
	}

	dist := func(a, b TopicPoint) float64 {
		return math.Hypot(a.X-b.X, a.Y-b.Y)
	}
	d01 := dist(data.Topics[0], data.Topics[1])
	d12 := dist(data.Topics[1], data.Topics[2])
	d02 := dist(data.Topics[0], data.Topics[2])
	if d01 == 0 {
		t.Fatal("distinct topics should not overlap")
	}
	if math.Abs(d01-d12) > 1e-6 || math.Abs(d01-d02) > 1e-6 {
		t.Errorf("Expected equilateral layout, got %v %v %v", d01, d12, d02)
	}
}

func TestJensenShannon(t *testing.T) {
	p := []float64{0.5, 0.5, 0}
	if js := jensenShannon(p, p); js != 0 {
		t.Errorf("JS(p,p) = %v", js)
	}
	q := []float64{0, 0, 1}
	if js := jensenShannon(p, q); math.Abs(js-math.Ln2) > 1e-12 {
		t.Errorf("JS of disjoint distributions = %v, want ln 2", js)
	}
}

func TestRender(t *testing.T) {
	m, d := fixture(t)
	data, err := Prepare(m, nil, d, Options{Labels: []string{"Quality"}})
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := Render(&buf, data); err != nil {
		t.Fatalf("Render: %v", err)
	}
	html := buf.String()
	for _, want := range []string{MapChartID, TopicChartID(0), TopicChartID(2), "Quality", "delivery"} {
		if !strings.Contains(html, want) {
			t.Errorf("rendered page missing %q", want)
		}
	}
}

func TestEnsureHTMLCaches(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lda_visualization.html")
	calls := 0
	build := func(w io.Writer) error {
		calls++
		_, err := io.WriteString(w, "<html>map</html>")
		return err
	}

	first, err := EnsureHTML(path, build)
	if err != nil {
		t.Fatal(err)
	}
	second, err := EnsureHTML(path, build)
	if err != nil {
		t.Fatal(err)
	}
	if calls != 1 {
		t.Errorf("build should run once, ran %d times", calls)
	}
	if string(first) != string(second) {
		t.Error("cached page differs from rendered page")
	}
	onDisk, _ := os.ReadFile(path)
	if string(onDisk) != "<html>map</html>" {
		t.Errorf("unexpected file content %q", onDisk)
	}
}

func TestEnsureHTMLBuildError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lda_visualization.html")
	boom := errors.New("boom")

	_, err := EnsureHTML(path, func(io.Writer) error { return boom })
	if !errors.Is(err, boom) {
		t.Errorf("Expected build error, got %v", err)
	}
	if _, statErr := os.Stat(path); !os.IsNotExist(statErr) {
		t.Error("failed render must not leave a cache file")
	}
}
