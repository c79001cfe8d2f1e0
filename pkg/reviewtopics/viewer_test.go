package reviewtopics

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cognicore/reviewtopics/pkg/reviewtopics/artifact"
	"github.com/cognicore/reviewtopics/pkg/reviewtopics/internalerr"
)

func writeModel(t *testing.T, dir string) string {
	t.Helper()
	b := &artifact.Bundle{
		NumTopics:   3,
		TopicLabels: []string{"Product quality", "Shipping speed", "Customer service"},
		Dictionary:  map[string]int{"broken": 0, "screen": 1, "delivery": 2, "fast": 3, "support": 4, "refund": 5},
		Alpha:       []float64{0.1, 0.1, 0.1},
		TopicWord: [][]float64{
			{50, 50, 0.1, 0.1, 0.1, 0.1},
			{0.1, 0.1, 50, 50, 0.1, 0.1},
			{0.1, 0.1, 0.1, 0.1, 50, 50},
		},
		Corpus: [][][]int{{{0, 1}, {1, 1}}, {{2, 2}}, {{4, 1}, {5, 1}}},
	}
	path := filepath.Join(dir, "lda_model.json")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := artifact.Encode(f, b, artifact.JSON); err != nil {
		t.Fatal(err)
	}
	return path
}

func writeReviews(t *testing.T, dir string, n int) string {
	t.Helper()
	var sb strings.Builder
	sb.WriteString("text,dominant_topic,topic_label\n")
	for i := 0; i < n; i++ {
		fmt.Fprintf(&sb, "review %d,%d,Topic %d\n", i, i%3, i%3)
	}
	path := filepath.Join(dir, "reviews_with_topics.csv")
	if err := os.WriteFile(path, []byte(sb.String()), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func openViewer(t *testing.T) *Viewer {
	t.Helper()
	dir := t.TempDir()
	v, err := Open(context.Background(), Options{
		ModelPath:         writeModel(t, dir),
		ReviewsPath:       writeReviews(t, dir, 12),
		VisualizationPath: filepath.Join(dir, "lda_visualization.html"),
	})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { v.Close() })
	return v
}

func TestViewerClassify(t *testing.T) {
	v := openViewer(t)

	if !v.Ready() || v.LoadErr() != nil {
		t.Fatalf("viewer not ready: %v", v.LoadErr())
	}

	res := v.Classify("Delivery was fast")
	if !res.OK() {
		t.Fatalf("classification failed: %v", res.Err)
	}
	if *res.Topic != 1 || res.Label != "Shipping speed" {
		t.Errorf("Expected topic 1 (Shipping speed), got %d (%s)", *res.Topic, res.Label)
	}
	if res.Confidence <= 0.5 || res.Confidence > 1 {
		t.Errorf("unexpected confidence %v", res.Confidence)
	}

	res = v.Classify("   ")
	if !errors.Is(res.Err, internalerr.ErrEmptyInput) {
		t.Errorf("Expected ErrEmptyInput, got %v", res.Err)
	}
}

func TestViewerTopics(t *testing.T) {
	v := openViewer(t)

	topics := v.Topics()
	if len(topics) != 3 {
		t.Fatalf("Expected 3 topics, got %d", len(topics))
	}
	if topics[2].Label != "Customer service" {
		t.Errorf("unexpected label %q", topics[2].Label)
	}
	if len(topics[0].Terms) == 0 || (topics[0].Terms[0] != "broken" && topics[0].Terms[0] != "screen") {
		t.Errorf("unexpected terms for topic 0: %v", topics[0].Terms)
	}
}

func TestViewerExamples(t *testing.T) {
	v := openViewer(t)
	ctx := context.Background()

	cases := []struct{ n, want int }{
		{0, DefaultExamples},
		{3, 3},
		{50, MaxExamples},
		{-2, 1},
	}
	for _, tc := range cases {
		got, err := v.Examples(ctx, tc.n)
		if err != nil {
			t.Fatal(err)
		}
		if len(got) != tc.want {
			t.Errorf("Examples(%d) returned %d reviews, want %d", tc.n, len(got), tc.want)
		}
	}

	counts, err := v.TopicCounts(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if counts[0] != 4 || counts[1] != 4 || counts[2] != 4 {
		t.Errorf("unexpected counts %v", counts)
	}
}

func TestViewerVisualization(t *testing.T) {
	v := openViewer(t)

	page, err := v.VisualizationHTML()
	if err != nil {
		t.Fatalf("VisualizationHTML: %v", err)
	}
	if !strings.Contains(string(page), "intertopic_map") {
		t.Error("page lacks the intertopic map")
	}
	again, err := v.VisualizationHTML()
	if err != nil || string(again) != string(page) {
		t.Error("second call should return the cached page")
	}
}

func TestViewerMissingModel(t *testing.T) {
	dir := t.TempDir()
	v, err := Open(context.Background(), Options{ModelPath: filepath.Join(dir, "missing.json")})
	if err != nil {
		t.Fatalf("missing model must not fail Open: %v", err)
	}
	defer v.Close()

	if v.Ready() {
		t.Error("viewer should not be ready")
	}
	if !errors.Is(v.LoadErr(), internalerr.ErrMissingArtifact) {
		t.Errorf("Expected ErrMissingArtifact, got %v", v.LoadErr())
	}
	res := v.Classify("Delivery was fast")
	if res.OK() || !errors.Is(res.Err, internalerr.ErrMissingArtifact) {
		t.Errorf("Classify without model: %+v", res)
	}
	if len(v.Topics()) != 0 {
		t.Error("Topics should be empty without a model")
	}
	if _, err := v.VisualizationHTML(); !errors.Is(err, internalerr.ErrMissingArtifact) {
		t.Errorf("Expected ErrMissingArtifact, got %v", err)
	}
}

func TestViewerMalformedModel(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "lda_model.json")
	os.WriteFile(path, []byte("{not json"), 0644)

	v, err := Open(context.Background(), Options{ModelPath: path})
	if err != nil {
		t.Fatal(err)
	}
	defer v.Close()

	if !errors.Is(v.LoadErr(), internalerr.ErrMissingArtifact) {
		t.Errorf("load failure should read as missing artifact, got %v", v.LoadErr())
	}
	if !errors.Is(v.LoadErr(), internalerr.ErrInvalidArtifact) {
		t.Errorf("cause should be kept, got %v", v.LoadErr())
	}
}

func TestViewerMissingDataset(t *testing.T) {
	dir := t.TempDir()
	v, err := Open(context.Background(), Options{
		ModelPath:   writeModel(t, dir),
		ReviewsPath: filepath.Join(dir, "none.csv"),
	})
	if err != nil {
		t.Fatal(err)
	}
	defer v.Close()

	if !v.Ready() {
		t.Error("missing dataset should not affect the model")
	}
	if !errors.Is(v.DatasetErr(), internalerr.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", v.DatasetErr())
	}
	got, err := v.Examples(context.Background(), 5)
	if err != nil || len(got) != 0 {
		t.Errorf("Examples = %v, %v", got, err)
	}
}

func TestClampExamples(t *testing.T) {
	for in, want := range map[int]int{0: 5, 1: 1, 10: 10, 11: 10, -1: 1} {
		if got := ClampExamples(in); got != want {
			t.Errorf("ClampExamples(%d) = %d, want %d", in, got, want)
		}
	}
}
