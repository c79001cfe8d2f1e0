package reviewtopics

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/cognicore/reviewtopics/pkg/reviewtopics/artifact"
	"github.com/cognicore/reviewtopics/pkg/reviewtopics/inference"
	"github.com/cognicore/reviewtopics/pkg/reviewtopics/internalerr"
	"github.com/cognicore/reviewtopics/pkg/reviewtopics/store"
	"github.com/cognicore/reviewtopics/pkg/reviewtopics/store/memstore"
	"github.com/cognicore/reviewtopics/pkg/reviewtopics/vis"
)

const (
	DefaultExamples = 5
	MaxExamples     = 10
	topicTermsShown = 10
)

// Viewer is the main facade: it owns the loaded model, the review dataset
// and the visualization cache.
type Viewer struct {
	cache   *artifact.Cache
	art     *artifact.Artifact
	engine  *inference.Engine
	loadErr error

	store      store.Store
	datasetErr error

	visPath  string
	topTerms int
	visMu    sync.Mutex
	visHTML  []byte
}

// Options configures a Viewer.
type Options struct {
	// ModelPath is read through an artifact.Cache unless Cache is set.
	ModelPath string
	Cache     *artifact.Cache
	Tokenizer inference.Tokenizer

	// Store holds example reviews; an in-memory store is used when nil.
	// ReviewsPath is imported into an empty store on Open.
	Store       store.Store
	ReviewsPath string

	// VisualizationPath caches the rendered page on disk; empty keeps it
	// in memory only.
	VisualizationPath string
	TopTerms          int
}

// Topic is a topic index with its display label and most probable terms.
type Topic struct {
	Index int      `json:"index"`
	Label string   `json:"label"`
	Terms []string `json:"terms,omitempty"`
}

// Open loads the model and dataset. A model that cannot be loaded does not
// fail Open: the viewer comes up in read-only mode and reports the cause
// through LoadErr. A missing or malformed dataset only leaves the examples
// empty.
func Open(ctx context.Context, opts Options) (*Viewer, error) {
	v := &Viewer{
		cache:    opts.Cache,
		store:    opts.Store,
		visPath:  opts.VisualizationPath,
		topTerms: opts.TopTerms,
	}
	if v.cache == nil {
		v.cache = artifact.NewCache(opts.ModelPath)
	}
	if v.store == nil {
		v.store = memstore.New()
	}

	art, err := v.cache.Get()
	if err != nil {
		if !errors.Is(err, internalerr.ErrMissingArtifact) {
			err = fmt.Errorf("%w: %w", internalerr.ErrMissingArtifact, err)
		}
		v.loadErr = err
	} else {
		engine, err := inference.New(inference.Options{
			Tokenizer:  opts.Tokenizer,
			Model:      art.Model,
			Vocabulary: art.Dictionary,
			Labels:     art.Labels,
		})
		if err != nil {
			return nil, err
		}
		v.art = art
		v.engine = engine
	}

	if opts.ReviewsPath != "" {
		n, err := v.store.Count(ctx)
		if err != nil {
			return nil, fmt.Errorf("count reviews: %w", err)
		}
		if n == 0 {
			if _, err := store.ImportCSVFile(ctx, v.store, opts.ReviewsPath); err != nil {
				v.datasetErr = err
			}
		}
	}
	return v, nil
}

// Close releases the review store.
func (v *Viewer) Close() error {
	return v.store.Close()
}

// Ready reports whether a model is loaded.
func (v *Viewer) Ready() bool {
	return v.engine != nil
}

// LoadErr returns why the model is unavailable, wrapping ErrMissingArtifact,
// or nil when Ready.
func (v *Viewer) LoadErr() error {
	return v.loadErr
}

// DatasetErr returns the error from importing the review dataset, if any.
func (v *Viewer) DatasetErr() error {
	return v.datasetErr
}

// ModelPath returns where the model is loaded from.
func (v *Viewer) ModelPath() string {
	return v.cache.Path()
}

// NumTopics returns K, or 0 without a model.
func (v *Viewer) NumTopics() int {
	if v.art == nil {
		return 0
	}
	return v.art.NumTopics()
}

// Topics lists every topic with its label and top terms.
func (v *Viewer) Topics() []Topic {
	if v.art == nil {
		return []Topic{}
	}
	out := make([]Topic, v.art.NumTopics())
	for i := range out {
		out[i] = Topic{Index: i, Label: v.engine.Label(i)}
		for _, tw := range v.art.Model.TopicTerms(i, topicTermsShown) {
			if tok, ok := v.art.Dictionary.Token(tw.ID); ok {
				out[i].Terms = append(out[i].Terms, tok)
			}
		}
	}
	return out
}

// Classify assigns text to its dominant topic. Without a model the result
// carries ErrMissingArtifact.
func (v *Viewer) Classify(text string) inference.Result {
	if v.engine == nil {
		return inference.Result{Err: v.loadErr}
	}
	return v.engine.Classify(text)
}

// ClassifyBatch classifies texts concurrently, keeping their order.
func (v *Viewer) ClassifyBatch(ctx context.Context, texts []string) ([]inference.Result, error) {
	if v.engine == nil {
		out := make([]inference.Result, len(texts))
		for i := range out {
			out[i] = inference.Result{Err: v.loadErr}
		}
		return out, ctx.Err()
	}
	return v.engine.ClassifyBatch(ctx, texts, inference.DefaultBatchWorkers)
}

// ClampExamples maps a requested example count onto [1, MaxExamples],
// with 0 meaning DefaultExamples.
func ClampExamples(n int) int {
	switch {
	case n == 0:
		return DefaultExamples
	case n < 1:
		return 1
	case n > MaxExamples:
		return MaxExamples
	}
	return n
}

// Examples returns the first n reviews of the dataset, n clamped by
// ClampExamples.
func (v *Viewer) Examples(ctx context.Context, n int) ([]store.Review, error) {
	return v.store.Head(ctx, ClampExamples(n))
}

// TopicCounts returns the number of dataset reviews per dominant topic.
func (v *Viewer) TopicCounts(ctx context.Context) (map[int]int, error) {
	return v.store.CountByTopic(ctx)
}

// VisualizationHTML returns the rendered topic visualization. The page is
// built once and then served from the cache file, or from memory when no
// path is configured.
func (v *Viewer) VisualizationHTML() ([]byte, error) {
	if v.art == nil {
		return nil, v.loadErr
	}

	v.visMu.Lock()
	defer v.visMu.Unlock()
	if v.visHTML != nil {
		return v.visHTML, nil
	}

	build := func(w io.Writer) error {
		data, err := vis.Prepare(v.art.Model, v.art.Corpus, v.art.Dictionary, vis.Options{
			TopTerms: v.topTerms,
			Labels:   v.art.Labels,
		})
		if err != nil {
			return err
		}
		return vis.Render(w, data)
	}

	var page []byte
	if v.visPath != "" {
		b, err := vis.EnsureHTML(v.visPath, build)
		if err != nil {
			return nil, err
		}
		page = b
	} else {
		var buf bytes.Buffer
		if err := build(&buf); err != nil {
			return nil, err
		}
		page = buf.Bytes()
	}
	v.visHTML = page
	return page, nil
}
