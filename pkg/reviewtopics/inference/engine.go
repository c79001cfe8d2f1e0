package inference

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/cognicore/reviewtopics/pkg/reviewtopics/internalerr"
	"github.com/cognicore/reviewtopics/pkg/reviewtopics/preprocess"
)

// Result is the outcome of classifying one text. Exactly one of Topic and
// Err is set.
type Result struct {
	Topic      *int
	Label      string
	Confidence float64
	Err        error
}

// OK reports whether a topic was found.
func (r Result) OK() bool {
	return r.Topic != nil && r.Err == nil
}

// ErrorMessage returns the user-facing error text, or "" on success.
func (r Result) ErrorMessage() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

func failed(err error) Result {
	return Result{Confidence: 0, Err: err}
}

// Engine classifies free text against a trained model. It keeps no state
// between calls; concurrent use is safe as long as the model, vocabulary
// and labels are not mutated.
type Engine struct {
	tokenizer Tokenizer
	model     Model
	vocab     Vocabulary
	labels    []string
}

// Options configures an Engine.
type Options struct {
	Tokenizer  Tokenizer
	Model      Model
	Vocabulary Vocabulary
	Labels     []string
}

// New creates an engine. A nil Tokenizer falls back to the default
// English preprocessor.
func New(opts Options) (*Engine, error) {
	if opts.Model == nil {
		return nil, fmt.Errorf("inference: model required: %w", internalerr.ErrInvalidInput)
	}
	if opts.Vocabulary == nil {
		return nil, fmt.Errorf("inference: vocabulary required: %w", internalerr.ErrInvalidInput)
	}
	tok := opts.Tokenizer
	if tok == nil {
		tok = preprocess.Default()
	}
	return &Engine{
		tokenizer: tok,
		model:     opts.Model,
		vocab:     opts.Vocabulary,
		labels:    append([]string(nil), opts.Labels...),
	}, nil
}

// Classify returns the dominant topic of text with its probability.
// Input problems are reported in Result.Err, never as a panic.
func (e *Engine) Classify(text string) Result {
	return e.classifyTokens(e.tokenizer.Preprocess(text))
}

// ClassifyValue is Classify for untyped input; non-strings are empty input.
func (e *Engine) ClassifyValue(v any) Result {
	return e.classifyTokens(e.tokenizer.Value(v))
}

func (e *Engine) classifyTokens(tokens []string) Result {
	if len(tokens) == 0 {
		return failed(internalerr.ErrEmptyInput)
	}

	bow := e.vocab.Doc2Bow(tokens)
	if len(bow) == 0 {
		return failed(internalerr.ErrNoTopicPredicted)
	}

	topic, prob, ok := Dominant(e.model.DocumentTopics(bow))
	if !ok {
		return failed(internalerr.ErrNoTopicPredicted)
	}

	return Result{
		Topic:      &topic,
		Label:      e.Label(topic),
		Confidence: prob,
	}
}

// Label returns the human label of a topic, or "" if none was assigned.
func (e *Engine) Label(topic int) string {
	if topic < 0 || topic >= len(e.labels) {
		return ""
	}
	return e.labels[topic]
}

// Labels returns a copy of the label table.
func (e *Engine) Labels() []string {
	return append([]string(nil), e.labels...)
}

// NumTopics returns the model's topic count.
func (e *Engine) NumTopics() int {
	return e.model.NumTopics()
}

// Dominant picks the topic with the highest probability. Among equal
// maxima the lowest topic index wins. ok is false for an empty distribution.
func Dominant(d TopicDistribution) (topic int, prob float64, ok bool) {
	for t, p := range d {
		if math.IsNaN(p) {
			continue
		}
		if !ok || p > prob || (p == prob && t < topic) {
			topic, prob, ok = t, p, true
		}
	}
	if ok {
		prob = clamp01(prob)
	}
	return topic, prob, ok
}

func clamp01(p float64) float64 {
	switch {
	case p < 0:
		return 0
	case p > 1:
		return 1
	}
	return p
}

// DefaultBatchWorkers bounds ClassifyBatch concurrency.
const DefaultBatchWorkers = 4

// ClassifyBatch classifies texts concurrently, preserving order. It stops
// handing out work once ctx is done and returns ctx.Err().
func (e *Engine) ClassifyBatch(ctx context.Context, texts []string, workers int) ([]Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if workers <= 0 {
		workers = DefaultBatchWorkers
	}
	results := make([]Result, len(texts))

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				results[i] = e.Classify(texts[i])
			}
		}()
	}

	var err error
feed:
	for i := range texts {
		select {
		case <-ctx.Done():
			err = ctx.Err()
			break feed
		case jobs <- i:
		}
	}
	close(jobs)
	wg.Wait()

	if err != nil {
		return nil, err
	}
	return results, nil
}
