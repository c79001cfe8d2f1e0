package inference

import (
	"github.com/cognicore/reviewtopics/pkg/reviewtopics/vocab"
)

// TopicDistribution maps topic index to probability. Topics below the
// model's relevance threshold are absent.
type TopicDistribution = map[int]float64

// Vocabulary encodes a token sequence against a fixed dictionary.
// This interface allows swapping the trained dictionary for a test double.
type Vocabulary interface {
	// Doc2Bow counts known tokens; unknown tokens are dropped.
	Doc2Bow(tokens []string) vocab.BagOfWords
}

// Model is a trained topic model.
type Model interface {
	// DocumentTopics returns the sparse topic distribution of a document.
	DocumentTopics(bow vocab.BagOfWords) TopicDistribution

	// NumTopics returns the number of topics the model was trained with.
	NumTopics() int
}

// Tokenizer turns raw text into a filtered token sequence.
type Tokenizer interface {
	Preprocess(text string) []string
	Value(v any) []string
}
