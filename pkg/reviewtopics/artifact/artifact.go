package artifact

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/cognicore/reviewtopics/pkg/reviewtopics/internalerr"
	"github.com/cognicore/reviewtopics/pkg/reviewtopics/lda"
	"github.com/cognicore/reviewtopics/pkg/reviewtopics/vocab"
)

// Bundle is the on-disk shape of an exported topic model.
type Bundle struct {
	NumTopics          int            `json:"num_topics" yaml:"num_topics"`
	TopicLabels        []string       `json:"topic_labels" yaml:"topic_labels"`
	Dictionary         map[string]int `json:"dictionary" yaml:"dictionary"`
	Alpha              []float64      `json:"alpha" yaml:"alpha"`
	TopicWord          [][]float64    `json:"topic_word" yaml:"topic_word"`
	Corpus             [][][]int      `json:"corpus,omitempty" yaml:"corpus,omitempty"`
	MinimumProbability float64        `json:"minimum_probability,omitempty" yaml:"minimum_probability,omitempty"`
}

// Artifact is a loaded, validated bundle. Everything in it is read-only.
type Artifact struct {
	Path       string
	Model      *lda.Model
	Dictionary *vocab.Dictionary
	Labels     []string
	Corpus     []vocab.BagOfWords
}

// NumTopics returns the model's topic count.
func (a *Artifact) NumTopics() int {
	return a.Model.NumTopics()
}

// Load reads a bundle from path. ".yaml" and ".yml" files are decoded as
// YAML, everything else as JSON. A file that cannot be read yields
// ErrMissingArtifact; one that cannot be decoded or validated yields
// ErrInvalidArtifact.
func Load(path string) (*Artifact, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("artifact %s not found: %w", path, internalerr.ErrMissingArtifact)
		}
		return nil, fmt.Errorf("open artifact %s: %v: %w", path, err, internalerr.ErrMissingArtifact)
	}
	defer f.Close()

	b, err := Decode(f, formatFor(path))
	if err != nil {
		return nil, fmt.Errorf("artifact %s: %w", path, err)
	}
	art, err := FromBundle(b)
	if err != nil {
		return nil, fmt.Errorf("artifact %s: %w", path, err)
	}
	art.Path = path
	return art, nil
}

// Format selects the bundle encoding.
type Format int

const (
	JSON Format = iota
	YAML
)

func formatFor(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return YAML
	}
	return JSON
}

// Decode reads a bundle without validating it.
func Decode(r io.Reader, format Format) (*Bundle, error) {
	var b Bundle
	var err error
	switch format {
	case YAML:
		err = yaml.NewDecoder(r).Decode(&b)
	default:
		err = json.NewDecoder(r).Decode(&b)
	}
	if err != nil {
		return nil, fmt.Errorf("decode: %v: %w", err, internalerr.ErrInvalidArtifact)
	}
	return &b, nil
}

// Encode writes a bundle.
func Encode(w io.Writer, b *Bundle, format Format) error {
	if format == YAML {
		enc := yaml.NewEncoder(w)
		if err := enc.Encode(b); err != nil {
			enc.Close()
			return err
		}
		return enc.Close()
	}
	return json.NewEncoder(w).Encode(b)
}

// FromBundle validates a bundle and builds the model and dictionary.
func FromBundle(b *Bundle) (*Artifact, error) {
	if b.NumTopics < 1 {
		return nil, fmt.Errorf("num_topics must be positive, got %d: %w", b.NumTopics, internalerr.ErrInvalidArtifact)
	}
	if len(b.TopicWord) != b.NumTopics {
		return nil, fmt.Errorf("topic_word has %d rows for %d topics: %w", len(b.TopicWord), b.NumTopics, internalerr.ErrInvalidArtifact)
	}
	if len(b.TopicLabels) > b.NumTopics {
		return nil, fmt.Errorf("%d labels for %d topics: %w", len(b.TopicLabels), b.NumTopics, internalerr.ErrInvalidArtifact)
	}

	dict, err := vocab.New(b.Dictionary)
	if err != nil {
		return nil, fmt.Errorf("dictionary: %v: %w", err, internalerr.ErrInvalidArtifact)
	}
	if dict.Len() == 0 {
		return nil, fmt.Errorf("empty dictionary: %w", internalerr.ErrInvalidArtifact)
	}
	if v := len(b.TopicWord[0]); dict.MaxID() >= v {
		return nil, fmt.Errorf("dictionary id %d outside %d model terms: %w", dict.MaxID(), v, internalerr.ErrInvalidArtifact)
	}

	model, err := lda.New(lda.Params{
		Alpha:              b.Alpha,
		TopicWord:          b.TopicWord,
		MinimumProbability: b.MinimumProbability,
	})
	if err != nil {
		return nil, err
	}

	labels := make([]string, b.NumTopics)
	for i := range labels {
		if i < len(b.TopicLabels) && strings.TrimSpace(b.TopicLabels[i]) != "" {
			labels[i] = b.TopicLabels[i]
		} else {
			labels[i] = fmt.Sprintf("Topic %d", i)
		}
	}

	corpus := make([]vocab.BagOfWords, 0, len(b.Corpus))
	for d, doc := range b.Corpus {
		bow := make(vocab.BagOfWords, len(doc))
		for _, pair := range doc {
			if len(pair) != 2 || pair[0] < 0 || pair[0] >= model.NumTerms() || pair[1] < 0 {
				return nil, fmt.Errorf("corpus doc %d: bad entry %v: %w", d, pair, internalerr.ErrInvalidArtifact)
			}
			bow[pair[0]] += pair[1]
		}
		corpus = append(corpus, bow)
	}

	return &Artifact{
		Model:      model,
		Dictionary: dict,
		Labels:     labels,
		Corpus:     corpus,
	}, nil
}

// Cache loads an artifact at most once per process and hands out the same
// result, success or failure, on every call.
type Cache struct {
	path string
	load func(string) (*Artifact, error)

	once sync.Once
	art  *Artifact
	err  error
}

// NewCache creates a cache for the artifact at path.
func NewCache(path string) *Cache {
	return &Cache{path: path, load: Load}
}

// Get returns the cached artifact, loading it on first use.
func (c *Cache) Get() (*Artifact, error) {
	c.once.Do(func() {
		c.art, c.err = c.load(c.path)
	})
	return c.art, c.err
}

// Path returns the artifact location.
func (c *Cache) Path() string {
	return c.path
}
