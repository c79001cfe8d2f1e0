package preprocess

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/cognicore/reviewtopics/pkg/reviewtopics/stoplist"
)

const (
	// DefaultMinLen is the shortest token kept, in runes.
	DefaultMinLen = 3
	// DefaultMaxLen is the longest token kept, in runes.
	DefaultMaxLen = 15
)

// Preprocessor turns raw review text into a filtered token sequence.
// It holds no mutable state and is safe for concurrent use.
type Preprocessor struct {
	stops  *stoplist.Set
	minLen int
	maxLen int
}

// Option configures a Preprocessor.
type Option func(*Preprocessor)

// WithMinLen sets the minimum token length in runes.
func WithMinLen(n int) Option {
	return func(p *Preprocessor) { p.minLen = n }
}

// WithMaxLen sets the maximum token length in runes. Zero disables the limit.
func WithMaxLen(n int) Option {
	return func(p *Preprocessor) { p.maxLen = n }
}

// New creates a preprocessor filtering the given stopwords.
func New(stops *stoplist.Set, opts ...Option) *Preprocessor {
	p := &Preprocessor{
		stops:  stops,
		minLen: DefaultMinLen,
		maxLen: DefaultMaxLen,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Default creates a preprocessor with the default English stopwords.
func Default() *Preprocessor {
	return New(stoplist.Default())
}

// Value preprocesses an untyped value. Anything that is not a string
// yields an empty sequence.
func (p *Preprocessor) Value(v any) []string {
	s, ok := v.(string)
	if !ok {
		return []string{}
	}
	return p.Preprocess(s)
}

// Preprocess lowercases text, strips accents, splits it into alphabetic
// tokens and drops stopwords and tokens outside the length bounds.
// The result is never nil.
func (p *Preprocessor) Preprocess(text string) []string {
	tokens := []string{}
	if strings.TrimSpace(text) == "" {
		return tokens
	}

	text = StripAccents(strings.ToLower(text))

	var current strings.Builder
	flush := func() {
		if current.Len() == 0 {
			return
		}
		if word := current.String(); p.keep(word) {
			tokens = append(tokens, word)
		}
		current.Reset()
	}

	for _, r := range text {
		if isWordRune(r) {
			current.WriteRune(unicode.ToLower(r))
			continue
		}
		flush()
	}
	flush()

	return tokens
}

// keep applies the length, underscore and stopword filters.
func (p *Preprocessor) keep(word string) bool {
	n := utf8.RuneCountInString(word)
	if n < p.minLen {
		return false
	}
	if p.maxLen > 0 && n > p.maxLen {
		return false
	}
	if strings.HasPrefix(word, "_") {
		return false
	}
	return !p.stops.IsStop(word)
}

// isWordRune matches word characters other than decimal digits: letters,
// letter-like and other numerics (Nl, No) and underscore. Combining marks
// split words; nonspacing ones are already gone after accent stripping.
func isWordRune(r rune) bool {
	if unicode.IsLetter(r) || r == '_' {
		return true
	}
	return unicode.IsNumber(r) && !unicode.IsDigit(r)
}

// StripAccents removes combining marks after canonical decomposition,
// so "café" becomes "cafe".
func StripAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}
