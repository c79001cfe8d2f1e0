package vocab

import (
	"fmt"
	"sort"

	"github.com/cognicore/reviewtopics/pkg/reviewtopics/internalerr"
)

// BagOfWords maps a vocabulary term id to its count within one document.
type BagOfWords map[int]int

// TermCount is one (id, count) entry of a bag of words.
type TermCount struct {
	ID    int
	Count int
}

// Sorted returns the entries ordered by ascending term id.
func (b BagOfWords) Sorted() []TermCount {
	out := make([]TermCount, 0, len(b))
	for id, c := range b {
		out = append(out, TermCount{ID: id, Count: c})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Total returns the number of tokens the bag was built from.
func (b BagOfWords) Total() int {
	n := 0
	for _, c := range b {
		n += c
	}
	return n
}

// Dictionary is a fixed token <-> id mapping. It is read-only after New.
type Dictionary struct {
	token2id map[string]int
	id2token map[int]string
}

// New builds a dictionary from a token -> id mapping. Ids must be
// non-negative and unique.
func New(token2id map[string]int) (*Dictionary, error) {
	d := &Dictionary{
		token2id: make(map[string]int, len(token2id)),
		id2token: make(map[int]string, len(token2id)),
	}
	for tok, id := range token2id {
		if id < 0 {
			return nil, fmt.Errorf("token %q has negative id %d: %w", tok, id, internalerr.ErrInvalidInput)
		}
		if other, dup := d.id2token[id]; dup {
			return nil, fmt.Errorf("id %d shared by %q and %q: %w", id, other, tok, internalerr.ErrInvalidInput)
		}
		d.token2id[tok] = id
		d.id2token[id] = tok
	}
	return d, nil
}

// Doc2Bow counts the tokens that exist in the dictionary. Unknown tokens
// are ignored; the result is empty (never nil) when none are known.
func (d *Dictionary) Doc2Bow(tokens []string) BagOfWords {
	bow := make(BagOfWords)
	for _, tok := range tokens {
		if id, ok := d.token2id[tok]; ok {
			bow[id]++
		}
	}
	return bow
}

// ID returns the id of a token.
func (d *Dictionary) ID(token string) (int, bool) {
	id, ok := d.token2id[token]
	return id, ok
}

// Token returns the token for an id.
func (d *Dictionary) Token(id int) (string, bool) {
	tok, ok := d.id2token[id]
	return tok, ok
}

// Len returns the number of terms.
func (d *Dictionary) Len() int {
	return len(d.token2id)
}

// MaxID returns the largest term id, or -1 for an empty dictionary.
func (d *Dictionary) MaxID() int {
	max := -1
	for id := range d.id2token {
		if id > max {
			max = id
		}
	}
	return max
}
