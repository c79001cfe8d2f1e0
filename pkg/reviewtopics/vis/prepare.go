// Package vis lays out a trained topic model for display: an intertopic
// distance map and the most relevant terms of every topic.
package vis

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/cognicore/reviewtopics/pkg/reviewtopics/internalerr"
	"github.com/cognicore/reviewtopics/pkg/reviewtopics/lda"
	"github.com/cognicore/reviewtopics/pkg/reviewtopics/vocab"
)

const (
	DefaultTopTerms = 30
	DefaultLambda   = 0.6
)

// Options tunes Prepare.
type Options struct {
	TopTerms int
	Lambda   float64
	Labels   []string
}

// TopicPoint is one bubble on the intertopic map.
type TopicPoint struct {
	Index      int
	Label      string
	X, Y       float64
	Prevalence float64
}

// Term is a ranked term of a topic.
type Term struct {
	Token     string
	Weight    float64 // p(term | topic)
	Overall   float64 // p(term)
	Relevance float64
}

// Data is everything Render needs.
type Data struct {
	Topics []TopicPoint
	Terms  [][]Term
	Lambda float64
}

// Prepare computes topic prevalence, 2-D coordinates and relevance-ranked
// terms. Prevalence is the doc-length weighted mean of the inferred topic
// mix over corpus; with no usable corpus every topic weighs the same.
func Prepare(model *lda.Model, corpus []vocab.BagOfWords, dict *vocab.Dictionary, o Options) (*Data, error) {
	if model == nil {
		return nil, fmt.Errorf("nil model: %w", internalerr.ErrInvalidInput)
	}
	if o.TopTerms <= 0 {
		o.TopTerms = DefaultTopTerms
	}
	if o.Lambda < 0 || o.Lambda > 1 {
		return nil, fmt.Errorf("lambda %v outside [0,1]: %w", o.Lambda, internalerr.ErrInvalidInput)
	}
	if o.Lambda == 0 {
		o.Lambda = DefaultLambda
	}

	k := model.NumTopics()
	phi := model.TopicWordMatrix()
	prev := prevalence(model, corpus)

	_, v := phi.Dims()
	overall := make([]float64, v)
	for t := 0; t < k; t++ {
		for w, p := range phi.RawRowView(t) {
			overall[w] += prev[t] * p
		}
	}

	xs, ys := classicalMDS(jsDistances(phi))

	data := &Data{Lambda: o.Lambda, Topics: make([]TopicPoint, k), Terms: make([][]Term, k)}
	for t := 0; t < k; t++ {
		label := fmt.Sprintf("Topic %d", t)
		if t < len(o.Labels) && o.Labels[t] != "" {
			label = o.Labels[t]
		}
		data.Topics[t] = TopicPoint{Index: t, Label: label, X: xs[t], Y: ys[t], Prevalence: prev[t]}
		data.Terms[t] = relevantTerms(phi.RawRowView(t), overall, dict, o.Lambda, o.TopTerms)
	}
	return data, nil
}

func prevalence(model *lda.Model, corpus []vocab.BagOfWords) []float64 {
	k := model.NumTopics()
	prev := make([]float64, k)
	var total float64
	for _, doc := range corpus {
		theta := model.Infer(doc)
		if theta == nil {
			continue
		}
		n := float64(doc.Total())
		for t, p := range theta {
			prev[t] += p * n
		}
		total += n
	}
	if total == 0 {
		for t := range prev {
			prev[t] = 1 / float64(k)
		}
		return prev
	}
	for t := range prev {
		prev[t] /= total
	}
	return prev
}

func relevantTerms(row, overall []float64, dict *vocab.Dictionary, lambda float64, n int) []Term {
	terms := make([]Term, 0, len(row))
	for w, p := range row {
		if p <= 0 || overall[w] <= 0 {
			continue
		}
		token := fmt.Sprintf("#%d", w)
		if dict != nil {
			if tok, ok := dict.Token(w); ok {
				token = tok
			}
		}
		terms = append(terms, Term{
			Token:     token,
			Weight:    p,
			Overall:   overall[w],
			Relevance: lambda*math.Log(p) + (1-lambda)*math.Log(p/overall[w]),
		})
	}
	sort.SliceStable(terms, func(i, j int) bool {
		if terms[i].Relevance != terms[j].Relevance {
			return terms[i].Relevance > terms[j].Relevance
		}
		return terms[i].Token < terms[j].Token
	})
	if len(terms) > n {
		terms = terms[:n]
	}
	return terms
}

// jsDistances returns the symmetric matrix of Jensen-Shannon divergences
// between the rows of phi.
func jsDistances(phi *mat.Dense) *mat.SymDense {
	k, _ := phi.Dims()
	d := mat.NewSymDense(k, nil)
	for i := 0; i < k; i++ {
		for j := i + 1; j < k; j++ {
			d.SetSym(i, j, jensenShannon(phi.RawRowView(i), phi.RawRowView(j)))
		}
	}
	return d
}

func jensenShannon(p, q []float64) float64 {
	var js float64
	for i := range p {
		m := (p[i] + q[i]) / 2
		if m == 0 {
			continue
		}
		if p[i] > 0 {
			js += 0.5 * p[i] * math.Log(p[i]/m)
		}
		if q[i] > 0 {
			js += 0.5 * q[i] * math.Log(q[i]/m)
		}
	}
	return js
}

// classicalMDS projects a distance matrix onto its two principal
// coordinates. A failed factorization falls back to each point's distance
// from the first one, along x.
func classicalMDS(d *mat.SymDense) (xs, ys []float64) {
	n := d.SymmetricDim()
	xs, ys = make([]float64, n), make([]float64, n)
	if n < 2 {
		return xs, ys
	}

	// B = -1/2 J D^2 J, J = I - 11'/n
	sq := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			v := d.At(i, j)
			sq.Set(i, j, v*v)
		}
	}
	center := mat.NewDense(n, n, nil)
	for r := 0; r < n; r++ {
		for c := 0; c < n; c++ {
			v := -1 / float64(n)
			if r == c {
				v += 1
			}
			center.Set(r, c, v)
		}
	}
	var tmp, b mat.Dense
	tmp.Mul(center, sq)
	b.Mul(&tmp, center)
	b.Scale(-0.5, &b)

	sym := mat.NewSymDense(n, nil)
	for r := 0; r < n; r++ {
		for c := r; c < n; c++ {
			sym.SetSym(r, c, (b.At(r, c)+b.At(c, r))/2)
		}
	}

	var es mat.EigenSym
	if !es.Factorize(sym, true) {
		for i := 0; i < n; i++ {
			xs[i] = d.At(0, i)
		}
		return xs, ys
	}
	vals := es.Values(nil)
	var vecs mat.Dense
	es.VectorsTo(&vecs)

	// eigenvalues come back ascending
	axis := func(col int, dst []float64) {
		if col < 0 || vals[col] <= 0 {
			return
		}
		s := math.Sqrt(vals[col])
		for i := 0; i < n; i++ {
			dst[i] = vecs.At(i, col) * s
		}
	}
	axis(n-1, xs)
	axis(n-2, ys)
	return xs, ys
}
