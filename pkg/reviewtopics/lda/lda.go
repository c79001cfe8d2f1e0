// Package lda holds a trained Latent Dirichlet Allocation model and infers
// topic distributions for new bag-of-words documents.
//
// Inference follows the online variational Bayes E-step (Hoffman et al.):
// the document's gamma is iterated against the fixed exp(E[log beta]) until
// the mean change drops under GammaThreshold. Gamma starts at 1 for every
// topic so repeated calls give identical results.
package lda

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/mathext"

	"github.com/cognicore/reviewtopics/pkg/reviewtopics/internalerr"
	"github.com/cognicore/reviewtopics/pkg/reviewtopics/vocab"
)

const (
	DefaultMinimumProbability = 0.01
	DefaultIterations         = 50
	DefaultGammaThreshold     = 0.001

	minProbabilityFloor = 1e-8
	eps                 = 2.220446049250313e-16
)

// Params describes a trained model. TopicWord is the K x V variational
// parameter lambda (unnormalized topic-word weights, all > 0).
type Params struct {
	Alpha              []float64
	TopicWord          [][]float64
	MinimumProbability float64
	Iterations         int
	GammaThreshold     float64
}

// Model is immutable after New and safe for concurrent use.
type Model struct {
	k, v        int
	alpha       []float64
	expElogbeta *mat.Dense
	topics      *mat.Dense

	minProb        float64
	iterations     int
	gammaThreshold float64
}

// New validates params and precomputes exp(E[log beta]).
func New(p Params) (*Model, error) {
	k := len(p.TopicWord)
	if k == 0 {
		return nil, fmt.Errorf("lda: no topics: %w", internalerr.ErrInvalidArtifact)
	}
	v := len(p.TopicWord[0])
	if v == 0 {
		return nil, fmt.Errorf("lda: empty vocabulary: %w", internalerr.ErrInvalidArtifact)
	}
	if len(p.Alpha) != k {
		return nil, fmt.Errorf("lda: alpha has %d entries for %d topics: %w", len(p.Alpha), k, internalerr.ErrInvalidArtifact)
	}
	for i, a := range p.Alpha {
		if !(a > 0) {
			return nil, fmt.Errorf("lda: alpha[%d]=%v must be positive: %w", i, a, internalerr.ErrInvalidArtifact)
		}
	}

	expElogbeta := mat.NewDense(k, v, nil)
	topics := mat.NewDense(k, v, nil)
	for t, row := range p.TopicWord {
		if len(row) != v {
			return nil, fmt.Errorf("lda: topic %d has %d terms, want %d: %w", t, len(row), v, internalerr.ErrInvalidArtifact)
		}
		var sum float64
		for w, x := range row {
			if !(x > 0) || math.IsInf(x, 0) {
				return nil, fmt.Errorf("lda: topic_word[%d][%d]=%v must be positive: %w", t, w, x, internalerr.ErrInvalidArtifact)
			}
			sum += x
		}
		psiSum := mathext.Digamma(sum)
		for w, x := range row {
			expElogbeta.Set(t, w, math.Exp(mathext.Digamma(x)-psiSum))
			topics.Set(t, w, x/sum)
		}
	}

	m := &Model{
		k:              k,
		v:              v,
		alpha:          append([]float64(nil), p.Alpha...),
		expElogbeta:    expElogbeta,
		topics:         topics,
		minProb:        p.MinimumProbability,
		iterations:     p.Iterations,
		gammaThreshold: p.GammaThreshold,
	}
	if m.minProb <= 0 {
		m.minProb = DefaultMinimumProbability
	}
	if m.minProb < minProbabilityFloor {
		m.minProb = minProbabilityFloor
	}
	if m.iterations <= 0 {
		m.iterations = DefaultIterations
	}
	if m.gammaThreshold <= 0 {
		m.gammaThreshold = DefaultGammaThreshold
	}
	return m, nil
}

// NumTopics returns K.
func (m *Model) NumTopics() int { return m.k }

// NumTerms returns V.
func (m *Model) NumTerms() int { return m.v }

// MinimumProbability returns the relevance threshold applied by DocumentTopics.
func (m *Model) MinimumProbability() float64 { return m.minProb }

// DocumentTopics returns the topics whose probability for the document is
// at least MinimumProbability. Term ids outside the model are ignored; an
// empty bag yields an empty distribution.
func (m *Model) DocumentTopics(bow vocab.BagOfWords) map[int]float64 {
	theta := m.Infer(bow)
	out := make(map[int]float64)
	for t, p := range theta {
		if p >= m.minProb {
			out[t] = p
		}
	}
	return out
}

// Infer returns the full normalized topic distribution (length K), or nil
// when no term of the bag is known to the model.
func (m *Model) Infer(bow vocab.BagOfWords) []float64 {
	var ids []int
	var cts []float64
	for _, tc := range bow.Sorted() {
		if tc.ID < 0 || tc.ID >= m.v || tc.Count <= 0 {
			continue
		}
		ids = append(ids, tc.ID)
		cts = append(cts, float64(tc.Count))
	}
	if len(ids) == 0 {
		return nil
	}

	n := len(ids)
	betad := mat.NewDense(m.k, n, nil)
	for j, id := range ids {
		for t := 0; t < m.k; t++ {
			betad.Set(t, j, m.expElogbeta.At(t, id))
		}
	}

	gamma := make([]float64, m.k)
	for t := range gamma {
		gamma[t] = 1
	}
	expElogtheta := mat.NewVecDense(m.k, dirichletExpExpectation(gamma))

	phinorm := mat.NewVecDense(n, nil)
	ratio := mat.NewVecDense(n, nil)
	sstats := mat.NewVecDense(m.k, nil)
	updatePhinorm := func() {
		phinorm.MulVec(betad.T(), expElogtheta)
		for j := 0; j < n; j++ {
			phinorm.SetVec(j, phinorm.AtVec(j)+eps)
		}
	}
	updatePhinorm()

	last := make([]float64, m.k)
	for it := 0; it < m.iterations; it++ {
		copy(last, gamma)

		for j := 0; j < n; j++ {
			ratio.SetVec(j, cts[j]/phinorm.AtVec(j))
		}
		sstats.MulVec(betad, ratio)
		for t := 0; t < m.k; t++ {
			gamma[t] = m.alpha[t] + expElogtheta.AtVec(t)*sstats.AtVec(t)
		}

		expElogtheta = mat.NewVecDense(m.k, dirichletExpExpectation(gamma))
		updatePhinorm()

		if meanAbsChange(gamma, last) < m.gammaThreshold {
			break
		}
	}

	var sum float64
	for _, g := range gamma {
		sum += g
	}
	theta := make([]float64, m.k)
	for t, g := range gamma {
		theta[t] = g / sum
	}
	return theta
}

// TermWeight is a vocabulary term id with its probability under a topic.
type TermWeight struct {
	ID     int
	Weight float64
}

// TopicTerms returns the n most probable term ids of a topic, highest first.
// Ties are broken by lower id.
func (m *Model) TopicTerms(topic, n int) []TermWeight {
	if topic < 0 || topic >= m.k {
		return nil
	}
	row := m.topics.RawRowView(topic)
	out := make([]TermWeight, len(row))
	for id, w := range row {
		out[id] = TermWeight{ID: id, Weight: w}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Weight != out[j].Weight {
			return out[i].Weight > out[j].Weight
		}
		return out[i].ID < out[j].ID
	})
	if n > 0 && n < len(out) {
		out = out[:n]
	}
	return out
}

// TopicWordMatrix returns a copy of the normalized K x V topic-term matrix.
func (m *Model) TopicWordMatrix() *mat.Dense {
	return mat.DenseCopyOf(m.topics)
}

// dirichletExpExpectation returns exp(psi(x_i) - psi(sum x)).
func dirichletExpExpectation(x []float64) []float64 {
	var sum float64
	for _, v := range x {
		sum += v
	}
	psiSum := mathext.Digamma(sum)
	out := make([]float64, len(x))
	for i, v := range x {
		out[i] = math.Exp(mathext.Digamma(v) - psiSum)
	}
	return out
}

func meanAbsChange(a, b []float64) float64 {
	var total float64
	for i := range a {
		total += math.Abs(a[i] - b[i])
	}
	return total / float64(len(a))
}
