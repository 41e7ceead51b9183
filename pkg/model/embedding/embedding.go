// Package embedding implements a trainable lookup table from category index to dense vector.
package embedding

import (
	mat "github.com/nlpodyssey/spago/pkg/mat32"
	"github.com/nlpodyssey/spago/pkg/mat32/rand"
	"github.com/nlpodyssey/spago/pkg/ml/ag"
	"github.com/nlpodyssey/spago/pkg/ml/initializers"
	"github.com/nlpodyssey/spago/pkg/ml/nn"
)

var (
	_ nn.Model = &Model{}
)

// InitStdDev is the standard deviation of the initial embedding values.
const InitStdDev = 0.01

// Model holds one embedding per category as the columns of W.
type Model struct {
	nn.BaseModel
	Cardinality int
	Dimension   int
	W           nn.Param `spago:"type:weights"`
}

func New(cardinality, dimension int) *Model {
	return &Model{
		Cardinality: cardinality,
		Dimension:   dimension,
		W:           nn.NewParam(mat.NewEmptyDense(dimension, cardinality)),
	}
}

func (m *Model) Init(generator *rand.LockedRand) {
	initializers.Normal(m.W.Value(), 0, InitStdDev, generator)
}

// Lookup returns the embedding of each category index as a Dimension x 1 node.
// Indices must lie in [0, Cardinality).
func (m *Model) Lookup(indices ...int) []ag.Node {
	g := m.Graph()
	out := make([]ag.Node, len(indices))
	for i, index := range indices {
		out[i] = g.View(m.W, 0, index, m.Dimension, 1)
	}
	return out
}
