package model

import (
	"fmt"

	mat "github.com/nlpodyssey/spago/pkg/mat32"
	"github.com/nlpodyssey/spago/pkg/mat32/rand"
	"github.com/nlpodyssey/spago/pkg/ml/ag"
	"github.com/nlpodyssey/spago/pkg/ml/initializers"
	"github.com/nlpodyssey/spago/pkg/ml/nn"
	"github.com/nlpodyssey/spago/pkg/ml/nn/linear"
	"github.com/nlpodyssey/spago/pkg/ml/nn/normalization/batchnorm"

	"tabular/pkg/model/activation"
	"tabular/pkg/model/embedding"
	"tabular/pkg/model/linbndrop"
)

var (
	_ nn.Model = &TabularModel{}
	_ Layer    = &linbndrop.Model{}
)

// Layer is a stage of the model that maps a batch of column vectors to another.
type Layer interface {
	Forward(xs ...ag.Node) []ag.Node
}

// TabularModel is a feed-forward network over categorical embeddings, continuous
// features and vector features.
type TabularModel struct {
	nn.BaseModel
	Config
	EmbeddingTables []*embedding.Model
	ContinuousNorm  *batchnorm.Model // nil unless continuous features are normalized
	VectorLayers    []*linear.Model
	Blocks          []*linbndrop.Model
}

// NewTabularModel builds the model described by config.
func NewTabularModel(config Config) (*TabularModel, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	config = config.Clone()
	ps, err := config.Dropout.Schedule(len(config.HiddenSizes))
	if err != nil {
		return nil, err
	}

	m := &TabularModel{Config: config}

	m.EmbeddingTables = make([]*embedding.Model, len(config.Embeddings))
	for i, e := range config.Embeddings {
		m.EmbeddingTables[i] = embedding.New(e.Cardinality, e.Dimension)
	}

	if config.NumContinuous > 0 && config.ContinuousBatchNorm {
		m.ContinuousNorm = batchnorm.NewWithMomentum(config.NumContinuous, mat.Float(config.BatchMomentum))
	}

	m.VectorLayers = make([]*linear.Model, len(config.VectorSizes))
	for i, size := range config.VectorSizes {
		m.VectorLayers[i] = linear.New(size, 1)
	}

	widths := config.Widths()
	ps = append(ps, 0) // never drop out of the output layer
	last := len(widths) - 2
	m.Blocks = make([]*linbndrop.Model, len(widths)-1)
	for i := range m.Blocks {
		opts := linbndrop.Options{
			BatchNorm:     config.BatchNorm && (i != last || config.FinalBatchNorm),
			BatchMomentum: config.BatchMomentum,
			Dropout:       ps[i],
			Activation:    config.Activation,
			LinearFirst:   config.LinearFirst,
		}
		if i == last {
			opts.Activation = activation.None
		}
		m.Blocks[i] = linbndrop.New(widths[i], widths[i+1], opts)
	}
	return m, nil
}

// Init initializes the trainable parameters from generator.
func (m *TabularModel) Init(generator *rand.LockedRand) {
	for _, e := range m.EmbeddingTables {
		e.Init(generator)
	}
	if m.ContinuousNorm != nil {
		linbndrop.InitBatchNorm(m.ContinuousNorm)
	}
	gain := initializers.Gain(m.Activation.Op())
	for _, l := range m.VectorLayers {
		initializers.XavierUniform(l.W.Value(), gain, generator)
	}
	for _, b := range m.Blocks {
		b.Init(generator)
	}
}

// Batch is the input of a forward pass. Every slice is indexed by example.
type Batch struct {
	// Categorical holds one index per categorical column.
	Categorical [][]int
	// Continuous holds NumContinuous x 1 vectors.
	Continuous []ag.Node
	// Vectors holds one size x 1 vector per vector feature.
	Vectors [][]ag.Node
}

// Forward maps each example of batch to an OutputSize x 1 vector.
// The model must have been reified on a graph.
func (m *TabularModel) Forward(batch Batch) ([]ag.Node, error) {
	size, err := m.checkBatch(batch)
	if err != nil || size == 0 {
		return nil, err
	}
	g := m.Graph()
	xs := make([]ag.Node, size)

	if len(m.EmbeddingTables) > 0 {
		embedded := make([][]ag.Node, size)
		for j, e := range m.EmbeddingTables {
			indices := make([]int, size)
			for i := range indices {
				indices[i] = batch.Categorical[i][j]
			}
			for i, v := range e.Lookup(indices...) {
				embedded[i] = append(embedded[i], v)
			}
		}
		for i := range xs {
			xs[i] = m.embeddingDropout(g.Concat(embedded[i]...))
		}
	}

	if m.NumContinuous > 0 {
		continuous := batch.Continuous
		if m.ContinuousNorm != nil {
			continuous = m.ContinuousNorm.Forward(continuous...)
		}
		xs = concat(g, xs, continuous)
	}

	if len(m.VectorLayers) > 0 {
		projected := make([][]ag.Node, size)
		for j, l := range m.VectorLayers {
			vs := make([]ag.Node, size)
			for i := range vs {
				vs[i] = batch.Vectors[i][j]
			}
			for i, v := range l.Forward(vs...) {
				projected[i] = append(projected[i], m.Activation.Apply(g, v))
			}
		}
		vectors := make([]ag.Node, size)
		for i := range vectors {
			vectors[i] = m.embeddingDropout(g.Concat(projected[i]...))
		}
		xs = concat(g, xs, vectors)
	}

	for _, b := range m.Blocks {
		xs = b.Forward(xs...)
	}
	if r := m.OutputRange; r != nil {
		for i, x := range xs {
			xs[i] = sigmoidRange(g, x, r.Low, r.High)
		}
	}
	return xs, nil
}

func (m *TabularModel) embeddingDropout(x ag.Node) ag.Node {
	if m.EmbeddingDropout == 0 || m.Mode() != nn.Training {
		return x
	}
	return m.Graph().Dropout(x, mat.Float(m.EmbeddingDropout))
}

// rangeMargin keeps a saturated sigmoid away from the bounds of the output range.
const rangeMargin = 1e-6

// sigmoidRange squashes x into the open interval (low, high). The sigmoid is mapped onto
// [low+margin, high-margin] of the range width, computed in float64 before narrowing.
func sigmoidRange(g *ag.Graph, x ag.Node, low, high float64) ag.Node {
	width := high - low
	scale := width * (1 - 2*rangeMargin)
	offset := low + width*rangeMargin
	scaled := g.ProdScalar(g.Sigmoid(x), g.Constant(mat.Float(scale)))
	return g.AddScalar(scaled, g.Constant(mat.Float(offset)))
}

// concat appends ys to xs row-wise, example by example. Nil entries of xs are replaced.
func concat(g *ag.Graph, xs, ys []ag.Node) []ag.Node {
	out := make([]ag.Node, len(xs))
	for i := range xs {
		if xs[i] == nil {
			out[i] = ys[i]
			continue
		}
		out[i] = g.Concat(xs[i], ys[i])
	}
	return out
}

// checkBatch returns the number of examples in batch after checking every input
// against the model's expected shapes.
func (m *TabularModel) checkBatch(batch Batch) (int, error) {
	size := -1
	lengths := []struct {
		input  string
		length int
		used   bool
	}{
		{"categorical batch size", len(batch.Categorical), batch.Categorical != nil},
		{"continuous batch size", len(batch.Continuous), batch.Continuous != nil},
		{"vector batch size", len(batch.Vectors), batch.Vectors != nil},
	}
	for _, l := range lengths {
		if !l.used {
			continue
		}
		if size == -1 {
			size = l.length
			continue
		}
		if l.length != size {
			return 0, &ShapeMismatchError{Input: l.input, Example: -1, Expected: size, Actual: l.length}
		}
	}
	if size <= 0 {
		return 0, nil
	}

	numCategorical := len(m.EmbeddingTables)
	if numCategorical > 0 && batch.Categorical == nil {
		return 0, &ShapeMismatchError{Input: "categorical batch size", Example: -1, Expected: size, Actual: 0}
	}
	for i, row := range batch.Categorical {
		if len(row) != numCategorical {
			return 0, &ShapeMismatchError{Input: "categorical columns", Example: i, Expected: numCategorical, Actual: len(row)}
		}
		for j, index := range row {
			if card := m.EmbeddingTables[j].Cardinality; index < 0 || index >= card {
				return 0, &IndexError{Column: j, Example: i, Index: index, Cardinality: card}
			}
		}
	}

	if m.NumContinuous > 0 && batch.Continuous == nil {
		return 0, &ShapeMismatchError{Input: "continuous batch size", Example: -1, Expected: size, Actual: 0}
	}
	for i, x := range batch.Continuous {
		if err := checkVector("continuous features", i, x, m.NumContinuous); err != nil {
			return 0, err
		}
	}

	numVectors := len(m.VectorLayers)
	if numVectors > 0 && batch.Vectors == nil {
		return 0, &ShapeMismatchError{Input: "vector batch size", Example: -1, Expected: size, Actual: 0}
	}
	for i, row := range batch.Vectors {
		if len(row) != numVectors {
			return 0, &ShapeMismatchError{Input: "vector features", Example: i, Expected: numVectors, Actual: len(row)}
		}
		for j, x := range row {
			if err := checkVector(fmt.Sprintf("vector feature %d", j), i, x, m.VectorSizes[j]); err != nil {
				return 0, err
			}
		}
	}
	return size, nil
}

func checkVector(input string, example int, x ag.Node, size int) error {
	if x == nil {
		if size == 0 {
			return nil
		}
		return &ShapeMismatchError{Input: input, Example: example, Expected: size, Actual: 0}
	}
	v := x.Value()
	if v.Columns() != 1 {
		return &ShapeMismatchError{Input: input + " columns", Example: example, Expected: 1, Actual: v.Columns()}
	}
	if v.Rows() != size {
		return &ShapeMismatchError{Input: input, Example: example, Expected: size, Actual: v.Rows()}
	}
	return nil
}
