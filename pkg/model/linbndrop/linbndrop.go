// Package linbndrop implements the hidden block of a tabular model: a linear layer grouped
// with an optional batch normalization, dropout and activation.
package linbndrop

import (
	mat "github.com/nlpodyssey/spago/pkg/mat32"
	"github.com/nlpodyssey/spago/pkg/mat32/rand"
	"github.com/nlpodyssey/spago/pkg/ml/ag"
	"github.com/nlpodyssey/spago/pkg/ml/initializers"
	"github.com/nlpodyssey/spago/pkg/ml/nn"
	"github.com/nlpodyssey/spago/pkg/ml/nn/linear"
	"github.com/nlpodyssey/spago/pkg/ml/nn/normalization/batchnorm"

	"tabular/pkg/model/activation"
)

var (
	_ nn.Model = &Model{}
)

type Options struct {
	BatchNorm     bool
	BatchMomentum float64
	Dropout       float64
	Activation    activation.Kind
	// LinearFirst orders the block linear, activation, batch norm, dropout.
	// Otherwise it is batch norm, dropout, linear, activation.
	LinearFirst bool
}

type Model struct {
	nn.BaseModel
	InputDimension  int
	OutputDimension int
	LinearFirst     bool
	Dropout         mat.Float
	Activation      activation.Kind
	Linear          *linear.Model
	BatchNorm       *batchnorm.Model // nil when the block is not normalized
}

func New(inputDimension, outputDimension int, opts Options) *Model {
	m := &Model{
		InputDimension:  inputDimension,
		OutputDimension: outputDimension,
		LinearFirst:     opts.LinearFirst,
		Dropout:         mat.Float(opts.Dropout),
		Activation:      opts.Activation,
	}
	if !opts.BatchNorm {
		m.Linear = linear.New(inputDimension, outputDimension)
		return m
	}
	// batch norm supplies the shift, so the bias stays at zero
	m.Linear = linear.New(inputDimension, outputDimension, linear.BiasGrad(false))
	normSize := inputDimension
	if opts.LinearFirst {
		normSize = outputDimension
	}
	m.BatchNorm = batchnorm.NewWithMomentum(normSize, mat.Float(opts.BatchMomentum))
	return m
}

func (m *Model) Init(generator *rand.LockedRand) {
	initializers.XavierUniform(m.Linear.W.Value(), initializers.Gain(m.Activation.Op()), generator)
	if m.BatchNorm != nil {
		InitBatchNorm(m.BatchNorm)
	}
}

// InitBatchNorm starts the running standard deviation of bn at one (the running mean
// starts at zero), so that an untrained model in inference mode leaves its inputs unscaled.
func InitBatchNorm(bn *batchnorm.Model) {
	size := bn.StdDev.Value().Rows()
	bn.StdDev.ReplaceValue(mat.NewInitVecDense(size, 1))
}

// ParamCount is the number of trainable values of the block.
func (m *Model) ParamCount() int {
	count := m.InputDimension * m.OutputDimension
	if m.BatchNorm == nil {
		count += m.OutputDimension
		return count
	}
	normSize := m.InputDimension
	if m.LinearFirst {
		normSize = m.OutputDimension
	}
	return count + 2*normSize
}

func (m *Model) Forward(xs ...ag.Node) []ag.Node {
	if m.LinearFirst {
		return m.regularize(m.transform(xs))
	}
	return m.transform(m.regularize(xs))
}

func (m *Model) transform(xs []ag.Node) []ag.Node {
	ys := m.Linear.Forward(xs...)
	if m.Activation == activation.None {
		return ys
	}
	g := m.Graph()
	for i := range ys {
		ys[i] = m.Activation.Apply(g, ys[i])
	}
	return ys
}

func (m *Model) regularize(xs []ag.Node) []ag.Node {
	if m.BatchNorm != nil {
		xs = m.BatchNorm.Forward(xs...)
	}
	if m.Dropout == 0 || m.Mode() != nn.Training {
		return xs
	}
	g := m.Graph()
	ys := make([]ag.Node, len(xs))
	for i, x := range xs {
		ys[i] = g.Dropout(x, m.Dropout)
	}
	return ys
}
