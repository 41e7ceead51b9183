package model

import (
	"math"
	"testing"

	mat "github.com/nlpodyssey/spago/pkg/mat32"
	"github.com/nlpodyssey/spago/pkg/mat32/rand"
	"github.com/nlpodyssey/spago/pkg/ml/ag"
	"github.com/nlpodyssey/spago/pkg/ml/nn"
	"github.com/stretchr/testify/require"

	"tabular/pkg/model/activation"
)

const testBatchSize = 4

func testConfig(opts ...Option) Config {
	opts = append([]Option{WithHiddenSizes(20, 10)}, opts...)
	return NewConfig([]EmbeddingSize{{Cardinality: 5, Dimension: 3}, {Cardinality: 10, Dimension: 4}}, 2, 1, opts...)
}

func newTestModel(t *testing.T, config Config, mode nn.ProcessingMode) (*ag.Graph, *TabularModel) {
	m, err := NewTabularModel(config)
	require.NoError(t, err)
	m.Init(rand.NewLockedRand(42))
	g := ag.NewGraph(ag.Rand(rand.NewLockedRand(42)))
	proc := nn.Reify(nn.Context{Graph: g, Mode: mode}, m).(*TabularModel)
	return g, proc
}

func createBatch(g *ag.Graph, numContinuous int, vectorSizes ...int) Batch {
	batch := Batch{Categorical: make([][]int, testBatchSize)}
	if numContinuous > 0 {
		batch.Continuous = make([]ag.Node, testBatchSize)
	}
	if len(vectorSizes) > 0 {
		batch.Vectors = make([][]ag.Node, testBatchSize)
	}
	for i := 0; i < testBatchSize; i++ {
		batch.Categorical[i] = []int{i % 5, (3 * i) % 10}
		if numContinuous > 0 {
			batch.Continuous[i] = g.NewVariable(mat.NewInitVecDense(numContinuous, mat.Float(i)-1.5), false)
		}
		for _, size := range vectorSizes {
			batch.Vectors[i] = append(batch.Vectors[i], g.NewVariable(mat.NewInitVecDense(size, 0.1*mat.Float(i)), false))
		}
	}
	return batch
}

func TestNewTabularModel_Layout(t *testing.T) {
	m, err := NewTabularModel(testConfig())
	require.NoError(t, err)

	require.Len(t, m.EmbeddingTables, 2)
	require.NotNil(t, m.ContinuousNorm)
	require.Empty(t, m.VectorLayers)
	require.Len(t, m.Blocks, 3)

	first, last := m.Blocks[0], m.Blocks[len(m.Blocks)-1]
	require.Equal(t, 9, first.InputDimension)
	require.Equal(t, 20, first.OutputDimension)
	require.NotNil(t, first.BatchNorm)
	require.Equal(t, activation.ReLU, first.Activation)
	require.Equal(t, 10, last.InputDimension)
	require.Equal(t, 1, last.OutputDimension)
	require.Nil(t, last.BatchNorm)
	require.Equal(t, mat.Float(0), last.Dropout)
	require.Equal(t, activation.None, last.Activation)
}

func TestNewTabularModel_Options(t *testing.T) {
	m, err := NewTabularModel(testConfig(
		WithLayerDropout(0.1, 0.2),
		WithFinalBatchNorm(true),
		WithContinuousBatchNorm(false),
		WithLinearFirst(false),
		WithActivation(activation.Tanh),
		WithVectorSizes(6, 3),
	))
	require.NoError(t, err)

	require.Nil(t, m.ContinuousNorm)
	require.Len(t, m.VectorLayers, 2)
	require.Equal(t, 11, m.Blocks[0].InputDimension)
	require.Equal(t, []mat.Float{0.1, 0.2, 0}, []mat.Float{m.Blocks[0].Dropout, m.Blocks[1].Dropout, m.Blocks[2].Dropout})
	require.Equal(t, activation.Tanh, m.Blocks[1].Activation)
	last := m.Blocks[2]
	require.NotNil(t, last.BatchNorm)
	require.False(t, last.LinearFirst)
	// normalization precedes the linear layer, so it spans the block input
	require.Equal(t, 10, last.BatchNorm.W.Value().Rows())
}

func TestNewTabularModel_NoBatchNorm(t *testing.T) {
	m, err := NewTabularModel(testConfig(WithBatchNorm(false), WithFinalBatchNorm(true)))
	require.NoError(t, err)
	for _, b := range m.Blocks {
		require.Nil(t, b.BatchNorm)
	}
}

func TestNewTabularModel_Errors(t *testing.T) {
	tests := []struct {
		name   string
		config Config
	}{
		{name: "no input", config: NewConfig(nil, 0, 1, WithHiddenSizes(10))},
		{name: "dropout length", config: testConfig(WithLayerDropout(0.1, 0.2, 0.3))},
		{name: "zero output", config: NewConfig(nil, 3, 0)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := NewTabularModel(tt.config)
			require.Nil(t, m)
			var configErr *ConfigurationError
			require.ErrorAs(t, err, &configErr)
		})
	}
}

func TestTabularModel_Forward(t *testing.T) {
	for _, mode := range []nn.ProcessingMode{nn.Training, nn.Inference} {
		g, m := newTestModel(t, testConfig(WithDropout(0.3), WithEmbeddingDropout(0.1)), mode)
		result, err := m.Forward(createBatch(g, 2))
		require.NoError(t, err)
		require.Len(t, result, testBatchSize)
		for _, r := range result {
			require.Equal(t, 1, r.Value().Rows())
			require.Equal(t, 1, r.Value().Columns())
		}
	}
}

func TestTabularModel_Forward_VectorFeatures(t *testing.T) {
	g, m := newTestModel(t, testConfig(WithVectorSizes(6, 3), WithOutputRange(-1, 1)), nn.Inference)
	result, err := m.Forward(createBatch(g, 2, 6, 3))
	require.NoError(t, err)
	require.Len(t, result, testBatchSize)
	for _, r := range result {
		require.Equal(t, 1, r.Value().Rows())
	}
}

func TestTabularModel_Forward_OnlyContinuous(t *testing.T) {
	config := NewConfig(nil, 3, 2, WithHiddenSizes(5))
	g, m := newTestModel(t, config, nn.Inference)
	batch := createBatch(g, 3)
	batch.Categorical = nil
	result, err := m.Forward(batch)
	require.NoError(t, err)
	require.Len(t, result, testBatchSize)
	for _, r := range result {
		require.Equal(t, 2, r.Value().Rows())
	}
}

func TestTabularModel_Forward_OnlyVectors(t *testing.T) {
	config := NewConfig(nil, 0, 1, WithVectorSizes(4))
	g, m := newTestModel(t, config, nn.Inference)
	batch := createBatch(g, 0, 4)
	batch.Categorical = nil
	result, err := m.Forward(batch)
	require.NoError(t, err)
	require.Len(t, result, testBatchSize)
}

func TestTabularModel_Forward_OutputRange(t *testing.T) {
	g, m := newTestModel(t, testConfig(WithOutputRange(0, 1)), nn.Inference)
	result, err := m.Forward(createBatch(g, 2))
	require.NoError(t, err)
	for _, r := range result {
		v := r.ScalarValue()
		require.Greater(t, v, mat.Float(0))
		require.Less(t, v, mat.Float(1))
	}
}

func TestTabularModel_Init_ContinuousNormIdentity(t *testing.T) {
	g, m := newTestModel(t, testConfig(), nn.Inference)
	x := g.NewVariable(mat.NewVecDense([]mat.Float{0.5, -0.25}), false)
	y := m.ContinuousNorm.Forward(x)[0].Value()
	require.InDelta(t, 0.5, float64(y.At(0, 0)), 1e-4)
	require.InDelta(t, -0.25, float64(y.At(1, 0)), 1e-4)
}

func TestTabularModel_Forward_UntrainedInference(t *testing.T) {
	g, m := newTestModel(t, testConfig(), nn.Inference)
	result, err := m.Forward(createBatch(g, 2))
	require.NoError(t, err)
	for _, r := range result {
		require.Less(t, math.Abs(float64(r.ScalarValue())), 100.0)
	}
}

func TestSigmoidRange_Saturation(t *testing.T) {
	g := ag.NewGraph()
	for _, x := range []mat.Float{-1000, -40, 0, 40, 1000} {
		v := float64(sigmoidRange(g, g.NewVariable(mat.NewScalar(x), false), 0, 1).ScalarValue())
		require.Greater(t, v, 0.0, "x=%v", x)
		require.Less(t, v, 1.0, "x=%v", x)
	}
	v := sigmoidRange(g, g.NewVariable(mat.NewScalar(0), false), -2, 6).ScalarValue()
	require.InDelta(t, 2.0, float64(v), 1e-5)
}

func TestTabularModel_Forward_Deterministic(t *testing.T) {
	g, m := newTestModel(t, testConfig(WithDropout(0.5), WithEmbeddingDropout(0.5)), nn.Inference)
	batch := createBatch(g, 2)
	first, err := m.Forward(batch)
	require.NoError(t, err)
	second, err := m.Forward(batch)
	require.NoError(t, err)
	for i := range first {
		require.Equal(t, first[i].Value().Data(), second[i].Value().Data())
	}
}

func TestTabularModel_Forward_Empty(t *testing.T) {
	_, m := newTestModel(t, testConfig(), nn.Inference)
	result, err := m.Forward(Batch{})
	require.NoError(t, err)
	require.Empty(t, result)
}

func TestTabularModel_Forward_ShapeMismatch(t *testing.T) {
	tests := []struct {
		name   string
		modify func(g *ag.Graph, b *Batch)
	}{
		{"categorical columns", func(g *ag.Graph, b *Batch) { b.Categorical[1] = []int{0} }},
		{"missing categorical", func(g *ag.Graph, b *Batch) { b.Categorical = nil }},
		{"continuous rows", func(g *ag.Graph, b *Batch) { b.Continuous[2] = g.NewVariable(mat.NewEmptyVecDense(3), false) }},
		{"missing continuous", func(g *ag.Graph, b *Batch) { b.Continuous = nil }},
		{"batch sizes", func(g *ag.Graph, b *Batch) { b.Continuous = b.Continuous[:2] }},
		{"unexpected vectors", func(g *ag.Graph, b *Batch) {
			b.Vectors = make([][]ag.Node, testBatchSize)
			for i := range b.Vectors {
				b.Vectors[i] = []ag.Node{g.NewVariable(mat.NewEmptyVecDense(2), false)}
			}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, m := newTestModel(t, testConfig(), nn.Inference)
			batch := createBatch(g, 2)
			tt.modify(g, &batch)
			_, err := m.Forward(batch)
			var shapeErr *ShapeMismatchError
			require.ErrorAs(t, err, &shapeErr)
		})
	}
}

func TestTabularModel_Forward_IndexOutOfRange(t *testing.T) {
	g, m := newTestModel(t, testConfig(), nn.Inference)
	batch := createBatch(g, 2)
	batch.Categorical[3][0] = 5
	_, err := m.Forward(batch)
	var indexErr *IndexError
	require.ErrorAs(t, err, &indexErr)
	require.Equal(t, 3, indexErr.Example)
	require.Equal(t, 0, indexErr.Column)
}

func TestTabularModel_Summary(t *testing.T) {
	m, err := NewTabularModel(testConfig(WithVectorSizes(6), WithOutputRange(0, 1)))
	require.NoError(t, err)
	summary := m.Summary()
	names := make([]string, len(summary))
	for i, s := range summary {
		names[i] = s.Name
	}
	require.Equal(t, []string{"embedding[0]", "embedding[1]", "continuous", "vector[0]",
		"block[0]", "block[1]", "block[2]", "range(0, 1)"}, names)
	// embeddings 15+40, continuous norm 4, vector 7, blocks 10*20+40, 20*10+20, 10*1+1
	require.Equal(t, 15+40+4+7+240+220+11, m.ParamCount())
}
