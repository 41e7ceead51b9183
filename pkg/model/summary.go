package model

import "fmt"

// LayerSummary describes one stage of a TabularModel.
type LayerSummary struct {
	Name       string
	Input      int
	Output     int
	BatchNorm  bool
	Dropout    float64
	Activation string
	Params     int
}

// Summary lists the stages of m in evaluation order.
func (m *TabularModel) Summary() []LayerSummary {
	var result []LayerSummary
	for i, e := range m.EmbeddingTables {
		result = append(result, LayerSummary{
			Name:    fmt.Sprintf("embedding[%d]", i),
			Input:   e.Cardinality,
			Output:  e.Dimension,
			Dropout: m.EmbeddingDropout,
			Params:  e.Cardinality * e.Dimension,
		})
	}
	if m.NumContinuous > 0 {
		result = append(result, LayerSummary{
			Name:      "continuous",
			Input:     m.NumContinuous,
			Output:    m.NumContinuous,
			BatchNorm: m.ContinuousNorm != nil,
			Params:    normParams(m.ContinuousNorm != nil, m.NumContinuous),
		})
	}
	for i, size := range m.VectorSizes {
		result = append(result, LayerSummary{
			Name:       fmt.Sprintf("vector[%d]", i),
			Input:      size,
			Output:     1,
			Dropout:    m.EmbeddingDropout,
			Activation: m.Activation.String(),
			Params:     size + 1,
		})
	}
	for i, b := range m.Blocks {
		result = append(result, LayerSummary{
			Name:       fmt.Sprintf("block[%d]", i),
			Input:      b.InputDimension,
			Output:     b.OutputDimension,
			BatchNorm:  b.BatchNorm != nil,
			Dropout:    float64(b.Dropout),
			Activation: b.Activation.String(),
			Params:     b.ParamCount(),
		})
	}
	if r := m.OutputRange; r != nil {
		result = append(result, LayerSummary{
			Name:       fmt.Sprintf("range(%g, %g)", r.Low, r.High),
			Input:      m.OutputSize,
			Output:     m.OutputSize,
			Activation: "sigmoid",
		})
	}
	return result
}

// ParamCount is the number of trainable values of m.
func (m *TabularModel) ParamCount() int {
	total := 0
	for _, l := range m.Summary() {
		total += l.Params
	}
	return total
}

func normParams(enabled bool, size int) int {
	if !enabled {
		return 0
	}
	return 2 * size
}
