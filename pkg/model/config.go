package model

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"tabular/pkg/model/activation"
)

// Default values of the optional Config fields.
const (
	DefaultOutputSize    = 1
	DefaultActivation    = activation.ReLU
	DefaultBatchMomentum = 0.9
)

// Range bounds the model output.
type Range struct {
	Low  float64 `yaml:"low"`
	High float64 `yaml:"high"`
}

// Dropout is either a probability shared by every hidden layer (PerLayer is nil)
// or one probability per hidden layer.
type Dropout struct {
	P        float64
	PerLayer []float64
}

// Schedule expands d to one probability per hidden layer.
func (d Dropout) Schedule(hiddenLayers int) ([]float64, error) {
	if d.PerLayer == nil {
		ps := make([]float64, hiddenLayers)
		for i := range ps {
			ps[i] = d.P
		}
		return ps, nil
	}
	if len(d.PerLayer) != hiddenLayers {
		return nil, configErrorf("dropout", "%d probabilities for %d hidden layers", len(d.PerLayer), hiddenLayers)
	}
	ps := make([]float64, hiddenLayers)
	copy(ps, d.PerLayer)
	return ps, nil
}

func (d Dropout) MarshalYAML() (interface{}, error) {
	if d.PerLayer != nil {
		return d.PerLayer, nil
	}
	return d.P, nil
}

func (d *Dropout) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		d.PerLayer = nil
		return value.Decode(&d.P)
	case yaml.SequenceNode:
		d.P = 0
		d.PerLayer = []float64{}
		return value.Decode(&d.PerLayer)
	default:
		return fmt.Errorf("line %d: dropout must be a probability or a list of probabilities", value.Line)
	}
}

// Config holds every parameter needed to build a TabularModel.
type Config struct {
	Embeddings          []EmbeddingSize `yaml:"embeddings"`
	NumContinuous       int             `yaml:"num_continuous"`
	OutputSize          int             `yaml:"output_size"`
	HiddenSizes         []int           `yaml:"hidden_sizes"`
	Dropout             Dropout         `yaml:"dropout"`
	EmbeddingDropout    float64         `yaml:"embedding_dropout"`
	OutputRange         *Range          `yaml:"output_range,omitempty"`
	BatchNorm           bool            `yaml:"batch_norm"`
	FinalBatchNorm      bool            `yaml:"final_batch_norm"`
	ContinuousBatchNorm bool            `yaml:"continuous_batch_norm"`
	Activation          activation.Kind `yaml:"activation"`
	LinearFirst         bool            `yaml:"linear_first"`
	VectorSizes         []int           `yaml:"vector_sizes"`
	BatchMomentum       float64         `yaml:"batch_momentum"`
}

// DefaultConfig returns a Config with every optional field at its default.
func DefaultConfig() Config {
	return Config{
		OutputSize:          DefaultOutputSize,
		BatchNorm:           true,
		ContinuousBatchNorm: true,
		Activation:          DefaultActivation,
		LinearFirst:         true,
		BatchMomentum:       DefaultBatchMomentum,
	}
}

type Option func(*Config)

// NewConfig captures the model parameters without building anything.
func NewConfig(embeddings []EmbeddingSize, numContinuous, outputSize int, opts ...Option) Config {
	c := DefaultConfig()
	c.Embeddings = append([]EmbeddingSize(nil), embeddings...)
	c.NumContinuous = numContinuous
	c.OutputSize = outputSize
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

func WithHiddenSizes(sizes ...int) Option {
	return func(c *Config) { c.HiddenSizes = append([]int(nil), sizes...) }
}

// WithDropout uses the same dropout probability in every hidden layer.
func WithDropout(p float64) Option {
	return func(c *Config) { c.Dropout = Dropout{P: p} }
}

// WithLayerDropout sets one dropout probability per hidden layer.
func WithLayerDropout(ps ...float64) Option {
	return func(c *Config) { c.Dropout = Dropout{PerLayer: append([]float64{}, ps...)} }
}

func WithEmbeddingDropout(p float64) Option {
	return func(c *Config) { c.EmbeddingDropout = p }
}

// WithOutputRange squashes the output into (low, high).
func WithOutputRange(low, high float64) Option {
	return func(c *Config) { c.OutputRange = &Range{Low: low, High: high} }
}

func WithBatchNorm(enabled bool) Option {
	return func(c *Config) { c.BatchNorm = enabled }
}

func WithFinalBatchNorm(enabled bool) Option {
	return func(c *Config) { c.FinalBatchNorm = enabled }
}

func WithContinuousBatchNorm(enabled bool) Option {
	return func(c *Config) { c.ContinuousBatchNorm = enabled }
}

func WithActivation(kind activation.Kind) Option {
	return func(c *Config) { c.Activation = kind }
}

func WithLinearFirst(enabled bool) Option {
	return func(c *Config) { c.LinearFirst = enabled }
}

func WithVectorSizes(sizes ...int) Option {
	return func(c *Config) { c.VectorSizes = append([]int(nil), sizes...) }
}

func WithBatchMomentum(momentum float64) Option {
	return func(c *Config) { c.BatchMomentum = momentum }
}

// ConfigFromMap builds a Config from parameter names as they appear in the yaml form.
// Unknown names are rejected, absent ones keep their defaults.
func ConfigFromMap(params map[string]interface{}) (Config, error) {
	raw, err := yaml.Marshal(params)
	if err != nil {
		return Config{}, fmt.Errorf("error encoding parameters: %w", err)
	}
	return DecodeConfig(raw)
}

// DecodeConfig parses the yaml form of a Config on top of DefaultConfig.
func DecodeConfig(raw []byte) (Config, error) {
	c := DefaultConfig()
	decoder := yaml.NewDecoder(bytes.NewReader(raw))
	decoder.KnownFields(true)
	if err := decoder.Decode(&c); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, &ConfigurationError{Parameter: "parameters", Reason: err.Error()}
	}
	return c, nil
}

// Clone returns a deep copy of c.
func (c Config) Clone() Config {
	out := c
	out.Embeddings = append([]EmbeddingSize(nil), c.Embeddings...)
	out.HiddenSizes = append([]int(nil), c.HiddenSizes...)
	out.VectorSizes = append([]int(nil), c.VectorSizes...)
	if c.Dropout.PerLayer != nil {
		out.Dropout.PerLayer = append([]float64{}, c.Dropout.PerLayer...)
	}
	if c.OutputRange != nil {
		r := *c.OutputRange
		out.OutputRange = &r
	}
	return out
}

// InputWidth is the width of the feature vector fed to the first block.
func (c Config) InputWidth() int {
	width := c.NumContinuous + len(c.VectorSizes)
	for _, e := range c.Embeddings {
		width += e.Dimension
	}
	return width
}

// Widths lists the input width, the hidden sizes and the output size.
func (c Config) Widths() []int {
	widths := make([]int, 0, len(c.HiddenSizes)+2)
	widths = append(widths, c.InputWidth())
	widths = append(widths, c.HiddenSizes...)
	return append(widths, c.OutputSize)
}

// Validate reports the first parameter that cannot produce a model.
func (c Config) Validate() error {
	if c.OutputSize < 1 {
		return configErrorf("output size", "%d is not positive", c.OutputSize)
	}
	if c.NumContinuous < 0 {
		return configErrorf("continuous features", "%d is negative", c.NumContinuous)
	}
	for i, e := range c.Embeddings {
		if e.Cardinality < 1 {
			return configErrorf("embedding", "cardinality %d of embedding %d is not positive", e.Cardinality, i)
		}
		if e.Dimension < 1 || e.Dimension > MaxEmbeddingSize {
			return configErrorf("embedding", "dimension %d of embedding %d outside [1, %d]", e.Dimension, i, MaxEmbeddingSize)
		}
	}
	for i, size := range c.HiddenSizes {
		if size < 1 {
			return configErrorf("hidden sizes", "size %d of hidden layer %d is not positive", size, i)
		}
	}
	for i, size := range c.VectorSizes {
		if size < 1 {
			return configErrorf("vector sizes", "size %d of vector feature %d is not positive", size, i)
		}
	}
	ps, err := c.Dropout.Schedule(len(c.HiddenSizes))
	if err != nil {
		return err
	}
	for i, p := range ps {
		if !isProbability(p) {
			return configErrorf("dropout", "probability %g of hidden layer %d outside [0, 1)", p, i)
		}
	}
	if c.Dropout.PerLayer == nil && !isProbability(c.Dropout.P) {
		return configErrorf("dropout", "probability %g outside [0, 1)", c.Dropout.P)
	}
	if !isProbability(c.EmbeddingDropout) {
		return configErrorf("embedding dropout", "probability %g outside [0, 1)", c.EmbeddingDropout)
	}
	if r := c.OutputRange; r != nil && !(r.Low < r.High) {
		return configErrorf("output range", "low %g is not below high %g", r.Low, r.High)
	}
	if !c.Activation.Valid() {
		return configErrorf("activation", "unknown activation %q", string(c.Activation))
	}
	if c.BatchMomentum < 0 || c.BatchMomentum > 1 {
		return configErrorf("batch momentum", "%g outside [0, 1]", c.BatchMomentum)
	}
	if c.InputWidth() == 0 {
		return configErrorf("input", "no categorical, continuous or vector features")
	}
	return nil
}

func isProbability(p float64) bool {
	return p >= 0 && p < 1
}
