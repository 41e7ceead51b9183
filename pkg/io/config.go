package io

import (
	"fmt"
	"io"

	"github.com/Masterminds/semver/v3"
	"gopkg.in/yaml.v3"

	"tabular/pkg/model"
)

// FormatVersion is written to every config file.
const FormatVersion = "1.0.0"

// supportedFormats accepts config files this version can read.
const supportedFormats = "^1.0.0"

// ConfigFile is the persisted form of a model config together with the data
// columns feeding each model input.
type ConfigFile struct {
	FormatVersion      string       `yaml:"format_version"`
	CategoricalColumns []string     `yaml:"categorical_columns,omitempty"`
	ContinuousColumns  []string     `yaml:"continuous_columns,omitempty"`
	VectorColumns      []string     `yaml:"vector_columns,omitempty"`
	Model              model.Config `yaml:"model"`
}

func NewConfigFile(config model.Config) *ConfigFile {
	return &ConfigFile{FormatVersion: FormatVersion, Model: config.Clone()}
}

// Check verifies that the named columns agree with the model inputs.
func (f *ConfigFile) Check() error {
	checks := []struct {
		kind    string
		columns []string
		inputs  int
	}{
		{"categorical", f.CategoricalColumns, len(f.Model.Embeddings)},
		{"continuous", f.ContinuousColumns, f.Model.NumContinuous},
		{"vector", f.VectorColumns, len(f.Model.VectorSizes)},
	}
	for _, c := range checks {
		if len(c.columns) != c.inputs {
			return fmt.Errorf("%d %s columns for %d %s model inputs", len(c.columns), c.kind, c.inputs, c.kind)
		}
	}
	return nil
}

func SaveConfig(f *ConfigFile, writer io.Writer) error {
	encoder := yaml.NewEncoder(writer)
	encoder.SetIndent(2)
	if err := encoder.Encode(f); err != nil {
		return fmt.Errorf("error encoding config: %w", err)
	}
	if err := encoder.Close(); err != nil {
		return fmt.Errorf("error encoding config: %w", err)
	}
	return nil
}

func LoadConfig(input io.Reader) (*ConfigFile, error) {
	f := ConfigFile{Model: model.DefaultConfig()}
	decoder := yaml.NewDecoder(input)
	decoder.KnownFields(true)
	if err := decoder.Decode(&f); err != nil {
		return nil, fmt.Errorf("error decoding config: %w", err)
	}
	if err := checkFormat(f.FormatVersion); err != nil {
		return nil, err
	}
	if err := f.Check(); err != nil {
		return nil, fmt.Errorf("error in config columns: %w", err)
	}
	return &f, nil
}

func checkFormat(version string) error {
	v, err := semver.NewVersion(version)
	if err != nil {
		return fmt.Errorf("invalid config format version %q: %w", version, err)
	}
	constraint, err := semver.NewConstraint(supportedFormats)
	if err != nil {
		return err
	}
	if !constraint.Check(v) {
		return fmt.Errorf("unsupported config format version %s (want %s)", version, supportedFormats)
	}
	return nil
}

// LoadCategories reads the classes of each categorical column from a yaml mapping.
func LoadCategories(input io.Reader) (model.CategoryTable, error) {
	table := model.CategoryTable{}
	if err := yaml.NewDecoder(input).Decode(&table); err != nil {
		return nil, fmt.Errorf("error decoding categories: %w", err)
	}
	return table, nil
}
