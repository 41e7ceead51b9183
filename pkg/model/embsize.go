package model

import "math"

// MaxEmbeddingSize caps the width of any categorical embedding.
const MaxEmbeddingSize = 600

// CategoryTable maps a categorical column to its ordered classes, the missing value slot included.
type CategoryTable map[string][]string

// EmbeddingSize is the cardinality and width of one categorical embedding table.
type EmbeddingSize struct {
	Cardinality int `yaml:"cardinality"`
	Dimension   int `yaml:"dimension"`
}

// EmbeddingSizeRule is the rule of thumb for the embedding width of a category with cardinality n.
// Ties round to even.
func EmbeddingSizeRule(n int) int {
	size := math.RoundToEven(1.6 * math.Pow(float64(n), 0.56))
	if size > MaxEmbeddingSize {
		return MaxEmbeddingSize
	}
	return int(size)
}

// EmbeddingSizes picks an embedding size for each of columns, in order. Sizes in overrides
// take precedence over EmbeddingSizeRule.
func EmbeddingSizes(classes CategoryTable, columns []string, overrides map[string]int) ([]EmbeddingSize, error) {
	result := make([]EmbeddingSize, 0, len(columns))
	for _, column := range columns {
		values, ok := classes[column]
		if !ok {
			return nil, configErrorf("categorical column", "no classes for column %q", column)
		}
		cardinality := len(values)
		if cardinality == 0 {
			return nil, configErrorf("categorical column", "column %q has no classes", column)
		}
		size, ok := overrides[column]
		if !ok {
			size = EmbeddingSizeRule(cardinality)
		} else if size < 1 || size > MaxEmbeddingSize {
			return nil, configErrorf("embedding size", "override %d for column %q outside [1, %d]", size, column, MaxEmbeddingSize)
		}
		result = append(result, EmbeddingSize{Cardinality: cardinality, Dimension: size})
	}
	return result, nil
}
