package model

import "fmt"

// ConfigurationError reports construction parameters that cannot produce a model.
type ConfigurationError struct {
	Parameter string
	Reason    string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Parameter, e.Reason)
}

func configErrorf(parameter, format string, args ...interface{}) error {
	return &ConfigurationError{Parameter: parameter, Reason: fmt.Sprintf(format, args...)}
}

// ShapeMismatchError reports a forward input whose feature count disagrees with the model.
type ShapeMismatchError struct {
	Input    string
	// Example is -1 when the mismatch concerns the whole batch.
	Example  int
	Expected int
	Actual   int
}

func (e *ShapeMismatchError) Error() string {
	if e.Example < 0 {
		return fmt.Sprintf("%s: expected %d, got %d", e.Input, e.Expected, e.Actual)
	}
	return fmt.Sprintf("%s of example %d: expected %d, got %d", e.Input, e.Example, e.Expected, e.Actual)
}

// IndexError reports a categorical index outside of its embedding table.
type IndexError struct {
	Column      int
	Example     int
	Index       int
	Cardinality int
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("categorical column %d of example %d: index %d out of range [0, %d)",
		e.Column, e.Example, e.Index, e.Cardinality)
}
