package io

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	mat "github.com/nlpodyssey/spago/pkg/mat32"

	"tabular/pkg/model"
)

// DataRecord holds the preprocessed model inputs of one data row.
type DataRecord struct {
	// Categorical contains the index of each categorical feature
	Categorical []int

	// Continuous contains the continuous features as a column vector, nil without any
	Continuous mat.Matrix

	// Vectors contains one column vector per vector feature
	Vectors []mat.Matrix
}

type DataBatch []*DataRecord

type DataError struct {
	Line  int
	Error string
}

// LoadData reads a data file of preprocessed inputs laid out as described by f.
// Rows that cannot feed the model are reported as DataErrors and skipped.
func LoadData(dataFile string, f *ConfigFile) ([]*DataRecord, []DataError, error) {
	inputFile, err := os.Open(dataFile)
	if err != nil {
		return nil, nil, fmt.Errorf("error opening file: %w", err)
	}
	defer inputFile.Close()

	reader := csv.NewReader(inputFile)
	reader.Comma = ','
	// Rows with the wrong number of fields are reported per line below.
	reader.FieldsPerRecord = -1

	//First line is expected to be a header
	record, err := reader.Read()
	if err != nil {
		return nil, nil, fmt.Errorf("error reading data header: %w", err)
	}
	layout, err := newLayout(record, f)
	if err != nil {
		return nil, nil, err
	}

	var result []*DataRecord
	var errors []DataError
	currentLine := 1
	for record, err = reader.Read(); err == nil; record, err = reader.Read() {
		currentLine++
		dataRecord, err := parseRecord(layout, &f.Model, record)
		if err != nil {
			errors = append(errors, DataError{Line: currentLine, Error: err.Error()})
			continue
		}
		result = append(result, dataRecord)
	}
	if err != io.EOF {
		return nil, nil, fmt.Errorf("error reading data: %w", err)
	}
	return result, errors, nil
}

func parseRecord(layout *Layout, config *model.Config, record []string) (*DataRecord, error) {
	if len(record) != len(layout.Columns) {
		return nil, fmt.Errorf("expected %d fields, got %d", len(layout.Columns), len(record))
	}
	categorical, err := parseCategoricalFeatures(layout, config, record)
	if err != nil {
		return nil, err
	}
	continuous, err := parseContinuousFeatures(layout, record)
	if err != nil {
		return nil, err
	}
	vectors, err := parseVectorFeatures(layout, config, record)
	if err != nil {
		return nil, err
	}
	return &DataRecord{Categorical: categorical, Continuous: continuous, Vectors: vectors}, nil
}

func parseCategoricalFeatures(layout *Layout, config *model.Config, record []string) ([]int, error) {
	features := make([]int, layout.Categorical.Size())
	for column, index := range layout.Categorical.ColumnToIndex {
		value, err := strconv.Atoi(strings.TrimSpace(record[column]))
		if err != nil {
			return nil, fmt.Errorf("error parsing categorical feature %s: %w", layout.Columns[column], err)
		}
		if cardinality := config.Embeddings[index].Cardinality; value < 0 || value >= cardinality {
			return nil, fmt.Errorf("categorical feature %s: index %d outside [0, %d)", layout.Columns[column], value, cardinality)
		}
		features[index] = value
	}
	return features, nil
}

func parseContinuousFeatures(layout *Layout, record []string) (mat.Matrix, error) {
	if layout.Continuous.Size() == 0 {
		return nil, nil
	}
	features := mat.NewEmptyVecDense(layout.Continuous.Size())
	for column, index := range layout.Continuous.ColumnToIndex {
		value, err := strconv.ParseFloat(strings.TrimSpace(record[column]), 64)
		if err != nil {
			return nil, fmt.Errorf("error parsing feature %s: %w", layout.Columns[column], err)
		}
		features.Set(index, 0, mat.Float(value))
	}
	return features, nil
}

// parseVectorFeatures reads vector features written as space separated values.
func parseVectorFeatures(layout *Layout, config *model.Config, record []string) ([]mat.Matrix, error) {
	if layout.Vector.Size() == 0 {
		return nil, nil
	}
	vectors := make([]mat.Matrix, layout.Vector.Size())
	for column, index := range layout.Vector.ColumnToIndex {
		fields := strings.Fields(record[column])
		if size := config.VectorSizes[index]; len(fields) != size {
			return nil, fmt.Errorf("vector feature %s: %d values, expected %d", layout.Columns[column], len(fields), size)
		}
		values := make([]mat.Float, len(fields))
		for i, field := range fields {
			value, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, fmt.Errorf("error parsing vector feature %s: %w", layout.Columns[column], err)
			}
			values[i] = mat.Float(value)
		}
		vectors[index] = mat.NewVecDense(values)
	}
	return vectors, nil
}
