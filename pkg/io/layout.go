package io

// ColumnMap is a bidirectional mapping between a data row column index and a feature index
type ColumnMap struct {
	ColumnToIndex map[int]int
	IndexToColumn map[int]int
}

func (f ColumnMap) Set(column int, index int) {
	f.ColumnToIndex[column] = index
	f.IndexToColumn[index] = column
}

func (f ColumnMap) Size() int {
	return len(f.ColumnToIndex)
}

func NewColumnMap() ColumnMap {
	return ColumnMap{
		ColumnToIndex: map[int]int{},
		IndexToColumn: map[int]int{},
	}
}

// Layout locates the model inputs in the columns of a data file.
type Layout struct {
	Columns []string

	// Categorical maps a data row column index to the categorical feature index
	Categorical ColumnMap

	// Continuous maps a data row column index to the continuous feature index
	Continuous ColumnMap

	// Vector maps a data row column index to the vector feature index
	Vector ColumnMap
}

func newLayout(header []string, f *ConfigFile) (*Layout, error) {
	layout := &Layout{
		Columns:     header,
		Categorical: NewColumnMap(),
		Continuous:  NewColumnMap(),
		Vector:      NewColumnMap(),
	}
	position := make(map[string]int, len(header))
	for i, col := range header {
		position[col] = i
	}
	groups := []struct {
		names   []string
		columns ColumnMap
	}{
		{f.CategoricalColumns, layout.Categorical},
		{f.ContinuousColumns, layout.Continuous},
		{f.VectorColumns, layout.Vector},
	}
	for _, group := range groups {
		for index, name := range group.names {
			column, ok := position[name]
			if !ok {
				return nil, &MissingColumnError{Column: name}
			}
			group.columns.Set(column, index)
		}
	}
	return layout, nil
}

// MissingColumnError reports a model input absent from a data file header.
type MissingColumnError struct {
	Column string
}

func (e *MissingColumnError) Error() string {
	return "column " + e.Column + " not found in data header"
}
