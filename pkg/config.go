package pkg

import (
	"fmt"
	"os"

	"github.com/rs/zerolog/log"

	"tabular/pkg/io"
	"tabular/pkg/model"
)

// ConfigParameters are the inputs of BuildConfig that are not model parameters.
type ConfigParameters struct {
	CategoriesFile     string
	OutputFile         string
	CategoricalColumns []string
	ContinuousColumns  []string
	VectorColumns      []string
	// EmbeddingSizes overrides the embedding size of some categorical columns
	EmbeddingSizes map[string]int
}

// BuildConfig picks the embedding sizes of the categorical columns, completes config with
// them and the column counts, then writes the result to p.OutputFile.
func BuildConfig(p ConfigParameters, config model.Config) error {
	var classes model.CategoryTable
	if len(p.CategoricalColumns) > 0 {
		input, err := os.Open(p.CategoriesFile)
		if err != nil {
			return fmt.Errorf("error opening categories file %s: %w", p.CategoriesFile, err)
		}
		defer input.Close()
		classes, err = io.LoadCategories(input)
		if err != nil {
			return fmt.Errorf("error loading categories from %s: %w", p.CategoriesFile, err)
		}
	}

	embeddings, err := model.EmbeddingSizes(classes, p.CategoricalColumns, p.EmbeddingSizes)
	if err != nil {
		return err
	}
	for i, e := range embeddings {
		log.Debug().Str("Column", p.CategoricalColumns[i]).
			Int("Cardinality", e.Cardinality).
			Int("Dimension", e.Dimension).
			Msg("Embedding size")
	}

	//Overwrite values that are only known from the columns
	config.Embeddings = embeddings
	config.NumContinuous = len(p.ContinuousColumns)
	if len(config.VectorSizes) != len(p.VectorColumns) {
		return fmt.Errorf("%d vector sizes for %d vector columns", len(config.VectorSizes), len(p.VectorColumns))
	}
	if err := config.Validate(); err != nil {
		return err
	}

	f := io.NewConfigFile(config)
	f.CategoricalColumns = p.CategoricalColumns
	f.ContinuousColumns = p.ContinuousColumns
	f.VectorColumns = p.VectorColumns

	outputFile, err := os.Create(p.OutputFile)
	if err != nil {
		return fmt.Errorf("error creating output file %s: %w", p.OutputFile, err)
	}
	defer outputFile.Close()
	if err := io.SaveConfig(f, outputFile); err != nil {
		return fmt.Errorf("error saving config to %s: %w", p.OutputFile, err)
	}
	log.Info().Int("InputWidth", config.InputWidth()).Str("File", p.OutputFile).Msg("Config saved")
	return nil
}
