package pkg

import (
	"fmt"
	"os"

	"github.com/rs/zerolog/log"

	"tabular/pkg/io"
)

type NoopWriter struct{}

func (x NoopWriter) Write(p []byte) (n int, err error) {
	return len(p), nil
}

func printDataErrors(errors []io.DataError) {
	for _, err := range errors {
		log.Error().Int("Line", err.Line).Msgf("Error parsing data: %s", err.Error)
	}
}

func loadConfigFile(fileName string) (*io.ConfigFile, error) {
	input, err := os.Open(fileName)
	if err != nil {
		return nil, fmt.Errorf("error opening config file %s: %w", fileName, err)
	}
	defer input.Close()
	f, err := io.LoadConfig(input)
	if err != nil {
		return nil, fmt.Errorf("error loading config from file %s: %w", fileName, err)
	}
	return f, nil
}
