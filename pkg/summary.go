package pkg

import (
	"github.com/rs/zerolog/log"

	"tabular/pkg/model"
)

// Summarize builds the model described by a config file and logs its layers.
func Summarize(configFileName string) error {
	f, err := loadConfigFile(configFileName)
	if err != nil {
		return err
	}
	m, err := model.NewTabularModel(f.Model)
	if err != nil {
		return err
	}
	for _, layer := range m.Summary() {
		log.Info().Str("Layer", layer.Name).
			Int("In", layer.Input).
			Int("Out", layer.Output).
			Bool("BatchNorm", layer.BatchNorm).
			Float64("Dropout", layer.Dropout).
			Str("Activation", layer.Activation).
			Int("Params", layer.Params).
			Msg("")
	}
	log.Info().Int("Params", m.ParamCount()).Msg("Total")
	return nil
}
