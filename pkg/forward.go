package pkg

import (
	"fmt"
	gio "io"
	"os"
	"strconv"
	"strings"

	"github.com/nlpodyssey/spago/pkg/mat32/rand"
	"github.com/nlpodyssey/spago/pkg/ml/ag"
	"github.com/nlpodyssey/spago/pkg/ml/nn"
	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/stat"

	"tabular/pkg/io"
	"tabular/pkg/model"
)

type ForwardParameters struct {
	ConfigFile string
	InputFile  string
	OutputFile string
	BatchSize  int
	RndSeed    uint64
}

// Forward initializes the model of a config file with a seeded generator and runs it in
// inference mode over a data file, writing one line of outputs per valid row.
func Forward(p ForwardParameters) error {
	f, err := loadConfigFile(p.ConfigFile)
	if err != nil {
		return err
	}
	m, err := model.NewTabularModel(f.Model)
	if err != nil {
		return err
	}
	m.Init(rand.NewLockedRand(p.RndSeed))

	data, dataErrors, err := io.LoadData(p.InputFile, f)
	if err != nil {
		return fmt.Errorf("error loading data from %s: %w", p.InputFile, err)
	}
	printDataErrors(dataErrors)
	if len(data) == 0 {
		return fmt.Errorf("no data in %s", p.InputFile)
	}

	var outputWriter gio.Writer
	if p.OutputFile != "" {
		outputFile, err := os.Create(p.OutputFile)
		if err != nil {
			return fmt.Errorf("error opening output file %s: %w", p.OutputFile, err)
		}
		defer outputFile.Close()
		outputWriter = outputFile
	} else {
		outputWriter = NoopWriter{}
	}

	outputs := make([][]float64, m.OutputSize)
	g := ag.NewGraph(ag.Rand(rand.NewLockedRand(p.RndSeed)))
	dataSet := io.NewDataSet(data, p.BatchSize)
	for batch := dataSet.Next(); len(batch) > 0; batch = dataSet.Next() {
		predictions, err := predict(g, m, batch)
		if err != nil {
			return err
		}
		for _, prediction := range predictions {
			values := prediction.Value().Data()
			fields := make([]string, len(values))
			for i, v := range values {
				fields[i] = strconv.FormatFloat(float64(v), 'f', 5, 32)
				outputs[i] = append(outputs[i], float64(v))
			}
			fmt.Fprintln(outputWriter, strings.Join(fields, ","))
		}
		g.Clear()
	}

	for i, values := range outputs {
		mean, std := stat.MeanStdDev(values, nil)
		log.Info().Int("Output", i).Float64("Mean", mean).Float64("StdDev", std).Msg("")
	}
	log.Info().Int("Examples", dataSet.Size()).Msg("Forward done")
	return nil
}

func predict(g *ag.Graph, m *model.TabularModel, data io.DataBatch) ([]ag.Node, error) {
	ctx := nn.Context{Graph: g, Mode: nn.Inference}
	proc := nn.Reify(ctx, m).(*model.TabularModel)
	return proc.Forward(createBatch(g, data))
}

func createBatch(g *ag.Graph, data io.DataBatch) model.Batch {
	batch := model.Batch{Categorical: make([][]int, len(data))}
	for i, record := range data {
		batch.Categorical[i] = record.Categorical
		if record.Continuous != nil {
			batch.Continuous = append(batch.Continuous, g.NewVariable(record.Continuous, false))
		}
		if record.Vectors != nil {
			vectors := make([]ag.Node, len(record.Vectors))
			for j, v := range record.Vectors {
				vectors[j] = g.NewVariable(v, false)
			}
			batch.Vectors = append(batch.Vectors, vectors)
		}
	}
	return batch
}
