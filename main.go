package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"tabular/pkg"
	"tabular/pkg/model"
	"tabular/pkg/model/activation"
)

func ConfigCommand() *cobra.Command {

	var params pkg.ConfigParameters
	var outputSize int
	var hiddenSizes []int
	var dropout []float64
	var embeddingDropout float64
	var outputRange []float64
	var batchNorm, finalBatchNorm, continuousBatchNorm, linearFirst bool
	var activationName string
	var vectorSizes []int
	var batchMomentum float64

	var cmd = &cobra.Command{
		Use:   "config -c categoriesFile -o outputFile",
		Short: "Picks embedding sizes for the categorical columns and saves a model config",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			act, err := activation.Parse(activationName)
			if err != nil {
				return err
			}
			opts := []model.Option{
				model.WithHiddenSizes(hiddenSizes...),
				model.WithEmbeddingDropout(embeddingDropout),
				model.WithBatchNorm(batchNorm),
				model.WithFinalBatchNorm(finalBatchNorm),
				model.WithContinuousBatchNorm(continuousBatchNorm),
				model.WithActivation(act),
				model.WithLinearFirst(linearFirst),
				model.WithVectorSizes(vectorSizes...),
				model.WithBatchMomentum(batchMomentum),
			}
			switch len(dropout) {
			case 0:
			case 1:
				opts = append(opts, model.WithDropout(dropout[0]))
			default:
				opts = append(opts, model.WithLayerDropout(dropout...))
			}
			switch len(outputRange) {
			case 0:
			case 2:
				opts = append(opts, model.WithOutputRange(outputRange[0], outputRange[1]))
			default:
				return fmt.Errorf("output range needs a low and a high value, got %d values", len(outputRange))
			}
			return pkg.BuildConfig(params, model.NewConfig(nil, 0, outputSize, opts...))
		},
	}

	cmd.Flags().StringVarP(&params.CategoriesFile, "categories", "c", "", "name of the yaml file listing the classes of each categorical column")
	cmd.Flags().StringVarP(&params.OutputFile, "output-file", "o", "", "name of the file to save the config to")
	cmd.Flags().StringSliceVarP(&params.CategoricalColumns, "categorical-columns", "", nil, "list of columns holding categorical data")
	cmd.Flags().StringSliceVarP(&params.ContinuousColumns, "continuous-columns", "", nil, "list of columns holding continuous data")
	cmd.Flags().StringSliceVarP(&params.VectorColumns, "vector-columns", "", nil, "list of columns holding vector data")
	cmd.Flags().StringToIntVarP(&params.EmbeddingSizes, "embedding-size", "e", nil, "embedding size overrides as column=size")

	cmd.Flags().IntVarP(&outputSize, "output-size", "k", model.DefaultOutputSize, "output dimension")
	cmd.Flags().IntSliceVarP(&hiddenSizes, "hidden-sizes", "l", nil, "sizes of the hidden layers")
	cmd.Flags().Float64SliceVarP(&dropout, "dropout", "p", nil, "dropout probability of every hidden layer, or one per hidden layer")
	cmd.Flags().Float64VarP(&embeddingDropout, "embedding-dropout", "", 0.0, "dropout probability of the embeddings and vector features")
	cmd.Flags().Float64SliceVarP(&outputRange, "output-range", "y", nil, "low and high bound of the output")
	cmd.Flags().BoolVarP(&batchNorm, "batch-norm", "", true, "use batch normalization in the hidden layers")
	cmd.Flags().BoolVarP(&finalBatchNorm, "final-batch-norm", "", false, "use batch normalization in the output layer")
	cmd.Flags().BoolVarP(&continuousBatchNorm, "continuous-batch-norm", "", true, "use batch normalization on the continuous features")
	cmd.Flags().StringVarP(&activationName, "activation", "a", string(model.DefaultActivation), "hidden layer activation: relu, tanh or sigmoid")
	cmd.Flags().BoolVarP(&linearFirst, "linear-first", "", true, "place the linear layer before batch normalization and dropout")
	cmd.Flags().IntSliceVarP(&vectorSizes, "vector-sizes", "", nil, "size of each vector feature")
	cmd.Flags().Float64VarP(&batchMomentum, "batch-momentum", "", model.DefaultBatchMomentum, "batch momentum")

	_ = cmd.MarkFlagRequired("output-file")

	return cmd
}

func SummaryCommand() *cobra.Command {
	var configFile string

	var cmd = &cobra.Command{
		Use:   "summary -m configFile",
		Short: "Builds the model described by a config and logs its layers",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return pkg.Summarize(configFile)
		},
	}

	cmd.Flags().StringVarP(&configFile, "model", "m", "", "name of the model config")

	_ = cmd.MarkFlagRequired("model")

	return cmd
}

func ForwardCommand() *cobra.Command {
	var params pkg.ForwardParameters

	var cmd = &cobra.Command{
		Use:   "forward -m configFile -i inputFile [-o outputFile]",
		Short: "Runs a freshly initialized model on preprocessed data and optionally writes its outputs",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return pkg.Forward(params)
		},
	}

	cmd.Flags().StringVarP(&params.ConfigFile, "model", "m", "", "name of the model config")
	cmd.Flags().StringVarP(&params.InputFile, "input", "i", "", "name of data input file")
	cmd.Flags().StringVarP(&params.OutputFile, "output", "o", "", "name of output file (optional)")
	cmd.Flags().IntVarP(&params.BatchSize, "batch-size", "b", 16, "batch size")
	cmd.Flags().Uint64VarP(&params.RndSeed, "random-seed", "x", 42, "random seed")

	_ = cmd.MarkFlagRequired("model")
	_ = cmd.MarkFlagRequired("input")

	return cmd
}

var logLevel string
var logFormat string

func main() {

	Main := &cobra.Command{Use: "tabular", PersistentPreRun: setupLogging}

	Main.PersistentFlags().StringVarP(&logLevel, "log-level", "", "info", "Logging level: info error or debug")
	Main.PersistentFlags().StringVarP(&logFormat, "log-format", "", "pretty", "Logging format: pretty or json")

	Main.AddCommand(ConfigCommand())
	Main.AddCommand(SummaryCommand())
	Main.AddCommand(ForwardCommand())

	if err := Main.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupLogging(cmd *cobra.Command, args []string) {

	switch logLevel {
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	default:
		panic("Invalid logging level specified")
	}

	switch logFormat {
	case "pretty":
		setupPrettyLogging()
	case "json":
	default:
		panic("Invalid log format specified")

	}

}

func setupPrettyLogging() {
	writer := zerolog.ConsoleWriter{Out: os.Stderr}
	writer.FormatFieldValue = func(i interface{}) string {
		switch v := i.(type) {
		case json.Number:
			val, _ := v.Float64()
			return fmt.Sprintf("%.3f", val)
		default:
			return fmt.Sprintf("%s", i)
		}

	}
	log.Logger = log.Output(writer)

}
