package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ironsheep/ctg-digitizer-mcp/internal/classify"
	"github.com/ironsheep/ctg-digitizer-mcp/internal/config"
	"github.com/ironsheep/ctg-digitizer-mcp/internal/digitizer"
	"github.com/ironsheep/ctg-digitizer-mcp/internal/logging"
	"github.com/ironsheep/ctg-digitizer-mcp/internal/metrics"
	"github.com/ironsheep/ctg-digitizer-mcp/internal/model"
	"github.com/ironsheep/ctg-digitizer-mcp/internal/ocr"
	"github.com/ironsheep/ctg-digitizer-mcp/internal/pipeline"
	"github.com/ironsheep/ctg-digitizer-mcp/internal/plot"
	"github.com/ironsheep/ctg-digitizer-mcp/internal/predict"
	"github.com/ironsheep/ctg-digitizer-mcp/internal/server"
	"github.com/ironsheep/ctg-digitizer-mcp/internal/storage"
	"github.com/ironsheep/ctg-digitizer-mcp/internal/watch"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

const longHelp = `ctg-digitizer-mcp digitizes scanned cardiotocography strips, extracts
baseline, variability, decelerations and sinusoidal pattern, and classifies
the trace as Normal, Suspicious or Pathological.

Without a subcommand it serves MCP over stdin/stdout. Configure it in your
MCP client (e.g., Claude Desktop). Logs go to stderr.

Configuration is read from ~/.ctg-mcp/config.toml (or --config), then CTG_*
environment variables, then flags.`

var exampleUsage = strings.TrimSpace(`
  ctg-mcp --classifier-model models/rf.yaml --predictor-model models/fetal_health.yaml
  ctg-mcp analyze strip.png
  ctg-mcp predict record.json
  ctg-mcp watch --inbox ~/ctg-inbox
`)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "ctg-mcp",
		Short:        "MCP server for CTG strip digitization and classification",
		Long:         longHelp,
		Example:      exampleUsage,
		Version:      fmt.Sprintf("%s (built %s, commit %s) %s/%s", Version, BuildTime, GitCommit, runtime.GOOS, runtime.GOARCH),
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := build(cmd)
			if err != nil {
				return err
			}
			a.log.Info().Str("version", Version).Str("storage", a.store.Root()).Msg("serving MCP on stdio")
			return server.New(a.pipeline, a.info(), a.log).Run()
		},
	}
	config.RegisterFlags(root.PersistentFlags())

	root.AddCommand(newAnalyzeCmd(), newPredictCmd(), newWatchCmd())
	return root
}

func newAnalyzeCmd() *cobra.Command {
	var save bool
	cmd := &cobra.Command{
		Use:   "analyze <image>...",
		Short: "Analyze CTG strip images and print the results as JSON",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := build(cmd)
			if err != nil {
				return err
			}

			failed := 0
			for _, path := range args {
				res, err := a.pipeline.AnalyzeFile(path)
				if err != nil {
					failed++
					if err := printJSON(cmd.OutOrStdout(), map[string]interface{}{
						"source_image": path,
						"error":        pipeline.PayloadOf(err),
					}); err != nil {
						return err
					}
					continue
				}
				if save {
					if _, err := a.store.WriteResult(res.ID, res); err != nil {
						return err
					}
				}
				if err := printJSON(cmd.OutOrStdout(), res); err != nil {
					return err
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d images failed", failed, len(args))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&save, "save", false, "also write each result to the storage results directory")
	return cmd
}

func newPredictCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "predict <record.json|->",
		Short: "Predict fetal health from a JSON object of numeric features",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := build(cmd)
			if err != nil {
				return err
			}

			record, err := readRecord(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}
			res, err := a.pipeline.Predict(record)
			if err != nil {
				if perr := printJSON(cmd.OutOrStdout(), map[string]interface{}{"error": pipeline.PayloadOf(err)}); perr != nil {
					return perr
				}
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}
}

func newWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Analyze strips dropped into the inbox directory until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := build(cmd)
			if err != nil {
				return err
			}

			inbox := a.cfg.Watch.Inbox
			if inbox == "" {
				inbox = filepath.Join(a.store.Root(), "inbox")
			}
			settle, err := a.cfg.Watch.SettleDuration()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return watch.New(inbox, settle, a.pipeline, a.store, a.log).Run(ctx)
		},
	}
}

// app is the assembled set of components shared by every subcommand.
type app struct {
	cfg        config.Config
	log        zerolog.Logger
	store      *storage.Store
	pipeline   *pipeline.Pipeline
	classifier model.Ref
	predictor  model.Ref
}

func (a *app) info() server.Info {
	return server.Info{
		Version:    Version,
		Classifier: a.classifier,
		Predictor:  a.predictor,
		OCREnabled: a.cfg.OCR.Enabled,
	}
}

func build(cmd *cobra.Command) (*app, error) {
	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return nil, err
	}

	log, err := logging.New(os.Stderr, cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	log.Debug().Interface("config", cfg).Msg("configuration")

	store, err := storage.New(cfg.StorageRoot, cfg.Plot.Naming, log)
	if err != nil {
		return nil, err
	}

	dig, err := digitizer.New(cfg.Digitizer, log)
	if err != nil {
		return nil, err
	}

	classifierRef := model.Resolve(cfg.Model.ClassifierPath, log.With().Str("model", "classifier").Logger())
	predictorRef := model.Resolve(cfg.Model.PredictorPath, log.With().Str("model", "predictor").Logger())

	pred, err := predict.New(predictorRef, predict.Options{MissingPolicy: cfg.Model.MissingPolicy}, log)
	if err != nil {
		return nil, err
	}

	deps := pipeline.Deps{
		Digitizer:  dig,
		Edges:      digitizer.NewNative(cfg.Digitizer, log),
		Features:   cfg.Features,
		Classifier: classify.New(cfg.Rules, classifierRef, log),
		Predictor:  pred,
		Store:      store,
		Metrics:    metrics.New(),
		Logger:     log,
	}
	if cfg.Plot.Enabled {
		if deps.Renderer, err = plot.NewRenderer(cfg.Plot.Style); err != nil {
			return nil, err
		}
	}
	if cfg.OCR.Enabled {
		deps.Annotator = ocr.NewReader(cfg.OCR.Language, cfg.OCR.MinConfidence, cfg.OCR.Region)
	}

	p, err := pipeline.New(deps)
	if err != nil {
		return nil, err
	}

	return &app{
		cfg:        cfg,
		log:        log,
		store:      store,
		pipeline:   p,
		classifier: classifierRef,
		predictor:  predictorRef,
	}, nil
}

// readRecord decodes a feature record from path, or from stdin when path
// is "-".
func readRecord(stdin io.Reader, path string) (map[string]float64, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read record: %w", err)
	}

	var record map[string]float64
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("%w: record must be a JSON object of numbers: %v", pipeline.ErrInvalidInput, err)
	}
	if len(record) == 0 {
		return nil, errors.New("record is empty")
	}
	return record, nil
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
