package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/binclass/internal/app"
	"github.com/YuminosukeSato/binclass/internal/config"
	"github.com/YuminosukeSato/binclass/internal/dataset"
	"github.com/YuminosukeSato/binclass/internal/evaluate"
	"github.com/YuminosukeSato/binclass/internal/render"
	"github.com/YuminosukeSato/binclass/pkg/log"
)

var version = "dev"

// env is the configuration shared by every subcommand once flags are applied.
type env struct {
	cfg   *config.Config
	store *dataset.Store
}

func newRootCommand() *cobra.Command {
	var (
		configPath string
		logLevel   string
		dataPath   string
	)
	e := &env{}

	cmd := &cobra.Command{
		Use:   "binclass",
		Short: "Binary classification of the mushrooms dataset",
		Long: `binclass trains SVM, logistic regression and random forest classifiers on the
mushrooms dataset and reports accuracy, precision and recall on a fixed holdout split.

Run "binclass serve" for the web page or "binclass classify" in the terminal.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to the configuration file (default "+config.DefaultConfigFile+" if present)")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn or error")
	cmd.PersistentFlags().StringVar(&dataPath, "data", "", "Path to the mushrooms CSV (optionally gzipped)")

	cmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		if logLevel != "" {
			cfg.Log.Level = logLevel
		}
		if dataPath != "" {
			cfg.Dataset.Path = dataPath
		}
		if err := cfg.Check(); err != nil {
			return err
		}
		if err := setupLogging(cfg.Log); err != nil {
			return err
		}

		e.cfg = cfg
		e.store = dataset.NewStore(cfg.Dataset.Path, cfg.Dataset.LabelColumn, dataset.SplitOptions{
			TestSize:    cfg.Dataset.TestSize,
			RandomState: cfg.Dataset.RandomState,
			Stratify:    cfg.Dataset.Stratify,
		})
		return nil
	}

	cmd.AddCommand(newServeCommand(e))
	cmd.AddCommand(newClassifyCommand(e))
	cmd.AddCommand(newDataCommand(e))
	cmd.AddCommand(newVersionCommand())

	return cmd
}

// setupLogging installs the log provider; logs go to stderr so reports stay clean on stdout.
func setupLogging(cfg config.LogConfig) error {
	level, err := log.ParseLevel(cfg.Level)
	if err != nil {
		return err
	}
	if cfg.Format == "json" {
		log.SetupLoggerTo(os.Stderr, cfg.Level)
		return nil
	}
	log.SetProvider(log.NewConsoleProvider(os.Stderr, level))
	log.InstallWarningSink()
	return nil
}

// controller wires the page controller over the memoized store.
func (e *env) controller(ctx context.Context) (*app.Controller, error) {
	ds, err := e.store.Get(ctx)
	if err != nil {
		return nil, err
	}
	positive, err := ds.LabelCode(e.cfg.Dataset.PositiveLabel)
	if err != nil {
		return nil, err
	}
	ev := evaluate.New(positive,
		evaluate.WithForestRandomState(e.cfg.Forest.RandomState),
		evaluate.WithForestNJobs(e.cfg.Forest.NJobs),
		evaluate.WithSVMMaxIter(e.cfg.SVM.MaxIter))
	return app.New(e.store, ev, render.New(e.cfg.Dataset.ClassNames),
		app.WithPreviewRows(e.cfg.Dataset.RawPreviewRows)), nil
}

func execute() error {
	rootCmd := newRootCommand()
	return rootCmd.Execute()
}
