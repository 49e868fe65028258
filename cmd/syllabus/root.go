package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/hurttlocker/syllabus/internal/config"
	"github.com/hurttlocker/syllabus/internal/dates"
	"github.com/hurttlocker/syllabus/internal/extract"
	"github.com/hurttlocker/syllabus/internal/llm"
	"github.com/hurttlocker/syllabus/internal/store"
)

// app carries the state shared by every subcommand.
type app struct {
	opts    config.ResolveOptions
	verbose bool

	cfg      *config.ResolvedConfig
	logger   *slog.Logger
	stderr   io.Writer
	newStore func(store.StoreConfig) (store.Store, error)
}

func newRootCmd() *cobra.Command {
	a := &app{newStore: store.NewStore}

	root := &cobra.Command{
		Use:           "syllabus",
		Short:         "Turn course syllabi into calendar events",
		Long:          "Extracts exams, quizzes, deadlines and class meetings from syllabus text, stores them for review, and exports approved events as iCalendar or to Google Calendar.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			a.stderr = cmd.ErrOrStderr()
			level := slog.LevelWarn
			if a.verbose {
				level = slog.LevelDebug
			}
			a.logger = slog.New(slog.NewTextHandler(a.stderr, &slog.HandlerOptions{Level: level}))
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.opts.ConfigPath, "config", "", "Config file (default: ~/.syllabus/config.yaml)")
	pf.StringVar(&a.opts.EnvFile, "env-file", "", "Load environment variables from this .env file")
	pf.StringVarP(&a.opts.CLIDBPath, "db", "d", "", "Database path (default: $SYLLABUS_DB or ~/.syllabus/syllabus.db)")
	pf.StringVar(&a.opts.CLIExtractors, "extractors", "", "Generative extractors in priority order, e.g. google/gemini-2.5-flash,ollama/llama3.1")
	pf.BoolVarP(&a.verbose, "verbose", "v", false, "Log extractor attempts and requests")

	root.AddCommand(
		newExtractCmd(a),
		newListCmd(a),
		newShowCmd(a),
		newApproveCmd(a),
		newEditCmd(a),
		newExportCmd(a),
		newSyncCmd(a),
		newServeCmd(a),
		newMCPCmd(a),
		newConfigCmd(a),
		newVersionCmd(),
	)
	return root
}

// config resolves configuration once per invocation.
func (a *app) config() (config.ResolvedConfig, error) {
	if a.cfg != nil {
		return *a.cfg, nil
	}
	cfg, err := config.ResolveConfig(a.opts)
	if err != nil {
		return cfg, fmt.Errorf("loading config: %w", err)
	}
	a.cfg = &cfg
	return cfg, nil
}

func (a *app) openStore() (store.Store, error) {
	cfg, err := a.config()
	if err != nil {
		return nil, err
	}
	st, err := a.newStore(store.StoreConfig{DBPath: cfg.DBPath.Value})
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}
	return st, nil
}

func (a *app) normalizer() (*dates.Normalizer, error) {
	cfg, err := a.config()
	if err != nil {
		return nil, err
	}
	anchor, err := cfg.Anchor()
	if err != nil {
		return nil, err
	}
	return dates.New(anchor), nil
}

// orchestrator builds the extraction pipeline. Providers without
// credentials are skipped, leaving the rule extractor as the last resort.
func (a *app) orchestrator(rulesOnly, expandRanges bool) (*extract.Orchestrator, error) {
	n, err := a.normalizer()
	if err != nil {
		return nil, err
	}
	rules := extract.NewRuleExtractor(n, extract.WithRangeExpansion(expandRanges))

	var xs []extract.Extractor
	if !rulesOnly {
		cfg, err := a.config()
		if err != nil {
			return nil, err
		}
		specs, err := cfg.ExtractorSpecs()
		if err != nil {
			return nil, err
		}
		for _, spec := range specs {
			p, err := llm.NewProvider(spec)
			if errors.Is(err, llm.ErrNotConfigured) {
				a.logger.Debug("skipping extractor", "provider", spec.Provider, "reason", err)
				continue
			}
			if err != nil {
				return nil, err
			}
			xs = append(xs, extract.NewGenerativeExtractor(p, n))
		}
	}

	return extract.NewOrchestrator(
		extract.WithExtractors(xs...),
		extract.WithRules(rules),
		extract.WithLogger(a.logger),
	), nil
}
