// Patternd is the pattern diagnosis engine daemon.
//
// It matches free-text error descriptions against a corpus of known failure
// patterns, ranks candidate fixes by confidence, and learns from reported
// outcomes. The engine is exposed as MCP tools over stdio.
//
// Usage:
//
//	# Start the MCP server
//	patternd serve
//
//	# Seed the corpus from a YAML file
//	patternd seed --corpus ./patterns.yaml
//
//	# One-shot diagnosis from the command line
//	patternd diagnose "Error: listen EADDRINUSE :::3000" --context '{"react":true,"ports":[3000]}'
//
// Configuration is read from ~/.config/patternd/config.yaml and PATTERND_*
// environment variables.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/patternd/internal/config"
	"github.com/fyrsmithlabs/patternd/internal/logging"
	"github.com/fyrsmithlabs/patternd/internal/matcher"
	enginemcp "github.com/fyrsmithlabs/patternd/internal/mcp"
	"github.com/fyrsmithlabs/patternd/internal/outcome"
	"github.com/fyrsmithlabs/patternd/internal/pattern"
	"github.com/fyrsmithlabs/patternd/internal/seed"
	"github.com/fyrsmithlabs/patternd/internal/stats"
	"github.com/fyrsmithlabs/patternd/internal/store"
)

// Version information (set via ldflags during build).
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "patternd",
		Short:         "Pattern diagnosis engine",
		Long:          "patternd diagnoses development errors against a corpus of known failure patterns and learns from reported outcomes.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to config file (default ~/.config/patternd/config.yaml)")

	root.AddCommand(
		newServeCmd(&configPath),
		newSeedCmd(&configPath),
		newDiagnoseCmd(&configPath),
		newStatsCmd(&configPath),
		newVersionCmd(),
	)
	return root
}

// engine bundles the assembled services behind one Close.
type engine struct {
	cfg        *config.Config
	logger     *zap.Logger
	store      *store.Store
	matcher    *matcher.Service
	tracker    *outcome.Tracker
	aggregator *stats.Aggregator
	seeder     *seed.Seeder
}

// newEngine loads configuration and wires every service.
func newEngine(configPath string) (*engine, error) {
	if err := config.EnsureConfigDir(); err != nil {
		return nil, err
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	logger, err := logging.NewLogger(&cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	st, err := store.Open(cfg.Database.Path, logger.Named("store"))
	if err != nil {
		logger.Sync()
		return nil, err
	}

	matcherSvc, err := matcher.NewService(st, logger.Named("matcher"))
	if err != nil {
		st.Close()
		return nil, err
	}
	tracker, err := outcome.NewTracker(st, logger.Named("outcome"))
	if err != nil {
		st.Close()
		return nil, err
	}
	aggregator, err := stats.NewAggregator(st, logger.Named("stats"))
	if err != nil {
		st.Close()
		return nil, err
	}
	seeder, err := seed.NewSeeder(st, logger.Named("seed"))
	if err != nil {
		st.Close()
		return nil, err
	}

	return &engine{
		cfg:        cfg,
		logger:     logger,
		store:      st,
		matcher:    matcherSvc,
		tracker:    tracker,
		aggregator: aggregator,
		seeder:     seeder,
	}, nil
}

func (e *engine) Close() {
	if err := e.store.Close(); err != nil {
		e.logger.Warn("store close failed", zap.Error(err))
	}
	_ = e.logger.Sync() // Best-effort sync; stderr sync errors are harmless
}

// seedCorpus applies the built-in corpus plus the configured corpus file.
func (e *engine) seedCorpus(ctx context.Context) error {
	if _, err := e.seeder.Apply(ctx, seed.DefaultCorpus()); err != nil {
		return err
	}
	if e.cfg.Seed.Path != "" {
		if _, err := e.seeder.ApplyFile(ctx, e.cfg.Seed.Path); err != nil {
			return err
		}
	}
	return nil
}

func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server on stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			eng, err := newEngine(*configPath)
			if err != nil {
				return err
			}
			defer eng.Close()

			if err := eng.seedCorpus(ctx); err != nil {
				return err
			}

			if eng.cfg.Seed.Watch {
				watcher, err := seed.NewWatcher(eng.cfg.Seed.Path, eng.seeder, eng.logger.Named("watch"))
				if err != nil {
					return err
				}
				go func() {
					if err := watcher.Run(ctx); err != nil && ctx.Err() == nil {
						eng.logger.Warn("corpus watcher stopped", zap.Error(err))
					}
				}()
			}

			server, err := enginemcp.NewServer(&enginemcp.Config{
				Name:    eng.cfg.Server.Name,
				Version: eng.cfg.Server.Version,
				Logger:  eng.logger.Named("mcp"),
			}, eng.store, eng.matcher, eng.tracker, eng.aggregator)
			if err != nil {
				return err
			}

			eng.logger.Info("patternd starting",
				zap.String("version", version),
				zap.String("database", eng.cfg.Database.Path),
			)
			return server.Run(ctx)
		},
	}
}

func newSeedCmd(configPath *string) *cobra.Command {
	var corpusFile string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Seed the pattern corpus",
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := newEngine(*configPath)
			if err != nil {
				return err
			}
			defer eng.Close()

			ctx := cmd.Context()
			res, err := eng.seeder.Apply(ctx, seed.DefaultCorpus())
			if err != nil {
				return err
			}
			if corpusFile != "" {
				fileRes, err := eng.seeder.ApplyFile(ctx, corpusFile)
				if err != nil {
					return err
				}
				res.Committed += fileRes.Committed
				res.Duplicates += fileRes.Duplicates
				res.Failed += fileRes.Failed
			}

			fmt.Printf("committed %d, duplicates %d, failed %d\n", res.Committed, res.Duplicates, res.Failed)
			return nil
		},
	}
	cmd.Flags().StringVar(&corpusFile, "corpus", "", "YAML corpus file to seed in addition to the built-in patterns")
	return cmd
}

func newDiagnoseCmd(configPath *string) *cobra.Command {
	var contextJSON string

	cmd := &cobra.Command{
		Use:   "diagnose <error-text>",
		Short: "Diagnose an error against the pattern corpus",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := newEngine(*configPath)
			if err != nil {
				return err
			}
			defer eng.Close()

			var diagCtx pattern.Context
			if contextJSON != "" {
				if err := json.Unmarshal([]byte(contextJSON), &diagCtx); err != nil {
					return fmt.Errorf("invalid --context JSON: %w", err)
				}
			}

			matches, err := eng.matcher.FindMatches(cmd.Context(), args[0], diagCtx)
			if err != nil {
				return err
			}
			return printJSON(matches)
		},
	}
	cmd.Flags().StringVar(&contextJSON, "context", "", "diagnosis context as a JSON object")
	return cmd
}

func newStatsCmd(configPath *string) *cobra.Command {
	var patternID string
	var top int

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show pattern statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := newEngine(*configPath)
			if err != nil {
				return err
			}
			defer eng.Close()

			ctx := cmd.Context()
			switch {
			case patternID != "":
				ps, err := eng.aggregator.PatternStatistics(ctx, patternID)
				if err != nil {
					return err
				}
				return printJSON(ps)
			case top > 0:
				tp, err := eng.aggregator.TopPatterns(ctx, top)
				if err != nil {
					return err
				}
				return printJSON(tp)
			default:
				cs, err := eng.aggregator.CategoryStatistics(ctx)
				if err != nil {
					return err
				}
				return printJSON(cs)
			}
		},
	}
	cmd.Flags().StringVar(&patternID, "pattern", "", "report on one pattern ID")
	cmd.Flags().IntVar(&top, "top", 0, "list the N best performing patterns")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("patternd by Fyrsmith Labs\n")
			fmt.Printf("Version:    %s\n", version)
			fmt.Printf("Commit:     %s\n", gitCommit)
			fmt.Printf("Build Date: %s\n", buildDate)
		},
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
