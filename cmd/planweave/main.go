// Command planweave advances one task-planning workflow per invocation.
//
// It reads a single request document from stdin, drives the workflow until
// the next return point (clarifying questions, completion, or failure), and
// writes one JSON snapshot to stdout. All diagnostics go to stderr.
//
// Configuration comes from PLANNER_-prefixed environment variables; see the
// config package. The exit code is 0 even for failed workflows — only a
// workflow-store I/O failure exits non-zero, since no snapshot can be
// persisted at all in that case.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/planweave/planweave/bridge"
	"github.com/planweave/planweave/config"
	"github.com/planweave/planweave/engine"
	_ "github.com/planweave/planweave/engine/all"
	"github.com/planweave/planweave/logger"
	"github.com/planweave/planweave/metrics"
	"github.com/planweave/planweave/orchestrator"
	"github.com/planweave/planweave/store"
	"github.com/planweave/planweave/version"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		logger.Error("planner failed", "error", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:          "planweave",
		Short:        "Drive a task-planning workflow one stage at a time",
		Long:         "Reads one planning request from stdin, advances the workflow to its next return point, and writes the resulting snapshot to stdout as JSON.",
		Version:      version.GetVersion(),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger.SetVerbose(verbose)
			logger.Debug("starting", version.GetBuildInfo()...)
			return run(cmd.Context())
		},
	}
	cmd.SetVersionTemplate(version.GetVersionInfo() + "\n")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	return cmd
}

func run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("configuration: %w", err)
	}

	eng, err := engine.Create(engine.Spec{
		Type:       cfg.Provider,
		Command:    cfg.LLMCommand,
		Timeout:    cfg.EngineTimeout(),
		ScriptPath: cfg.FakeResponsesFile,
	})
	if err != nil {
		return fmt.Errorf("reasoning engine: %w", err)
	}
	defer eng.Close()

	st, err := newStore(cfg)
	if err != nil {
		return fmt.Errorf("workflow store: %w", err)
	}

	orc := orchestrator.New(eng, st, orchestrator.Config{
		EnableQuestions: cfg.EnableQuestions,
		EnableCritic:    cfg.EnableCritic,
		MaxRevisions:    cfg.MaxRevisions,
		MaxAttempts:     cfg.MaxAttempts,
	})

	if cfg.MetricsAddr != "" {
		exporter := metrics.NewExporter(cfg.MetricsAddr)
		go func() {
			if serr := exporter.Start(); serr != nil && serr != http.ErrServerClosed {
				logger.Warn("metrics exporter stopped", "error", serr)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = exporter.Shutdown(shutdownCtx)
		}()
	}

	return bridge.Run(ctx, os.Stdin, os.Stdout, orc)
}

func newStore(cfg *config.Config) (store.Store, error) {
	switch cfg.Store {
	case config.StoreMemory:
		// Ephemeral: useful for smoke tests, nothing survives the process.
		return store.NewMemoryStore(), nil
	case config.StoreRedis:
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		return store.NewRedisStore(client, store.WithPrefix(cfg.RedisPrefix)), nil
	default:
		return store.NewFileStore(cfg.StateDir)
	}
}
