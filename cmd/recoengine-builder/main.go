// Command recoengine-builder runs the offline model build job and exposes the
// idempotent refresh operation from the command line, for cron-driven or manual
// invocation ahead of a long-running refresh HTTP endpoint.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/evently-labs/recoengine/internal/builder"
	"github.com/evently-labs/recoengine/internal/config"
	"github.com/evently-labs/recoengine/internal/connector"
	"github.com/evently-labs/recoengine/internal/embedding"
	"github.com/evently-labs/recoengine/internal/logging"
	"github.com/evently-labs/recoengine/internal/vectorstore"
)

var (
	configFile  string
	fixturePath string
	jsonOut     bool
)

// openConnector returns the SQLite-backed connector, or the JSON-fixture-backed test
// mode when --fixture is set.
func openConnector(ctx context.Context, cfg *config.Config) (connector.Connector, func() error, error) {
	if fixturePath != "" {
		c, err := connector.LoadFixture(fixturePath)
		if err != nil {
			return nil, nil, err
		}
		return c, func() error { return nil }, nil
	}
	c, err := connector.OpenSQLite(ctx, cfg.SQLitePath)
	if err != nil {
		return nil, nil, err
	}
	return c, c.Close, nil
}

var rootCmd = &cobra.Command{
	Use:   "recoengine-builder",
	Short: "Offline model builder for the event recommendation engine",
}

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Run the builder once and publish a new model version",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configFile)
		if err != nil {
			return err
		}
		log := logging.NewStdout(logLevel(cfg.LogLevel))

		conn, closeConn, err := openConnector(context.Background(), cfg)
		if err != nil {
			return fmt.Errorf("open connector: %w", err)
		}
		defer closeConn()

		gen, err := embedding.New(embedding.Config{
			Dim: cfg.EmbeddingDim, Mode: embedding.Mode(modeString(cfg.StrictEmbedding)),
			APIKey: cfg.OpenAIAPIKey, Model: cfg.OpenAIModel, BatchMax: cfg.EmbeddingBatchMax,
		})
		if err != nil {
			return err
		}

		store, err := vectorstore.Open(cfg.VectorStorePath)
		if err != nil {
			return err
		}

		b := builder.New(conn, gen, store, cfg, log)
		report, err := b.Run(context.Background())
		if err != nil {
			return fmt.Errorf("build failed: %w", err)
		}

		if jsonOut {
			data, _ := json.MarshalIndent(report, "", "  ")
			fmt.Println(string(data))
			return nil
		}
		fmt.Printf("built %s: events=%d users=%d categories=%d tags=%d\n",
			report.BuiltAt.Format("2006-01-02T15:04:05Z"), report.EventCount, report.UserCount, report.CategoryCount, report.TagCount)
		return nil
	},
}

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Trigger an idempotent refresh; concurrent invocations coalesce",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configFile)
		if err != nil {
			return err
		}
		log := logging.NewStdout(logLevel(cfg.LogLevel))

		conn, closeConn, err := openConnector(context.Background(), cfg)
		if err != nil {
			return fmt.Errorf("open connector: %w", err)
		}
		defer closeConn()

		gen, err := embedding.New(embedding.Config{
			Dim: cfg.EmbeddingDim, Mode: embedding.Mode(modeString(cfg.StrictEmbedding)),
			APIKey: cfg.OpenAIAPIKey, Model: cfg.OpenAIModel, BatchMax: cfg.EmbeddingBatchMax,
		})
		if err != nil {
			return err
		}

		store, err := vectorstore.Open(cfg.VectorStorePath)
		if err != nil {
			return err
		}

		b := builder.New(conn, gen, store, cfg, log)
		rc := builder.NewRefreshCoordinator(b, log)

		if ifStale, _ := cmd.Flags().GetBool("if-stale"); ifStale {
			due, reason, err := b.NeedsRebuild(context.Background(), time.Now().UTC())
			if err != nil {
				return fmt.Errorf("staleness check failed: %w", err)
			}
			if !due {
				fmt.Printf("status=skipped reason=%q\n", reason)
				return nil
			}
			log.Info("refresh: rebuild due", "reason", reason)
		}

		startedAt := time.Now().UTC()
		report, shared, err := rc.Refresh(context.Background())
		finishedAt := time.Now().UTC()

		// Status is "skipped" when this call's build coalesced onto another caller's
		// already in-flight run (the singleflight contract in
		// internal/builder/refresh.go), "failed" on error, else "ok".
		status := "ok"
		switch {
		case err != nil:
			status = "failed"
		case shared:
			status = "skipped"
		}

		out := map[string]any{
			"status":      status,
			"version":     report.EventsManifest.SHA256Hex,
			"started_at":  startedAt,
			"finished_at": finishedAt,
			"events":      report.EventCount,
			"users":       report.UserCount,
		}
		if jsonOut {
			data, _ := json.MarshalIndent(out, "", "  ")
			fmt.Println(string(data))
		} else {
			fmt.Printf("status=%s version=%s shared=%v\n", status, report.EventsManifest.SHA256Hex, shared)
		}
		if err != nil {
			return fmt.Errorf("refresh failed: %w", err)
		}
		return nil
	},
}

func modeString(strict bool) string {
	if strict {
		return "strict"
	}
	return "lenient"
}

func logLevel(level string) zerolog.Level {
	l, err := zerolog.ParseLevel(level)
	if err != nil {
		return zerolog.InfoLevel
	}
	return l
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Configuration file path")
	rootCmd.PersistentFlags().StringVar(&fixturePath, "fixture", "", "Build from a JSON fixture file instead of the SQLite database")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	refreshCmd.Flags().Bool("if-stale", false, "Only rebuild when the retrain interval elapsed or the event set drifted")
	rootCmd.AddCommand(buildCmd, refreshCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
