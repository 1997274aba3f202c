// Command recoengine is the serving-side CLI: inspect the published vector store and
// issue ad-hoc recommend calls against it.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/evently-labs/recoengine/internal/config"
	"github.com/evently-labs/recoengine/internal/connector"
	"github.com/evently-labs/recoengine/internal/embedding"
	"github.com/evently-labs/recoengine/internal/engine"
	"github.com/evently-labs/recoengine/internal/logging"
	"github.com/evently-labs/recoengine/internal/strategy"
	"github.com/evently-labs/recoengine/internal/vectorstore"
)

var (
	configFile string
	dbPath     string
	jsonOut    bool
)

var rootCmd = &cobra.Command{
	Use:   "recoengine",
	Short: "Serving-side CLI for the event recommendation engine",
}

var statCmd = &cobra.Command{
	Use:   "stat <collection>",
	Short: "Show the manifest of the currently published version of a collection",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configFile)
		if err != nil {
			return err
		}
		if dbPath != "" {
			cfg.VectorStorePath = dbPath
		}
		store, err := vectorstore.Open(cfg.VectorStorePath)
		if err != nil {
			return err
		}
		manifest, err := store.Stat(args[0])
		if err != nil {
			return fmt.Errorf("stat failed: %w", err)
		}
		if jsonOut {
			data, _ := json.MarshalIndent(manifest, "", "  ")
			fmt.Println(string(data))
			return nil
		}
		fmt.Printf("collection: %s\n", manifest.Name)
		fmt.Printf("  rows:       %d\n", manifest.Rows)
		fmt.Printf("  dim:        %d\n", manifest.Dim)
		fmt.Printf("  algorithm:  %s\n", manifest.Algorithm)
		fmt.Printf("  created_at: %s\n", manifest.CreatedAt.Format("2006-01-02 15:04:05"))
		fmt.Printf("  sha256:     %s\n", manifest.SHA256Hex)
		return nil
	},
}

var searchCmd = &cobra.Command{
	Use:   "search <collection>",
	Short: "Search a collection with a raw query vector",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		vectorStr, _ := cmd.Flags().GetString("vector")
		k, _ := cmd.Flags().GetInt("top-k")

		vector, err := parseVector(vectorStr)
		if err != nil {
			return err
		}

		cfg, err := config.Load(configFile)
		if err != nil {
			return err
		}
		if dbPath != "" {
			cfg.VectorStorePath = dbPath
		}
		store, err := vectorstore.Open(cfg.VectorStorePath)
		if err != nil {
			return err
		}
		snap, err := store.Read(context.Background(), args[0])
		if err != nil {
			return fmt.Errorf("read failed: %w", err)
		}
		results, err := snap.Search(vector, k, nil)
		if err != nil {
			return fmt.Errorf("search failed: %w", err)
		}

		if jsonOut {
			data, _ := json.MarshalIndent(results, "", "  ")
			fmt.Println(string(data))
			return nil
		}
		for i, r := range results {
			fmt.Printf("%d. %s (score: %.4f)\n", i+1, r.ID, r.Score)
		}
		return nil
	},
}

var recommendCmd = &cobra.Command{
	Use:   "recommend <viewer-id>",
	Short: "Run an ad-hoc recommend call against the published store",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		k, _ := cmd.Flags().GetInt("k")
		strategyName, _ := cmd.Flags().GetString("strategy")

		cfg, err := config.Load(configFile)
		if err != nil {
			return err
		}
		if dbPath != "" {
			cfg.VectorStorePath = dbPath
		}

		log := logging.NewStdout(zerolog.InfoLevel)

		store, err := vectorstore.Open(cfg.VectorStorePath)
		if err != nil {
			return err
		}
		conn, err := connector.OpenSQLite(context.Background(), cfg.SQLitePath)
		if err != nil {
			return fmt.Errorf("open connector: %w", err)
		}
		defer conn.Close()

		gen, err := embedding.New(embedding.Config{
			Dim: cfg.EmbeddingDim, Mode: embedding.Mode(modeString(cfg.StrictEmbedding)),
			APIKey: cfg.OpenAIAPIKey, Model: cfg.OpenAIModel, BatchMax: cfg.EmbeddingBatchMax,
		})
		if err != nil {
			return err
		}

		selector := strategy.New(cfg)
		eng := engine.New(store, conn, gen, selector, cfg, log)

		result, err := eng.Recommend(context.Background(), args[0], k, strategyName)
		if err != nil {
			return fmt.Errorf("recommend failed: %w", err)
		}

		if jsonOut {
			data, _ := json.MarshalIndent(result, "", "  ")
			fmt.Println(string(data))
			return nil
		}
		fmt.Printf("model_version=%s strategy=%s generated_at=%s\n", result.ModelVersion, result.Strategy, result.GeneratedAt.Format("2006-01-02T15:04:05Z"))
		for _, r := range result.Recommendations {
			fmt.Printf("  #%d event=%d score=%.4f friends=%d source=%s\n", r.Rank, r.EventID, r.Score, r.FriendCount, r.Source)
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

func parseVector(s string) ([]float32, error) {
	parts := strings.Split(s, ",")
	out := make([]float32, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 32)
		if err != nil {
			return nil, fmt.Errorf("invalid vector component %q: %w", p, err)
		}
		out = append(out, float32(v))
	}
	return out, nil
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Configuration file path")
	rootCmd.PersistentFlags().StringVarP(&dbPath, "store", "s", "", "Override vector_store_path")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "Output as JSON")

	searchCmd.Flags().String("vector", "", "Query vector (comma-separated)")
	searchCmd.Flags().Int("top-k", 10, "Number of results")
	searchCmd.MarkFlagRequired("vector")

	recommendCmd.Flags().Int("k", 10, "Number of recommendations")
	recommendCmd.Flags().String("strategy", "hybrid", "Strategy name (hybrid|friends_only|friends_boosted)")

	rootCmd.AddCommand(statCmd, searchCmd, recommendCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
