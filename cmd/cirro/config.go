package cirro

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage Cirro configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a starter cirro.yaml with the default settings",
	Long: `Write a starter configuration file with every setting at its default.
Edit it and place it in the working directory (or pass --config) to
change pipeline, retrieval, or model settings.`,
	RunE: runConfigInit,
}

var (
	configInitOutput string
	configInitForce  bool
)

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)

	configInitCmd.Flags().StringVar(&configInitOutput, "output", "cirro.yaml", "Where to write the config file")
	configInitCmd.Flags().BoolVar(&configInitForce, "force", false, "Overwrite an existing file")
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	if !configInitForce {
		if _, err := os.Stat(configInitOutput); err == nil {
			return fmt.Errorf("%s already exists (use --force to overwrite)", configInitOutput)
		}
	}

	encoded, err := yaml.Marshal(defaultConfigTree())
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.WriteFile(configInitOutput, encoded, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", configInitOutput, err)
	}

	fmt.Printf("Wrote %s\n", configInitOutput)
	fmt.Println("Set an API key (e.g. OPENAI_API_KEY) to enable LLM parsing, reranking, and summaries.")
	return nil
}

// defaultConfigTree mirrors the defaults the config package applies, in
// the shape the file is read back in.
func defaultConfigTree() map[string]any {
	return map[string]any{
		"log": map[string]any{
			"level":  "info",
			"format": "text",
		},
		"server": map[string]any{
			"host": "localhost",
			"port": 8080,
			"mode": "debug",
		},
		"catalog": map[string]any{
			"path":      "./cirro_catalog",
			"in_memory": false,
		},
		"pipeline": map[string]any{
			"fusion": map[string]any{
				"rank_constant": 60,
				"top_k":         25,
			},
			"rerank": map[string]any{
				"enabled":             true,
				"passes":              3,
				"max_candidates":      20,
				"requests_per_second": 0,
				"timeout_seconds":     30,
			},
			"scoring": map[string]any{
				"relevance_weight":       0.5,
				"cost_efficiency_weight": 0.2,
				"capacity_match_weight":  0.2,
				"feature_match_weight":   0.1,
				"diversity_boost":        0.05,
				"top_k":                  5,
			},
		},
		"retrieval": map[string]any{
			"dense_top_k":  30,
			"sparse_top_k": 30,
			"bm25_k1":      1.5,
			"bm25_b":       0.75,
			"min_score":    0.3,
		},
		"nlp": map[string]any{
			"models": map[string]any{
				"default": map[string]any{
					"provider":    "openai",
					"model":       "gpt-4o-mini",
					"api_key":     "",
					"base_url":    "",
					"temperature": 0.0,
					"max_tokens":  8192,
				},
			},
		},
		"embedding": map[string]any{
			"provider": "embedeverything",
			"model":    "sentence-transformers/all-MiniLM-L6-v2",
			"api_key":  "",
			"base_url": "",
		},
		"telemetry": map[string]any{
			"parquet_path": "",
			"token_path":   "",
			"sql_dsn":      "",
		},
		"circuit_breaker": map[string]any{
			"enabled":             false,
			"max_requests":        3,
			"interval":            60,
			"timeout":             60,
			"ready_to_trip_ratio": 0.6,
		},
		"alert": map[string]any{
			"enabled":   false,
			"smtp_host": "",
			"smtp_port": 587,
			"from":      "",
			"to":        []string{},
		},
	}
}
