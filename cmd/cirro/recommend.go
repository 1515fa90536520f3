package cirro

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nimbium/cirro"
	"github.com/nimbium/cirro/pkg/config"
	"github.com/nimbium/cirro/pkg/retrieval"
	"github.com/nimbium/cirro/pkg/types"
)

var recommendCmd = &cobra.Command{
	Use:   "recommend [query]",
	Short: "Recommend cloud services for a free-text query",
	Long: `Run one recommendation query against the local catalog and print the
ranked results.

The query is parsed into structured requirements (budget, capacity,
features), matched against the catalog with hybrid retrieval, and the
candidates are fused, reranked, and scored. Without an LLM API key the
pipeline still runs: parsing falls back to keywords and the fused order
passes through unreranked.

Examples:
  cirro recommend "managed postgres with high availability under $500 a month"
  cirro recommend --top-k 3 --provider aws "object storage for backups"
  cirro recommend --json "kubernetes cluster for 10k users" > result.json`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRecommend,
}

var (
	recommendTopK     int
	recommendJSON     bool
	recommendProvider string
	recommendCategory string
	recommendCompare  bool
)

func init() {
	rootCmd.AddCommand(recommendCmd)

	recommendCmd.Flags().IntVar(&recommendTopK, "top-k", 0, "Number of results to return (0 uses the configured default)")
	recommendCmd.Flags().BoolVar(&recommendJSON, "json", false, "Print the full pipeline result as JSON")
	recommendCmd.Flags().StringVar(&recommendProvider, "provider", "", "Restrict retrieval to one provider (aws, gcp, azure)")
	recommendCmd.Flags().StringVar(&recommendCategory, "category", "", "Restrict retrieval to one category (compute, database, ...)")
	recommendCmd.Flags().BoolVar(&recommendCompare, "compare", false, "Also print a provider-by-provider comparison")
}

func runRecommend(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := cirro.NewPipelineLogger(cfg.Log, cfg.Telemetry)
	client, err := cirro.NewClientFromConfig(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize Cirro: %w", err)
	}
	defer client.Close(context.Background())

	// Ctrl-C cancels between oracle comparisons; whatever ranking was
	// settled by then is still printed.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx = context.WithValue(ctx, types.ContextKeyRequestSource, "cli")

	opts := &cirro.QueryOptions{TopK: recommendTopK}
	if recommendProvider != "" || recommendCategory != "" {
		opts.Filters = &retrieval.Filters{
			Provider: types.Provider(strings.ToLower(recommendProvider)),
			Category: types.ServiceCategory(strings.ToLower(recommendCategory)),
		}
	}

	query := strings.Join(args, " ")
	result, runErr := client.RecommendQuery(ctx, query, opts)
	if runErr != nil && result == nil {
		return runErr
	}

	var comparison string
	if recommendCompare && runErr == nil {
		comparison, err = client.CompareProviders(ctx, result)
		if err != nil {
			logger.Warn("provider comparison failed", "error", err)
		}
	}

	if recommendJSON {
		out := struct {
			*types.PipelineResult
			ProviderComparison string `json:"provider_comparison,omitempty"`
		}{result, comparison}
		encoded, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode result: %w", err)
		}
		fmt.Println(string(encoded))
		return runErr
	}

	printResult(result, comparison)
	if runErr != nil {
		fmt.Fprintf(os.Stderr, "\nRun ended early: %v\n", runErr)
	}
	return runErr
}

func printResult(result *types.PipelineResult, comparison string) {
	fmt.Printf("Query: %s\n", result.Query)
	if line := requirementsLine(result.Requirements); line != "" {
		fmt.Printf("Understood as: %s\n", line)
	}
	fmt.Println()

	if result.Empty() {
		fmt.Println("No matching services found.")
		return
	}

	for _, rec := range result.Recommendations {
		svc := rec.Candidate.Service
		name := rec.Candidate.ID
		if svc != nil && svc.Name != "" {
			name = svc.Name
		}
		fmt.Printf("%2d. %s (%s)  score %.3f\n", rec.Rank, name, rec.Candidate.Provider, rec.FinalScore)
		fmt.Printf("    relevance %.2f | cost %.2f | capacity %.2f | features %.2f",
			rec.Breakdown.Relevance, rec.Breakdown.CostEfficiency,
			rec.Breakdown.CapacityMatch, rec.Breakdown.FeatureMatch)
		if rec.Breakdown.DiversityBonus > 0 {
			fmt.Printf(" | diversity +%.2f", rec.Breakdown.DiversityBonus)
		}
		fmt.Println()
		if rec.SpecsSummary != "" {
			fmt.Printf("    %s; %s\n", rec.SpecsSummary, rec.PricingSummary)
		}
		for _, m := range rec.Matches {
			fmt.Printf("    + %s\n", m)
		}
		for _, c := range rec.Concerns {
			fmt.Printf("    - %s\n", c)
		}
		fmt.Println()
	}

	if result.Summary != "" {
		fmt.Printf("Summary: %s\n\n", result.Summary)
	}
	if comparison != "" {
		fmt.Printf("Provider comparison: %s\n\n", comparison)
	}

	c := result.Counters
	fmt.Printf("Pipeline: %d dense + %d sparse -> %d fused -> %d reranked (%d oracle calls",
		c.DenseCandidates, c.SparseCandidates, c.FusedCandidates, c.RerankedCandidates, c.OracleCalls)
	if c.Inconclusive > 0 {
		fmt.Printf(", %d inconclusive", c.Inconclusive)
	}
	fmt.Printf(") in %s\n", result.Timings.Total.Round(time.Millisecond))
}

// requirementsLine renders the parsed constraints on one line, or empty
// when nothing was extracted.
func requirementsLine(req *types.UserRequirements) string {
	if req == nil {
		return ""
	}
	var parts []string
	if req.PreferredCategory != "" {
		parts = append(parts, string(req.PreferredCategory))
	}
	if req.DatabaseEngine != "" {
		parts = append(parts, req.DatabaseEngine)
	}
	if req.PreferredProvider != "" {
		parts = append(parts, "on "+string(req.PreferredProvider))
	}
	if budget, ok := req.MonthlyBudget(); ok {
		parts = append(parts, fmt.Sprintf("under $%.0f/month", budget))
	}
	for _, need := range req.CapacityNeeds() {
		parts = append(parts, fmt.Sprintf("%s >= %g", need.Dimension, need.Required))
	}
	if features := req.RequiredFeatures(); len(features) > 0 {
		parts = append(parts, "with "+strings.Join(features, ", "))
	}
	if req.ExpectedUsers > 0 {
		parts = append(parts, fmt.Sprintf("for %d users", req.ExpectedUsers))
	}
	return strings.Join(parts, ", ")
}
