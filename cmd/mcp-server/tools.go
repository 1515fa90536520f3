package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/firebase/genkit/go/ai"
	"github.com/nimbium/cirro"
	"github.com/nimbium/cirro/pkg/catalog"
	"github.com/nimbium/cirro/pkg/retrieval"
	"github.com/nimbium/cirro/pkg/types"
)

// RecommendRequest carries the parameters for a recommendation run.
type RecommendRequest struct {
	Query    string `json:"query"`
	TopK     int    `json:"top_k,omitempty"`
	Provider string `json:"provider,omitempty"`
	Category string `json:"category,omitempty"`
	Compare  bool   `json:"compare,omitempty"`
}

// ParseRequest carries the text for requirement extraction.
type ParseRequest struct {
	Query string `json:"query"`
}

// ServiceRequest identifies one catalog record by ID.
type ServiceRequest struct {
	ID string `json:"id"`
}

// StatsRequest is the empty parameter set for catalog stats.
type StatsRequest struct{}

// ToolResponse is the uniform envelope every tool returns.
type ToolResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

func respOK(message string, data any) *ToolResponse {
	return &ToolResponse{Success: true, Message: message, Data: data}
}

func respErr(format string, args ...any) *ToolResponse {
	return &ToolResponse{Success: false, Error: fmt.Sprintf(format, args...)}
}

// toolCtx tags pipeline calls so telemetry can attribute them to the
// MCP surface.
func toolCtx() context.Context {
	return context.WithValue(context.Background(), types.ContextKeyRequestSource, "mcp")
}

// RecommendServicesTool answers a free-text query with ranked service
// recommendations. This is the primary way to use the pipeline.
func (s *MCPServer) RecommendServicesTool(ctx *ai.ToolContext, input *RecommendRequest) (*ToolResponse, error) {
	if strings.TrimSpace(input.Query) == "" {
		return respErr("query is required"), nil
	}

	opts := &cirro.QueryOptions{TopK: input.TopK}
	if input.Provider != "" || input.Category != "" {
		opts.Filters = &retrieval.Filters{
			Provider: types.Provider(strings.ToLower(input.Provider)),
			Category: types.ServiceCategory(strings.ToLower(input.Category)),
		}
	}

	result, err := s.client.RecommendQuery(toolCtx(), input.Query, opts)
	if err != nil {
		s.logger.Error("recommendation pipeline failed", "error", err)
		return respErr("recommendation pipeline failed: %v", err), nil
	}
	if result.Empty() {
		return respOK("no matching services found", map[string]any{"recommendations": []any{}}), nil
	}

	ranked := make([]map[string]any, len(result.Recommendations))
	for i, rec := range result.Recommendations {
		entry := map[string]any{
			"rank":        rec.Rank,
			"id":          rec.Candidate.ID,
			"provider":    string(rec.Candidate.Provider),
			"final_score": rec.FinalScore,
			"breakdown": map[string]any{
				"relevance":       rec.Breakdown.Relevance,
				"cost_efficiency": rec.Breakdown.CostEfficiency,
				"capacity_match":  rec.Breakdown.CapacityMatch,
				"feature_match":   rec.Breakdown.FeatureMatch,
				"diversity_bonus": rec.Breakdown.DiversityBonus,
			},
			"matches":  rec.Matches,
			"concerns": rec.Concerns,
			"specs":    rec.SpecsSummary,
			"pricing":  rec.PricingSummary,
		}
		if rec.Candidate.Service != nil {
			entry["name"] = rec.Candidate.Service.Name
			entry["category"] = string(rec.Candidate.Service.Category)
			entry["description"] = rec.Candidate.Service.Description
		}
		ranked[i] = entry
	}

	data := map[string]any{
		"query":           result.Query,
		"requirements":    result.Requirements,
		"recommendations": ranked,
		"counters": map[string]any{
			"dense_candidates":  result.Counters.DenseCandidates,
			"sparse_candidates": result.Counters.SparseCandidates,
			"fused_candidates":  result.Counters.FusedCandidates,
			"oracle_calls":      result.Counters.OracleCalls,
			"inconclusive":      result.Counters.Inconclusive,
		},
	}
	if result.Summary != "" {
		data["summary"] = result.Summary
	}

	// Attach a provider comparison when requested.
	if input.Compare {
		comparison, err := s.client.CompareProviders(toolCtx(), result)
		if err != nil {
			s.logger.Warn("provider comparison failed", "error", err)
		} else if comparison != "" {
			data["comparison"] = comparison
		}
	}

	s.logger.Info("recommendation run complete",
		"query", input.Query,
		"results", len(result.Recommendations),
		"oracle_calls", result.Counters.OracleCalls,
	)
	return respOK(fmt.Sprintf("ranked %d services", len(result.Recommendations)), data), nil
}

// ParseRequirementsTool extracts structured requirements from free text
// without running retrieval or ranking.
func (s *MCPServer) ParseRequirementsTool(ctx *ai.ToolContext, input *ParseRequest) (*ToolResponse, error) {
	if strings.TrimSpace(input.Query) == "" {
		return respErr("query is required"), nil
	}

	parsed, err := s.client.ParseQuery(toolCtx(), input.Query)
	if err != nil {
		s.logger.Error("query parse failed", "error", err)
		return respErr("query parse failed: %v", err), nil
	}

	data := map[string]any{"requirements": parsed.Requirements}
	if parsed.ExpandedQuery != "" {
		data["expanded_query"] = parsed.ExpandedQuery
	}
	if len(parsed.Keywords) > 0 {
		data["keywords"] = parsed.Keywords
	}

	return respOK("requirements extracted", data), nil
}

// GetServiceTool returns one catalog record by ID.
func (s *MCPServer) GetServiceTool(ctx *ai.ToolContext, input *ServiceRequest) (*ToolResponse, error) {
	if input.ID == "" {
		return respErr("id is required"), nil
	}

	svc, err := s.client.GetService(toolCtx(), input.ID)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return respErr("service %q not found", input.ID), nil
		}
		s.logger.Error("service lookup failed", "id", input.ID, "error", err)
		return respErr("service lookup failed: %v", err), nil
	}

	// The stored embedding vector is deliberately left out.
	data := map[string]any{
		"id":          svc.ID,
		"name":        svc.Name,
		"provider":    string(svc.Provider),
		"category":    string(svc.Category),
		"description": svc.Description,
		"specs":       svc.SpecsSummary(),
		"pricing":     svc.PricingSummary(),
	}
	if svc.ServiceType != "" {
		data["service_type"] = svc.ServiceType
	}
	if len(svc.Features) > 0 {
		data["features"] = svc.Features
	}
	if len(svc.UseCases) > 0 {
		data["use_cases"] = svc.UseCases
	}
	if svc.Region != "" {
		data["region"] = svc.Region
	}
	if svc.DatabaseEngine != "" {
		data["database_engine"] = svc.DatabaseEngine
	}

	return respOK("service retrieved", data), nil
}

// CatalogStatsTool summarizes the service catalog.
func (s *MCPServer) CatalogStatsTool(ctx *ai.ToolContext, input *StatsRequest) (*ToolResponse, error) {
	stats, err := s.client.CatalogStats(toolCtx())
	if err != nil {
		s.logger.Error("catalog stats failed", "error", err)
		return respErr("catalog stats failed: %v", err), nil
	}

	return respOK(fmt.Sprintf("catalog holds %d services", stats.Total), map[string]any{
		"total":       stats.Total,
		"embedded":    stats.Embedded,
		"by_provider": stats.ByProvider,
		"by_category": stats.ByCategory,
	}), nil
}
