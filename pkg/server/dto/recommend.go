package dto

import (
	"strings"

	"github.com/nimbium/cirro/pkg/types"
)

// RecommendRequest asks for service recommendations for a free-text
// query. Requirements, when given, skip query parsing and are used
// as-is; provider and category are hard retrieval filters, unlike the
// soft preferences a parsed query produces.
type RecommendRequest struct {
	Query        string                  `json:"query" binding:"required"`
	Requirements *types.UserRequirements `json:"requirements,omitempty"`
	TopK         int                     `json:"top_k,omitempty"`
	Provider     types.Provider          `json:"provider,omitempty"`
	Category     types.ServiceCategory   `json:"category,omitempty"`
	// Compare adds a provider-by-provider narration to the response.
	// It needs a configured summary generator.
	Compare bool `json:"compare,omitempty"`
}

// Validate rejects malformed recommendation requests.
func (r *RecommendRequest) Validate() error {
	if strings.TrimSpace(r.Query) == "" {
		return ErrEmptyQuery
	}
	if len(r.Query) > MaxQueryLength {
		return ErrQueryTooLong
	}
	if r.TopK < 0 || r.TopK > MaxTopK {
		return ErrTopKOutOfRange
	}
	return nil
}

// RecommendResponse is a pipeline result plus the optional provider
// comparison requested with Compare.
type RecommendResponse struct {
	*types.PipelineResult
	ProviderComparison string `json:"provider_comparison,omitempty"`
}

// ParseRequest asks for structured requirements extracted from a query.
type ParseRequest struct {
	Query string `json:"query" binding:"required"`
}

// Validate rejects malformed parse requests.
func (r *ParseRequest) Validate() error {
	if strings.TrimSpace(r.Query) == "" {
		return ErrEmptyQuery
	}
	if len(r.Query) > MaxQueryLength {
		return ErrQueryTooLong
	}
	return nil
}
