package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nimbium/cirro"
	"github.com/nimbium/cirro/pkg/retrieval"
	"github.com/nimbium/cirro/pkg/server/dto"
)

// RecommendHandler serves recommendation and query-parsing requests.
type RecommendHandler struct {
	client cirro.Cirro
}

// NewRecommendHandler creates a recommendation handler over the given
// client.
func NewRecommendHandler(client cirro.Cirro) *RecommendHandler {
	return &RecommendHandler{client: client}
}

// respondError writes the shared error body.
func respondError(c *gin.Context, status int, code, message string) {
	c.JSON(status, dto.ErrorResponse{
		Error:   code,
		Message: message,
		Code:    status,
	})
}

// pipelineStatus maps a pipeline error to an HTTP status.
func pipelineStatus(err error) int {
	if errors.Is(err, cirro.ErrNoCatalog) {
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// Recommend handles POST /api/v1/recommend and the legacy POST
// /recommend. An empty recommendation list is a successful response,
// not an error.
func (h *RecommendHandler) Recommend(c *gin.Context) {
	var req dto.RecommendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		respondError(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	opts := &cirro.QueryOptions{
		Requirements: req.Requirements,
		TopK:         req.TopK,
	}
	if req.Provider != "" || req.Category != "" {
		opts.Filters = &retrieval.Filters{
			Provider: req.Provider,
			Category: req.Category,
		}
	}

	result, err := h.client.RecommendQuery(c.Request.Context(), req.Query, opts)
	if err != nil {
		respondError(c, pipelineStatus(err), "recommendation_failed", err.Error())
		return
	}

	response := dto.RecommendResponse{PipelineResult: result}
	if req.Compare && !result.Empty() {
		comparison, err := h.client.CompareProviders(c.Request.Context(), result)
		if err != nil && !errors.Is(err, cirro.ErrNoSummarizer) {
			respondError(c, http.StatusInternalServerError, "comparison_failed", err.Error())
			return
		}
		response.ProviderComparison = comparison
	}

	c.JSON(http.StatusOK, response)
}

// ParseQuery handles POST /api/v1/query/parse, returning the structured
// requirements extracted from the query.
func (h *RecommendHandler) ParseQuery(c *gin.Context) {
	var req dto.ParseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		respondError(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	parsed, err := h.client.ParseQuery(c.Request.Context(), req.Query)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "parse_failed", err.Error())
		return
	}
	c.JSON(http.StatusOK, parsed)
}
