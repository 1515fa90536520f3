package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nimbium/cirro"
	"github.com/nimbium/cirro/pkg/catalog"
	"github.com/nimbium/cirro/pkg/server/dto"
)

// CatalogHandler serves catalog reads and bulk loads.
type CatalogHandler struct {
	client cirro.Cirro
}

// NewCatalogHandler creates a catalog handler over the given client.
func NewCatalogHandler(client cirro.Cirro) *CatalogHandler {
	return &CatalogHandler{client: client}
}

// AddServices handles POST /api/v1/catalog/services: a batch load of
// service records. Invalid records are skipped and counted, not
// rejected wholesale.
func (h *CatalogHandler) AddServices(c *gin.Context) {
	var req dto.AddServicesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		respondError(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	result, err := h.client.IngestServices(c.Request.Context(), req.Services, &cirro.IngestOptions{
		Embed: req.Embed,
		JobID: req.JobID,
	})
	if err != nil {
		respondError(c, pipelineStatus(err), "ingest_failed", err.Error())
		return
	}

	c.JSON(http.StatusCreated, dto.IngestResponse{
		Success:  true,
		Total:    result.Total,
		Stored:   result.Stored,
		Embedded: result.Embedded,
		Skipped:  result.Skipped,
		Failed:   result.Failed,
		Resumed:  result.Resumed,
	})
}

// GetService handles GET /api/v1/catalog/services/:id.
func (h *CatalogHandler) GetService(c *gin.Context) {
	id := c.Param("id")
	svc, err := h.client.GetService(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			respondError(c, http.StatusNotFound, "not_found", "no service with id "+id)
			return
		}
		respondError(c, pipelineStatus(err), "catalog_read_failed", err.Error())
		return
	}
	c.JSON(http.StatusOK, svc)
}

// ListServices handles GET /api/v1/catalog/services.
func (h *CatalogHandler) ListServices(c *gin.Context) {
	services, err := h.client.ListServices(c.Request.Context())
	if err != nil {
		respondError(c, pipelineStatus(err), "catalog_read_failed", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"services": services,
		"count":    len(services),
	})
}

// DeleteService handles DELETE /api/v1/catalog/services/:id. Deleting
// a missing ID succeeds.
func (h *CatalogHandler) DeleteService(c *gin.Context) {
	id := c.Param("id")
	if err := h.client.DeleteService(c.Request.Context(), id); err != nil {
		respondError(c, pipelineStatus(err), "catalog_delete_failed", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "id": id})
}

// Stats handles GET /api/v1/catalog/stats.
func (h *CatalogHandler) Stats(c *gin.Context) {
	stats, err := h.client.CatalogStats(c.Request.Context())
	if err != nil {
		respondError(c, pipelineStatus(err), "catalog_read_failed", err.Error())
		return
	}
	c.JSON(http.StatusOK, stats)
}
