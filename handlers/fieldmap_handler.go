package handlers

import (
	"errors"
	"net/http"

	"formbot-backend/cache"
	"formbot-backend/service"

	"github.com/gin-gonic/gin"
)

// FieldMapHandler handles field-mapping resolution, batch resolution and
// explicit cache writes
type FieldMapHandler struct {
	fieldMapService *service.FieldMapService
}

// NewFieldMapHandler creates a new field-mapping handler
func NewFieldMapHandler(fieldMapService *service.FieldMapService) *FieldMapHandler {
	return &FieldMapHandler{fieldMapService: fieldMapService}
}

// FieldMappingRequest represents the request body for /api/field-mapping.
// Action selects between resolving a mapping and storing one.
type FieldMappingRequest struct {
	Action string `json:"action" binding:"required"`

	// get
	Field         service.FieldDescriptor `json:"field"`
	CandidateKeys []string                `json:"candidateKeys"`
	FormPurpose   string                  `json:"formPurpose"`

	// store
	Signature   string `json:"signature"`
	Label       string `json:"label"`
	FieldName   string `json:"fieldName"`
	Placeholder string `json:"placeholder"`
	AriaLabel   string `json:"ariaLabel"`
	MatchedKey  string `json:"matchedKey"`
	Confidence  int    `json:"confidence"`
}

// HandleFieldMapping handles POST /api/field-mapping
func (h *FieldMapHandler) HandleFieldMapping(c *gin.Context) {
	var req FieldMappingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	switch req.Action {
	case "get":
		h.resolve(c, req)
	case "store":
		h.store(c, req)
	default:
		respondError(c, http.StatusBadRequest, "INVALID_ACTION", "action must be get or store")
	}
}

func (h *FieldMapHandler) resolve(c *gin.Context, req FieldMappingRequest) {
	result, err := h.fieldMapService.Resolve(c.Request.Context(), service.ResolveRequest{
		Field:         req.Field,
		CandidateKeys: req.CandidateKeys,
		FormPurpose:   req.FormPurpose,
	})
	if err != nil {
		respondFieldMapError(c, err)
		return
	}

	if !result.Found {
		c.JSON(http.StatusOK, gin.H{"found": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"found":      true,
		"matchedKey": result.MatchedKey,
		"confidence": result.Confidence,
		"usageCount": result.UsageCount,
		"source":     result.Origin,
	})
}

func (h *FieldMapHandler) store(c *gin.Context, req FieldMappingRequest) {
	if req.MatchedKey == "" {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", "matchedKey is required for store")
		return
	}
	if req.Signature == "" && req.Label == "" && req.FieldName == "" {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST",
			"store requires a signature or field descriptors to derive one")
		return
	}

	result, err := h.fieldMapService.StoreMapping(c.Request.Context(), service.StoreMappingRequest{
		Signature:   req.Signature,
		Label:       req.Label,
		FieldName:   req.FieldName,
		Placeholder: req.Placeholder,
		AriaLabel:   req.AriaLabel,
		MatchedKey:  req.MatchedKey,
		Confidence:  req.Confidence,
		ClientIP:    c.ClientIP(),
	})
	if err != nil {
		respondFieldMapError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"stored":  result.Stored,
		"message": result.Message,
	})
}

// BatchFieldMappingRequest represents the request body for
// /api/batch-field-mapping
type BatchFieldMappingRequest struct {
	Fields        []service.FieldDescriptor `json:"fields" binding:"required"`
	CandidateKeys []string                  `json:"candidateKeys" binding:"required"`
	FormPurpose   string                    `json:"formPurpose"`
}

// HandleBatch handles POST /api/batch-field-mapping
func (h *FieldMapHandler) HandleBatch(c *gin.Context) {
	var req BatchFieldMappingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	entries, err := h.fieldMapService.ResolveBatch(c.Request.Context(), service.BatchRequest{
		Fields:        req.Fields,
		CandidateKeys: req.CandidateKeys,
		FormPurpose:   req.FormPurpose,
	})
	if err != nil {
		respondFieldMapError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"mappings": entries,
		"count":    len(entries),
	})
}

// respondFieldMapError maps resolver failures onto the error taxonomy
func respondFieldMapError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, cache.ErrUnavailable):
		respondError(c, http.StatusServiceUnavailable, "CACHE_UNAVAILABLE",
			"Field-mapping cache is unavailable")
	case errors.Is(err, service.ErrInsufficientTime):
		respondError(c, http.StatusGatewayTimeout, "INSUFFICIENT_TIME",
			"Not enough time remaining to consult the mapping service")
	case errors.Is(err, service.ErrRateLimited):
		respondError(c, http.StatusTooManyRequests, "RATE_LIMITED",
			"Daily field-mapping write limit exceeded")
	default:
		respondError(c, http.StatusInternalServerError, "FIELD_MAPPING_FAILED", err.Error())
	}
}
