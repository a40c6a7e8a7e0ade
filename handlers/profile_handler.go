package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"formbot-backend/service"

	"github.com/gin-gonic/gin"
)

// ProfileHandler handles HTTP requests for profiles and extension sync
type ProfileHandler struct {
	profileService *service.ProfileService
}

// NewProfileHandler creates a new profile handler
func NewProfileHandler(profileService *service.ProfileService) *ProfileHandler {
	return &ProfileHandler{profileService: profileService}
}

// ListProfiles handles GET /api/profiles
func (h *ProfileHandler) ListProfiles(c *gin.Context) {
	userID := c.Query("userId")
	if userID == "" {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", "userId query parameter is required")
		return
	}

	since := parseMillis(c.Query("since"))

	profiles, err := h.profileService.List(c.Request.Context(), userID, since)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "LIST_FAILED", err.Error())
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"profiles":  profiles,
		"count":     len(profiles),
		"timestamp": time.Now().UnixMilli(),
	})
}

// UpsertProfileRequest represents the request body for creating or updating
// a profile
type UpsertProfileRequest struct {
	UserID      string                 `json:"userId" binding:"required"`
	ProfileID   string                 `json:"profileId"`
	Label       string                 `json:"label"`
	Fields      map[string]interface{} `json:"fields"`
	Source      string                 `json:"source"`
	SourceID    string                 `json:"sourceId"`
	ProfileType string                 `json:"profileType"`
	IsDefault   bool                   `json:"isDefault"`
}

// UpsertProfile handles POST and PUT /api/profiles
func (h *ProfileHandler) UpsertProfile(c *gin.Context) {
	var req UpsertProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	result, err := h.profileService.Upsert(c.Request.Context(), service.UpsertProfileRequest{
		UserID:      req.UserID,
		ProfileID:   req.ProfileID,
		Label:       req.Label,
		Fields:      req.Fields,
		Source:      req.Source,
		SourceID:    req.SourceID,
		ProfileType: req.ProfileType,
		IsDefault:   req.IsDefault,
	})
	if err != nil {
		if errors.Is(err, service.ErrMissingUserIdentity) {
			respondError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
			return
		}
		respondError(c, http.StatusInternalServerError, "UPSERT_FAILED", err.Error())
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"profileId": result.ProfileID,
		"action":    result.Action,
	})
}

// Sync handles GET /api/sync
func (h *ProfileHandler) Sync(c *gin.Context) {
	userID := c.Query("userId")
	if userID == "" {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", "userId query parameter is required")
		return
	}

	lastSync := parseMillis(c.Query("lastSync"))

	items, err := h.profileService.Sync(c.Request.Context(), userID, lastSync)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "SYNC_FAILED", err.Error())
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"items":     items,
		"count":     len(items),
		"timestamp": time.Now().UnixMilli(),
	})
}

// parseMillis parses a millisecond epoch query parameter; anything
// unparseable means no lower bound
func parseMillis(raw string) int64 {
	if raw == "" {
		return 0
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v < 0 {
		return 0
	}
	return v
}
