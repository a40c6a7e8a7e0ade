package handlers

import (
	"errors"
	"net/http"

	"formbot-backend/service"

	"github.com/gin-gonic/gin"
)

// UserHandler handles HTTP requests for user registration and lookup
type UserHandler struct {
	userService *service.UserService
}

// NewUserHandler creates a new user handler
func NewUserHandler(userService *service.UserService) *UserHandler {
	return &UserHandler{userService: userService}
}

// RegisterRequest represents the request body for registering a user
type RegisterRequest struct {
	UserID  string `json:"userId" binding:"required"`
	Email   string `json:"email" binding:"required"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
}

// Register handles POST /api/user/register
func (h *UserHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	result, err := h.userService.Register(c.Request.Context(), service.RegisterRequest{
		UserID:  req.UserID,
		Email:   req.Email,
		Name:    req.Name,
		Picture: req.Picture,
	})
	if err != nil {
		if errors.Is(err, service.ErrMissingUserIdentity) {
			respondError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
			return
		}
		respondError(c, http.StatusInternalServerError, "REGISTER_FAILED", err.Error())
		return
	}

	message := "User registered"
	if !result.IsNewUser {
		message = "User record updated"
	}
	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"userId":    result.UserID,
		"isNewUser": result.IsNewUser,
		"message":   message,
	})
}

// RegisterEmailRequest represents the request body for the email mapping
type RegisterEmailRequest struct {
	UserID string `json:"userId" binding:"required"`
	Email  string `json:"email" binding:"required"`
}

// RegisterEmail handles POST /api/user/register-by-email
func (h *UserHandler) RegisterEmail(c *gin.Context) {
	var req RegisterEmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	email, err := h.userService.RegisterEmail(c.Request.Context(), req.UserID, req.Email)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUserNotFound):
			respondError(c, http.StatusNotFound, "USER_NOT_FOUND", "User not found")
		case errors.Is(err, service.ErrMissingUserIdentity):
			respondError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		default:
			respondError(c, http.StatusInternalServerError, "REGISTER_EMAIL_FAILED", err.Error())
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"userId":  req.UserID,
		"email":   email,
		"message": "Email registered for webhook routing",
	})
}

// GetUserData handles GET /api/user/data
func (h *UserHandler) GetUserData(c *gin.Context) {
	userID := c.Query("userId")
	if userID == "" {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", "userId query parameter is required")
		return
	}

	user, err := h.userService.GetUser(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			respondError(c, http.StatusNotFound, "USER_NOT_FOUND", "User not found")
			return
		}
		respondError(c, http.StatusInternalServerError, "LOOKUP_FAILED", err.Error())
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"user":    user,
	})
}

// StoreUserData handles POST /api/user/data. The body is a flat payload:
// userId, employeeId and the field data are all top-level siblings, the way
// automation tools post them.
func (h *UserHandler) StoreUserData(c *gin.Context) {
	var payload map[string]interface{}
	if err := c.ShouldBindJSON(&payload); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", "Request body must be a JSON object")
		return
	}

	userID, _ := payload["userId"].(string)
	if userID == "" {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", "userId is required")
		return
	}

	profileID, err := h.userService.StoreEmployeeData(c.Request.Context(), service.StoreEmployeeDataRequest{
		UserID:  userID,
		Payload: payload,
	})
	if err != nil {
		if errors.Is(err, service.ErrMissingUserIdentity) {
			respondError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
			return
		}
		respondError(c, http.StatusInternalServerError, "STORE_FAILED", err.Error())
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"profileId": profileID,
		"message":   "Employee data stored",
	})
}
