package handlers

import (
	"bytes"
	"encoding/base64"
	"errors"
	"net/http"

	"formbot-backend/service"

	"github.com/gin-gonic/gin"
)

// DocumentHandler handles HTTP requests for submitted documents
type DocumentHandler struct {
	documentService *service.DocumentService
}

// NewDocumentHandler creates a new document handler
func NewDocumentHandler(documentService *service.DocumentService) *DocumentHandler {
	return &DocumentHandler{documentService: documentService}
}

// Upload handles POST /api/documents/upload (multipart)
func (h *DocumentHandler) Upload(c *gin.Context) {
	userID := c.PostForm("userId")
	if userID == "" {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", "userId form field is required")
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", "file form field is required")
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		respondError(c, http.StatusInternalServerError, "UPLOAD_FAILED", err.Error())
		return
	}
	defer file.Close()

	doc, err := h.documentService.Upload(c.Request.Context(), service.UploadDocumentRequest{
		UserID:       userID,
		FileName:     fileHeader.Filename,
		FileType:     fileHeader.Header.Get("Content-Type"),
		FileSize:     fileHeader.Size,
		DocumentType: c.PostForm("documentType"),
		FormURL:      c.PostForm("formUrl"),
		FieldName:    c.PostForm("fieldName"),
		FieldLabel:   c.PostForm("fieldLabel"),
		ProfileID:    c.PostForm("profileId"),
		Data:         file,
	})
	if err != nil {
		respondDocumentError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"documentId": doc.DocumentID,
		"s3Key":      doc.S3Key,
		"message":    "Document uploaded",
	})
}

// CreateDocumentRequest represents the JSON upload variant, with file bytes
// base64-encoded. Extensions that cannot build multipart bodies use this.
type CreateDocumentRequest struct {
	UserID       string `json:"userId" binding:"required"`
	FileName     string `json:"fileName" binding:"required"`
	FileType     string `json:"fileType"`
	FileData     string `json:"fileData" binding:"required"`
	DocumentType string `json:"documentType"`
	FormURL      string `json:"formUrl"`
	FieldName    string `json:"fieldName"`
	FieldLabel   string `json:"fieldLabel"`
	ProfileID    string `json:"profileId"`
}

// Create handles POST /api/documents
func (h *DocumentHandler) Create(c *gin.Context) {
	var req CreateDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	data, err := base64.StdEncoding.DecodeString(req.FileData)
	if err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", "fileData must be base64-encoded")
		return
	}

	doc, err := h.documentService.Upload(c.Request.Context(), service.UploadDocumentRequest{
		UserID:       req.UserID,
		FileName:     req.FileName,
		FileType:     req.FileType,
		FileSize:     int64(len(data)),
		DocumentType: req.DocumentType,
		FormURL:      req.FormURL,
		FieldName:    req.FieldName,
		FieldLabel:   req.FieldLabel,
		ProfileID:    req.ProfileID,
		Data:         bytes.NewReader(data),
	})
	if err != nil {
		respondDocumentError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"documentId": doc.DocumentID,
		"s3Key":      doc.S3Key,
		"message":    "Document uploaded",
	})
}

// List handles GET /api/documents
func (h *DocumentHandler) List(c *gin.Context) {
	userID := c.Query("userId")
	if userID == "" {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", "userId query parameter is required")
		return
	}

	docs, err := h.documentService.List(c.Request.Context(), userID)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "LIST_FAILED", err.Error())
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"documents": docs,
		"count":     len(docs),
	})
}

// Get handles GET /api/documents/:id
func (h *DocumentHandler) Get(c *gin.Context) {
	userID := c.Query("userId")
	if userID == "" {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", "userId query parameter is required")
		return
	}

	doc, err := h.documentService.Get(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		respondDocumentError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"document": doc,
	})
}

// PresignedURL handles GET /api/documents/presigned-url
func (h *DocumentHandler) PresignedURL(c *gin.Context) {
	userID := c.Query("userId")
	documentID := c.Query("documentId")
	key := c.Query("s3Key")
	if key == "" {
		key = c.Query("key")
	}
	if key == "" && (userID == "" || documentID == "") {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST",
			"s3Key or userId+documentId query parameters are required")
		return
	}

	url, err := h.documentService.PresignedURL(c.Request.Context(), userID, documentID, key)
	if err != nil {
		respondDocumentError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"url":     url,
	})
}

// Delete handles DELETE /api/documents/:id
func (h *DocumentHandler) Delete(c *gin.Context) {
	userID := c.Query("userId")
	if userID == "" {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", "userId query parameter is required")
		return
	}

	if err := h.documentService.Delete(c.Request.Context(), userID, c.Param("id")); err != nil {
		respondDocumentError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Document deleted",
	})
}

func respondDocumentError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrDocumentNotFound):
		respondError(c, http.StatusNotFound, "DOCUMENT_NOT_FOUND", "Document not found")
	case errors.Is(err, service.ErrDocumentTooLarge):
		respondError(c, http.StatusBadRequest, "DOCUMENT_TOO_LARGE", err.Error())
	case errors.Is(err, service.ErrMissingUserIdentity):
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
	default:
		respondError(c, http.StatusInternalServerError, "DOCUMENT_OPERATION_FAILED", err.Error())
	}
}
