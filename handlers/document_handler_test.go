package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"formbot-backend/models"
	"formbot-backend/service"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDocumentTestRouter(docs *stubDocumentStore, blobs *stubBlobStore) *gin.Engine {
	gin.SetMode(gin.TestMode)
	svc := service.NewDocumentService(
		service.DocumentWithDocumentStore(docs),
		service.DocumentWithStorage(blobs),
	)
	h := NewDocumentHandler(svc)

	r := gin.New()
	r.GET("/api/documents/presigned-url", h.PresignedURL)
	return r
}

func TestPresignedURLByS3KeyParam(t *testing.T) {
	docs := newStubDocumentStore()
	blobs := newStubBlobStore()
	r := newDocumentTestRouter(docs, blobs)

	key := "u1/doc-1_resume.pdf"
	blobs.objects[key] = []byte("hello")

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet,
		"/api/documents/presigned-url?s3Key="+url.QueryEscape(key), nil)
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Success bool   `json:"success"`
		URL     string `json:"url"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "https://blobs.example.com/"+key, resp.URL)
}

func TestPresignedURLByDocumentIDParams(t *testing.T) {
	docs := newStubDocumentStore()
	blobs := newStubBlobStore()
	r := newDocumentTestRouter(docs, blobs)

	require.NoError(t, docs.Put(context.Background(), &models.Document{
		UserID:     "u1",
		DocumentID: "doc-1",
		S3Key:      "u1/doc-1_resume.pdf",
	}))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet,
		"/api/documents/presigned-url?userId=u1&documentId=doc-1", nil)
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), "u1/doc-1_resume.pdf"))
}

func TestPresignedURLMissingParams(t *testing.T) {
	r := newDocumentTestRouter(newStubDocumentStore(), newStubBlobStore())

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/documents/presigned-url", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
