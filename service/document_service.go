package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/google/uuid"

	"formbot-backend/models"
	"formbot-backend/storage"
)

const (
	maxDocumentSize    = 10 * 1024 * 1024
	presignedURLExpiry = 15 * time.Minute
)

// ErrDocumentTooLarge is returned when an upload exceeds the size cap
var ErrDocumentTooLarge = fmt.Errorf("document exceeds maximum size of %d bytes", maxDocumentSize)

// DocumentService handles document uploads, their metadata records, and
// time-limited download links
type DocumentService struct {
	documents DocumentStore
	blobs     storage.Storage
}

// DocumentServiceOption is a functional option for DocumentService
type DocumentServiceOption func(*DocumentService)

// DocumentWithDocumentStore sets the document metadata store
func DocumentWithDocumentStore(store DocumentStore) DocumentServiceOption {
	return func(s *DocumentService) {
		s.documents = store
	}
}

// DocumentWithStorage sets the blob storage backend
func DocumentWithStorage(blobs storage.Storage) DocumentServiceOption {
	return func(s *DocumentService) {
		s.blobs = blobs
	}
}

// NewDocumentService creates a new document service
func NewDocumentService(opts ...DocumentServiceOption) *DocumentService {
	s := &DocumentService{}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// UploadDocumentRequest carries a document's bytes plus the form context it
// was submitted from
type UploadDocumentRequest struct {
	UserID       string
	FileName     string
	FileType     string
	FileSize     int64
	DocumentType string
	FormURL      string
	FieldName    string
	FieldLabel   string
	ProfileID    string
	Data         io.Reader
}

// Upload stores the document bytes, then records its metadata. A metadata
// write failure after a successful blob write leaves an orphaned object;
// the blob is cheap and the metadata record is the source of truth.
func (s *DocumentService) Upload(ctx context.Context, req UploadDocumentRequest) (*models.Document, error) {
	if s.documents == nil || s.blobs == nil {
		return nil, errors.New("document service stores not set")
	}
	if req.UserID == "" {
		return nil, ErrMissingUserIdentity
	}
	if req.FileName == "" {
		return nil, errors.New("fileName is required")
	}
	if req.FileSize > maxDocumentSize {
		return nil, ErrDocumentTooLarge
	}

	documentID := uuid.New().String()
	data := req.Data
	if req.FileSize <= 0 {
		// Unknown size: enforce the cap while streaming. The upload fails
		// once the cap is crossed instead of storing a truncated copy.
		data = &sizeCappedReader{r: req.Data, remaining: maxDocumentSize}
	}

	key, err := s.blobs.Upload(ctx, req.UserID, documentID, req.FileName, data)
	if err != nil {
		return nil, fmt.Errorf("failed to upload document: %w", err)
	}

	doc := &models.Document{
		UserID:       req.UserID,
		DocumentID:   documentID,
		S3Key:        key,
		FileName:     req.FileName,
		FileType:     req.FileType,
		FileSize:     req.FileSize,
		DocumentType: req.DocumentType,
		FormURL:      req.FormURL,
		FieldName:    req.FieldName,
		FieldLabel:   req.FieldLabel,
		ProfileID:    req.ProfileID,
		SubmittedAt:  nowMillis(),
	}
	if err := s.documents.Put(ctx, doc); err != nil {
		return nil, fmt.Errorf("failed to store document metadata: %w", err)
	}

	log.Printf("Stored document %s for user %s (%s, %d bytes)",
		documentID, req.UserID, req.FileType, req.FileSize)
	return doc, nil
}

// List returns a user's document metadata records
func (s *DocumentService) List(ctx context.Context, userID string) ([]*models.Document, error) {
	if s.documents == nil {
		return nil, errors.New("document store not set")
	}
	return s.documents.ListByUser(ctx, userID)
}

// Get returns one document's metadata record
func (s *DocumentService) Get(ctx context.Context, userID, documentID string) (*models.Document, error) {
	if s.documents == nil {
		return nil, errors.New("document store not set")
	}
	doc, err := s.documents.Get(ctx, userID, documentID)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, ErrDocumentNotFound
	}
	return doc, nil
}

// PresignedURL returns a time-limited download link, addressed either by
// object key or by document id
func (s *DocumentService) PresignedURL(ctx context.Context, userID, documentID, key string) (string, error) {
	if s.blobs == nil {
		return "", errors.New("blob storage not set")
	}

	if key == "" {
		doc, err := s.Get(ctx, userID, documentID)
		if err != nil {
			return "", err
		}
		key = doc.S3Key
	}
	return s.blobs.PresignedURL(ctx, key, presignedURLExpiry)
}

// sizeCappedReader fails the stream with ErrDocumentTooLarge once more than
// the allowed number of bytes has been read
type sizeCappedReader struct {
	r         io.Reader
	remaining int64
}

func (s *sizeCappedReader) Read(p []byte) (int, error) {
	n, err := s.r.Read(p)
	s.remaining -= int64(n)
	if s.remaining < 0 {
		return n, ErrDocumentTooLarge
	}
	return n, err
}

// Delete removes a document's blob and metadata. The blob delete is
// best-effort; the metadata delete is authoritative.
func (s *DocumentService) Delete(ctx context.Context, userID, documentID string) error {
	if s.documents == nil || s.blobs == nil {
		return errors.New("document service stores not set")
	}

	doc, err := s.Get(ctx, userID, documentID)
	if err != nil {
		return err
	}

	if err := s.blobs.Delete(ctx, doc.S3Key); err != nil {
		log.Printf("Warning: failed to delete document blob %s: %v", doc.S3Key, err)
	}

	if err := s.documents.Delete(ctx, userID, documentID); err != nil {
		return fmt.Errorf("failed to delete document metadata: %w", err)
	}
	return nil
}
