package service

import (
	"context"
	"errors"
	"time"

	"formbot-backend/models"
)

// Store interfaces are satisfied by the DynamoDB repositories; tests use
// in-memory fakes. Lookups return (nil, nil) when the record is absent.

// UserStore is the durable user-identity table
type UserStore interface {
	Get(ctx context.Context, userID string) (*models.User, error)
	Put(ctx context.Context, user *models.User) error
	UpdateEmail(ctx context.Context, userID, email string, timestamp int64) error
	FindByEmail(ctx context.Context, email string) (*models.User, error)
}

// ProfileStore is the durable profile table with its by-owner index
type ProfileStore interface {
	Get(ctx context.Context, profileID string) (*models.Profile, error)
	Put(ctx context.Context, profile *models.Profile) error
	ListByUser(ctx context.Context, userID string, since int64) ([]*models.Profile, error)
	FindBySourceID(ctx context.Context, userID, sourceID string) (*models.Profile, error)
}

// DocumentStore is the durable document-metadata table
type DocumentStore interface {
	Put(ctx context.Context, doc *models.Document) error
	Get(ctx context.Context, userID, documentID string) (*models.Document, error)
	ListByUser(ctx context.Context, userID string) ([]*models.Document, error)
	Delete(ctx context.Context, userID, documentID string) error
}

// MappingStore is a live handle on the field-mapping cache
type MappingStore interface {
	GetMapping(ctx context.Context, signature string) (*models.FieldMapping, error)
	PutMapping(ctx context.Context, mapping *models.FieldMapping) error
	IncrementUsage(ctx context.Context, signature string) (int64, error)
	IncrementWriteCount(ctx context.Context, clientIP string) (int64, error)
}

var (
	ErrUserNotFound        = errors.New("user not found")
	ErrProfileNotFound     = errors.New("profile not found")
	ErrDocumentNotFound    = errors.New("document not found")
	ErrMissingUserIdentity = errors.New("userId or email is required")
	ErrEmptyPayload        = errors.New("empty request body")
	ErrInsufficientTime    = errors.New("insufficient time remaining for completion call")
	ErrRateLimited         = errors.New("daily field-mapping write limit exceeded")
)

// nowMillis returns the current time as a millisecond epoch, the timestamp
// representation every table uses
func nowMillis() int64 {
	return time.Now().UnixMilli()
}
