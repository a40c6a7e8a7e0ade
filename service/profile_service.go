package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"formbot-backend/models"
)

// ProfileService handles direct profile CRUD and extension sync
type ProfileService struct {
	profiles ProfileStore
}

// ProfileServiceOption is a functional option for ProfileService
type ProfileServiceOption func(*ProfileService)

// ProfileWithProfileStore sets the profile store
func ProfileWithProfileStore(store ProfileStore) ProfileServiceOption {
	return func(s *ProfileService) {
		s.profiles = store
	}
}

// NewProfileService creates a new profile service
func NewProfileService(opts ...ProfileServiceOption) *ProfileService {
	s := &ProfileService{}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// UpsertProfileRequest represents a direct profile create/update
type UpsertProfileRequest struct {
	UserID      string
	ProfileID   string
	Label       string
	Fields      map[string]interface{}
	Source      string
	SourceID    string
	ProfileType string
	IsDefault   bool
}

// UpsertProfileResult reports the stored profile id and whether the call
// created or updated
type UpsertProfileResult struct {
	ProfileID string
	Action    string
}

// Upsert replaces a profile wholesale. Unlike the webhook merge path, which
// appends delivery rows, this is last-write-wins: the caller supplies the
// complete field payload and everything but the creation timestamp is
// overwritten.
func (s *ProfileService) Upsert(ctx context.Context, req UpsertProfileRequest) (*UpsertProfileResult, error) {
	if s.profiles == nil {
		return nil, errors.New("profile store not set")
	}
	if req.UserID == "" {
		return nil, ErrMissingUserIdentity
	}

	timestamp := nowMillis()
	profileID := req.ProfileID
	if profileID == "" {
		profileID = fmt.Sprintf("profile_%d", timestamp)
	}

	existing, err := s.profiles.Get(ctx, profileID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up profile: %w", err)
	}

	label := req.Label
	if label == "" {
		label = "New Profile"
	}
	source := req.Source
	if source == "" {
		source = models.SourceUser
	}

	fields := req.Fields
	if fields == nil {
		fields = map[string]interface{}{}
	}
	encoded, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("failed to encode fields: %w", err)
	}

	createdAt := timestamp
	if existing != nil && existing.CreatedAt > 0 {
		createdAt = existing.CreatedAt
	}

	profile := &models.Profile{
		ProfileID:   profileID,
		UserID:      req.UserID,
		Label:       label,
		Fields:      string(encoded),
		Source:      source,
		SourceID:    req.SourceID,
		ProfileType: req.ProfileType,
		IsDefault:   req.IsDefault,
		CreatedAt:   createdAt,
		UpdatedAt:   timestamp,
	}
	if err := s.profiles.Put(ctx, profile); err != nil {
		return nil, fmt.Errorf("failed to store profile: %w", err)
	}

	action := "created"
	if existing != nil {
		action = "updated"
	}
	return &UpsertProfileResult{ProfileID: profileID, Action: action}, nil
}

// ProfileView is a profile with its field payload decoded for API responses
type ProfileView struct {
	ProfileID   string                 `json:"profileId"`
	UserID      string                 `json:"userId"`
	Label       string                 `json:"label"`
	Fields      map[string]interface{} `json:"fields"`
	Source      string                 `json:"source"`
	SourceID    string                 `json:"sourceId,omitempty"`
	ProfileType string                 `json:"profileType,omitempty"`
	IsDefault   bool                   `json:"isDefault"`
	CreatedAt   int64                  `json:"createdAt"`
	UpdatedAt   int64                  `json:"updatedAt"`
}

// List returns the user's profiles updated after since (0 means all), with
// field payloads decoded
func (s *ProfileService) List(ctx context.Context, userID string, since int64) ([]ProfileView, error) {
	if s.profiles == nil {
		return nil, errors.New("profile store not set")
	}

	profiles, err := s.profiles.ListByUser(ctx, userID, since)
	if err != nil {
		return nil, err
	}

	views := make([]ProfileView, 0, len(profiles))
	for _, p := range profiles {
		views = append(views, ProfileView{
			ProfileID:   p.ProfileID,
			UserID:      p.UserID,
			Label:       p.Label,
			Fields:      p.FieldData(),
			Source:      p.Source,
			SourceID:    p.SourceID,
			ProfileType: p.ProfileType,
			IsDefault:   p.IsDefault,
			CreatedAt:   p.CreatedAt,
			UpdatedAt:   p.UpdatedAt,
		})
	}
	return views, nil
}

// SyncItem is the shape the extension expects for saved form data
type SyncItem struct {
	ItemID    string                 `json:"itemId"`
	Name      string                 `json:"name"`
	Data      map[string]interface{} `json:"data"`
	Timestamp int64                  `json:"timestamp"`
	Source    string                 `json:"source"`
}

// Sync returns the user's profiles changed since lastSync in the
// extension's saved-form-data shape
func (s *ProfileService) Sync(ctx context.Context, userID string, lastSync int64) ([]SyncItem, error) {
	if s.profiles == nil {
		return nil, errors.New("profile store not set")
	}

	profiles, err := s.profiles.ListByUser(ctx, userID, lastSync)
	if err != nil {
		return nil, err
	}

	items := make([]SyncItem, 0, len(profiles))
	for _, p := range profiles {
		name := p.Label
		if name == "" {
			name = "Untitled Profile"
		}
		timestamp := p.UpdatedAt
		if timestamp == 0 {
			timestamp = p.CreatedAt
		}
		source := p.Source
		if source == "" {
			source = models.SourceUser
		}
		items = append(items, SyncItem{
			ItemID:    p.ProfileID,
			Name:      name,
			Data:      p.FieldData(),
			Timestamp: timestamp,
			Source:    source,
		})
	}
	return items, nil
}
