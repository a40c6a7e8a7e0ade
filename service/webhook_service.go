package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"

	"formbot-backend/models"
)

// WebhookService normalizes inbound automation deliveries into profile
// records, enforcing one profile per logical source
type WebhookService struct {
	users    UserStore
	profiles ProfileStore
}

// WebhookServiceOption is a functional option for WebhookService
type WebhookServiceOption func(*WebhookService)

// WebhookWithUserStore sets the user store
func WebhookWithUserStore(store UserStore) WebhookServiceOption {
	return func(s *WebhookService) {
		s.users = store
	}
}

// WebhookWithProfileStore sets the profile store
func WebhookWithProfileStore(store ProfileStore) WebhookServiceOption {
	return func(s *WebhookService) {
		s.profiles = store
	}
}

// NewWebhookService creates a new webhook service
func NewWebhookService(opts ...WebhookServiceOption) *WebhookService {
	s := &WebhookService{}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// IngestRequest is one webhook delivery: the decoded JSON payload plus the
// request headers automation tools stash metadata in
type IngestRequest struct {
	Payload map[string]interface{}
	Headers http.Header
}

// IngestResult describes where the delivery landed
type IngestResult struct {
	ProfileID   string
	UserID      string
	Label       string
	Source      string
	ProfileType string
	Action      string
	FieldCount  int
}

// Ingest resolves the delivery to a stored user, classifies its origin,
// derives the stable profile id, and appends the delivery's fields as a new
// row on the target profile (creating it on first delivery). Two concurrent
// deliveries to the same profile id are a read-modify-write race and one
// update can be lost; that is an accepted limitation of this path.
func (s *WebhookService) Ingest(ctx context.Context, req IngestRequest) (*IngestResult, error) {
	if s.users == nil || s.profiles == nil {
		return nil, errors.New("webhook service stores not set")
	}
	if len(req.Payload) == 0 {
		return nil, ErrEmptyPayload
	}

	userID, err := s.resolveUser(ctx, req.Payload, req.Headers)
	if err != nil {
		return nil, err
	}

	zapID := firstHeader(req.Headers, zapIDHeaders)
	kind := DetectSource(req.Payload)
	profileID := DeriveProfileID(kind, req.Payload, zapID, userID)
	sourceID := DeriveSourceID(kind, req.Payload, zapID, userID)
	fields := StripMetadata(req.Payload)

	log.Printf("Webhook for user %s classified as %s, profile %s (%d fields)",
		userID, kind, profileID, len(fields))

	existing, err := s.profiles.Get(ctx, profileID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up profile: %w", err)
	}
	if existing != nil && existing.UserID != userID {
		// Ownership mismatch invalidates the candidate; never merge a
		// delivery into another user's profile.
		log.Printf("Warning: profile %s owned by another user, ignoring match", profileID)
		existing = nil
	}

	// CRM deliveries that miss by id get a secondary lookup by grouping id.
	if existing == nil && kind == SourceKindCRM && sourceID != "" {
		existing, err = s.profiles.FindBySourceID(ctx, userID, sourceID)
		if err != nil {
			return nil, fmt.Errorf("failed to look up profile by sourceId: %w", err)
		}
		if existing != nil {
			profileID = existing.ProfileID
		}
	}

	var rows []map[string]interface{}
	if existing != nil {
		rows = existing.Rows()
	}

	newRow := make(map[string]interface{}, len(fields)+1)
	for k, v := range fields {
		newRow[k] = v
	}
	newRow["row"] = RowNumber(req.Payload, len(rows))
	rows = append(rows, newRow)

	encoded, err := json.Marshal(map[string]interface{}{"rows": rows})
	if err != nil {
		return nil, fmt.Errorf("failed to encode rows: %w", err)
	}

	timestamp := nowMillis()
	createdAt := timestamp
	if existing != nil && existing.CreatedAt > 0 {
		createdAt = existing.CreatedAt
	}

	source := models.SourceGoogleSheets
	profileType := models.SourceGoogleSheets
	if kind == SourceKindCRM {
		source = models.SourceZapier
		profileType = stringValue(req.Payload, "profileType")
		if profileType == "" {
			profileType = models.SourceZapier
		}
	}

	profile := &models.Profile{
		ProfileID:   profileID,
		UserID:      userID,
		Label:       ProfileLabel(kind, req.Payload),
		Fields:      string(encoded),
		Source:      source,
		SourceID:    sourceID,
		ProfileType: profileType,
		IsDefault:   false,
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
	log.Printf("Profile %s: %s for user %s (%d rows)", action, profileID, userID, len(rows))

	return &IngestResult{
		ProfileID:   profileID,
		UserID:      userID,
		Label:       profile.Label,
		Source:      source,
		ProfileType: profileType,
		Action:      action,
		FieldCount:  len(fields),
	}, nil
}

// resolveUser decides which stored user a delivery belongs to. The chain:
// a direct userId field; an email located by the ordered body key list (a
// known-but-unregistered email is a hard 404 stop); emails from known
// header conventions; Google-account email keys in the body. An unresolved
// delivery never creates a profile.
func (s *WebhookService) resolveUser(ctx context.Context, payload map[string]interface{}, headers http.Header) (string, error) {
	if userID := stringValue(payload, "userId"); userID != "" {
		return userID, nil
	}

	if email := FindEmail(payload, bodyEmailKeys); email != "" {
		user, err := s.users.FindByEmail(ctx, email)
		if err != nil {
			return "", fmt.Errorf("failed to look up user by email: %w", err)
		}
		if user == nil {
			log.Printf("Webhook email not registered: %s", email)
			return "", ErrUserNotFound
		}
		return user.UserID, nil
	}

	for _, name := range headerEmailKeys {
		email := normalizeEmail(headers.Get(name))
		if email == "" {
			continue
		}
		user, err := s.users.FindByEmail(ctx, email)
		if err != nil {
			return "", fmt.Errorf("failed to look up user by header email: %w", err)
		}
		if user != nil {
			return user.UserID, nil
		}
	}

	if email := FindEmail(payload, googleEmailKeys); email != "" {
		user, err := s.users.FindByEmail(ctx, email)
		if err != nil {
			return "", fmt.Errorf("failed to look up user by account email: %w", err)
		}
		if user != nil {
			return user.UserID, nil
		}
	}

	return "", ErrMissingUserIdentity
}

func firstHeader(headers http.Header, names []string) string {
	for _, name := range names {
		if v := headers.Get(name); v != "" {
			return v
		}
	}
	return ""
}
