package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"

	"formbot-backend/models"
)

// UserService handles registration and user lookups
type UserService struct {
	users    UserStore
	profiles ProfileStore
}

// UserServiceOption is a functional option for UserService
type UserServiceOption func(*UserService)

// UserWithUserStore sets the user store
func UserWithUserStore(store UserStore) UserServiceOption {
	return func(s *UserService) {
		s.users = store
	}
}

// UserWithProfileStore sets the profile store
func UserWithProfileStore(store ProfileStore) UserServiceOption {
	return func(s *UserService) {
		s.profiles = store
	}
}

// NewUserService creates a new user service
func NewUserService(opts ...UserServiceOption) *UserService {
	s := &UserService{}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RegisterRequest represents a sign-in registration
type RegisterRequest struct {
	UserID  string
	Email   string
	Name    string
	Picture string
}

// RegisterResult reports whether the registration created a new user
type RegisterResult struct {
	UserID    string
	IsNewUser bool
}

// Register upserts the user record after a sign-in. The email is normalized
// to lower-case. An existing record keeps its creation timestamp, org id
// and settings; a first-ever registration additionally creates the user's
// default empty profile. Replays are idempotent: the default profile is
// only created on the new-user branch.
func (s *UserService) Register(ctx context.Context, req RegisterRequest) (*RegisterResult, error) {
	if s.users == nil || s.profiles == nil {
		return nil, errors.New("user service stores not set")
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if req.UserID == "" || email == "" {
		return nil, ErrMissingUserIdentity
	}

	existing, err := s.users.Get(ctx, req.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	timestamp := nowMillis()
	isNewUser := existing == nil

	user := &models.User{
		UserID:         req.UserID,
		Email:          email,
		DisplayName:    req.Name,
		ProfilePicture: req.Picture,
		CreatedAt:      timestamp,
		LastLoginAt:    timestamp,
		Settings:       "{}",
	}
	if existing != nil {
		if existing.CreatedAt > 0 {
			user.CreatedAt = existing.CreatedAt
		}
		user.OrgID = existing.OrgID
		user.RegisteredEmail = existing.RegisteredEmail
		if existing.Settings != "" {
			user.Settings = existing.Settings
		}
	}

	if err := s.users.Put(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to store user: %w", err)
	}

	if isNewUser {
		profile := &models.Profile{
			ProfileID: "default_" + req.UserID,
			UserID:    req.UserID,
			Label:     "Default Profile",
			Fields:    "{}",
			Source:    models.SourceUser,
			IsDefault: true,
			CreatedAt: timestamp,
			UpdatedAt: timestamp,
		}
		if err := s.profiles.Put(ctx, profile); err != nil {
			return nil, fmt.Errorf("failed to create default profile: %w", err)
		}
		log.Printf("Created default profile for user: %s", req.UserID)
	}

	return &RegisterResult{UserID: req.UserID, IsNewUser: isNewUser}, nil
}

// RegisterEmail records an email-to-user mapping so automation tools can
// address this user by email
func (s *UserService) RegisterEmail(ctx context.Context, userID, email string) (string, error) {
	if s.users == nil {
		return "", errors.New("user store not set")
	}

	email = strings.ToLower(strings.TrimSpace(email))
	if userID == "" || email == "" {
		return "", ErrMissingUserIdentity
	}

	existing, err := s.users.Get(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("failed to look up user: %w", err)
	}
	if existing == nil {
		return "", ErrUserNotFound
	}

	if err := s.users.UpdateEmail(ctx, userID, email, nowMillis()); err != nil {
		return "", fmt.Errorf("failed to register email: %w", err)
	}
	return email, nil
}

// GetUser retrieves a user record by id
func (s *UserService) GetUser(ctx context.Context, userID string) (*models.User, error) {
	if s.users == nil {
		return nil, errors.New("user store not set")
	}

	user, err := s.users.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

// StoreEmployeeDataRequest represents a direct CRM employee-data push
type StoreEmployeeDataRequest struct {
	UserID  string
	Payload map[string]interface{}
}

// StoreEmployeeData stores a CRM employee record as a profile, keyed by the
// employee id. This is the direct API path; webhook deliveries go through
// the merge path in WebhookService instead.
func (s *UserService) StoreEmployeeData(ctx context.Context, req StoreEmployeeDataRequest) (string, error) {
	if s.profiles == nil {
		return "", errors.New("profile store not set")
	}
	if req.UserID == "" {
		return "", ErrMissingUserIdentity
	}

	timestamp := nowMillis()
	employeeID := stringValue(req.Payload, "employeeId")
	if employeeID == "" {
		employeeID = fmt.Sprintf("emp_%d", timestamp)
	}

	name := ExtractName(req.Payload, "Employee Data")

	fields := make(map[string]interface{}, len(req.Payload))
	for k, v := range req.Payload {
		if k == "userId" || k == "employeeId" {
			continue
		}
		fields[k] = v
	}
	encoded, err := json.Marshal(fields)
	if err != nil {
		return "", fmt.Errorf("failed to encode fields: %w", err)
	}

	profile := &models.Profile{
		ProfileID: "crm_" + employeeID,
		UserID:    req.UserID,
		Label:     "Employee: " + name,
		Fields:    string(encoded),
		Source:    models.SourceCRM,
		IsDefault: false,
		CreatedAt: timestamp,
		UpdatedAt: timestamp,
	}
	if err := s.profiles.Put(ctx, profile); err != nil {
		return "", fmt.Errorf("failed to store employee profile: %w", err)
	}

	return profile.ProfileID, nil
}
