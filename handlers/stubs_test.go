package handlers

import (
	"context"
	"io"
	"strings"
	"time"

	"formbot-backend/models"
)

// In-memory store stubs backing the handler tests.

type stubUserStore struct {
	users map[string]*models.User
}

func newStubUserStore() *stubUserStore {
	return &stubUserStore{users: map[string]*models.User{}}
}

func (s *stubUserStore) Get(_ context.Context, userID string) (*models.User, error) {
	return s.users[userID], nil
}

func (s *stubUserStore) Put(_ context.Context, user *models.User) error {
	copied := *user
	s.users[user.UserID] = &copied
	return nil
}

func (s *stubUserStore) UpdateEmail(_ context.Context, userID, email string, timestamp int64) error {
	if u, ok := s.users[userID]; ok {
		u.Email = email
		u.RegisteredEmail = email
		u.UpdatedAt = timestamp
	}
	return nil
}

func (s *stubUserStore) FindByEmail(_ context.Context, email string) (*models.User, error) {
	needle := strings.ToLower(email)
	for _, u := range s.users {
		if strings.ToLower(u.Email) == needle || strings.ToLower(u.RegisteredEmail) == needle {
			return u, nil
		}
	}
	return nil, nil
}

type stubProfileStore struct {
	profiles map[string]*models.Profile
}

func newStubProfileStore() *stubProfileStore {
	return &stubProfileStore{profiles: map[string]*models.Profile{}}
}

func (s *stubProfileStore) Get(_ context.Context, profileID string) (*models.Profile, error) {
	return s.profiles[profileID], nil
}

func (s *stubProfileStore) Put(_ context.Context, profile *models.Profile) error {
	copied := *profile
	s.profiles[profile.ProfileID] = &copied
	return nil
}

func (s *stubProfileStore) ListByUser(_ context.Context, userID string, since int64) ([]*models.Profile, error) {
	var out []*models.Profile
	for _, p := range s.profiles {
		if p.UserID == userID && (since == 0 || p.UpdatedAt > since) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *stubProfileStore) FindBySourceID(_ context.Context, userID, sourceID string) (*models.Profile, error) {
	for _, p := range s.profiles {
		if p.UserID == userID && p.SourceID == sourceID {
			return p, nil
		}
	}
	return nil, nil
}

type stubDocumentStore struct {
	docs map[string]*models.Document
}

func newStubDocumentStore() *stubDocumentStore {
	return &stubDocumentStore{docs: map[string]*models.Document{}}
}

func (s *stubDocumentStore) Put(_ context.Context, doc *models.Document) error {
	copied := *doc
	s.docs[doc.UserID+"/"+doc.DocumentID] = &copied
	return nil
}

func (s *stubDocumentStore) Get(_ context.Context, userID, documentID string) (*models.Document, error) {
	return s.docs[userID+"/"+documentID], nil
}

func (s *stubDocumentStore) ListByUser(_ context.Context, userID string) ([]*models.Document, error) {
	var out []*models.Document
	for _, d := range s.docs {
		if d.UserID == userID {
			out = append(out, d)
		}
	}
	return out, nil
}

func (s *stubDocumentStore) Delete(_ context.Context, userID, documentID string) error {
	delete(s.docs, userID+"/"+documentID)
	return nil
}

type stubBlobStore struct {
	objects map[string][]byte
}

func newStubBlobStore() *stubBlobStore {
	return &stubBlobStore{objects: map[string][]byte{}}
}

func (s *stubBlobStore) Upload(_ context.Context, userID, documentID, filename string, data io.Reader) (string, error) {
	content, err := io.ReadAll(data)
	if err != nil {
		return "", err
	}
	key := userID + "/" + documentID + "_" + filename
	s.objects[key] = content
	return key, nil
}

func (s *stubBlobStore) Download(_ context.Context, key string) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader(string(s.objects[key]))), nil
}

func (s *stubBlobStore) Delete(_ context.Context, key string) error {
	delete(s.objects, key)
	return nil
}

func (s *stubBlobStore) PresignedURL(_ context.Context, key string, _ time.Duration) (string, error) {
	return "https://blobs.example.com/" + key, nil
}
