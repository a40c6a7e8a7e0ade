package service

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"formbot-backend/models"
)

// In-memory store fakes backing the service tests.

type fakeUserStore struct {
	users map[string]*models.User
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{users: map[string]*models.User{}}
}

func (f *fakeUserStore) Get(_ context.Context, userID string) (*models.User, error) {
	return f.users[userID], nil
}

func (f *fakeUserStore) Put(_ context.Context, user *models.User) error {
	copied := *user
	f.users[user.UserID] = &copied
	return nil
}

func (f *fakeUserStore) UpdateEmail(_ context.Context, userID, email string, timestamp int64) error {
	if u, ok := f.users[userID]; ok {
		u.Email = email
		u.RegisteredEmail = email
		u.UpdatedAt = timestamp
	}
	return nil
}

func (f *fakeUserStore) FindByEmail(_ context.Context, email string) (*models.User, error) {
	needle := strings.ToLower(email)
	for _, u := range f.users {
		if strings.ToLower(u.Email) == needle || strings.ToLower(u.RegisteredEmail) == needle {
			return u, nil
		}
	}
	return nil, nil
}

type fakeProfileStore struct {
	profiles map[string]*models.Profile
}

func newFakeProfileStore() *fakeProfileStore {
	return &fakeProfileStore{profiles: map[string]*models.Profile{}}
}

func (f *fakeProfileStore) Get(_ context.Context, profileID string) (*models.Profile, error) {
	return f.profiles[profileID], nil
}

func (f *fakeProfileStore) Put(_ context.Context, profile *models.Profile) error {
	copied := *profile
	f.profiles[profile.ProfileID] = &copied
	return nil
}

func (f *fakeProfileStore) ListByUser(_ context.Context, userID string, since int64) ([]*models.Profile, error) {
	var out []*models.Profile
	for _, p := range f.profiles {
		if p.UserID == userID && (since == 0 || p.UpdatedAt > since) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt < out[j].UpdatedAt })
	return out, nil
}

func (f *fakeProfileStore) FindBySourceID(_ context.Context, userID, sourceID string) (*models.Profile, error) {
	for _, p := range f.profiles {
		if p.UserID == userID && p.SourceID == sourceID {
			return p, nil
		}
	}
	return nil, nil
}

type fakeDocumentStore struct {
	docs map[string]*models.Document
}

func newFakeDocumentStore() *fakeDocumentStore {
	return &fakeDocumentStore{docs: map[string]*models.Document{}}
}

func docKey(userID, documentID string) string {
	return userID + "/" + documentID
}

func (f *fakeDocumentStore) Put(_ context.Context, doc *models.Document) error {
	copied := *doc
	f.docs[docKey(doc.UserID, doc.DocumentID)] = &copied
	return nil
}

func (f *fakeDocumentStore) Get(_ context.Context, userID, documentID string) (*models.Document, error) {
	return f.docs[docKey(userID, documentID)], nil
}

func (f *fakeDocumentStore) ListByUser(_ context.Context, userID string) ([]*models.Document, error) {
	var out []*models.Document
	for _, d := range f.docs {
		if d.UserID == userID {
			out = append(out, d)
		}
	}
	return out, nil
}

func (f *fakeDocumentStore) Delete(_ context.Context, userID, documentID string) error {
	delete(f.docs, docKey(userID, documentID))
	return nil
}

type fakeBlobStore struct {
	objects   map[string][]byte
	deleteErr error
	deleted   []string
}

func newFakeBlobStore() *fakeBlobStore {
	return &fakeBlobStore{objects: map[string][]byte{}}
}

func (f *fakeBlobStore) Upload(_ context.Context, userID, documentID, filename string, data io.Reader) (string, error) {
	content, err := io.ReadAll(data)
	if err != nil {
		return "", err
	}
	key := fmt.Sprintf("%s/%s_%s", userID, documentID, filename)
	f.objects[key] = content
	return key, nil
}

func (f *fakeBlobStore) Download(_ context.Context, key string) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader(string(f.objects[key]))), nil
}

func (f *fakeBlobStore) Delete(_ context.Context, key string) error {
	f.deleted = append(f.deleted, key)
	if f.deleteErr != nil {
		return f.deleteErr
	}
	delete(f.objects, key)
	return nil
}

func (f *fakeBlobStore) PresignedURL(_ context.Context, key string, _ time.Duration) (string, error) {
	return "https://blobs.example.com/" + key, nil
}

type fakeMappingStore struct {
	mappings map[string]*models.FieldMapping
	usage    map[string]int64
	writes   map[string]int64
}

func newFakeMappingStore() *fakeMappingStore {
	return &fakeMappingStore{
		mappings: map[string]*models.FieldMapping{},
		usage:    map[string]int64{},
		writes:   map[string]int64{},
	}
}

func (f *fakeMappingStore) GetMapping(_ context.Context, signature string) (*models.FieldMapping, error) {
	m, ok := f.mappings[signature]
	if !ok {
		return nil, nil
	}
	copied := *m
	copied.UsageCount = f.usage[signature]
	return &copied, nil
}

func (f *fakeMappingStore) PutMapping(_ context.Context, mapping *models.FieldMapping) error {
	copied := *mapping
	f.mappings[mapping.Signature] = &copied
	return nil
}

func (f *fakeMappingStore) IncrementUsage(_ context.Context, signature string) (int64, error) {
	f.usage[signature]++
	return f.usage[signature], nil
}

func (f *fakeMappingStore) IncrementWriteCount(_ context.Context, clientIP string) (int64, error) {
	f.writes[clientIP]++
	return f.writes[clientIP], nil
}

func (f *fakeMappingStore) acquire(_ context.Context) (MappingStore, error) {
	return f, nil
}

type fakeCompleter struct {
	response string
	err      error
	prompts  []string
}

func (f *fakeCompleter) Complete(_ context.Context, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}
