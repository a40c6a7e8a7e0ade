package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpsertCreatesAndUpdates(t *testing.T) {
	profiles := newFakeProfileStore()
	svc := NewProfileService(ProfileWithProfileStore(profiles))

	created, err := svc.Upsert(context.Background(), UpsertProfileRequest{
		UserID:    "u1",
		ProfileID: "p1",
		Label:     "Work",
		Fields:    map[string]interface{}{"name": "Jane", "phone": "111"},
	})
	require.NoError(t, err)
	assert.Equal(t, "created", created.Action)

	createdAt := profiles.profiles["p1"].CreatedAt

	updated, err := svc.Upsert(context.Background(), UpsertProfileRequest{
		UserID:    "u1",
		ProfileID: "p1",
		Label:     "Work",
		Fields:    map[string]interface{}{"name": "Jane"},
	})
	require.NoError(t, err)
	assert.Equal(t, "updated", updated.Action)

	// Replace semantics: the dropped field is gone, not merged.
	fields := profiles.profiles["p1"].FieldData()
	assert.Equal(t, "Jane", fields["name"])
	assert.NotContains(t, fields, "phone")
	assert.Equal(t, createdAt, profiles.profiles["p1"].CreatedAt)
}

func TestUpsertDefaults(t *testing.T) {
	profiles := newFakeProfileStore()
	svc := NewProfileService(ProfileWithProfileStore(profiles))

	result, err := svc.Upsert(context.Background(), UpsertProfileRequest{UserID: "u1"})
	require.NoError(t, err)
	require.NotEmpty(t, result.ProfileID)

	profile := profiles.profiles[result.ProfileID]
	require.NotNil(t, profile)
	assert.Equal(t, "New Profile", profile.Label)
	assert.Equal(t, "user", profile.Source)
	assert.Equal(t, "{}", profile.Fields)
}

func TestUpsertRequiresUser(t *testing.T) {
	svc := NewProfileService(ProfileWithProfileStore(newFakeProfileStore()))

	_, err := svc.Upsert(context.Background(), UpsertProfileRequest{Label: "Orphan"})
	assert.ErrorIs(t, err, ErrMissingUserIdentity)
}

func TestListDecodesFields(t *testing.T) {
	profiles := newFakeProfileStore()
	svc := NewProfileService(ProfileWithProfileStore(profiles))

	_, err := svc.Upsert(context.Background(), UpsertProfileRequest{
		UserID:    "u1",
		ProfileID: "p1",
		Fields:    map[string]interface{}{"name": "Jane"},
	})
	require.NoError(t, err)

	views, err := svc.List(context.Background(), "u1", 0)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, "Jane", views[0].Fields["name"])
}

func TestSyncShape(t *testing.T) {
	profiles := newFakeProfileStore()
	svc := NewProfileService(ProfileWithProfileStore(profiles))

	_, err := svc.Upsert(context.Background(), UpsertProfileRequest{
		UserID:    "u1",
		ProfileID: "p1",
		Label:     "Work",
		Fields:    map[string]interface{}{"name": "Jane"},
	})
	require.NoError(t, err)

	items, err := svc.Sync(context.Background(), "u1", 0)
	require.NoError(t, err)
	require.Len(t, items, 1)

	item := items[0]
	assert.Equal(t, "p1", item.ItemID)
	assert.Equal(t, "Work", item.Name)
	assert.Equal(t, "user", item.Source)
	assert.Equal(t, "Jane", item.Data["name"])
	assert.Positive(t, item.Timestamp)
}

func TestSyncFiltersByLastSync(t *testing.T) {
	profiles := newFakeProfileStore()
	svc := NewProfileService(ProfileWithProfileStore(profiles))

	_, err := svc.Upsert(context.Background(), UpsertProfileRequest{
		UserID:    "u1",
		ProfileID: "p1",
	})
	require.NoError(t, err)

	updatedAt := profiles.profiles["p1"].UpdatedAt

	items, err := svc.Sync(context.Background(), "u1", updatedAt)
	require.NoError(t, err)
	assert.Empty(t, items)

	items, err = svc.Sync(context.Background(), "u1", updatedAt-1)
	require.NoError(t, err)
	assert.Len(t, items, 1)
}
