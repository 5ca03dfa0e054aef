package perizia_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/periziapp/perizia"
	"github.com/periziapp/perizia/stores/memory"
)

func TestEnsureFederatedUserCreatesOnFirstLogin(t *testing.T) {
	users := memory.NewUserStore()
	profile := &perizia.FederatedProfile{
		ProviderID:  "google-123",
		Email:       "alice@example.com",
		DisplayName: "Alice",
		PictureURL:  "https://lh3.example.com/alice.jpg",
	}

	user, err := perizia.EnsureFederatedUser(context.Background(), users, profile)
	require.NoError(t, err)
	assert.NotEmpty(t, user.ID)
	assert.Equal(t, "alice@example.com", user.Email)
	assert.Equal(t, "google-123", user.GoogleID)
	assert.Equal(t, "https://lh3.example.com/alice.jpg", user.ProfilePicture)
	assert.Equal(t, perizia.RoleUser, user.Role)
	// LastSeen is only stamped on re-login, never at creation.
	assert.Nil(t, user.LastSeen)

	// Second login finds the same account instead of minting another.
	again, err := perizia.EnsureFederatedUser(context.Background(), users, profile)
	require.NoError(t, err)
	assert.Equal(t, user.ID, again.ID)
	assert.NotNil(t, again.LastSeen)

	all, err := users.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestEnsureFederatedUserTouchesLastSeen(t *testing.T) {
	users := memory.NewUserStore()
	old := time.Now().Add(-24 * time.Hour)
	require.NoError(t, users.Create(context.Background(), &perizia.User{
		ID: "user-alice", Email: "alice@example.com", Username: "Alice",
		GoogleID: "google-123", Role: perizia.RoleUser, LastSeen: &old,
	}))

	user, err := perizia.EnsureFederatedUser(context.Background(), users, &perizia.FederatedProfile{
		ProviderID: "google-123", Email: "alice@example.com",
	})
	require.NoError(t, err)
	require.NotNil(t, user.LastSeen)
	assert.True(t, user.LastSeen.After(old))
}

func TestEnsureFederatedUserBackfillsPictureOnlyWhenEmpty(t *testing.T) {
	users := memory.NewUserStore()
	require.NoError(t, users.Create(context.Background(), &perizia.User{
		ID: "user-a", Email: "a@example.com", Username: "a",
		GoogleID: "google-a", Role: perizia.RoleUser,
	}))
	require.NoError(t, users.Create(context.Background(), &perizia.User{
		ID: "user-b", Email: "b@example.com", Username: "b",
		GoogleID: "google-b", Role: perizia.RoleUser,
		ProfilePicture: "https://example.com/custom.jpg",
	}))

	a, err := perizia.EnsureFederatedUser(context.Background(), users, &perizia.FederatedProfile{
		ProviderID: "google-a", Email: "a@example.com", PictureURL: "https://example.com/new.jpg",
	})
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/new.jpg", a.ProfilePicture)

	// An existing picture is never overwritten.
	b, err := perizia.EnsureFederatedUser(context.Background(), users, &perizia.FederatedProfile{
		ProviderID: "google-b", Email: "b@example.com", PictureURL: "https://example.com/other.jpg",
	})
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/custom.jpg", b.ProfilePicture)
}

func TestEnsureFederatedUserRequiresEmailForNewAccounts(t *testing.T) {
	users := memory.NewUserStore()
	_, err := perizia.EnsureFederatedUser(context.Background(), users, &perizia.FederatedProfile{
		ProviderID: "google-123",
	})
	require.Error(t, err)

	// An existing account does not need the email repeated.
	require.NoError(t, users.Create(context.Background(), &perizia.User{
		ID: "user-alice", Email: "alice@example.com", Username: "Alice",
		GoogleID: "google-456", Role: perizia.RoleUser,
	}))
	user, err := perizia.EnsureFederatedUser(context.Background(), users, &perizia.FederatedProfile{
		ProviderID: "google-456",
	})
	require.NoError(t, err)
	assert.Equal(t, "user-alice", user.ID)
}

func TestEnsureFederatedUserRejectsEmptySubject(t *testing.T) {
	_, err := perizia.EnsureFederatedUser(context.Background(), memory.NewUserStore(), &perizia.FederatedProfile{
		Email: "alice@example.com",
	})
	require.Error(t, err)
}

// racingUserStore simulates losing the create race: a concurrent callback
// inserts the identity between our lookup and our create.
type racingUserStore struct {
	*memory.UserStore
	raced bool
}

func (s *racingUserStore) Create(ctx context.Context, user *perizia.User) error {
	if !s.raced {
		s.raced = true
		rival := *user
		rival.ID = "user-rival"
		if err := s.UserStore.Create(ctx, &rival); err != nil {
			return err
		}
	}
	return s.UserStore.Create(ctx, user)
}

func TestEnsureFederatedUserSurvivesCreateRace(t *testing.T) {
	store := &racingUserStore{UserStore: memory.NewUserStore()}

	user, err := perizia.EnsureFederatedUser(context.Background(), store, &perizia.FederatedProfile{
		ProviderID: "google-123", Email: "alice@example.com", DisplayName: "Alice",
	})
	require.NoError(t, err)
	assert.Equal(t, "user-rival", user.ID)

	all, err := store.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, all, 1)
}
