package perizia

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	googleoauth "github.com/periziapp/perizia/oauth2"
)

// mapUserStore is a minimal UserStore for exercising the federation
// handoff without importing the memory package from inside this one.
type mapUserStore struct {
	users map[string]*User
}

func (s *mapUserStore) GetByEmail(_ context.Context, email string) (*User, error) {
	for _, u := range s.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, ErrUserNotFound
}

func (s *mapUserStore) GetByID(_ context.Context, id string) (*User, error) {
	if u, ok := s.users[id]; ok {
		return u, nil
	}
	return nil, ErrUserNotFound
}

func (s *mapUserStore) GetByGoogleID(_ context.Context, googleID string) (*User, error) {
	for _, u := range s.users {
		if u.GoogleID != "" && u.GoogleID == googleID {
			return u, nil
		}
	}
	return nil, ErrUserNotFound
}

func (s *mapUserStore) Create(_ context.Context, user *User) error {
	s.users[user.ID] = user
	return nil
}

func (s *mapUserStore) Save(_ context.Context, user *User) error {
	s.users[user.ID] = user
	return nil
}

func (s *mapUserStore) List(_ context.Context) ([]*User, error) {
	out := make([]*User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u)
	}
	return out, nil
}

func (s *mapUserStore) ListByRole(_ context.Context, role Role) ([]*User, error) {
	var out []*User
	for _, u := range s.users {
		if u.Role == role {
			out = append(out, u)
		}
	}
	return out, nil
}

func newFederationServer(t *testing.T) (*Server, *mapUserStore) {
	t.Helper()
	store := &mapUserStore{users: map[string]*User{}}
	srv, err := NewServer(&Config{
		JWTSecret:   "test-secret-key-for-testing-only",
		JWTIssuer:   "perizia-test",
		FrontendURL: "http://localhost:4200",
	}, store, nil)
	require.NoError(t, err)
	return srv, store
}

func TestCompleteFederationRedirectTargets(t *testing.T) {
	tests := []struct {
		name     string
		target   string
		wantHost string
		wantPath string
	}{
		{"no target stored", "", "localhost:4200", "/home"},
		{"relative path", "/dashboard", "localhost:4200", "/dashboard"},
		{"frontend origin", "http://localhost:4200/perizie", "localhost:4200", "/perizie"},
		{"foreign origin", "https://evil.example/collect", "localhost:4200", "/home"},
		{"scheme-relative foreign host", "//evil.example/collect", "localhost:4200", "/home"},
		{"frontend host on wrong scheme", "https://localhost:4200/home", "localhost:4200", "/home"},
		{"unparsable target", "http://[::1]:bad", "localhost:4200", "/home"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, store := newFederationServer(t)

			req := httptest.NewRequest(http.MethodGet, "/auth/google/callback", nil)
			rec := httptest.NewRecorder()
			srv.completeFederation(&googleoauth.Assertion{
				ProviderID:  "google-123",
				Email:       "alice@example.com",
				DisplayName: "Alice",
			}, tt.target, rec, req)

			require.Equal(t, http.StatusFound, rec.Code)
			location, err := url.Parse(rec.Header().Get("Location"))
			require.NoError(t, err)
			assert.Equal(t, tt.wantHost, location.Host)
			assert.Equal(t, tt.wantPath, location.Path)

			// The token in the query string is a real session for the
			// federated user.
			token := location.Query().Get("token")
			require.NotEmpty(t, token)
			claims, err := srv.Tokens.Verify(token, PurposeSession)
			require.NoError(t, err)
			user, err := store.GetByGoogleID(context.Background(), "google-123")
			require.NoError(t, err)
			assert.Equal(t, user.ID, claims.Subject)
		})
	}
}

func TestCompleteFederationRejectsBadAssertion(t *testing.T) {
	srv, _ := newFederationServer(t)

	// A brand new identity without an email cannot be provisioned.
	req := httptest.NewRequest(http.MethodGet, "/auth/google/callback", nil)
	rec := httptest.NewRecorder()
	srv.completeFederation(&googleoauth.Assertion{ProviderID: "google-123"}, "", rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
