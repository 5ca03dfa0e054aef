package perizia_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/periziapp/perizia"
	"github.com/periziapp/perizia/stores/memory"
)

func newLocalAuth(t *testing.T) (*perizia.LocalAuth, *memory.UserStore) {
	t.Helper()
	users := memory.NewUserStore()
	return &perizia.LocalAuth{
		Users:  users,
		Hasher: perizia.NewPasswordHasher(),
		Tokens: newTestIssuer(t),
	}, users
}

func postJSON(handler http.HandlerFunc, path string, body any) *httptest.ResponseRecorder {
	raw, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body
}

func TestRegisterAndLogin(t *testing.T) {
	auth, users := newLocalAuth(t)

	rec := postJSON(auth.HandleRegister, "/auth/register", perizia.Registration{
		Username: "alice",
		Email:    "alice@example.com",
		Password: "password123",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	// The stored hash is salted, never the plaintext.
	stored, err := users.GetByEmail(context.Background(), "alice@example.com")
	require.NoError(t, err)
	assert.NotEqual(t, "password123", stored.PasswordHash)
	assert.Equal(t, perizia.RoleUser, stored.Role)

	rec = postJSON(auth.HandleLogin, "/auth/login", map[string]string{
		"email":    "alice@example.com",
		"password": "password123",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	token, _ := body["token"].(string)
	require.NotEmpty(t, token)

	claims, err := auth.Tokens.Verify(token, perizia.PurposeSession)
	require.NoError(t, err)
	assert.Equal(t, stored.ID, claims.Subject)
	assert.Equal(t, "alice@example.com", claims.Email)

	// The password hash never leaks into the login response.
	userBody, _ := body["user"].(map[string]any)
	require.NotNil(t, userBody)
	_, leaked := userBody["passwordHash"]
	assert.False(t, leaked)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	auth, _ := newLocalAuth(t)
	reg := perizia.Registration{Username: "alice", Email: "alice@example.com", Password: "password123"}

	rec := postJSON(auth.HandleRegister, "/auth/register", reg)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = postJSON(auth.HandleRegister, "/auth/register", reg)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, perizia.ErrCodeEmailExists, decodeBody(t, rec)["code"])
}

func TestLoginFailuresAreUniform(t *testing.T) {
	auth, users := newLocalAuth(t)

	rec := postJSON(auth.HandleRegister, "/auth/register", perizia.Registration{
		Username: "alice", Email: "alice@example.com", Password: "password123",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	// Federation-only account with no password hash at all.
	require.NoError(t, users.Create(context.Background(), &perizia.User{
		ID: "user-fed", Email: "fed@example.com", Username: "fed", Role: perizia.RoleUser,
	}))

	tests := []struct {
		name  string
		email string
		pass  string
	}{
		{"unknown email", "nobody@example.com", "password123"},
		{"wrong password", "alice@example.com", "wrong-password"},
		{"federation-only account", "fed@example.com", "password123"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postJSON(auth.HandleLogin, "/auth/login", map[string]string{
				"email": tt.email, "password": tt.pass,
			})
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Equal(t, perizia.ErrCodeInvalidCreds, decodeBody(t, rec)["code"])
		})
	}
}

func TestLoginMissingFields(t *testing.T) {
	auth, _ := newLocalAuth(t)
	rec := postJSON(auth.HandleLogin, "/auth/login", map[string]string{"email": "alice@example.com"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPasswordResetFlow(t *testing.T) {
	auth, users := newLocalAuth(t)
	hash, err := auth.Hasher.Hash("old-password-1")
	require.NoError(t, err)
	require.NoError(t, users.Create(context.Background(), &perizia.User{
		ID: "user-alice", Email: "alice@example.com", Username: "alice",
		PasswordHash: hash, Role: perizia.RoleUser,
	}))

	// The request endpoint answers identically for known and unknown emails.
	known := postJSON(auth.HandleResetRequest, "/auth/password-reset/request",
		map[string]string{"email": "alice@example.com"})
	unknown := postJSON(auth.HandleResetRequest, "/auth/password-reset/request",
		map[string]string{"email": "nobody@example.com"})
	assert.Equal(t, http.StatusOK, known.Code)
	assert.Equal(t, http.StatusOK, unknown.Code)
	assert.Equal(t, known.Body.String(), unknown.Body.String())

	reset, err := auth.Tokens.IssuePasswordReset("user-alice")
	require.NoError(t, err)

	rec := postJSON(auth.HandleResetConfirm, "/auth/password-reset/confirm",
		map[string]string{"token": reset, "password": "new-password-1"})
	require.Equal(t, http.StatusOK, rec.Code)

	updated, err := users.GetByID(context.Background(), "user-alice")
	require.NoError(t, err)
	assert.True(t, auth.Hasher.VerifyPassword("new-password-1", updated.PasswordHash))
	assert.False(t, auth.Hasher.VerifyPassword("old-password-1", updated.PasswordHash))
}

func TestResetConfirmRejectsSessionToken(t *testing.T) {
	auth, users := newLocalAuth(t)
	user := seedUser(t, users, "user-alice", "alice@example.com", perizia.RoleUser)

	session, err := auth.Tokens.IssueSession(user)
	require.NoError(t, err)

	rec := postJSON(auth.HandleResetConfirm, "/auth/password-reset/confirm",
		map[string]string{"token": session, "password": "new-password-1"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, perizia.ErrCodeInvalidToken, decodeBody(t, rec)["code"])
}

func TestResetConfirmRejectsWeakPassword(t *testing.T) {
	auth, users := newLocalAuth(t)
	seedUser(t, users, "user-alice", "alice@example.com", perizia.RoleUser)

	reset, err := auth.Tokens.IssuePasswordReset("user-alice")
	require.NoError(t, err)

	rec := postJSON(auth.HandleResetConfirm, "/auth/password-reset/confirm",
		map[string]string{"token": reset, "password": "short"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, perizia.ErrCodeWeakPassword, decodeBody(t, rec)["code"])
}
