package perizia

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
)

type identityContextKey struct{}

// Identity is the authenticated caller attached to the request context
// after the token gate. It reflects the token's claims only; the role is
// deliberately absent and must be read from the store when it matters.
type Identity struct {
	UserID string
	Email  string
}

// IdentityFromContext returns the identity attached by the middleware.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityContextKey{}).(Identity)
	return id, ok
}

// Middleware gates requests on a verified session token. Transport is the
// Authorization Bearer header only; cookies are never consulted.
type Middleware struct {
	Tokens *TokenIssuer
	Users  UserStore
}

// EnsureUser verifies the session token and attaches the caller's identity
// to the request context. A missing credential is a 401; a present but
// invalid, expired or wrong-purpose one is a 403.
func (m *Middleware) EnsureUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, authErr := m.authenticate(r)
		if authErr != nil {
			status := http.StatusForbidden
			if authErr.Code == ErrCodeMissingToken {
				status = http.StatusUnauthorized
			}
			writeError(w, status, authErr)
			return
		}
		ctx := context.WithValue(r.Context(), identityContextKey{}, identity)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// EnsureAdmin is the stricter gate for admin-only routes. On top of token
// verification it re-fetches the user record on every request and checks
// the stored role, so demotions and promotions apply immediately no matter
// when the token was issued.
func (m *Middleware) EnsureAdmin(next http.Handler) http.Handler {
	return m.EnsureUser(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, _ := IdentityFromContext(r.Context())
		user, err := m.Users.GetByID(r.Context(), identity.UserID)
		if err == ErrUserNotFound {
			writeError(w, http.StatusNotFound, NewAuthError(ErrCodeNotFound, "User not found", ""))
			return
		}
		if err != nil {
			storeError(w, "Failed to load user")
			return
		}
		if user.Role != RoleAdmin {
			slog.Warn("admin route denied", "user", user.ID, "role", user.Role)
			writeError(w, http.StatusForbidden, NewAuthError(ErrCodeForbidden, "Admin access required", ""))
			return
		}
		next.ServeHTTP(w, r)
	}))
}

func (m *Middleware) authenticate(r *http.Request) (Identity, *AuthError) {
	token := bearerToken(r)
	if token == "" {
		return Identity{}, NewAuthError(ErrCodeMissingToken, "Missing or malformed Authorization header", "")
	}
	claims, err := m.Tokens.Verify(token, PurposeSession)
	if err != nil {
		return Identity{}, NewAuthError(ErrCodeInvalidToken, "Invalid or expired token", "")
	}
	return Identity{UserID: claims.Subject, Email: claims.Email}, nil
}

// bearerToken extracts the token from an "Authorization: Bearer ..."
// header, returning "" when absent or malformed.
func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
