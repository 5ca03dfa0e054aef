package perizia

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Token purposes. A token is only accepted by endpoints that expect its
// purpose: reset tokens cannot double as sessions and vice versa.
const (
	PurposeSession       = "session"
	PurposePasswordReset = "password_reset"
)

// Default token lifetimes.
const (
	DefaultSessionTTL = 7 * 24 * time.Hour
	PasswordResetTTL  = 1 * time.Hour
)

// Claims is the signed session payload: the subject's user ID, their email
// (omitted on reset tokens) and the purpose the token was minted for.
type Claims struct {
	jwt.RegisteredClaims
	Email   string `json:"email,omitempty"`
	Purpose string `json:"purpose"`
}

// TokenIssuer mints and verifies HS256-signed tokens with a process-wide
// secret. The secret is injected once at startup; there is no fallback.
type TokenIssuer struct {
	secret     []byte
	issuer     string
	sessionTTL time.Duration
}

// NewTokenIssuer returns an issuer for the given secret. An empty secret is
// a configuration error, never silently defaulted.
func NewTokenIssuer(secret, issuer string, sessionTTL time.Duration) (*TokenIssuer, error) {
	if secret == "" {
		return nil, fmt.Errorf("token issuer: signing secret is required")
	}
	if sessionTTL <= 0 {
		sessionTTL = DefaultSessionTTL
	}
	return &TokenIssuer{secret: []byte(secret), issuer: issuer, sessionTTL: sessionTTL}, nil
}

// IssueSession mints a session token for the user.
func (t *TokenIssuer) IssueSession(user *User) (string, error) {
	return t.issue(user.ID, user.Email, PurposeSession, t.sessionTTL)
}

// IssuePasswordReset mints a short-lived reset token. It carries only the
// subject and purpose, no email.
func (t *TokenIssuer) IssuePasswordReset(userID string) (string, error) {
	return t.issue(userID, "", PurposePasswordReset, PasswordResetTTL)
}

func (t *TokenIssuer) issue(subject, email, purpose string, ttl time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    t.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Email:   email,
		Purpose: purpose,
	})

	signed, err := token.SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Verify parses and validates a token, checking signature, expiry and that
// it was minted for the expected purpose. All failures collapse into
// ErrInvalidToken so callers cannot distinguish a forged token from a stale
// one.
func (t *TokenIssuer) Verify(tokenString, purpose string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return t.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Subject == "" || claims.Purpose != purpose {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// SessionTTL reports the configured session lifetime.
func (t *TokenIssuer) SessionTTL() time.Duration {
	return t.sessionTTL
}
