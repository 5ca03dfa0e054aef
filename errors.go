package perizia

import (
	"encoding/json"
	"errors"
	"net/http"
)

// Sentinel errors reported by stores and the auth components. Handlers map
// these to stable client-facing codes; nothing here crashes the process.
var (
	// ErrUserNotFound indicates the referenced user does not exist.
	ErrUserNotFound = errors.New("user not found")
	// ErrPeriziaNotFound indicates the referenced perizia does not exist.
	ErrPeriziaNotFound = errors.New("perizia not found")
	// ErrDuplicateIdentity indicates an email, username or Google ID collision.
	ErrDuplicateIdentity = errors.New("identity already registered")
	// ErrDuplicateCode indicates a perizia code collision.
	ErrDuplicateCode = errors.New("perizia code already in use")
	// ErrInvalidToken indicates a token with a bad signature, malformed
	// payload, wrong purpose, or one past its expiry.
	ErrInvalidToken = errors.New("invalid token")
	// ErrMissingCredential indicates no token was presented at all.
	ErrMissingCredential = errors.New("missing credential")
)

// Error codes returned in JSON error bodies.
const (
	ErrCodeMissingToken  = "missing_token"
	ErrCodeInvalidToken  = "invalid_token"
	ErrCodeInvalidCreds  = "invalid_credentials"
	ErrCodeEmailExists   = "email_exists"
	ErrCodeMissingField  = "missing_field"
	ErrCodeInvalidEmail  = "invalid_email"
	ErrCodeWeakPassword  = "weak_password"
	ErrCodeForbidden     = "forbidden"
	ErrCodeNotFound      = "not_found"
	ErrCodeInvalidInput  = "invalid_input"
	ErrCodeServerError   = "server_error"
	ErrCodeFederation    = "federation_failed"
)

// AuthError is a client-facing error with a stable code and an optional
// offending field.
type AuthError struct {
	Code    string `json:"code"`
	Message string `json:"error"`
	Field   string `json:"field,omitempty"`
}

func NewAuthError(code, message, field string) *AuthError {
	return &AuthError{Code: code, Message: message, Field: field}
}

func (e *AuthError) Error() string {
	return e.Message
}

// writeError sends a JSON error body with the given status code.
func writeError(w http.ResponseWriter, status int, err *AuthError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(err)
}

// writeJSON sends a JSON success body.
func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// storeError maps an unexpected store failure to a 500 response.
func storeError(w http.ResponseWriter, msg string) {
	writeError(w, http.StatusInternalServerError, NewAuthError(ErrCodeServerError, msg, ""))
}
