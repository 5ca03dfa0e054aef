package perizia

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// LocalAuth serves password-based registration, login and password reset.
type LocalAuth struct {
	Users  UserStore
	Hasher *PasswordHasher
	Tokens *TokenIssuer
}

// HandleRegister processes POST /auth/register.
func (a *LocalAuth) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var reg Registration
	if err := json.NewDecoder(r.Body).Decode(&reg); err != nil {
		writeError(w, http.StatusBadRequest, NewAuthError(ErrCodeInvalidInput, "Invalid request body", ""))
		return
	}
	if authErr := reg.Validate(); authErr != nil {
		writeError(w, http.StatusBadRequest, authErr)
		return
	}

	hash, err := a.Hasher.Hash(reg.Password)
	if err != nil {
		storeError(w, "Failed to hash password")
		return
	}

	user := &User{
		ID:           uuid.NewString(),
		Email:        reg.Email,
		Username:     reg.Username,
		PasswordHash: hash,
		Role:         RoleUser,
	}
	if err := a.Users.Create(r.Context(), user); err != nil {
		if err == ErrDuplicateIdentity {
			writeError(w, http.StatusBadRequest, NewAuthError(ErrCodeEmailExists, "Email or username already registered", "email"))
			return
		}
		slog.Error("registration failed", "email", reg.Email, "err", err)
		storeError(w, "Failed to create user")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{"message": "Registration successful"})
}

// HandleLogin processes POST /auth/login. Unknown email, missing password
// hash (federation-only account) and wrong password all yield the same 401.
func (a *LocalAuth) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, NewAuthError(ErrCodeMissingField, "Email and password are required", ""))
		return
	}

	user, err := a.Users.GetByEmail(r.Context(), req.Email)
	if err == ErrUserNotFound {
		writeError(w, http.StatusUnauthorized, NewAuthError(ErrCodeInvalidCreds, "Invalid credentials", "password"))
		return
	}
	if err != nil {
		storeError(w, "Failed to load user")
		return
	}
	if !a.Hasher.VerifyPassword(req.Password, user.PasswordHash) {
		writeError(w, http.StatusUnauthorized, NewAuthError(ErrCodeInvalidCreds, "Invalid credentials", "password"))
		return
	}

	token, err := a.Tokens.IssueSession(user)
	if err != nil {
		storeError(w, "Failed to issue token")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"token": token, "user": user})
}

// HandleMe processes GET /auth/me for an authenticated caller, returning
// the current user record rather than the token's stale view of it.
func (a *LocalAuth) HandleMe(w http.ResponseWriter, r *http.Request) {
	identity, ok := IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, NewAuthError(ErrCodeMissingToken, "Not authenticated", ""))
		return
	}
	user, err := a.Users.GetByID(r.Context(), identity.UserID)
	if err == ErrUserNotFound {
		writeError(w, http.StatusNotFound, NewAuthError(ErrCodeNotFound, "User not found", ""))
		return
	}
	if err != nil {
		storeError(w, "Failed to load user")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// HandleResetRequest processes POST /auth/password-reset/request. The
// response is identical whether or not the email exists. Without an email
// sender the reset token is only logged, console-sender style.
func (a *LocalAuth) HandleResetRequest(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" {
		writeError(w, http.StatusBadRequest, NewAuthError(ErrCodeMissingField, "Email is required", "email"))
		return
	}

	user, err := a.Users.GetByEmail(r.Context(), req.Email)
	if err == nil {
		token, issueErr := a.Tokens.IssuePasswordReset(user.ID)
		if issueErr != nil {
			storeError(w, "Failed to issue reset token")
			return
		}
		slog.Info("password reset requested", "email", req.Email, "token", token)
	} else if err != ErrUserNotFound {
		storeError(w, "Failed to load user")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message": "If the email is registered, a reset link has been sent",
	})
}

// HandleResetConfirm processes POST /auth/password-reset/confirm. Only
// tokens minted with the password_reset purpose are accepted here; a
// session token is rejected the same way a forged one is.
func (a *LocalAuth) HandleResetConfirm(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token    string `json:"token"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Token == "" {
		writeError(w, http.StatusBadRequest, NewAuthError(ErrCodeMissingField, "Token is required", "token"))
		return
	}

	claims, err := a.Tokens.Verify(req.Token, PurposePasswordReset)
	if err != nil {
		writeError(w, http.StatusForbidden, NewAuthError(ErrCodeInvalidToken, "Invalid or expired reset token", "token"))
		return
	}
	if len(req.Password) < MinPasswordLength {
		writeError(w, http.StatusBadRequest, NewAuthError(ErrCodeWeakPassword, "Password must be at least 8 characters", "password"))
		return
	}

	user, err := a.Users.GetByID(r.Context(), claims.Subject)
	if err == ErrUserNotFound {
		writeError(w, http.StatusNotFound, NewAuthError(ErrCodeNotFound, "User not found", ""))
		return
	}
	if err != nil {
		storeError(w, "Failed to load user")
		return
	}

	hash, err := a.Hasher.Hash(req.Password)
	if err != nil {
		storeError(w, "Failed to hash password")
		return
	}
	user.PasswordHash = hash
	user.UpdatedAt = time.Now()
	if err := a.Users.Save(r.Context(), user); err != nil {
		storeError(w, "Failed to save user")
		return
	}

	// Previously issued session tokens stay valid until their own expiry;
	// sessions are stateless and carry no revocation hook.
	writeJSON(w, http.StatusOK, map[string]any{"message": "Password reset successfully"})
}
