package perizia

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

// AdminAPI serves the management routes. Every handler runs behind
// Middleware.EnsureAdmin, which re-reads the caller's role from the store
// on each request.
type AdminAPI struct {
	Users   UserStore
	Perizie PeriziaStore
	Hasher  *PasswordHasher
}

// HandleListAllPerizie processes GET /admin/perizie.
func (api *AdminAPI) HandleListAllPerizie(w http.ResponseWriter, r *http.Request) {
	perizie, err := api.Perizie.ListAll(r.Context())
	if err != nil {
		storeError(w, "Failed to load perizie")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"perizie": perizie, "nPerizie": len(perizie)})
}

// HandleListUsers processes GET /admin/users, each user bundled with their
// surveys.
func (api *AdminAPI) HandleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := api.Users.List(r.Context())
	if err != nil {
		storeError(w, "Failed to load users")
		return
	}

	type userWithPerizie struct {
		*User
		Perizie []*Perizia `json:"perizie"`
	}
	out := make([]userWithPerizie, 0, len(users))
	for _, u := range users {
		perizie, err := api.Perizie.ListByOperator(r.Context(), u.ID)
		if err != nil {
			storeError(w, "Failed to load perizie")
			return
		}
		out = append(out, userWithPerizie{User: u, Perizie: perizie})
	}
	writeJSON(w, http.StatusOK, map[string]any{"utenti": out})
}

// HandleDashboard processes GET /admin/users/overview: every operator with
// their count of in-progress surveys.
func (api *AdminAPI) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	operators, err := api.Users.ListByRole(r.Context(), RoleUser)
	if err != nil {
		storeError(w, "Failed to load users")
		return
	}

	type operatorSummary struct {
		ID              string `json:"id"`
		Username        string `json:"username"`
		Email           string `json:"email"`
		ProfilePicture  string `json:"profilePicture,omitempty"`
		InProgressCount int64  `json:"inProgressCount"`
	}
	out := make([]operatorSummary, 0, len(operators))
	for _, u := range operators {
		count, err := api.Perizie.CountByOperatorStatus(r.Context(), u.ID, StatusInProgress)
		if err != nil {
			storeError(w, "Failed to count perizie")
			return
		}
		out = append(out, operatorSummary{
			ID:              u.ID,
			Username:        u.Username,
			Email:           u.Email,
			ProfilePicture:  u.ProfilePicture,
			InProgressCount: count,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"utenti": out})
}

// HandleCreateUser processes POST /admin/users: account provisioning with
// an explicit role.
func (api *AdminAPI) HandleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Registration
		Role Role `json:"role"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, NewAuthError(ErrCodeInvalidInput, "Invalid request body", ""))
		return
	}
	if authErr := req.Validate(); authErr != nil {
		writeError(w, http.StatusBadRequest, authErr)
		return
	}
	if req.Role == "" {
		req.Role = RoleUser
	}
	if !req.Role.Valid() {
		writeError(w, http.StatusBadRequest, NewAuthError(ErrCodeInvalidInput, "Unknown role", "role"))
		return
	}

	hash, err := api.Hasher.Hash(req.Password)
	if err != nil {
		storeError(w, "Failed to hash password")
		return
	}
	user := &User{
		ID:           uuid.NewString(),
		Email:        req.Email,
		Username:     req.Username,
		PasswordHash: hash,
		Role:         req.Role,
	}
	if err := api.Users.Create(r.Context(), user); err != nil {
		if err == ErrDuplicateIdentity {
			writeError(w, http.StatusBadRequest, NewAuthError(ErrCodeEmailExists, "Email or username already registered", "email"))
			return
		}
		storeError(w, "Failed to create user")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"message": "User created", "user": user})
}

// HandleListOperatorPerizie processes GET /admin/users/{id}/perizie.
func (api *AdminAPI) HandleListOperatorPerizie(w http.ResponseWriter, r *http.Request) {
	operatorID := mux.Vars(r)["id"]
	perizie, err := api.Perizie.ListByOperator(r.Context(), operatorID)
	if err != nil {
		storeError(w, "Failed to load perizie")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"perizie": perizie, "nPerizie": len(perizie)})
}

// HandleReviewPerizia processes PUT /admin/perizie/{id}: field updates plus
// the reviewing admin's snapshot and timestamp.
func (api *AdminAPI) HandleReviewPerizia(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Description *string        `json:"description"`
		Address     *string        `json:"address"`
		Coordinates *Coordinates   `json:"coordinates"`
		Status      *PeriziaStatus `json:"status"`
		Photos      *[]Photo       `json:"photos"`
		Comment     string         `json:"comment"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, NewAuthError(ErrCodeInvalidInput, "Invalid request body", ""))
		return
	}

	p, err := api.Perizie.GetByID(r.Context(), mux.Vars(r)["id"])
	if err == ErrPeriziaNotFound {
		writeError(w, http.StatusNotFound, NewAuthError(ErrCodeNotFound, "Perizia not found", ""))
		return
	}
	if err != nil {
		storeError(w, "Failed to load perizia")
		return
	}

	if req.Description != nil {
		p.Description = *req.Description
	}
	if req.Address != nil {
		p.Address = *req.Address
	}
	if req.Coordinates != nil {
		p.Coordinates = *req.Coordinates
	}
	if req.Photos != nil {
		p.Photos = *req.Photos
	}
	if req.Status != nil {
		if !req.Status.Valid() {
			writeError(w, http.StatusBadRequest, NewAuthError(ErrCodeInvalidInput, "Unknown status", "status"))
			return
		}
		p.Status = *req.Status
	}

	identity, _ := IdentityFromContext(r.Context())
	admin, err := api.Users.GetByID(r.Context(), identity.UserID)
	if err != nil {
		storeError(w, "Failed to load admin user")
		return
	}
	now := time.Now()
	p.Review = &AdminReview{
		AdminID:        admin.ID,
		Username:       admin.Username,
		ProfilePicture: admin.ProfilePicture,
		Comment:        req.Comment,
	}
	p.ReviewedAt = &now

	if err := api.Perizie.Save(r.Context(), p); err != nil {
		storeError(w, "Failed to save perizia")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "Perizia updated", "perizia": p})
}

// HandleDeletePerizia processes DELETE /admin/perizie/{id}.
func (api *AdminAPI) HandleDeletePerizia(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if _, err := api.Perizie.GetByID(r.Context(), id); err == ErrPeriziaNotFound {
		writeError(w, http.StatusNotFound, NewAuthError(ErrCodeNotFound, "Perizia not found", ""))
		return
	} else if err != nil {
		storeError(w, "Failed to load perizia")
		return
	}
	if err := api.Perizie.Delete(r.Context(), id); err != nil {
		storeError(w, "Failed to delete perizia")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "Perizia deleted"})
}
