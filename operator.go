package perizia

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

// OperatorAPI serves the survey CRUD routes available to any authenticated
// operator. Every handler runs behind Middleware.EnsureUser and scopes its
// reads and writes to the caller's own surveys.
type OperatorAPI struct {
	Users   UserStore
	Perizie PeriziaStore
}

// HandleListPerizie processes GET /operator/perizie.
func (api *OperatorAPI) HandleListPerizie(w http.ResponseWriter, r *http.Request) {
	identity, _ := IdentityFromContext(r.Context())
	perizie, err := api.Perizie.ListByOperator(r.Context(), identity.UserID)
	if err != nil {
		storeError(w, "Failed to load perizie")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"perizie": perizie, "nPerizie": len(perizie)})
}

// HandleCreatePerizia processes POST /operator/perizie. The operator is
// taken from the verified identity, never from the request body.
func (api *OperatorAPI) HandleCreatePerizia(w http.ResponseWriter, r *http.Request) {
	identity, _ := IdentityFromContext(r.Context())

	var req struct {
		TakenAt     time.Time   `json:"takenAt"`
		Coordinates Coordinates `json:"coordinates"`
		Address     string      `json:"address"`
		Description string      `json:"description"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, NewAuthError(ErrCodeInvalidInput, "Invalid request body", ""))
		return
	}
	if req.Address == "" || req.Description == "" {
		writeError(w, http.StatusBadRequest, NewAuthError(ErrCodeMissingField, "Address and description are required", ""))
		return
	}
	if req.TakenAt.IsZero() {
		req.TakenAt = time.Now()
	}

	// Generation checks the code is free but Create can still lose a race
	// against a concurrent insert, so the duplicate error retries the loop.
	var created *Perizia
	for attempt := 0; attempt < 3; attempt++ {
		code, err := GeneratePeriziaCode(r.Context(), api.Perizie)
		if err != nil {
			storeError(w, "Failed to generate perizia code")
			return
		}
		p := &Perizia{
			ID:          uuid.NewString(),
			Code:        code,
			OperatorID:  identity.UserID,
			TakenAt:     req.TakenAt,
			Coordinates: req.Coordinates,
			Address:     req.Address,
			Description: req.Description,
			Photos:      []Photo{},
			Status:      StatusInProgress,
		}
		err = api.Perizie.Create(r.Context(), p)
		if err == ErrDuplicateCode {
			continue
		}
		if err != nil {
			storeError(w, "Failed to save perizia")
			return
		}
		created = p
		break
	}
	if created == nil {
		storeError(w, "Failed to allocate a unique perizia code")
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// HandleAddPhoto processes POST /operator/perizie/{id}/photos, appending
// one photo to the array.
func (api *OperatorAPI) HandleAddPhoto(w http.ResponseWriter, r *http.Request) {
	var photo Photo
	if err := json.NewDecoder(r.Body).Decode(&photo); err != nil || photo.URL == "" {
		writeError(w, http.StatusBadRequest, NewAuthError(ErrCodeMissingField, "Photo url is required", "url"))
		return
	}

	p, ok := api.ownPerizia(w, r)
	if !ok {
		return
	}
	p.Photos = append(p.Photos, photo)
	if err := api.Perizie.Save(r.Context(), p); err != nil {
		storeError(w, "Failed to save perizia")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// HandleUpdatePerizia processes PUT /operator/perizie/{id}. Only the
// operator-editable fields are touched; review fields belong to the admin
// route.
func (api *OperatorAPI) HandleUpdatePerizia(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Description *string      `json:"description"`
		Address     *string      `json:"address"`
		Coordinates *Coordinates `json:"coordinates"`
		Status      *PeriziaStatus `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, NewAuthError(ErrCodeInvalidInput, "Invalid request body", ""))
		return
	}

	p, ok := api.ownPerizia(w, r)
	if !ok {
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
	if req.Status != nil {
		if !req.Status.Valid() {
			writeError(w, http.StatusBadRequest, NewAuthError(ErrCodeInvalidInput, "Unknown status", "status"))
			return
		}
		p.Status = *req.Status
	}
	if err := api.Perizie.Save(r.Context(), p); err != nil {
		storeError(w, "Failed to save perizia")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// HandleDeletePerizia processes DELETE /operator/perizie/{id}.
func (api *OperatorAPI) HandleDeletePerizia(w http.ResponseWriter, r *http.Request) {
	p, ok := api.ownPerizia(w, r)
	if !ok {
		return
	}
	if err := api.Perizie.Delete(r.Context(), p.ID); err != nil {
		storeError(w, "Failed to delete perizia")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "Perizia deleted"})
}

// HandleListOperators processes GET /operator/users, the operator roster
// shown in the app's assignment views.
func (api *OperatorAPI) HandleListOperators(w http.ResponseWriter, r *http.Request) {
	users, err := api.Users.ListByRole(r.Context(), RoleUser)
	if err != nil {
		storeError(w, "Failed to load users")
		return
	}
	writeJSON(w, http.StatusOK, users)
}

// ownPerizia loads the path perizia and enforces that it belongs to the
// caller. Another operator's survey reads as not found rather than
// forbidden, so the route does not leak which codes exist.
func (api *OperatorAPI) ownPerizia(w http.ResponseWriter, r *http.Request) (*Perizia, bool) {
	identity, _ := IdentityFromContext(r.Context())
	id := mux.Vars(r)["id"]

	p, err := api.Perizie.GetByID(r.Context(), id)
	if err == ErrPeriziaNotFound {
		writeError(w, http.StatusNotFound, NewAuthError(ErrCodeNotFound, "Perizia not found", ""))
		return nil, false
	}
	if err != nil {
		storeError(w, "Failed to load perizia")
		return nil, false
	}
	if p.OperatorID != identity.UserID {
		writeError(w, http.StatusNotFound, NewAuthError(ErrCodeNotFound, "Perizia not found", ""))
		return nil, false
	}
	return p, true
}
