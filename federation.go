package perizia

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// FederatedProfile is the normalized identity assertion produced by the
// OAuth callback.
type FederatedProfile struct {
	ProviderID  string
	Email       string
	DisplayName string
	PictureURL  string
}

// EnsureFederatedUser exchanges a federated assertion for a local user
// record, creating one on first login.
//
// Existing users get their LastSeen touched; the profile picture is
// backfilled only when currently empty, an existing photo is never
// overwritten. New accounts require an email in the assertion and start
// with the user role.
//
// Lookup and create are not atomic, so two near-simultaneous callbacks for
// a brand new identity can race. The store's uniqueness constraint on the
// Google ID decides the winner; the loser re-fetches and proceeds as if
// the user had been found.
func EnsureFederatedUser(ctx context.Context, users UserStore, profile *FederatedProfile) (*User, error) {
	if profile.ProviderID == "" {
		return nil, fmt.Errorf("federation: assertion has no subject id")
	}

	user, err := users.GetByGoogleID(ctx, profile.ProviderID)
	if err == nil {
		return touchFederatedUser(ctx, users, user, profile)
	}
	if err != ErrUserNotFound {
		return nil, fmt.Errorf("federation: lookup failed: %w", err)
	}

	if profile.Email == "" {
		return nil, fmt.Errorf("federation: no email in assertion")
	}

	user = &User{
		ID:             uuid.NewString(),
		Email:          profile.Email,
		Username:       profile.DisplayName,
		GoogleID:       profile.ProviderID,
		ProfilePicture: profile.PictureURL,
		Role:           RoleUser,
	}
	if err := users.Create(ctx, user); err != nil {
		if err == ErrDuplicateIdentity {
			// Lost the race against an identical concurrent federation.
			existing, lookupErr := users.GetByGoogleID(ctx, profile.ProviderID)
			if lookupErr != nil {
				return nil, fmt.Errorf("federation: duplicate identity but re-fetch failed: %w", lookupErr)
			}
			return touchFederatedUser(ctx, users, existing, profile)
		}
		return nil, fmt.Errorf("federation: create failed: %w", err)
	}

	slog.Info("created federated user", "user", user.ID, "email", user.Email)
	return user, nil
}

func touchFederatedUser(ctx context.Context, users UserStore, user *User, profile *FederatedProfile) (*User, error) {
	now := time.Now()
	user.LastSeen = &now
	if user.ProfilePicture == "" && profile.PictureURL != "" {
		user.ProfilePicture = profile.PictureURL
	}
	if err := users.Save(ctx, user); err != nil {
		return nil, fmt.Errorf("federation: save failed: %w", err)
	}
	return user, nil
}
