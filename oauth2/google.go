// Package oauth2 implements the Google sign-in flow: the redirect to
// Google with a state nonce, and the callback that exchanges the code and
// turns Google's identity into a normalized assertion for the caller's
// HandleUser callback.
package oauth2

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/alexedwards/scs/v2"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/idtoken"
)

const (
	stateSessionKey    = "oauthState"
	callbackSessionKey = "oauthCallbackURL"

	userinfoEndpoint = "https://www.googleapis.com/oauth2/v2/userinfo"
)

// Assertion is the normalized federated identity handed to HandleUser
// after a successful exchange.
type Assertion struct {
	ProviderID  string
	Email       string
	DisplayName string
	PictureURL  string
}

// HandleUserFunc consumes a verified assertion at the end of the callback.
type HandleUserFunc func(provider string, assertion *Assertion, w http.ResponseWriter, r *http.Request)

// GoogleOAuth holds the Google client configuration. State nonces and the
// post-login redirect target live in the scs-managed session for the
// duration of the dance.
type GoogleOAuth struct {
	Sessions   *scs.SessionManager
	HandleUser HandleUserFunc

	config oauth2.Config
}

func NewGoogleOAuth(clientID, clientSecret, callbackURL string, sessions *scs.SessionManager, handleUser HandleUserFunc) *GoogleOAuth {
	return &GoogleOAuth{
		Sessions:   sessions,
		HandleUser: handleUser,
		config: oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  callbackURL,
			Scopes: []string{
				"https://www.googleapis.com/auth/userinfo.email",
				"https://www.googleapis.com/auth/userinfo.profile",
			},
			Endpoint: google.Endpoint,
		},
	}
}

// HandleRedirect starts the flow: stores a fresh state nonce (and the
// optional callbackURL to return to) in the session, then sends the
// browser to Google's consent screen.
func (g *GoogleOAuth) HandleRedirect(w http.ResponseWriter, r *http.Request) {
	state, err := randomState()
	if err != nil {
		http.Error(w, "failed to generate state", http.StatusInternalServerError)
		return
	}
	g.Sessions.Put(r.Context(), stateSessionKey, state)
	if cb := r.URL.Query().Get("callbackURL"); cb != "" {
		g.Sessions.Put(r.Context(), callbackSessionKey, cb)
	}
	http.Redirect(w, r, g.config.AuthCodeURL(state), http.StatusFound)
}

// HandleCallback finishes the flow: checks the state nonce, exchanges the
// code, verifies the identity and hands the assertion to HandleUser.
func (g *GoogleOAuth) HandleCallback(w http.ResponseWriter, r *http.Request) {
	state := g.Sessions.PopString(r.Context(), stateSessionKey)
	if state == "" || r.FormValue("state") != state {
		http.Error(w, "invalid oauth state", http.StatusBadRequest)
		return
	}

	token, err := g.config.Exchange(r.Context(), r.FormValue("code"))
	if err != nil {
		slog.Warn("google code exchange failed", "err", err)
		http.Error(w, "code exchange failed", http.StatusUnauthorized)
		return
	}

	assertion, err := g.assertionFromToken(r, token)
	if err != nil {
		slog.Warn("google identity verification failed", "err", err)
		http.Error(w, "identity verification failed", http.StatusUnauthorized)
		return
	}

	g.HandleUser("google", assertion, w, r)
}

// PopCallbackURL returns and clears the redirect target stored at the
// start of the flow, or "" if none was requested.
func (g *GoogleOAuth) PopCallbackURL(r *http.Request) string {
	return g.Sessions.PopString(r.Context(), callbackSessionKey)
}

// assertionFromToken prefers the signed ID token bundled with the exchange
// response, falling back to the userinfo endpoint when Google omits it.
func (g *GoogleOAuth) assertionFromToken(r *http.Request, token *oauth2.Token) (*Assertion, error) {
	if raw, ok := token.Extra("id_token").(string); ok && raw != "" {
		payload, err := idtoken.Validate(r.Context(), raw, g.config.ClientID)
		if err != nil {
			return nil, fmt.Errorf("id token validation failed: %w", err)
		}
		return &Assertion{
			ProviderID:  payload.Subject,
			Email:       claimString(payload.Claims, "email"),
			DisplayName: claimString(payload.Claims, "name"),
			PictureURL:  claimString(payload.Claims, "picture"),
		}, nil
	}
	return g.fetchUserinfo(r, token)
}

func (g *GoogleOAuth) fetchUserinfo(r *http.Request, token *oauth2.Token) (*Assertion, error) {
	resp, err := g.config.Client(r.Context(), token).Get(userinfoEndpoint)
	if err != nil {
		return nil, fmt.Errorf("failed getting user info: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed reading user info: %w", err)
	}

	var info map[string]any
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, fmt.Errorf("failed decoding user info: %w", err)
	}
	sub := claimString(info, "id")
	if sub == "" {
		return nil, fmt.Errorf("user info has no subject id")
	}
	return &Assertion{
		ProviderID:  sub,
		Email:       claimString(info, "email"),
		DisplayName: claimString(info, "name"),
		PictureURL:  claimString(info, "picture"),
	}, nil
}

func claimString(claims map[string]any, key string) string {
	s, _ := claims[key].(string)
	return s
}

func randomState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}
