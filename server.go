package perizia

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/gorilla/mux"

	googleoauth "github.com/periziapp/perizia/oauth2"
)

// Server assembles the HTTP surface: public auth routes, operator routes
// behind the token gate and admin routes behind the role gate. The scs
// session manager only wraps the Google browser dance; API routes are
// stateless Bearer-token requests and never see a session cookie.
type Server struct {
	Users    UserStore
	Perizie  PeriziaStore
	Tokens   *TokenIssuer
	Sessions *scs.SessionManager

	frontendURL string
	router      *mux.Router
}

func NewServer(cfg *Config, users UserStore, perizie PeriziaStore) (*Server, error) {
	tokens, err := NewTokenIssuer(cfg.JWTSecret, cfg.JWTIssuer, cfg.SessionTTL)
	if err != nil {
		return nil, err
	}

	sessions := scs.New()
	sessions.Lifetime = 1 * time.Hour
	sessions.Cookie.HttpOnly = true

	s := &Server{
		Users:       users,
		Perizie:     perizie,
		Tokens:      tokens,
		Sessions:    sessions,
		frontendURL: cfg.FrontendURL,
	}

	hasher := NewPasswordHasher()
	local := &LocalAuth{Users: users, Hasher: hasher, Tokens: tokens}
	gate := &Middleware{Tokens: tokens, Users: users}
	operator := &OperatorAPI{Users: users, Perizie: perizie}
	admin := &AdminAPI{Users: users, Perizie: perizie, Hasher: hasher}

	r := mux.NewRouter()
	r.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
	}).Methods(http.MethodGet)

	auth := r.PathPrefix("/auth").Subrouter()
	auth.HandleFunc("/register", local.HandleRegister).Methods(http.MethodPost)
	auth.HandleFunc("/login", local.HandleLogin).Methods(http.MethodPost)
	auth.Handle("/me", gate.EnsureUser(http.HandlerFunc(local.HandleMe))).Methods(http.MethodGet)
	auth.HandleFunc("/password-reset/request", local.HandleResetRequest).Methods(http.MethodPost)
	auth.HandleFunc("/password-reset/confirm", local.HandleResetConfirm).Methods(http.MethodPost)

	if cfg.GoogleClientID != "" {
		g := googleoauth.NewGoogleOAuth(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleCallbackURL, sessions, nil)
		g.HandleUser = func(_ string, assertion *googleoauth.Assertion, w http.ResponseWriter, r *http.Request) {
			s.completeFederation(assertion, g.PopCallbackURL(r), w, r)
		}
		auth.Handle("/google", sessions.LoadAndSave(http.HandlerFunc(g.HandleRedirect))).Methods(http.MethodGet)
		auth.Handle("/google/callback", sessions.LoadAndSave(http.HandlerFunc(g.HandleCallback))).Methods(http.MethodGet)
	}

	op := r.PathPrefix("/operator").Subrouter()
	op.Use(gate.EnsureUser)
	op.HandleFunc("/perizie", operator.HandleListPerizie).Methods(http.MethodGet)
	op.HandleFunc("/perizie", operator.HandleCreatePerizia).Methods(http.MethodPost)
	op.HandleFunc("/perizie/{id}/photos", operator.HandleAddPhoto).Methods(http.MethodPost)
	op.HandleFunc("/perizie/{id}", operator.HandleUpdatePerizia).Methods(http.MethodPut)
	op.HandleFunc("/perizie/{id}", operator.HandleDeletePerizia).Methods(http.MethodDelete)
	op.HandleFunc("/users", operator.HandleListOperators).Methods(http.MethodGet)

	ad := r.PathPrefix("/admin").Subrouter()
	ad.Use(gate.EnsureAdmin)
	ad.HandleFunc("/perizie", admin.HandleListAllPerizie).Methods(http.MethodGet)
	ad.HandleFunc("/perizie/{id}", admin.HandleReviewPerizia).Methods(http.MethodPut)
	ad.HandleFunc("/perizie/{id}", admin.HandleDeletePerizia).Methods(http.MethodDelete)
	ad.HandleFunc("/users", admin.HandleListUsers).Methods(http.MethodGet)
	ad.HandleFunc("/users", admin.HandleCreateUser).Methods(http.MethodPost)
	ad.HandleFunc("/users/overview", admin.HandleDashboard).Methods(http.MethodGet)
	ad.HandleFunc("/users/{id}/perizie", admin.HandleListOperatorPerizie).Methods(http.MethodGet)

	s.router = r
	return s, nil
}

// Handler returns the assembled router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// completeFederation runs at the end of the Google callback: ensure the
// local user exists, mint a session token and send the browser back to the
// frontend with the token in the query string.
func (s *Server) completeFederation(assertion *googleoauth.Assertion, target string, w http.ResponseWriter, r *http.Request) {
	user, err := EnsureFederatedUser(r.Context(), s.Users, &FederatedProfile{
		ProviderID:  assertion.ProviderID,
		Email:       assertion.Email,
		DisplayName: assertion.DisplayName,
		PictureURL:  assertion.PictureURL,
	})
	if err != nil {
		writeError(w, http.StatusUnauthorized, NewAuthError(ErrCodeFederation, "Authentication failed", ""))
		return
	}

	token, err := s.Tokens.IssueSession(user)
	if err != nil {
		storeError(w, "Failed to issue token")
		return
	}

	u := s.redirectTarget(target)
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	http.Redirect(w, r, u.String(), http.StatusFound)
}

// redirectTarget constrains the post-login redirect, since the token rides
// its query string: a relative path is resolved against the frontend base,
// an absolute URL must share the frontend's origin, and anything else falls
// back to the frontend home page.
func (s *Server) redirectTarget(target string) *url.URL {
	home, err := url.Parse(s.frontendURL + "/home")
	if err != nil {
		home = &url.URL{Path: "/home"}
	}
	if target == "" {
		return home
	}
	u, err := url.Parse(target)
	if err != nil {
		return home
	}
	front, err := url.Parse(s.frontendURL)
	if err != nil {
		return home
	}
	if u.Scheme == "" && u.Host == "" && strings.HasPrefix(u.Path, "/") {
		return front.ResolveReference(u)
	}
	if u.Scheme == front.Scheme && u.Host == front.Host {
		return u
	}
	return home
}
