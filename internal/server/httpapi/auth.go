package httpapi

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/carevault/carevault/internal/common"
	"github.com/carevault/carevault/internal/cryptox"
	"github.com/carevault/carevault/internal/server/repositories/users"
	"github.com/carevault/carevault/internal/server/services"
	"github.com/carevault/carevault/internal/server/session"
)

// AuthHandler serves registration, the pre-login salt exchange, login,
// logout, password change, and the balanced-tier fragment endpoints.
type AuthHandler struct {
	users       *services.UserService
	sessions    *session.Manager
	adminPubPEM []byte
}

func NewAuthHandler(users *services.UserService, sessions *session.Manager, adminPubPEM []byte) *AuthHandler {
	return &AuthHandler{users: users, sessions: sessions, adminPubPEM: adminPubPEM}
}

type registerRequest struct {
	Username   string              `json:"username"`
	Enrollment *cryptox.Enrollment `json:"enrollment"`
	Profile    []byte              `json:"profile"`
}

// Register accepts a client-computed enrollment. The server validates shape
// only; it cannot check the wrapped keys without the user's secret.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Username == "" || req.Enrollment == nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}

	user, err := h.users.Register(r.Context(), req.Username, req.Enrollment, req.Profile)
	if err != nil {
		if errors.Is(err, common.ErrorConflict) {
			http.Error(w, "username already taken", http.StatusConflict)
			return
		}
		http.Error(w, "invalid enrollment", http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(map[string]string{"id": user.ID})
}

type saltRequest struct {
	Username string `json:"username"`
}

type saltResponse struct {
	Salt   []byte            `json:"salt"`
	Params cryptox.KDFParams `json:"params"`
}

// Salt returns the salt and KDF parameters for the pre-login derivation. It
// answers for unknown usernames too, with decoy values.
func (h *AuthHandler) Salt(w http.ResponseWriter, r *http.Request) {
	var req saltRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Username == "" {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}

	salt, params, err := h.users.GetSaltParams(r.Context(), req.Username)
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(saltResponse{Salt: salt, Params: params})
}

type loginRequest struct {
	Username string `json:"username"`
	Verifier []byte `json:"verifier"`
	Tier     string `json:"tier"`
}

type loginResponse struct {
	Token       string              `json:"token"`
	UserWrapped *cryptox.WrappedKey `json:"user_wrapped"`
	Tier        common.Tier         `json:"tier"`
}

// Login verifies the client's derived verifier and returns the session token
// plus the user-wrapped DEK for local unwrapping.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Username == "" || len(req.Verifier) == 0 {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	tier, err := common.ParseTier(req.Tier)
	if err != nil {
		http.Error(w, "unknown tier", http.StatusBadRequest)
		return
	}

	res, err := h.users.Login(r.Context(), req.Username, req.Verifier, tier)
	if err != nil {
		if errors.Is(err, common.ErrorUnauthorized) {
			http.Error(w, "invalid credentials", http.StatusUnauthorized)
			return
		}
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(loginResponse{Token: res.Token, UserWrapped: res.UserWrapped, Tier: res.Tier})
}

// Logout ends the current session.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	token, ok := TokenFromContext(r.Context())
	if !ok {
		http.Error(w, "authorization required", http.StatusUnauthorized)
		return
	}
	if err := h.users.Logout(r.Context(), token); err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type changePasswordRequest struct {
	OldVerifier []byte             `json:"old_verifier"`
	Rewrapped   *cryptox.Rewrapped `json:"rewrapped"`
}

// ChangePassword swaps the credential bundle atomically, then invalidates
// every session of the user, this one included.
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	claims, ok := ClaimsFromContext(r.Context())
	if !ok {
		http.Error(w, "authorization required", http.StatusUnauthorized)
		return
	}

	var req changePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.OldVerifier) == 0 || req.Rewrapped == nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}

	bundle := &users.Credentials{
		Salt:        req.Rewrapped.Salt,
		Params:      req.Rewrapped.Params,
		Verifier:    req.Rewrapped.Verifier,
		UserWrapped: req.Rewrapped.UserWrapped,
	}
	if err := h.users.ChangePassword(r.Context(), claims.UserID, req.OldVerifier, bundle); err != nil {
		if errors.Is(err, common.ErrorUnauthorized) {
			http.Error(w, "invalid credentials", http.StatusUnauthorized)
			return
		}
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// PutFragment attaches the server-held key fragment to a balanced session.
// The fragment travels base64-encoded in the X-Key-Fragment header, never in
// a body that intermediaries might log.
func (h *AuthHandler) PutFragment(w http.ResponseWriter, r *http.Request) {
	token, ok := TokenFromContext(r.Context())
	if !ok {
		http.Error(w, "authorization required", http.StatusUnauthorized)
		return
	}

	fragment, err := base64.StdEncoding.DecodeString(r.Header.Get(common.KeyFragmentHeaderName))
	if err != nil || len(fragment) == 0 {
		http.Error(w, "invalid fragment header", http.StatusBadRequest)
		return
	}

	if err := h.sessions.AttachFragment(r.Context(), token, fragment); err != nil {
		if errors.Is(err, common.ErrSessionExpired) {
			http.Error(w, "session expired", http.StatusUnauthorized)
			return
		}
		http.Error(w, "invalid fragment", http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetFragment releases the server-held fragment, in the same header, for key
// reconstruction. An expired session answers 401 and the fragment is gone
// for good.
func (h *AuthHandler) GetFragment(w http.ResponseWriter, r *http.Request) {
	token, ok := TokenFromContext(r.Context())
	if !ok {
		http.Error(w, "authorization required", http.StatusUnauthorized)
		return
	}

	fragment, err := h.sessions.Fragment(r.Context(), token)
	if err != nil {
		if errors.Is(err, common.ErrSessionExpired) {
			http.Error(w, "session expired", http.StatusUnauthorized)
			return
		}
		http.Error(w, "no fragment for this session", http.StatusBadRequest)
		return
	}

	w.Header().Set(common.KeyFragmentHeaderName, base64.StdEncoding.EncodeToString(fragment))
	w.WriteHeader(http.StatusNoContent)
}

// AdminKey serves the administrator's RSA public key. Clients fetch it before
// registration to produce the admin-wrapped DEK copy.
func (h *AuthHandler) AdminKey(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/x-pem-file")
	_, _ = w.Write(h.adminPubPEM)
}
