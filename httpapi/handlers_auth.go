package httpapi

import (
	"net/http"
	"strconv"
	"time"

	taroAuth "github.com/MrEthical07/taroAuth"
	"github.com/MrEthical07/taroAuth/directive"
	"github.com/MrEthical07/taroAuth/middleware"
	"github.com/MrEthical07/taroAuth/routes"
)

// UserStore is the client container that mirrors the signed-in user.
const UserStore = "user"

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	User          taroAuth.User         `json:"user"`
	Flags         taroAuth.AccountFlags `json:"flags"`
	SessionToken  string                `json:"session_token"`
	ExpiresAt     time.Time             `json:"expires_at"`
	HintExpiresAt time.Time             `json:"hint_expires_at"`
}

func (h *Handler) healthz(w http.ResponseWriter, _ *http.Request) {
	h.writeOK(w, "ok", nil, nil)
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	res, err := h.engine.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.startSession(w, res, "login successful")
}

func (h *Handler) guestLogin(w http.ResponseWriter, r *http.Request) {
	res, err := h.engine.GuestLogin(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.startSession(w, res, "guest session started")
}

func (h *Handler) startSession(w http.ResponseWriter, res *taroAuth.LoginResult, message string) {
	h.setSessionCookie(w, res.Session.Token, res.Session.ExpiresAt)
	h.writeOK(w, message, loginResponse{
		User:          res.User,
		Flags:         res.Flags,
		SessionToken:  res.Session.Token,
		ExpiresAt:     res.Session.ExpiresAt,
		HintExpiresAt: res.HintExpiresAt,
	}, directive.Navigate(res.Redirect))
}

// logout always clears the cookie and the client's user container, even when
// the token was already gone.
func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	token, _ := middleware.TokenFromRequest(r, h.cookieName())
	if err := h.engine.Logout(r.Context(), token); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.clearSessionCookie(w)
	h.writeOK(w, "logged out", nil, directive.ClearState(UserStore))
}

// current answers anonymous callers with null data and no directive.
func (h *Handler) current(w http.ResponseWriter, r *http.Request) {
	u, ok := middleware.UserFromContext(r.Context())
	if !ok {
		h.writeOK(w, "not logged in", nil, nil)
		return
	}
	h.writeOK(w, "ok", u, directive.MergeState(UserStore, u.Snapshot()))
}

// status never fails for anonymous callers: data is null instead.
func (h *Handler) status(w http.ResponseWriter, r *http.Request) {
	u, ok := middleware.UserFromContext(r.Context())
	if !ok {
		h.writeOK(w, "ok", nil, nil)
		return
	}
	h.writeOK(w, "ok", u, nil)
}

func (h *Handler) check(w http.ResponseWriter, r *http.Request) {
	_, ok := middleware.SessionFromContext(r.Context())
	h.writeOK(w, "ok", ok, nil)
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var req taroAuth.RegisterRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	u, err := h.engine.Register(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeOK(w, "registration successful", u,
		directive.Navigate(h.engine.ResolveRoute(r.Context(), routes.KeyLogin)))
}

func (h *Handler) updateProfile(w http.ResponseWriter, r *http.Request) {
	u, _ := middleware.UserFromContext(r.Context())

	var patch taroAuth.ProfilePatch
	if err := decodeBody(r, &patch); err != nil {
		h.writeError(w, r, err)
		return
	}

	updated, err := h.engine.UpdateProfile(r.Context(), u.ID, patch)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeOK(w, "profile updated", updated, directive.MergeState(UserStore, updated.Snapshot()))
}

func (h *Handler) activeSessions(w http.ResponseWriter, r *http.Request) {
	u, _ := middleware.UserFromContext(r.Context())
	var currentID string
	if s, ok := middleware.SessionFromContext(r.Context()); ok {
		currentID = s.ID
	}

	sessions, err := h.engine.ActiveSessions(r.Context(), u.ID, currentID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeOK(w, "ok", sessions, nil)
}

// loginHistory accepts ?limit=N. A missing or malformed limit uses the default.
func (h *Handler) loginHistory(w http.ResponseWriter, r *http.Request) {
	u, _ := middleware.UserFromContext(r.Context())
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	attempts, err := h.engine.LoginHistory(r.Context(), u.ID, limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeOK(w, "ok", attempts, nil)
}

func (h *Handler) setSessionCookie(w http.ResponseWriter, token string, expiresAt time.Time) {
	cfg := h.engine.Config().Session
	http.SetCookie(w, &http.Cookie{
		Name:     h.cookieName(),
		Value:    token,
		Path:     "/",
		Expires:  expiresAt,
		MaxAge:   int(cfg.TTL / time.Second),
		HttpOnly: true,
		Secure:   cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *Handler) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.cookieName(),
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.engine.Config().Session.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}
