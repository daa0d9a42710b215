package httpapi

import (
	"net/http"

	taroAuth "github.com/MrEthical07/taroAuth"
	"github.com/MrEthical07/taroAuth/directive"
	"github.com/MrEthical07/taroAuth/middleware"
	"github.com/go-chi/chi/v5"
)

func (h *Handler) listUserData(w http.ResponseWriter, r *http.Request) {
	u, _ := middleware.UserFromContext(r.Context())
	items, err := h.engine.ListUserData(r.Context(), u.ID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeOK(w, "ok", items, nil)
}

func (h *Handler) getUserData(w http.ResponseWriter, r *http.Request) {
	u, _ := middleware.UserFromContext(r.Context())
	item, err := h.engine.GetUserData(r.Context(), u.ID, chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeOK(w, "ok", item, nil)
}

func (h *Handler) createUserData(w http.ResponseWriter, r *http.Request) {
	u, _ := middleware.UserFromContext(r.Context())

	var in taroAuth.UserDataInput
	if err := decodeBody(r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}

	item, err := h.engine.CreateUserData(r.Context(), u.ID, in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeOK(w, "created", item, directive.Notify(directive.LevelSuccess, "Saved"))
}

func (h *Handler) updateUserData(w http.ResponseWriter, r *http.Request) {
	u, _ := middleware.UserFromContext(r.Context())

	var in taroAuth.UserDataInput
	if err := decodeBody(r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}

	item, err := h.engine.UpdateUserData(r.Context(), u.ID, chi.URLParam(r, "id"), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeOK(w, "updated", item, directive.Notify(directive.LevelSuccess, "Updated"))
}

func (h *Handler) deleteUserData(w http.ResponseWriter, r *http.Request) {
	u, _ := middleware.UserFromContext(r.Context())
	if err := h.engine.DeleteUserData(r.Context(), u.ID, chi.URLParam(r, "id")); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeOK(w, "deleted", nil, directive.Notify(directive.LevelSuccess, "Deleted"))
}
