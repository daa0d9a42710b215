package httpapi

import (
	"fmt"
	"net/http"

	taroAuth "github.com/MrEthical07/taroAuth"
	"github.com/MrEthical07/taroAuth/directive"
)

type invalidateRequest struct {
	UserID string `json:"user_id"`
}

type cleanupRequest struct {
	Category string `json:"category"`
}

func (h *Handler) cacheHealth(w http.ResponseWriter, r *http.Request) {
	h.writeOK(w, "ok", h.engine.CacheHealth(r.Context()), nil)
}

func (h *Handler) invalidateCache(w http.ResponseWriter, r *http.Request) {
	var req invalidateRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.engine.InvalidateUserCache(r.Context(), req.UserID); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeOK(w, "cache invalidated", map[string]string{"user_id": req.UserID}, nil)
}

func (h *Handler) cleanupCache(w http.ResponseWriter, r *http.Request) {
	var req cleanupRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	n, err := h.engine.CleanupCache(r.Context(), req.Category)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeOK(w, fmt.Sprintf("removed %d keys", n), map[string]int{"deleted": n}, nil)
}

// routeCommandError accepts directive failure reports from clients. It needs
// no session: a failed ClearState may already have dropped it.
func (h *Handler) routeCommandError(w http.ResponseWriter, r *http.Request) {
	var report directive.ErrorReport
	if err := decodeBody(r, &report); err != nil {
		h.writeError(w, r, err)
		return
	}
	if report.Kind == "" {
		h.writeError(w, r, fmt.Errorf("%w: kind is required", taroAuth.ErrInvalidInput))
		return
	}
	h.engine.RecordRouteCommandError(r.Context(), report)
	h.writeOK(w, "recorded", nil, nil)
}
