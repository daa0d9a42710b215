package httpapi

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	taroAuth "github.com/MrEthical07/taroAuth"
	"github.com/MrEthical07/taroAuth/directive"
	"github.com/bytedance/sonic"
)

const maxBodyBytes = 1 << 20

var (
	errInternal = errors.New("internal server error")
	errBadBody  = fmt.Errorf("%w: malformed request body", taroAuth.ErrInvalidInput)
)

// writeEnvelope writes env with HTTP status env.Code and counts the directive if any.
func (h *Handler) writeEnvelope(w http.ResponseWriter, env directive.Envelope) {
	body, err := sonic.Marshal(env)
	if err != nil {
		h.logger.Error("encode envelope failed", "operation", "write_envelope", "error", err)
		http.Error(w, errInternal.Error(), http.StatusInternalServerError)
		return
	}
	if env.Directive != nil && h.engine != nil {
		h.engine.DirectiveEmitted()
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(env.Code)
	_, _ = w.Write(body)
}

func (h *Handler) writeOK(w http.ResponseWriter, message string, data any, d *directive.Directive) {
	h.writeEnvelope(w, directive.OK(message, data).With(d))
}

// writeError maps err onto a status, a client-safe message and, for login
// failures, a Notify directive. Internal detail never reaches the body.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, message, d := mapError(err)
	if status >= 500 {
		h.logger.ErrorContext(r.Context(), "http operation failed",
			"operation", "http_error",
			"path", r.URL.Path,
			"status_code", status,
			"request_id", requestIDFromContext(r.Context()),
			"error", err,
		)
	}
	h.writeEnvelope(w, directive.Fail(status, message).With(d))
}

func mapError(err error) (int, string, *directive.Directive) {
	var locked *taroAuth.LockedError
	switch {
	case errors.As(err, &locked):
		text := fmt.Sprintf("Too many failed attempts. Try again in %d minutes.", locked.RetryMinutes())
		return http.StatusLocked, "account temporarily locked", directive.Notify(directive.LevelWarning, text)
	case errors.Is(err, taroAuth.ErrInvalidCredentials):
		msg := taroAuth.ErrInvalidCredentials.Error()
		return http.StatusUnauthorized, msg, directive.Notify(directive.LevelError, msg)
	case errors.Is(err, taroAuth.ErrSessionInvalid):
		return http.StatusUnauthorized, "unauthorized", nil
	case errors.Is(err, taroAuth.ErrUsernameTaken):
		return http.StatusConflict, taroAuth.ErrUsernameTaken.Error(), nil
	case errors.Is(err, taroAuth.ErrRegistrationInvalid),
		errors.Is(err, taroAuth.ErrInvalidInput),
		errors.Is(err, taroAuth.ErrUnknownCacheCategory):
		return http.StatusBadRequest, err.Error(), nil
	case errors.Is(err, taroAuth.ErrRateLimited):
		return http.StatusTooManyRequests, "too many requests", directive.Notify(directive.LevelWarning, "Too many sign-ups from this network. Try again later.")
	case errors.Is(err, taroAuth.ErrForbidden):
		return http.StatusForbidden, "forbidden", nil
	case errors.Is(err, taroAuth.ErrNotFound):
		return http.StatusNotFound, "not found", nil
	case errors.Is(err, taroAuth.ErrCacheUnavailable), errors.Is(err, taroAuth.ErrEngineNotReady):
		return http.StatusServiceUnavailable, "service unavailable", nil
	default:
		return http.StatusInternalServerError, errInternal.Error(), nil
	}
}

// decodeBody reads at most maxBodyBytes of JSON into dst. An empty body leaves dst untouched.
func decodeBody(r *http.Request, dst any) error {
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		return errBadBody
	}
	if len(raw) > maxBodyBytes {
		return fmt.Errorf("%w: request body too large", taroAuth.ErrInvalidInput)
	}
	if len(raw) == 0 {
		return nil
	}
	if err := sonic.Unmarshal(raw, dst); err != nil {
		return errBadBody
	}
	return nil
}
