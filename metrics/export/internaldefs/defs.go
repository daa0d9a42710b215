package internaldefs

import (
	taroAuth "github.com/MrEthical07/taroAuth"
)

// CounterDef binds a counter ID to its exported name.
type CounterDef struct {
	ID   taroAuth.MetricID
	Name string
	Help string
}

// HistogramDef binds a histogram ID to its exported name.
type HistogramDef struct {
	ID   taroAuth.MetricID
	Name string
	Help string
}

// CounterDefs lists every engine counter in export order.
var CounterDefs = []CounterDef{
	{ID: taroAuth.MetricLoginSuccess, Name: "taroauth_login_success_total", Help: "Successful login attempts."},
	{ID: taroAuth.MetricLoginFailure, Name: "taroauth_login_failure_total", Help: "Failed login attempts."},
	{ID: taroAuth.MetricLoginLocked, Name: "taroauth_login_locked_total", Help: "Login attempts rejected by the lockout guard."},
	{ID: taroAuth.MetricLogout, Name: "taroauth_logout_total", Help: "Logout operations."},
	{ID: taroAuth.MetricSessionCreated, Name: "taroauth_session_created_total", Help: "Created sessions."},
	{ID: taroAuth.MetricSessionValidated, Name: "taroauth_session_validated_total", Help: "Successful session validations."},
	{ID: taroAuth.MetricSessionInvalid, Name: "taroauth_session_invalid_total", Help: "Rejected session validations."},
	{ID: taroAuth.MetricSessionRevoked, Name: "taroauth_session_revoked_total", Help: "Revoked sessions."},
	{ID: taroAuth.MetricSessionExpiredQueued, Name: "taroauth_session_expired_queued_total", Help: "Expired sessions handed to the reaper."},
	{ID: taroAuth.MetricSessionSwept, Name: "taroauth_session_swept_total", Help: "Expired sessions removed by the periodic sweep."},
	{ID: taroAuth.MetricCacheHit, Name: "taroauth_cache_hit_total", Help: "Cache reads served from Redis."},
	{ID: taroAuth.MetricCacheMiss, Name: "taroauth_cache_miss_total", Help: "Cache reads that fell through to the store."},
	{ID: taroAuth.MetricCacheError, Name: "taroauth_cache_error_total", Help: "Cache operations that failed and degraded to a miss."},
	{ID: taroAuth.MetricRegistrationSuccess, Name: "taroauth_registration_success_total", Help: "Successful registrations."},
	{ID: taroAuth.MetricRegistrationDuplicate, Name: "taroauth_registration_duplicate_total", Help: "Registrations rejected as duplicate."},
	{ID: taroAuth.MetricGuestLogin, Name: "taroauth_guest_login_total", Help: "Guest accounts created."},
	{ID: taroAuth.MetricProfileUpdated, Name: "taroauth_profile_updated_total", Help: "Profile updates."},
	{ID: taroAuth.MetricDirectiveEmitted, Name: "taroauth_directive_emitted_total", Help: "Responses that carried a client directive."},
	{ID: taroAuth.MetricRouteCommandError, Name: "taroauth_route_command_error_total", Help: "Directive failures reported by clients."},
	{ID: taroAuth.MetricSignupThrottled, Name: "taroauth_signup_throttled_total", Help: "Registrations and guest logins refused by the per-IP throttle."},
}

// HistogramDefs lists every engine histogram.
var HistogramDefs = []HistogramDef{
	{ID: taroAuth.MetricValidateLatency, Name: "taroauth_validate_latency_seconds", Help: "Session validation latency."},
}

// HistogramBounds are the Prometheus le labels, in bucket order.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// Extra series that do not come from the counter registry.
const (
	AuditDroppedName       = "taroauth_audit_dropped_total"
	AuditDroppedHelp       = "Audit events dropped because the dispatcher buffer was full."
	ExpiryQueueDroppedName = "taroauth_expiry_queue_dropped_total"
	ExpiryQueueDroppedHelp = "Expired-session deletions dropped because the reaper queue was full."
)

// NormalizeBuckets copies raw into a fixed eight-bucket array.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets turns per-bucket counts into running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
