package directive

import "time"

// ErrorReport describes a directive the client failed to apply. Clients post
// it to /api/metrics/route-command-error.
type ErrorReport struct {
	Kind       string         `json:"kind"`
	Error      string         `json:"error"`
	Platform   string         `json:"platform,omitempty"`
	Context    map[string]any `json:"context,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}
