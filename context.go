package taroAuth

import (
	"context"

	"github.com/MrEthical07/taroAuth/routes"
)

type clientIPContextKey struct{}
type userAgentContextKey struct{}
type platformContextKey struct{}

// WithClientIP attaches the caller's IP address to ctx. It is recorded on
// sessions and login audit rows.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPContextKey{}, ip)
}

// WithUserAgent attaches the HTTP User-Agent string to ctx. When no platform
// is set explicitly, it also selects the platform for Navigate targets.
func WithUserAgent(ctx context.Context, userAgent string) context.Context {
	return context.WithValue(ctx, userAgentContextKey{}, userAgent)
}

// WithPlatform pins the client platform used to resolve route keys.
func WithPlatform(ctx context.Context, p routes.Platform) context.Context {
	return context.WithValue(ctx, platformContextKey{}, p)
}

func clientIPFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}

	ip, _ := ctx.Value(clientIPContextKey{}).(string)
	return ip
}

func userAgentFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}

	userAgent, _ := ctx.Value(userAgentContextKey{}).(string)
	return userAgent
}

// PlatformFromContext returns the explicit platform, else the one implied by the
// User-Agent, else "" (the route table default).
func PlatformFromContext(ctx context.Context) routes.Platform {
	if ctx == nil {
		return ""
	}
	if p, ok := ctx.Value(platformContextKey{}).(routes.Platform); ok && p != "" {
		return p
	}
	if ua := userAgentFromContext(ctx); ua != "" {
		return routes.FromUserAgent(ua)
	}
	return ""
}
