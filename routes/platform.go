package routes

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Platform is the client family a navigation path is resolved for.
type Platform string

const (
	Miniprogram Platform = "miniprogram"
	H5          Platform = "h5"
	Admin       Platform = "admin"
)

// ParsePlatform accepts canonical names and their aliases, case-insensitively.
func ParsePlatform(s string) (Platform, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "miniprogram", "weapp", "mp":
		return Miniprogram, true
	case "h5", "web", "mobile":
		return H5, true
	case "admin", "desktop", "pc":
		return Admin, true
	}
	return "", false
}

// FromUserAgent guesses the platform from a User-Agent header. Anything that
// is neither a mini-program webview nor a mobile browser is the admin console.
func FromUserAgent(ua string) Platform {
	ua = strings.ToLower(ua)
	switch {
	case strings.Contains(ua, "miniprogram"), strings.Contains(ua, "micromessenger"):
		return Miniprogram
	case strings.Contains(ua, "mobile"), strings.Contains(ua, "android"), strings.Contains(ua, "iphone"):
		return H5
	default:
		return Admin
	}
}

func (p *Platform) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return err
	}
	parsed, ok := ParsePlatform(raw)
	if !ok {
		return fmt.Errorf("routes: unknown platform %q", raw)
	}
	*p = parsed
	return nil
}
