package cache

import "strings"

// Key categories. Every cache key is "<prefix>:<category>:<id>".
const (
	CategoryUser          = "user"
	CategoryUsername      = "username"
	CategorySessionToken  = "session_token"
	CategoryLoginFailures = "login_failures"
	CategoryUserData      = "user_data"
	CategoryAllUserData   = "all_user_data"
	CategoryRateLimit     = "rate_limit"
)

// Categories lists every namespace the tier writes, in cleanup order.
var Categories = []string{
	CategoryUser,
	CategoryUsername,
	CategorySessionToken,
	CategoryLoginFailures,
	CategoryUserData,
	CategoryAllUserData,
	CategoryRateLimit,
}

// Keys builds namespaced cache keys.
type Keys struct {
	prefix string
}

// NewKeys returns a key builder for prefix. An empty prefix falls back to DefaultPrefix.
func NewKeys(prefix string) Keys {
	prefix = strings.TrimSuffix(strings.TrimSpace(prefix), ":")
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return Keys{prefix: prefix}
}

// Prefix is the namespace every key starts with. Pattern deletes scan
// Prefix + ":*".
func (k Keys) Prefix() string { return k.prefix }

func (k Keys) build(category, id string) string {
	return k.prefix + ":" + category + ":" + id
}

// UserByID holds the user profile snapshot.
func (k Keys) UserByID(userID string) string { return k.build(CategoryUser, userID) }

// UsernameToID maps a username to its user id. It survives profile edits.
func (k Keys) UsernameToID(username string) string {
	return k.build(CategoryUsername, strings.ToLower(username))
}

// SessionByToken holds the session snapshot for an opaque token.
func (k Keys) SessionByToken(token string) string { return k.build(CategorySessionToken, token) }

// LoginFailures is the lockout counter for username.
func (k Keys) LoginFailures(username string) string {
	return k.build(CategoryLoginFailures, strings.ToLower(username))
}

// DataList holds the business data list for a user.
func (k Keys) DataList(userID string) string { return k.build(CategoryAllUserData, userID) }

// DataItem holds a single business data record.
func (k Keys) DataItem(itemID string) string { return k.build(CategoryUserData, itemID) }

// RateLimit is the fixed-window counter for one scope and caller.
func (k Keys) RateLimit(scope, id string) string {
	return k.build(CategoryRateLimit, scope+":"+id)
}

// Pattern matches every key of category. "*" matches the whole namespace.
func (k Keys) Pattern(category string) string {
	if category == "" || category == "*" {
		return k.prefix + ":*"
	}
	return k.prefix + ":" + category + ":*"
}

// KnownCategory reports whether category is one of Categories.
func KnownCategory(category string) bool {
	for _, c := range Categories {
		if c == category {
			return true
		}
	}
	return false
}
