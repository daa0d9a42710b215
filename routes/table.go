package routes

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Well-known route keys.
const (
	KeyHome  = "main.home"
	KeyLogin = "auth.login"
)

// ErrUnknownRoute is returned for a key missing from the table.
var ErrUnknownRoute = errors.New("routes: unknown route")

// Entry holds one logical route's path on every platform.
type Entry struct {
	Miniprogram string `yaml:"miniprogram"`
	H5          string `yaml:"h5"`
	Admin       string `yaml:"admin"`
}

func (e Entry) path(p Platform) string {
	switch p {
	case Miniprogram:
		return e.Miniprogram
	case H5:
		return e.H5
	default:
		return e.Admin
	}
}

type document struct {
	Routes   map[string]map[string]Entry `yaml:"routes"`
	Defaults struct {
		Platform Platform `yaml:"platform"`
	} `yaml:"defaults"`
}

// Table resolves "group.name" keys to per-platform paths. It is read-only
// after construction and safe for concurrent use.
type Table struct {
	routes          map[string]map[string]Entry
	defaultPlatform Platform
}

const defaultYAML = `
routes:
  main:
    home:
      miniprogram: /pages/index/index
      h5: /home
      admin: /dashboard
  auth:
    login:
      miniprogram: /pages/login/index
      h5: /login
      admin: /login
    register:
      miniprogram: /pages/register/index
      h5: /register
      admin: /register
  user:
    profile:
      miniprogram: /pages/profile/index
      h5: /profile
      admin: /profile
defaults:
  platform: admin
`

// Default returns the built-in table.
func Default() *Table {
	t, err := Parse([]byte(defaultYAML))
	if err != nil {
		panic(err)
	}
	return t
}

// Load reads a YAML route table from path.
func Load(path string) (*Table, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read route table: %w", err)
	}
	return Parse(raw)
}

// Parse decodes and validates a YAML route table.
func Parse(raw []byte) (*Table, error) {
	var doc document
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse route table: %w", err)
	}
	if doc.Defaults.Platform == "" {
		doc.Defaults.Platform = Admin
	}
	t := &Table{routes: doc.Routes, defaultPlatform: doc.Defaults.Platform}
	if t.routes == nil {
		t.routes = map[string]map[string]Entry{}
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

// Validate requires every path on every platform to be non-empty and rooted.
func (t *Table) Validate() error {
	for _, key := range t.Keys() {
		entry, _ := t.entry(key)
		for _, p := range []Platform{Miniprogram, H5, Admin} {
			path := entry.path(p)
			if path == "" {
				return fmt.Errorf("routes: %s %s path is empty", key, p)
			}
			if !strings.HasPrefix(path, "/") {
				return fmt.Errorf("routes: %s %s path must start with /", key, p)
			}
		}
	}
	return nil
}

// Resolve returns the path for key on platform. An empty platform uses the
// table default.
func (t *Table) Resolve(key string, p Platform) (string, error) {
	entry, ok := t.entry(key)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownRoute, key)
	}
	if p == "" {
		p = t.defaultPlatform
	}
	return entry.path(p), nil
}

// DefaultPlatform returns the platform used when none is given.
func (t *Table) DefaultPlatform() Platform {
	return t.defaultPlatform
}

// Keys returns every "group.name" key, sorted.
func (t *Table) Keys() []string {
	keys := make([]string, 0, len(t.routes)*2)
	for group, names := range t.routes {
		for name := range names {
			keys = append(keys, group+"."+name)
		}
	}
	sort.Strings(keys)
	return keys
}

// IsKnownPath reports whether path is configured for platform under any key.
func (t *Table) IsKnownPath(path string, p Platform) bool {
	for _, names := range t.routes {
		for _, entry := range names {
			if entry.path(p) == path {
				return true
			}
		}
	}
	return false
}

func (t *Table) entry(key string) (Entry, bool) {
	group, name, ok := strings.Cut(key, ".")
	if !ok || group == "" || name == "" || strings.Contains(name, ".") {
		return Entry{}, false
	}
	entry, ok := t.routes[group][name]
	return entry, ok
}
