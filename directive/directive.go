package directive

import (
	"errors"
	"fmt"

	"github.com/bytedance/sonic"
)

// Kind names a directive variant. The set is closed: anything else is unknown.
type Kind string

const (
	KindNavigate   Kind = "Navigate"
	KindMergeState Kind = "MergeState"
	KindClearState Kind = "ClearState"
	KindNotify     Kind = "Notify"
)

// Kinds lists every known kind.
var Kinds = []Kind{KindNavigate, KindMergeState, KindClearState, KindNotify}

// Known reports whether k is part of the closed set.
func (k Kind) Known() bool {
	switch k {
	case KindNavigate, KindMergeState, KindClearState, KindNotify:
		return true
	}
	return false
}

// Level is the severity of a Notify directive.
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

var (
	// ErrUnknownKind is returned by Decode for kinds outside the closed set.
	ErrUnknownKind = errors.New("directive: unknown kind")
	// ErrInvalidPayload is returned when a payload does not match its kind.
	ErrInvalidPayload = errors.New("directive: invalid payload")
)

// NavigatePayload asks the client to change route.
type NavigatePayload struct {
	Path    string `json:"path"`
	Replace bool   `json:"replace,omitempty"`
}

// MergeStatePayload shallow-merges Patch into the named client container.
type MergeStatePayload struct {
	Store string         `json:"store"`
	Patch map[string]any `json:"patch"`
}

// ClearStatePayload resets the named client container to its defaults.
type ClearStatePayload struct {
	Store string `json:"store"`
}

// NotifyPayload surfaces a transient message.
type NotifyPayload struct {
	Level Level  `json:"level"`
	Text  string `json:"text"`
}

// Directive is one client-side effect carried next to a response's data.
// It never carries data the response needs to be correct.
type Directive struct {
	Kind    Kind           `json:"kind"`
	Payload map[string]any `json:"payload"`
}

// Navigate asks the client to route to path.
func Navigate(path string) *Directive {
	return &Directive{Kind: KindNavigate, Payload: map[string]any{"path": path}}
}

// MergeState shallow-merges patch into the named client store. A nil patch
// is sent as an empty object.
func MergeState(store string, patch map[string]any) *Directive {
	if patch == nil {
		patch = map[string]any{}
	}
	return &Directive{Kind: KindMergeState, Payload: map[string]any{"store": store, "patch": patch}}
}

// ClearState resets the named client store to its defaults.
func ClearState(store string) *Directive {
	return &Directive{Kind: KindClearState, Payload: map[string]any{"store": store}}
}

// Notify shows text to the user at the given level.
func Notify(level Level, text string) *Directive {
	return &Directive{Kind: KindNotify, Payload: map[string]any{"level": string(level), "text": text}}
}

// Decode returns the typed payload for d: NavigatePayload, MergeStatePayload,
// ClearStatePayload or NotifyPayload. Unknown kinds yield ErrUnknownKind.
func Decode(d *Directive) (any, error) {
	if d == nil {
		return nil, fmt.Errorf("%w: nil directive", ErrInvalidPayload)
	}
	switch d.Kind {
	case KindNavigate:
		var p NavigatePayload
		if err := decodePayload(d, &p); err != nil {
			return nil, err
		}
		if p.Path == "" {
			return nil, fmt.Errorf("%w: navigate without path", ErrInvalidPayload)
		}
		return p, nil
	case KindMergeState:
		var p MergeStatePayload
		if err := decodePayload(d, &p); err != nil {
			return nil, err
		}
		if p.Store == "" {
			return nil, fmt.Errorf("%w: merge without store", ErrInvalidPayload)
		}
		return p, nil
	case KindClearState:
		var p ClearStatePayload
		if err := decodePayload(d, &p); err != nil {
			return nil, err
		}
		if p.Store == "" {
			return nil, fmt.Errorf("%w: clear without store", ErrInvalidPayload)
		}
		return p, nil
	case KindNotify:
		var p NotifyPayload
		if err := decodePayload(d, &p); err != nil {
			return nil, err
		}
		if p.Level == "" {
			p.Level = LevelInfo
		}
		return p, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, d.Kind)
	}
}

func decodePayload(d *Directive, dst any) error {
	raw, err := sonic.Marshal(d.Payload)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if err := sonic.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return nil
}
