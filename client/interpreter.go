package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/MrEthical07/taroAuth/directive"
)

// ErrUnknownStore is returned when a directive names an unregistered container.
var ErrUnknownStore = errors.New("client: unknown state store")

// Navigator performs client-side route changes.
type Navigator interface {
	Navigate(path string) error
}

// Notifier surfaces transient messages to the user.
type Notifier interface {
	Notify(level directive.Level, text string)
}

// ErrorReporter receives directives that failed to apply.
type ErrorReporter interface {
	Report(ctx context.Context, report directive.ErrorReport)
}

type handler func(ctx context.Context, payload any) error

// Interpreter applies directives through a closed handler table.
type Interpreter struct {
	registry *Registry
	nav      Navigator
	notifier Notifier
	reporter ErrorReporter
	platform string
	logger   *slog.Logger
	handlers map[directive.Kind]handler

	applied atomic.Uint64
	unknown atomic.Uint64
	failed  atomic.Uint64
}

// InterpreterOption configures an Interpreter.
type InterpreterOption func(*Interpreter)

// WithNavigator sets the target of navigate directives.
func WithNavigator(n Navigator) InterpreterOption {
	return func(i *Interpreter) { i.nav = n }
}

// WithNotifier sets the target of notify directives.
func WithNotifier(n Notifier) InterpreterOption {
	return func(i *Interpreter) { i.notifier = n }
}

// WithErrorReporter sets where failed directives are reported.
func WithErrorReporter(r ErrorReporter) InterpreterOption {
	return func(i *Interpreter) { i.reporter = r }
}

// WithPlatform tags error reports with the client platform.
func WithPlatform(p string) InterpreterOption {
	return func(i *Interpreter) { i.platform = p }
}

// WithInterpreterLogger sets the logger; nil keeps slog.Default.
func WithInterpreterLogger(l *slog.Logger) InterpreterOption {
	return func(i *Interpreter) {
		if l != nil {
			i.logger = l
		}
	}
}

// NewInterpreter returns an interpreter that mutates containers in registry.
// A nil registry is replaced with an empty one.
func NewInterpreter(registry *Registry, opts ...InterpreterOption) *Interpreter {
	if registry == nil {
		registry = NewRegistry()
	}
	i := &Interpreter{registry: registry, logger: slog.Default()}
	for _, opt := range opts {
		opt(i)
	}
	i.logger = i.logger.With("component", "interpreter")
	i.handlers = map[directive.Kind]handler{
		directive.KindNavigate:   i.navigate,
		directive.KindMergeState: i.mergeState,
		directive.KindClearState: i.clearState,
		directive.KindNotify:     i.notify,
	}
	return i
}

// Registry returns the container registry the interpreter mutates.
func (i *Interpreter) Registry() *Registry {
	return i.registry
}

// Apply executes d. Unknown kinds are logged and ignored. Handler failures
// are reported and returned, but callers treat them as non-fatal.
func (i *Interpreter) Apply(ctx context.Context, d *directive.Directive) error {
	if d == nil {
		return nil
	}
	h, ok := i.handlers[d.Kind]
	if !ok {
		i.unknown.Add(1)
		i.logger.WarnContext(ctx, "ignoring unknown directive",
			"operation", "apply",
			"outcome", "ignored",
			"kind", string(d.Kind),
			"error", directive.ErrUnknownKind,
		)
		return nil
	}

	payload, err := directive.Decode(d)
	if err == nil {
		err = h(ctx, payload)
	}
	if err != nil {
		i.failed.Add(1)
		i.logger.WarnContext(ctx, "directive failed", "operation", "apply", "outcome", "error", "kind", string(d.Kind), "error", err)
		if i.reporter != nil {
			i.reporter.Report(ctx, directive.ErrorReport{
				Kind:       string(d.Kind),
				Error:      err.Error(),
				Platform:   i.platform,
				Context:    d.Payload,
				OccurredAt: time.Now().UTC(),
			})
		}
		return err
	}
	i.applied.Add(1)
	return nil
}

// Stats returns applied, unknown and failed directive counts.
func (i *Interpreter) Stats() (applied, unknown, failed uint64) {
	return i.applied.Load(), i.unknown.Load(), i.failed.Load()
}

func (i *Interpreter) navigate(_ context.Context, payload any) error {
	p := payload.(directive.NavigatePayload)
	if i.nav == nil {
		return errors.New("client: no navigator configured")
	}
	if err := i.nav.Navigate(p.Path); err != nil {
		return fmt.Errorf("navigate %s: %w", p.Path, err)
	}
	return nil
}

func (i *Interpreter) mergeState(_ context.Context, payload any) error {
	p := payload.(directive.MergeStatePayload)
	c, ok := i.registry.Get(p.Store)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownStore, p.Store)
	}
	c.Merge(p.Patch)
	return nil
}

func (i *Interpreter) clearState(_ context.Context, payload any) error {
	p := payload.(directive.ClearStatePayload)
	c, ok := i.registry.Get(p.Store)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownStore, p.Store)
	}
	c.Clear()
	return nil
}

func (i *Interpreter) notify(_ context.Context, payload any) error {
	p := payload.(directive.NotifyPayload)
	if i.notifier == nil {
		i.logger.Info("notice", "level", string(p.Level), "text", p.Text)
		return nil
	}
	i.notifier.Notify(p.Level, p.Text)
	return nil
}
