// Package notify delivers a title/content message through one configured
// third-party notification channel.
package notify

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/darshan-rambhia/herald/internal/model"
	"gopkg.in/yaml.v3"
)

// Source resolves the channel configuration for one dispatch.
type Source interface {
	Resolve(ctx context.Context) (model.ChannelConfig, error)
}

// StaticSource is a caller-supplied configuration.
type StaticSource model.ChannelConfig

func (s StaticSource) Resolve(context.Context) (model.ChannelConfig, error) {
	return model.ChannelConfig(s), nil
}

// FileSource reads the system notification file, a flat {type, ...params}
// object in JSON or YAML. Unparsable content counts as unconfigured.
type FileSource struct {
	Path string
	// Fallback is used when Path is empty.
	Fallback model.ChannelConfig
}

func (s FileSource) Resolve(context.Context) (model.ChannelConfig, error) {
	if s.Path == "" {
		return s.Fallback, nil
	}
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return model.ChannelConfig{}, fmt.Errorf("reading notify file: %w", err)
	}
	var m map[string]any
	if err := yaml.Unmarshal(data, &m); err != nil {
		return model.ChannelConfig{}, nil
	}
	return model.ChannelConfigFromMap(m), nil
}

// ErrModeNotFound is returned by UserModes when a user has no stored mode.
var ErrModeNotFound = errors.New("notification mode not found")

// UserModes looks up per-user notification modes.
type UserModes interface {
	NotificationMode(ctx context.Context, userID string) (model.ChannelConfig, error)
}

// UserSource resolves a user's stored notification mode. A user without a
// mode is unconfigured.
type UserSource struct {
	Modes  UserModes
	UserID string
}

func (s UserSource) Resolve(ctx context.Context) (model.ChannelConfig, error) {
	cfg, err := s.Modes.NotificationMode(ctx, s.UserID)
	if errors.Is(err, ErrModeNotFound) {
		return model.ChannelConfig{}, nil
	}
	return cfg, err
}

// Observer is told the outcome of every dispatch. t is empty when no known
// channel was configured.
type Observer func(t model.ChannelType, delivered bool, err error)

// DispatcherOption customizes a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithObserver registers a callback run after each dispatch.
func WithObserver(o Observer) DispatcherOption {
	return func(d *Dispatcher) { d.observer = o }
}

// Dispatcher resolves a channel and delivers through it. It holds only
// immutable state and may be shared between goroutines.
type Dispatcher struct {
	registry *Registry
	env      Env
	system   Source
	users    UserModes
	observer Observer
}

// NewDispatcher creates a dispatcher. system backs NotifySystem and users
// backs NotifyUser; either may be nil when that entry point is unused.
func NewDispatcher(registry *Registry, env Env, system Source, users UserModes, opts ...DispatcherOption) *Dispatcher {
	if env.HTTP == nil {
		env.HTTP = NewHTTPClient()
	}
	d := &Dispatcher{registry: registry, env: env, system: system, users: users}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch delivers one message through the channel the source resolves to.
// It returns false without error when no channel is configured or the type
// is unknown, true on delivery, and the adapter's error unchanged otherwise.
func (d *Dispatcher) Dispatch(ctx context.Context, title, content string, src Source) (bool, error) {
	cfg, err := src.Resolve(ctx)
	if err != nil {
		return false, err
	}
	if !cfg.Configured() {
		d.observe("", false, nil)
		return false, nil
	}
	adapter, ok := d.registry.Resolve(cfg.Type)
	if !ok {
		d.observe("", false, nil)
		return false, nil
	}
	delivered, err := adapter.Send(ctx, d.env, model.Message{Title: title, Content: content}, cfg.Params)
	d.observe(cfg.Type, delivered, err)
	return delivered, err
}

func (d *Dispatcher) observe(t model.ChannelType, delivered bool, err error) {
	if d.observer != nil {
		d.observer(t, delivered, err)
	}
}

// NotifySystem delivers through the system-wide channel.
func (d *Dispatcher) NotifySystem(ctx context.Context, title, content string) (bool, error) {
	if d.system == nil {
		return false, nil
	}
	return d.Dispatch(ctx, title, content, d.system)
}

// NotifyUser delivers through the user's stored channel.
func (d *Dispatcher) NotifyUser(ctx context.Context, userID, title, content string) (bool, error) {
	if d.users == nil {
		return false, nil
	}
	return d.Dispatch(ctx, title, content, UserSource{Modes: d.users, UserID: userID})
}

// TestNotify delivers through a caller-supplied channel configuration.
func (d *Dispatcher) TestNotify(ctx context.Context, cfg model.ChannelConfig, title, content string) (bool, error) {
	return d.Dispatch(ctx, title, content, StaticSource(cfg))
}

// Types lists the channel types this dispatcher can deliver through.
func (d *Dispatcher) Types() []model.ChannelType {
	return d.registry.Types()
}

// Supports reports whether t has a registered adapter.
func (d *Dispatcher) Supports(t model.ChannelType) bool {
	_, ok := d.registry.Resolve(t)
	return ok
}
