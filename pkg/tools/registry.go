// Copyright 2026 © The Seiron Authors
// SPDX-License-Identifier: Apache-2.0

package tools

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/angleito/seiron-runtime/pkg/core"
	"github.com/angleito/seiron-runtime/pkg/errors"
)

// Registry holds registered tools with their schemas and configuration.
// Registrations are never silently overwritten.
type Registry struct {
	tools   map[string]*Registration
	emitter core.EventEmitter
	mu      sync.RWMutex
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithRegistryEmitter sets the event emitter for registry events.
func WithRegistryEmitter(emitter core.EventEmitter) RegistryOption {
	return func(r *Registry) { r.emitter = emitter }
}

// NewRegistry creates an empty tool registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		tools:   make(map[string]*Registration),
		emitter: core.NoopEventEmitter{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register stores an active registration for the tool. Registering a
// duplicate name fails with ALREADY_REGISTERED.
func (r *Registry) Register(tool Tool, config ToolConfig, opts ...RegisterOption) error {
	if tool == nil || tool.Name() == "" {
		return errors.New(errors.CodeInvalidInput, "tool name is required", nil)
	}

	reg := &Registration{
		Tool:       tool,
		Config:     config,
		Registered: time.Now(),
	}
	reg.setStatus(StatusActive)
	for _, opt := range opts {
		opt(reg)
	}

	r.mu.Lock()
	if _, exists := r.tools[tool.Name()]; exists {
		r.mu.Unlock()
		return errors.Newf(errors.CodeAlreadyRegistered, "tool %q is already registered", tool.Name())
	}
	r.tools[tool.Name()] = reg
	r.mu.Unlock()

	r.emitter.Emit(context.Background(), core.NewEvent(core.EventToolRegistered, map[string]any{
		"category": tool.Category(),
	}).WithTool(tool.Name()))
	return nil
}

// RegisterOption customizes a registration.
type RegisterOption func(*Registration)

// WithTags attaches discovery tags to the registration.
func WithTags(tags ...string) RegisterOption {
	return func(reg *Registration) { reg.Tags = tags }
}

// WithMiddleware attaches tool-scoped middleware.
func WithMiddleware(middleware ...Middleware) RegisterOption {
	return func(reg *Registration) { reg.Middleware = middleware }
}

// Unregister removes the named tool, failing with NOT_FOUND if absent.
func (r *Registry) Unregister(name string) error {
	r.mu.Lock()
	if _, exists := r.tools[name]; !exists {
		r.mu.Unlock()
		return errors.Newf(errors.CodeNotFound, "tool %q is not registered", name)
	}
	delete(r.tools, name)
	r.mu.Unlock()

	r.emitter.Emit(context.Background(), core.NewEvent(core.EventToolUnregistered, nil).WithTool(name))
	return nil
}

// Get returns the registration for name.
func (r *Registry) Get(name string) (*Registration, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	reg, ok := r.tools[name]
	if !ok {
		return nil, errors.Newf(errors.CodeNotFound, "tool %q is not registered", name)
	}
	return reg, nil
}

// List returns all registrations sorted by tool name.
func (r *Registry) List() []*Registration {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Registration, 0, len(r.tools))
	for _, reg := range r.tools {
		out = append(out, reg)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Tool.Name() < out[j].Tool.Name()
	})
	return out
}

// FindByCategory returns registrations whose tool declares the category.
func (r *Registry) FindByCategory(category string) []*Registration {
	var out []*Registration
	for _, reg := range r.List() {
		if reg.Tool.Category() == category {
			out = append(out, reg)
		}
	}
	return out
}

// FindByTag returns registrations carrying the tag.
func (r *Registry) FindByTag(tag string) []*Registration {
	var out []*Registration
	for _, reg := range r.List() {
		for _, t := range reg.Tags {
			if t == tag {
				out = append(out, reg)
				break
			}
		}
	}
	return out
}

// SetStatus changes the lifecycle status of the named tool.
func (r *Registry) SetStatus(name string, status ToolStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	reg, ok := r.tools[name]
	if !ok {
		return errors.Newf(errors.CodeNotFound, "tool %q is not registered", name)
	}
	reg.setStatus(status)
	return nil
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}
