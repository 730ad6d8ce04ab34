// Package observability provides hooks for metrics, tracing, and logging.
//
// This package enables optional instrumentation without adding hard dependencies
// on specific observability backends. Consumers can register hooks at startup
// to receive events about block rendering, cache lookups and external tools.
//
// # Architecture
//
// The package uses a simple hooks pattern:
//   - Define hook interfaces for different event categories
//   - Provide no-op default implementations
//   - Allow registration of custom implementations at startup
//
// # Usage
//
// Register hooks at application startup:
//
//	func main() {
//	    stats := &observability.Stats{}
//	    observability.SetRenderHooks(stats)
//	    observability.SetToolHooks(stats)
//	    // ... run application
//	}
//
// Libraries call hooks to emit events:
//
//	observability.Render().OnRenderStart(ctx, "dot", id)
//	// ... invoke the renderer ...
//	observability.Render().OnRenderComplete(ctx, "dot", id, len(paths), duration, err)
package observability

import (
	"context"
	"sync"
	"time"
)

// =============================================================================
// Render Hooks
// =============================================================================

// RenderHooks receives events from the block renderer.
type RenderHooks interface {
	// Cache events
	OnCacheHit(ctx context.Context, backend, identity string, images int)
	OnCacheMiss(ctx context.Context, backend, identity string)

	// OnPassthrough records a block emitted without rendering.
	OnPassthrough(ctx context.Context, backend string)

	// Render events
	OnRenderStart(ctx context.Context, backend, identity string)
	OnRenderComplete(ctx context.Context, backend, identity string, images int, duration time.Duration, err error)
}

// =============================================================================
// Tool Hooks
// =============================================================================

// ToolHooks receives events from external tool invocations.
type ToolHooks interface {
	// OnToolStart records the start of an external process.
	OnToolStart(ctx context.Context, tool string, args []string)

	// OnToolExit records the end of an external process.
	OnToolExit(ctx context.Context, tool string, duration time.Duration, err error)
}

// =============================================================================
// No-op Implementations
// =============================================================================

// NoopRenderHooks is a no-op implementation of RenderHooks.
type NoopRenderHooks struct{}

func (NoopRenderHooks) OnCacheHit(context.Context, string, string, int) {}
func (NoopRenderHooks) OnCacheMiss(context.Context, string, string)     {}
func (NoopRenderHooks) OnPassthrough(context.Context, string)           {}
func (NoopRenderHooks) OnRenderStart(context.Context, string, string)   {}
func (NoopRenderHooks) OnRenderComplete(context.Context, string, string, int, time.Duration, error) {
}

// NoopToolHooks is a no-op implementation of ToolHooks.
type NoopToolHooks struct{}

func (NoopToolHooks) OnToolStart(context.Context, string, []string)              {}
func (NoopToolHooks) OnToolExit(context.Context, string, time.Duration, error) {}

// =============================================================================
// Global Hook Registry
// =============================================================================

var (
	renderHooks RenderHooks = NoopRenderHooks{}
	toolHooks   ToolHooks   = NoopToolHooks{}
	hooksMu     sync.RWMutex
)

// SetRenderHooks registers custom render hooks.
// This should be called once at application startup before any rendering.
func SetRenderHooks(h RenderHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		renderHooks = h
	}
}

// SetToolHooks registers custom tool hooks.
// This should be called once at application startup before any rendering.
func SetToolHooks(h ToolHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		toolHooks = h
	}
}

// Render returns the registered render hooks.
func Render() RenderHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return renderHooks
}

// Tool returns the registered tool hooks.
func Tool() ToolHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return toolHooks
}

// Reset restores all hooks to their no-op defaults.
// This is primarily useful for testing.
func Reset() {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	renderHooks = NoopRenderHooks{}
	toolHooks = NoopToolHooks{}
}
