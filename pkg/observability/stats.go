package observability

import (
	"context"
	"sync"
	"time"
)

// Stats counts render and tool events. It implements both RenderHooks and
// ToolHooks and is safe for concurrent use.
type Stats struct {
	mu sync.Mutex

	CacheHits    int
	CacheMisses  int
	Passthroughs int
	Rendered     int
	Failed       int
	Images       int
	ToolCalls    int
	ToolTime     time.Duration
}

// Snapshot is a copy of the counters at one point in time.
type Snapshot struct {
	CacheHits    int
	CacheMisses  int
	Passthroughs int
	Rendered     int
	Failed       int
	Images       int
	ToolCalls    int
	ToolTime     time.Duration
}

// Snapshot returns a copy of the current counters.
func (s *Stats) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		CacheHits:    s.CacheHits,
		CacheMisses:  s.CacheMisses,
		Passthroughs: s.Passthroughs,
		Rendered:     s.Rendered,
		Failed:       s.Failed,
		Images:       s.Images,
		ToolCalls:    s.ToolCalls,
		ToolTime:     s.ToolTime,
	}
}

func (s *Stats) OnCacheHit(_ context.Context, _, _ string, images int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CacheHits++
	s.Images += images
}

func (s *Stats) OnCacheMiss(context.Context, string, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CacheMisses++
}

func (s *Stats) OnPassthrough(context.Context, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Passthroughs++
}

func (s *Stats) OnRenderStart(context.Context, string, string) {}

func (s *Stats) OnRenderComplete(_ context.Context, _, _ string, images int, _ time.Duration, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.Failed++
		return
	}
	s.Rendered++
	s.Images += images
}

func (s *Stats) OnToolStart(context.Context, string, []string) {}

func (s *Stats) OnToolExit(_ context.Context, _ string, d time.Duration, _ error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ToolCalls++
	s.ToolTime += d
}

var (
	_ RenderHooks = (*Stats)(nil)
	_ ToolHooks   = (*Stats)(nil)
)
