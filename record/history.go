package record

import (
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/jonwraymond/toolwatch/probe"
)

// HistoryConfig configures the bounded result history.
type HistoryConfig struct {
	// MaxTargets bounds how many targets retain history; the least
	// recently probed are evicted first. Default: 256
	MaxTargets int

	// PerTarget bounds retained results per target. Default: 100
	PerTarget int
}

// History keeps a bounded window of recent results per target for trend
// queries. It is optional: current status lives in the Store, and
// aggregates make raw retention unnecessary for metrics. Storage is
// bounded on both axes regardless of probe frequency.
type History struct {
	perTarget int
	cache     *lru.Cache[string, []probe.Result]
}

// NewHistory creates a bounded history.
func NewHistory(config ...HistoryConfig) (*History, error) {
	cfg := HistoryConfig{}
	if len(config) > 0 {
		cfg = config[0]
	}
	if cfg.MaxTargets <= 0 {
		cfg.MaxTargets = 256
	}
	if cfg.PerTarget <= 0 {
		cfg.PerTarget = 100
	}

	cache, err := lru.New[string, []probe.Result](cfg.MaxTargets)
	if err != nil {
		return nil, err
	}
	return &History{perTarget: cfg.PerTarget, cache: cache}, nil
}

// Append records a result for its target, trimming to the per-target
// bound. Each target has a single writer (its probe task), so the
// read-modify-write here does not race with itself.
func (h *History) Append(result probe.Result) {
	window, _ := h.cache.Get(result.TargetID)

	next := make([]probe.Result, 0, len(window)+1)
	next = append(next, window...)
	next = append(next, result)
	if len(next) > h.perTarget {
		next = next[len(next)-h.perTarget:]
	}
	h.cache.Add(result.TargetID, next)
}

// Recent returns up to n most recent results for the target, newest last.
func (h *History) Recent(targetID string, n int) []probe.Result {
	window, ok := h.cache.Get(targetID)
	if !ok {
		return nil
	}
	if n > 0 && len(window) > n {
		window = window[len(window)-n:]
	}
	out := make([]probe.Result, len(window))
	copy(out, window)
	return out
}

// Forget drops the target's history.
func (h *History) Forget(targetID string) {
	h.cache.Remove(targetID)
}
