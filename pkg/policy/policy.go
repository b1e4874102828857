// Package policy implements the eviction policy engine: per-entry usage
// accounting and victim selection under LRU, LFU, FIFO, size-ordered, and
// adaptive strategies, plus a tiered variant partitioning the budget
// across three inner policies.
package policy

import (
	"math"
	"sort"
	"sync"
	"time"

	"github.com/cfk-cache/cfk/pkg/content"
	"github.com/cfk-cache/cfk/pkg/logging"
)

// Kind selects an eviction strategy.
type Kind int

const (
	Lru Kind = iota
	Lfu
	Fifo
	LargestFirst
	SmallestFirst
	Adaptive
	// Tiered routes entries across hot/warm/cold inner engines instead
	// of applying a single strategy to the whole population; see
	// TieredEngine.
	Tiered
)

// EntryInfo is the policy engine's per-entry bookkeeping. It lives only in
// memory; it's never persisted.
type EntryInfo struct {
	CID          content.CID
	Size         uint64
	LastAccessed time.Time
	AccessCount  uint64
	Created      time.Time
	Priority     int32
}

// Config carries the budget and strategy knobs enumerated for the
// eviction policy engine.
type Config struct {
	// MaxSize is the byte budget for tracked bodies.
	MaxSize uint64
	// MaxEntries is the entry-count budget.
	MaxEntries int
	// Kind selects the eviction strategy.
	Kind Kind
	// TargetUtilization is the fraction of both budgets eviction aims
	// for after running.
	TargetUtilization float64
	// MinTTL is the minimum age (by Created) an entry must have reached
	// to be eligible for eviction.
	MinTTL time.Duration
	// TieredHotMaxEntries, TieredWarmMaxEntries, and TieredColdMaxEntries
	// are the per-tier entry-count budgets used only when Kind is
	// Tiered; MaxSize is split 10/30/60 across the three tiers
	// automatically (see NewTieredEngine).
	TieredHotMaxEntries  int
	TieredWarmMaxEntries int
	TieredColdMaxEntries int
}

// Policy is satisfied by both Engine and TieredEngine, letting callers
// select an eviction strategy (including the tiered variant) without
// caring which concrete implementation backs it.
type Policy interface {
	RecordAdd(info EntryInfo)
	RecordAccess(cid content.CID)
	RecordRemove(cid content.CID)
	NeedsEviction() bool
	SelectEvictions() Result
	TrackedCIDs() []content.CID
	Stats() Stats
}

// NewPolicy constructs the eviction policy selected by config.Kind:
// Tiered builds a TieredEngine using config's per-tier entry budgets,
// every other Kind builds a plain Engine.
func NewPolicy(config Config, logger *logging.Logger) Policy {
	if config.Kind == Tiered {
		return NewTieredEngine(TieredConfig{
			TotalSize:         config.MaxSize,
			HotMaxEntries:     config.TieredHotMaxEntries,
			WarmMaxEntries:    config.TieredWarmMaxEntries,
			ColdMaxEntries:    config.TieredColdMaxEntries,
			TargetUtilization: config.TargetUtilization,
		}, logger)
	}
	return NewEngine(config, logger)
}

// Result reports the outcome of a SelectEvictions call.
type Result struct {
	Evicted   []content.CID
	SizeFreed uint64
	Count     int
}

// Engine tracks per-entry usage and selects eviction victims. All state is
// guarded by a single mutex; SelectEvictions returns a snapshot list and
// performs no I/O, so callers are free to apply the resulting deletions
// outside any lock they hold.
type Engine struct {
	mu        sync.RWMutex
	config    Config
	entries   map[content.CID]*EntryInfo
	totalSize uint64
	logger    *logging.Logger
}

// NewEngine creates an eviction policy engine with the given
// configuration.
func NewEngine(config Config, logger *logging.Logger) *Engine {
	return &Engine{
		config:  config,
		entries: make(map[content.CID]*EntryInfo),
		logger:  logger,
	}
}

// RecordAdd registers a newly cached entry.
func (e *Engine) RecordAdd(info EntryInfo) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.entries[info.CID] = &info
	e.totalSize += info.Size
}

// RecordAccess refreshes LastAccessed and increments AccessCount for cid.
// It's a no-op if cid isn't tracked.
func (e *Engine) RecordAccess(cid content.CID) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if info, ok := e.entries[cid]; ok {
		info.LastAccessed = time.Now().UTC()
		info.AccessCount++
	}
}

// RecordRemove forgets cid, saturating total size at zero. It's a no-op
// if cid isn't tracked.
func (e *Engine) RecordRemove(cid content.CID) {
	e.mu.Lock()
	defer e.mu.Unlock()
	info, ok := e.entries[cid]
	if !ok {
		return
	}
	delete(e.entries, cid)
	if info.Size > e.totalSize {
		e.totalSize = 0
	} else {
		e.totalSize -= info.Size
	}
}

// TrackedCIDs returns every CID the engine currently tracks, in no
// particular order. Callers use this to build a keep-set for a blob
// store GC pass.
func (e *Engine) TrackedCIDs() []content.CID {
	e.mu.RLock()
	defer e.mu.RUnlock()
	cids := make([]content.CID, 0, len(e.entries))
	for cid := range e.entries {
		cids = append(cids, cid)
	}
	return cids
}

// NeedsEviction reports whether either budget is currently exceeded.
func (e *Engine) NeedsEviction() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.needsEvictionLocked()
}

func (e *Engine) needsEvictionLocked() bool {
	return e.totalSize > e.config.MaxSize || len(e.entries) > e.config.MaxEntries
}

// SelectEvictions computes the set of entries to remove to bring both the
// size and count budgets down to TargetUtilization, excluding entries
// younger than MinTTL. It performs no mutation and no I/O.
func (e *Engine) SelectEvictions() Result {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if !e.needsEvictionLocked() {
		return Result{}
	}

	targetSize := uint64(float64(e.config.MaxSize) * e.config.TargetUtilization)
	sizeToFree := saturatingSub(e.totalSize, targetSize)

	targetEntries := int(float64(e.config.MaxEntries) * e.config.TargetUtilization)
	entriesToFree := len(e.entries) - targetEntries
	if entriesToFree < 0 {
		entriesToFree = 0
	}

	now := time.Now().UTC()
	candidates := make([]*EntryInfo, 0, len(e.entries))
	for _, info := range e.entries {
		if now.Sub(info.Created) < e.config.MinTTL {
			continue
		}
		candidates = append(candidates, info)
	}

	sortByPolicy(candidates, e.config.Kind)

	result := Result{}
	for _, candidate := range candidates {
		if result.SizeFreed >= sizeToFree && result.Count >= entriesToFree {
			break
		}
		result.Evicted = append(result.Evicted, candidate.CID)
		result.SizeFreed += candidate.Size
		result.Count++
	}
	return result
}

// saturatingSub returns a-b, or 0 if b > a.
func saturatingSub(a, b uint64) uint64 {
	if b > a {
		return 0
	}
	return a - b
}

// sortByPolicy orders candidates with the worst-to-keep entry first,
// according to the orderings fixed in the policy table: LRU ascending
// last-accessed, LFU ascending access count (tie-broken by older
// last-accessed), FIFO ascending created, size-ordered policies by their
// comparator, and Adaptive by the heuristic score below (falling back to
// LRU ordering on ties).
func sortByPolicy(candidates []*EntryInfo, kind Kind) {
	switch kind {
	case Lru:
		sort.Slice(candidates, func(i, j int) bool {
			return candidates[i].LastAccessed.Before(candidates[j].LastAccessed)
		})
	case Lfu:
		sort.Slice(candidates, func(i, j int) bool {
			if candidates[i].AccessCount != candidates[j].AccessCount {
				return candidates[i].AccessCount < candidates[j].AccessCount
			}
			return candidates[i].LastAccessed.Before(candidates[j].LastAccessed)
		})
	case Fifo:
		sort.Slice(candidates, func(i, j int) bool {
			return candidates[i].Created.Before(candidates[j].Created)
		})
	case LargestFirst:
		sort.Slice(candidates, func(i, j int) bool {
			return candidates[i].Size > candidates[j].Size
		})
	case SmallestFirst:
		sort.Slice(candidates, func(i, j int) bool {
			return candidates[i].Size < candidates[j].Size
		})
	case Adaptive:
		now := time.Now().UTC()
		sort.Slice(candidates, func(i, j int) bool {
			scoreI := adaptiveScore(candidates[i], now)
			scoreJ := adaptiveScore(candidates[j], now)
			if scoreI != scoreJ {
				return scoreI < scoreJ
			}
			return candidates[i].LastAccessed.Before(candidates[j].LastAccessed)
		})
	}
}

// adaptiveScore computes the heuristic eviction score described in the
// policy design: access_count/(hours_since_last_access+1) minus
// ln(size)/10 plus priority*100. Lower scores are evicted first. The
// formula mixes units (accesses/hour against log-bytes) and is preserved
// as-is rather than "fixed," per design note (c).
func adaptiveScore(info *EntryInfo, now time.Time) float64 {
	hoursSinceAccess := now.Sub(info.LastAccessed).Hours()
	frequency := float64(info.AccessCount) / (hoursSinceAccess + 1)
	sizePenalty := math.Log(float64(info.Size)) / 10
	priorityBonus := float64(info.Priority) * 100
	return frequency - sizePenalty + priorityBonus
}

// Stats reports current policy engine occupancy.
type Stats struct {
	TotalSize      uint64
	EntryCount     int
	MaxSize        uint64
	MaxEntries     int
	Utilization    float64
	AvgEntrySize   uint64
	AvgAccessCount float64
}

// Stats returns current occupancy statistics.
func (e *Engine) Stats() Stats {
	e.mu.RLock()
	defer e.mu.RUnlock()

	stats := Stats{
		TotalSize:  e.totalSize,
		EntryCount: len(e.entries),
		MaxSize:    e.config.MaxSize,
		MaxEntries: e.config.MaxEntries,
	}
	if e.config.MaxSize > 0 {
		stats.Utilization = float64(e.totalSize) / float64(e.config.MaxSize)
	}
	if len(e.entries) > 0 {
		stats.AvgEntrySize = e.totalSize / uint64(len(e.entries))
		var totalAccess uint64
		for _, info := range e.entries {
			totalAccess += info.AccessCount
		}
		stats.AvgAccessCount = float64(totalAccess) / float64(len(e.entries))
	}
	return stats
}
