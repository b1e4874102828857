package policy

import (
	"sync"

	"github.com/cfk-cache/cfk/pkg/content"
	"github.com/cfk-cache/cfk/pkg/logging"
)

// Tier identifies which inner policy of a TieredEngine an entry belongs
// to.
type Tier int

const (
	TierHot Tier = iota
	TierWarm
	TierCold
)

// tierHotAccessThreshold, tierHotSizeThreshold, tierWarmAccessThreshold,
// and tierWarmSizeThreshold fix the tier-assignment predicates: Hot
// requires more than 10 accesses and a body under 1 MiB; Warm requires
// more than 2 accesses or a body under 10 MiB; everything else is Cold.
const (
	tierHotAccessThreshold  = 10
	tierHotSizeThreshold    = 1 << 20
	tierWarmAccessThreshold = 2
	tierWarmSizeThreshold   = 10 << 20
)

// DetermineTier classifies an entry by its current access count and size.
func DetermineTier(info EntryInfo) Tier {
	if info.AccessCount > tierHotAccessThreshold && info.Size < tierHotSizeThreshold {
		return TierHot
	}
	if info.AccessCount > tierWarmAccessThreshold || info.Size < tierWarmSizeThreshold {
		return TierWarm
	}
	return TierCold
}

// TieredEngine partitions a total byte budget 10/30/60 across hot, warm,
// and cold inner engines, each run under its own (by default
// Hot=LFU/Warm=LRU/Cold=LargestFirst) policy. Entries are routed to a
// tier at RecordAdd time based on DetermineTier and tracked by that
// tier's engine for the rest of their lifetime.
type TieredEngine struct {
	hot, warm, cold *Engine
	tierMu          sync.RWMutex
	tierOf          map[content.CID]Tier
}

// TieredConfig carries the total byte budget to split across tiers, plus
// per-tier entry-count budgets and shared soft knobs.
type TieredConfig struct {
	TotalSize         uint64
	HotMaxEntries     int
	WarmMaxEntries    int
	ColdMaxEntries    int
	TargetUtilization float64
	MinTTL            Config
}

// NewTieredEngine creates a TieredEngine with the standard 10/30/60
// hot/warm/cold budget split and default per-tier policies.
func NewTieredEngine(config TieredConfig, logger *logging.Logger) *TieredEngine {
	hotSize := config.TotalSize / 10
	warmSize := (config.TotalSize * 3) / 10
	coldSize := (config.TotalSize * 6) / 10

	baseTarget := config.TargetUtilization
	if baseTarget == 0 {
		baseTarget = 0.9
	}

	return &TieredEngine{
		hot: NewEngine(Config{
			MaxSize: hotSize, MaxEntries: config.HotMaxEntries,
			Kind: Lfu, TargetUtilization: baseTarget,
		}, logger.Sublogger("hot")),
		warm: NewEngine(Config{
			MaxSize: warmSize, MaxEntries: config.WarmMaxEntries,
			Kind: Lru, TargetUtilization: baseTarget,
		}, logger.Sublogger("warm")),
		cold: NewEngine(Config{
			MaxSize: coldSize, MaxEntries: config.ColdMaxEntries,
			Kind: LargestFirst, TargetUtilization: baseTarget,
		}, logger.Sublogger("cold")),
		tierOf: make(map[content.CID]Tier),
	}
}

// engineFor returns the inner engine tracking cid's tier.
func (t *TieredEngine) engineFor(tier Tier) *Engine {
	switch tier {
	case TierHot:
		return t.hot
	case TierWarm:
		return t.warm
	default:
		return t.cold
	}
}

// RecordAdd classifies info into a tier via DetermineTier and records it
// in that tier's engine.
func (t *TieredEngine) RecordAdd(info EntryInfo) {
	tier := DetermineTier(info)
	t.tierMu.Lock()
	t.tierOf[info.CID] = tier
	t.tierMu.Unlock()
	t.engineFor(tier).RecordAdd(info)
}

// RecordAccess forwards to whichever tier currently tracks cid.
func (t *TieredEngine) RecordAccess(cid content.CID) {
	t.tierMu.RLock()
	tier, ok := t.tierOf[cid]
	t.tierMu.RUnlock()
	if ok {
		t.engineFor(tier).RecordAccess(cid)
	}
}

// RecordRemove forwards to whichever tier currently tracks cid and stops
// tracking its tier assignment.
func (t *TieredEngine) RecordRemove(cid content.CID) {
	t.tierMu.Lock()
	tier, ok := t.tierOf[cid]
	if ok {
		delete(t.tierOf, cid)
	}
	t.tierMu.Unlock()
	if ok {
		t.engineFor(tier).RecordRemove(cid)
	}
}

// TrackedCIDs returns every CID currently tracked across all three
// tiers, in no particular order.
func (t *TieredEngine) TrackedCIDs() []content.CID {
	t.tierMu.RLock()
	defer t.tierMu.RUnlock()
	cids := make([]content.CID, 0, len(t.tierOf))
	for cid := range t.tierOf {
		cids = append(cids, cid)
	}
	return cids
}

// Stats reports combined occupancy across all three tiers: sizes, entry
// counts, and budgets sum, and the averages are recomputed over the
// combined population rather than averaged across tiers.
func (t *TieredEngine) Stats() Stats {
	hot, warm, cold := t.hot.Stats(), t.warm.Stats(), t.cold.Stats()

	stats := Stats{
		TotalSize:  hot.TotalSize + warm.TotalSize + cold.TotalSize,
		EntryCount: hot.EntryCount + warm.EntryCount + cold.EntryCount,
		MaxSize:    hot.MaxSize + warm.MaxSize + cold.MaxSize,
		MaxEntries: hot.MaxEntries + warm.MaxEntries + cold.MaxEntries,
	}
	if stats.MaxSize > 0 {
		stats.Utilization = float64(stats.TotalSize) / float64(stats.MaxSize)
	}
	if stats.EntryCount > 0 {
		stats.AvgEntrySize = stats.TotalSize / uint64(stats.EntryCount)
		totalAccess := hot.AvgAccessCount*float64(hot.EntryCount) +
			warm.AvgAccessCount*float64(warm.EntryCount) +
			cold.AvgAccessCount*float64(cold.EntryCount)
		stats.AvgAccessCount = totalAccess / float64(stats.EntryCount)
	}
	return stats
}

// NeedsEviction reports whether any tier currently exceeds its budget.
func (t *TieredEngine) NeedsEviction() bool {
	return t.hot.NeedsEviction() || t.warm.NeedsEviction() || t.cold.NeedsEviction()
}

// TierEvictions runs SelectEvictions on each tier and returns the union
// of their results, cold first (the largest, least valuable tier) so that
// callers applying removals incrementally free the most space soonest.
func (t *TieredEngine) TierEvictions() []Result {
	return []Result{
		t.cold.SelectEvictions(),
		t.warm.SelectEvictions(),
		t.hot.SelectEvictions(),
	}
}

// SelectEvictions merges TierEvictions into a single Result, cold
// entries first, satisfying the Policy interface for callers that don't
// need the per-tier breakdown.
func (t *TieredEngine) SelectEvictions() Result {
	merged := Result{}
	for _, tier := range t.TierEvictions() {
		merged.Evicted = append(merged.Evicted, tier.Evicted...)
		merged.SizeFreed += tier.SizeFreed
		merged.Count += tier.Count
	}
	return merged
}
