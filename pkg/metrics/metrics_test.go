package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/cfk-cache/cfk/pkg/cache"
	"github.com/cfk-cache/cfk/pkg/policy"
)

type stubSource struct {
	stats cache.Stats
}

func (s stubSource) Stats() cache.Stats { return s.stats }

func TestCollectorExposesCounters(t *testing.T) {
	source := stubSource{stats: cache.Stats{
		Hits:   7,
		Misses: 3,
		Policy: policy.Stats{
			TotalSize:   500,
			EntryCount:  5,
			MaxSize:     1000,
			Utilization: 0.5,
		},
		Backend: map[string]int{"origin": 5},
	}}

	registry := prometheus.NewRegistry()
	if err := Register(registry, source); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	families, err := registry.Gather()
	if err != nil {
		t.Fatalf("Gather failed: %v", err)
	}

	byName := map[string]*dto.MetricFamily{}
	for _, family := range families {
		byName[family.GetName()] = family
	}

	hits, ok := byName["cfk_cache_hits_total"]
	if !ok || hits.Metric[0].GetCounter().GetValue() != 7 {
		t.Errorf("expected cfk_cache_hits_total=7, got %v", byName["cfk_cache_hits_total"])
	}
	misses, ok := byName["cfk_cache_misses_total"]
	if !ok || misses.Metric[0].GetCounter().GetValue() != 3 {
		t.Errorf("expected cfk_cache_misses_total=3, got %v", byName["cfk_cache_misses_total"])
	}
	utilization, ok := byName["cfk_policy_size_utilization"]
	if !ok || utilization.Metric[0].GetGauge().GetValue() != 0.5 {
		t.Errorf("expected cfk_policy_size_utilization=0.5, got %v", byName["cfk_policy_size_utilization"])
	}

	backendEntries, ok := byName["cfk_backend_entries"]
	if !ok || len(backendEntries.Metric) != 1 {
		t.Fatalf("expected one cfk_backend_entries series, got %v", byName["cfk_backend_entries"])
	}
	if backendEntries.Metric[0].GetGauge().GetValue() != 5 {
		t.Errorf("expected cfk_backend_entries=5, got %v", backendEntries.Metric[0].GetGauge().GetValue())
	}
	if backendEntries.Metric[0].GetLabel()[0].GetValue() != "origin" {
		t.Errorf("expected backend label origin, got %v", backendEntries.Metric[0].GetLabel())
	}
}

func TestRegisterTwiceReturnsAlreadyRegisteredError(t *testing.T) {
	registry := prometheus.NewRegistry()
	source := stubSource{}

	if err := Register(registry, source); err != nil {
		t.Fatalf("first Register failed: %v", err)
	}
	if err := Register(registry, source); err == nil {
		t.Fatal("expected second Register to fail with AlreadyRegisteredError")
	}
}
