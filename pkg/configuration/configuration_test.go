package configuration

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/cfk-cache/cfk/pkg/policy"
)

const testConfigYAML = `
blob:
  path: /var/lib/cfk/blobs
  compress: true
  compress_threshold: 500MB
  verify_on_read: true
  gc_lock_path: /var/lib/cfk/gc.lock
meta:
  durable_path: /var/lib/cfk/meta.db
  default_ttl: 3600
  max_memory_entries: 8192
policy:
  max_size: 10GB
  max_entries: 100000
  kind: adaptive
  target_utilization: 0.85
  min_ttl: 60
metrics:
  enabled: true
log:
  level: info
`

func writeTestConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cfk.yml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	return path
}

func TestLoadFullEnvelope(t *testing.T) {
	path := writeTestConfig(t, testConfigYAML)

	config, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if config.Blob.Path != "/var/lib/cfk/blobs" {
		t.Errorf("unexpected blob path: %q", config.Blob.Path)
	}
	if !config.Blob.Compress {
		t.Error("expected Compress true")
	}
	if uint64(config.Blob.CompressThreshold) != 500*1000*1000 {
		t.Errorf("unexpected compress threshold: %d", config.Blob.CompressThreshold)
	}
	if !config.Blob.VerifyOnRead {
		t.Error("expected VerifyOnRead true")
	}
	if config.Blob.GCLockPath != "/var/lib/cfk/gc.lock" {
		t.Errorf("unexpected gc lock path: %q", config.Blob.GCLockPath)
	}

	if config.Meta.DurablePath != "/var/lib/cfk/meta.db" {
		t.Errorf("unexpected meta durable path: %q", config.Meta.DurablePath)
	}
	if config.Meta.DefaultTTLSeconds != 3600 {
		t.Errorf("unexpected default ttl: %d", config.Meta.DefaultTTLSeconds)
	}
	if config.Meta.MaxMemoryEntries != 8192 {
		t.Errorf("unexpected max memory entries: %d", config.Meta.MaxMemoryEntries)
	}

	if uint64(config.Policy.MaxSize) != 10*1000*1000*1000 {
		t.Errorf("unexpected policy max size: %d", config.Policy.MaxSize)
	}
	if config.Policy.MaxEntries != 100000 {
		t.Errorf("unexpected policy max entries: %d", config.Policy.MaxEntries)
	}
	if config.Policy.Kind != "adaptive" {
		t.Errorf("unexpected policy kind: %q", config.Policy.Kind)
	}
	resolvedKind, err := config.PolicyKind()
	if err != nil {
		t.Fatalf("PolicyKind failed: %v", err)
	}
	if resolvedKind != policy.Adaptive {
		t.Errorf("expected resolved policy kind Adaptive, got %v", resolvedKind)
	}
	if config.Policy.TargetUtilization != 0.85 {
		t.Errorf("unexpected target utilization: %v", config.Policy.TargetUtilization)
	}
	if config.Policy.MinTTLSeconds != 60 {
		t.Errorf("unexpected min ttl: %d", config.Policy.MinTTLSeconds)
	}

	if !config.Metrics.Enabled {
		t.Error("expected metrics enabled")
	}
	if config.Log.Level != "info" {
		t.Errorf("unexpected log level: %q", config.Log.Level)
	}
}

func TestPolicyKindDefaultsToLru(t *testing.T) {
	config := &Configuration{}
	kind, err := config.PolicyKind()
	if err != nil {
		t.Fatalf("PolicyKind failed: %v", err)
	}
	if kind != policy.Lru {
		t.Errorf("expected default policy kind Lru, got %v", kind)
	}
}

func TestPolicyKindRejectsUnrecognizedValue(t *testing.T) {
	config := &Configuration{}
	config.Policy.Kind = "not_a_real_kind"
	if _, err := config.PolicyKind(); err == nil {
		t.Error("expected an error for an unrecognized policy kind")
	}
}

func TestPolicyKindAcceptsTiered(t *testing.T) {
	config := &Configuration{}
	config.Policy.Kind = "tiered"
	kind, err := config.PolicyKind()
	if err != nil {
		t.Fatalf("PolicyKind failed: %v", err)
	}
	if kind != policy.Tiered {
		t.Errorf("expected Tiered, got %v", kind)
	}
}

func TestLoadMissingFilePassesThroughNotExist(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yml"))
	if err == nil {
		t.Fatal("expected error for missing configuration file")
	}
	if !os.IsNotExist(err) {
		t.Errorf("expected an os.IsNotExist error, got %v (%T)", err, err)
	}
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	_, err := Load(writeTestConfig(t, testConfigYAML+"\nbogus_top_level_field: true\n"))
	if err == nil {
		t.Fatal("expected strict unmarshal to reject an unknown field")
	}
}

func TestMountOpensLocalBackend(t *testing.T) {
	root := t.TempDir()
	mount := MountConfiguration{ID: "origin", Path: root}

	opened, err := mount.Open()
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer opened.Shutdown()

	if opened.ID() != "origin" {
		t.Errorf("expected backend id origin, got %q", opened.ID())
	}
}

func TestToCacheConfig(t *testing.T) {
	config, err := Load(writeTestConfig(t, testConfigYAML))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	cacheConfig, err := config.ToCacheConfig()
	if err != nil {
		t.Fatalf("ToCacheConfig failed: %v", err)
	}
	if cacheConfig.Blob.Path != config.Blob.Path {
		t.Errorf("blob path not carried through: %q", cacheConfig.Blob.Path)
	}
	if cacheConfig.Policy.Kind != policy.Adaptive {
		t.Errorf("expected Adaptive policy kind, got %v", cacheConfig.Policy.Kind)
	}
	if cacheConfig.Meta.MemoryEntries != 8192 {
		t.Errorf("expected memory entries carried through, got %d", cacheConfig.Meta.MemoryEntries)
	}
}

func TestToCacheConfigRejectsUnrecognizedPolicyKind(t *testing.T) {
	config := &Configuration{}
	config.Policy.Kind = "not_a_real_kind"
	if _, err := config.ToCacheConfig(); err == nil {
		t.Error("expected an error for an unrecognized policy kind")
	}
}
