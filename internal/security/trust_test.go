package security

import (
	"path/filepath"
	"testing"
)

func TestLoadTrustedSignerRegistryMissingFileYieldsEmpty(t *testing.T) {
	reg, err := LoadTrustedSignerRegistry(filepath.Join(t.TempDir(), "nope.json"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(reg.List()) != 0 {
		t.Fatalf("expected empty registry, got %v", reg.List())
	}
}

func TestTrustedSignerRegistryRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "trusted.json")

	reg := NewTrustedSignerRegistry()
	reg.Trust("signer-1", "PEM-DATA", "primary signer")

	if err := reg.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := LoadTrustedSignerRegistry(path)
	if err != nil {
		t.Fatalf("LoadTrustedSignerRegistry: %v", err)
	}
	rec, ok := loaded.Get("signer-1")
	if !ok {
		t.Fatalf("expected signer-1 to round trip")
	}
	if rec.PubKey != "PEM-DATA" || rec.Comment != "primary signer" {
		t.Fatalf("unexpected record: %+v", rec)
	}
}

func TestTrustedSignerRegistryUntrust(t *testing.T) {
	reg := NewTrustedSignerRegistry()
	reg.Trust("signer-1", "PEM-DATA", "")
	if !reg.Untrust("signer-1") {
		t.Fatalf("expected Untrust to report removal")
	}
	if reg.Untrust("signer-1") {
		t.Fatalf("expected second Untrust to report no removal")
	}
}
