package security

import (
	"encoding/json"
	"fmt"
	"os"
)

// TrustedSignerRecord is one entry of the Trusted Signer Registry:
// {signer id, public key in a standard text encoding, human-readable
// comment}, per spec §3.
type TrustedSignerRecord struct {
	PubKey  string `json:"pubkey"`
	Comment string `json:"comment,omitempty"`
}

// TrustedSignerRegistry maps signer id -> record, loaded once at
// engine start and read-only thereafter (spec §9: "global mutable
// registries ... trusted-signer registry is read-only after startup").
type TrustedSignerRegistry struct {
	records map[string]TrustedSignerRecord
}

// NewTrustedSignerRegistry returns an empty registry.
func NewTrustedSignerRegistry() *TrustedSignerRegistry {
	return &TrustedSignerRegistry{records: make(map[string]TrustedSignerRecord)}
}

// LoadTrustedSignerRegistry reads the JSON map of
// {"<signer-id>": {"pubkey": "<PEM>", "comment": "<text>"}} described
// in spec §6. A missing file yields an empty registry so a fresh
// engine install can still run in permissive mode.
func LoadTrustedSignerRegistry(path string) (*TrustedSignerRegistry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewTrustedSignerRegistry(), nil
		}
		return nil, fmt.Errorf("read trusted signer registry %s: %w", path, err)
	}
	var records map[string]TrustedSignerRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("parse trusted signer registry %s: %w", path, err)
	}
	return &TrustedSignerRegistry{records: records}, nil
}

// Save writes the registry back to path as indented JSON.
func (r *TrustedSignerRegistry) Save(path string) error {
	data, err := json.MarshalIndent(r.records, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal trusted signer registry: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// Trust adds or replaces the record for id.
func (r *TrustedSignerRegistry) Trust(id, pubkeyPEM, comment string) {
	if r.records == nil {
		r.records = make(map[string]TrustedSignerRecord)
	}
	r.records[id] = TrustedSignerRecord{PubKey: pubkeyPEM, Comment: comment}
}

// Untrust removes id from the registry, reporting whether it was present.
func (r *TrustedSignerRegistry) Untrust(id string) bool {
	if _, ok := r.records[id]; !ok {
		return false
	}
	delete(r.records, id)
	return true
}

// Get returns the record for id, if present.
func (r *TrustedSignerRegistry) Get(id string) (TrustedSignerRecord, bool) {
	rec, ok := r.records[id]
	return rec, ok
}

// List returns a copy of every record in the registry, keyed by
// signer id (map order, so unordered).
func (r *TrustedSignerRegistry) List() map[string]TrustedSignerRecord {
	out := make(map[string]TrustedSignerRecord, len(r.records))
	for id, rec := range r.records {
		out[id] = rec
	}
	return out
}
