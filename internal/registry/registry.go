// Package registry implements the Module Registry (C3): discovery of
// modules on disk across one or more root directories, attaching each
// a verification verdict, and name-based resolution for the Engine and
// Manifest & Pipeline Loader.
package registry

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/flowmesh-dev/flowmesh/internal/manifest"
	"github.com/flowmesh-dev/flowmesh/internal/security"
)

// ManifestFileName is the conventional manifest file name looked for
// in each immediate subdirectory of a module root.
const ManifestFileName = "manifest.yaml"

// Entry is one discovered module: its on-disk path, parsed manifest,
// and signature-verification verdict.
type Entry struct {
	Path     string
	Manifest *manifest.Manifest
	Result   security.VerificationResult
}

// Registry holds the discovered modules of one engine run.
type Registry struct {
	byName map[string]Entry
}

// rootListSeparator chooses ';' on Windows and ':' elsewhere for
// MODULE_DIR, mirroring the host platform's PATH convention (spec §6).
func rootListSeparator() string {
	if runtime.GOOS == "windows" {
		return ";"
	}
	return ":"
}

// SplitRoots splits a MODULE_DIR-style environment value into its
// constituent root directories.
func SplitRoots(value string) []string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	parts := strings.Split(value, rootListSeparator())
	roots := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			roots = append(roots, p)
		}
	}
	return roots
}

// Discover scans every root in roots for immediate subdirectories that
// contain a readable manifest.yaml. Each discovered module's manifest
// is loaded and verified against trustedSigners; a load error for one
// module does not abort discovery of the others, but is collected
// into the returned error slice with any others encountered.
func Discover(roots []string, trustedSigners *security.TrustedSignerRegistry) (*Registry, []error) {
	reg := &Registry{byName: make(map[string]Entry)}
	var errs []error

	for _, root := range roots {
		children, err := os.ReadDir(root)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		for _, child := range children {
			if !child.IsDir() {
				continue
			}
			modDir := filepath.Join(root, child.Name())
			manifestPath := filepath.Join(modDir, ManifestFileName)
			if _, err := os.Stat(manifestPath); err != nil {
				continue
			}

			m, err := manifest.LoadManifest(manifestPath)
			if err != nil {
				errs = append(errs, err)
				continue
			}

			result, err := security.Verify(modDir, trustedSigners)
			if err != nil {
				errs = append(errs, err)
				continue
			}

			reg.byName[m.Name] = Entry{Path: modDir, Manifest: m, Result: result}
		}
	}

	return reg, errs
}

// Resolve returns the discovered entry for name, per spec §4.3.
func (r *Registry) Resolve(name string) (Entry, bool) {
	e, ok := r.byName[name]
	return e, ok
}

// ResolveManifest adapts Resolve to the manifest.ManifestResolver shape
// consumed by manifest.ValidateSemantics.
func (r *Registry) ResolveManifest(name string) (*manifest.Manifest, bool) {
	e, ok := r.byName[name]
	if !ok {
		return nil, false
	}
	return e.Manifest, true
}

// ListAll returns every discovered entry, keyed by module name.
func (r *Registry) ListAll() map[string]Entry {
	out := make(map[string]Entry, len(r.byName))
	for k, v := range r.byName {
		out[k] = v
	}
	return out
}
