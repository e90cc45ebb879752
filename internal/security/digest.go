// Package security implements the Module Security Subsystem (C2/C3
// admission half): canonical module hashing, detached RSA-PSS
// signature verification against a trusted-signer registry, and the
// admission policy matrix over verification verdict and security mode.
package security

import (
	"crypto/sha256"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// sigSuffix is excluded from the canonical digest; it is the sibling
// artefact the digest is signed into, not part of the module content.
const sigSuffix = ".sig"

// cacheDirNames lists path segments excluded from the digest as
// recognised bytecode-cache directories, per spec §4.2.
var cacheDirNames = map[string]bool{
	"__pycache__": true,
	".pytest_cache": true,
	"node_modules": true,
	".cache": true,
}

// Digest computes the canonical module digest of spec §4.2: enumerate
// regular files recursively, exclude .sig files and cache directories,
// sort by forward-slash relative path, then feed
// "relativePath \x00 rawBytes \x00" for each file in order into a
// running SHA-256. The result must be bit-identical across
// implementations given the same files.
func Digest(moduleDir string) ([]byte, error) {
	paths, err := collectFiles(moduleDir)
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)

	h := sha256.New()
	for _, rel := range paths {
		data, err := os.ReadFile(filepath.Join(moduleDir, filepath.FromSlash(rel)))
		if err != nil {
			return nil, err
		}
		h.Write([]byte(rel))
		h.Write([]byte{0})
		h.Write(data)
		h.Write([]byte{0})
	}
	return h.Sum(nil), nil
}

// collectFiles walks moduleDir and returns forward-slash relative
// paths of every included regular file, in no particular order (the
// caller sorts).
func collectFiles(moduleDir string) ([]string, error) {
	var rels []string
	err := filepath.WalkDir(moduleDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() != "." && cacheDirNames[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasSuffix(path, sigSuffix) {
			return nil
		}
		rel, err := filepath.Rel(moduleDir, path)
		if err != nil {
			return err
		}
		rels = append(rels, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rels, nil
}
