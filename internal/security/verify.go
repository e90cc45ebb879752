package security

import (
	"crypto"
	"crypto/rsa"
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"
)

// Verdict is the outcome of verifying a module's signature against the
// Trusted Signer Registry, per spec §3 / §4.2.
type Verdict string

const (
	VerifiedByTrusted  Verdict = "Verified-by-trusted"
	SignedButUntrusted Verdict = "Signed-but-untrusted"
	Unsigned           Verdict = "Unsigned"
	Invalid            Verdict = "Invalid"
)

// VerificationResult carries a Verdict plus the signer id (when
// applicable) and the computed content digest.
type VerificationResult struct {
	Verdict Verdict
	SignerID string
	Digest  []byte
}

// SignatureFileName is the sibling artefact verify() looks for inside
// a module directory.
const SignatureFileName = "module.sig"

// Verify implements the operation of spec §4.2: compute the module's
// canonical digest, then attempt RSA-PSS verification against every
// record in the registry. The first successful match wins.
func Verify(moduleDir string, registry *TrustedSignerRegistry) (VerificationResult, error) {
	digest, err := Digest(moduleDir)
	if err != nil {
		return VerificationResult{}, fmt.Errorf("compute digest for %s: %w", moduleDir, err)
	}

	sigPath := filepath.Join(moduleDir, SignatureFileName)
	sig, err := os.ReadFile(sigPath)
	if err != nil {
		if os.IsNotExist(err) {
			return VerificationResult{Verdict: Unsigned, Digest: digest}, nil
		}
		return VerificationResult{}, fmt.Errorf("read signature %s: %w", sigPath, err)
	}

	// "Syntactically well-formed" (spec §4.2) is operationalised as: the
	// signature's byte length matches the RSA modulus size of at least
	// one registry key, so a garbage-length blob is Invalid even when
	// the registry is non-empty, while a correctly-sized signature from
	// an unrecognised key is Signed-but-untrusted.
	wellFormed := false
	for id, record := range registry.records {
		pub, err := parsePublicKey([]byte(record.PubKey))
		if err != nil {
			continue
		}
		if len(sig) != pub.Size() {
			continue
		}
		wellFormed = true
		if verifyPSS(pub, digest, sig) {
			return VerificationResult{Verdict: VerifiedByTrusted, SignerID: id, Digest: digest}, nil
		}
	}
	if wellFormed {
		return VerificationResult{Verdict: SignedButUntrusted, Digest: digest}, nil
	}
	return VerificationResult{Verdict: Invalid, Digest: digest}, nil
}

func verifyPSS(pub *rsa.PublicKey, digest, sig []byte) bool {
	sum := sha256.Sum256(digest)
	return rsa.VerifyPSS(pub, crypto.SHA256, sum[:], sig, nil) == nil
}
