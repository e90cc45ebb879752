package security

import (
	"sync"

	"github.com/flowmesh-dev/flowmesh/internal/errs"
)

// Mode is the engine-wide security posture, selected at startup (CLI
// flag --security-mode), per spec §4.3.
type Mode string

const (
	ModeParanoid   Mode = "paranoid"
	ModeDefault    Mode = "default"
	ModePermissive Mode = "permissive"
)

// PromptDecision is the answer to an interactive admission prompt.
type PromptDecision string

const (
	AllowOnce   PromptDecision = "AllowOnce"
	Deny        PromptDecision = "Deny"
	AllowAlways PromptDecision = "AllowAlways"
)

// PromptFunc asks an operator whether to admit a module that is
// signed-but-untrusted or unsigned under "default" mode. Injected so
// the admission policy is testable without a terminal.
type PromptFunc func(moduleName, reason string) PromptDecision

// DenyAll is a PromptFunc that always denies; useful for non-interactive
// contexts (CI, tests) where no operator is available to answer.
func DenyAll(string, string) PromptDecision { return Deny }

// Admitter evaluates the admission policy matrix of spec §4.3 and
// remembers AllowAlways decisions for its own lifetime only.
type Admitter struct {
	mode   Mode
	prompt PromptFunc

	mu      sync.Mutex
	allowed map[string]bool // module name -> remembered AllowAlways
}

// NewAdmitter builds an Admitter for the given mode; prompt is invoked
// only in "default" mode for Signed-but-untrusted/Unsigned verdicts.
func NewAdmitter(mode Mode, prompt PromptFunc) *Admitter {
	if prompt == nil {
		prompt = DenyAll
	}
	return &Admitter{mode: mode, prompt: prompt, allowed: make(map[string]bool)}
}

// Decide returns nil if moduleName with the given verdict is admitted
// under the Admitter's mode, or a *errs.SecurityRejected error if not.
func (a *Admitter) Decide(slotID, moduleName string, result VerificationResult) error {
	a.mu.Lock()
	if a.allowed[moduleName] {
		a.mu.Unlock()
		return nil
	}
	a.mu.Unlock()

	switch result.Verdict {
	case VerifiedByTrusted:
		return nil

	case SignedButUntrusted, Unsigned:
		switch a.mode {
		case ModeParanoid:
			return a.reject(slotID, moduleName, result)
		case ModePermissive:
			return nil
		default: // ModeDefault
			return a.resolvePrompt(slotID, moduleName, result)
		}

	case Invalid:
		switch a.mode {
		case ModePermissive:
			return nil
		default: // paranoid and default both reject an invalid signature
			return a.reject(slotID, moduleName, result)
		}
	}

	return a.reject(slotID, moduleName, result)
}

func (a *Admitter) resolvePrompt(slotID, moduleName string, result VerificationResult) error {
	reason := string(result.Verdict)
	decision := a.prompt(moduleName, reason)
	switch decision {
	case AllowOnce:
		return nil
	case AllowAlways:
		a.mu.Lock()
		a.allowed[moduleName] = true
		a.mu.Unlock()
		return nil
	default:
		return a.reject(slotID, moduleName, result)
	}
}

func (a *Admitter) reject(slotID, moduleName string, result VerificationResult) error {
	return &errs.SecurityRejected{
		SlotID:  slotID,
		Module:  moduleName,
		Verdict: string(result.Verdict),
		Signer:  result.SignerID,
	}
}

// Reason renders a human-readable explanation for a prompt, used by
// terminal and non-interactive PromptFunc implementations alike.
func Reason(result VerificationResult) string {
	switch result.Verdict {
	case Unsigned:
		return "module carries no module.sig"
	case SignedButUntrusted:
		return "signature does not match any trusted signer"
	case Invalid:
		return "signature is malformed or unverifiable"
	default:
		return string(result.Verdict)
	}
}
