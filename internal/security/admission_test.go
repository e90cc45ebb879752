package security

import (
	"testing"

	"github.com/flowmesh-dev/flowmesh/internal/errs"
)

func TestAdmitterVerifiedByTrustedAlwaysAdmits(t *testing.T) {
	for _, mode := range []Mode{ModeParanoid, ModeDefault, ModePermissive} {
		a := NewAdmitter(mode, DenyAll)
		err := a.Decide("s1", "acme.widget", VerificationResult{Verdict: VerifiedByTrusted, SignerID: "sig1"})
		if err != nil {
			t.Fatalf("mode %s: unexpected rejection: %v", mode, err)
		}
	}
}

func TestAdmitterParanoidRejectsUnsigned(t *testing.T) {
	a := NewAdmitter(ModeParanoid, DenyAll)
	err := a.Decide("s1", "acme.widget", VerificationResult{Verdict: Unsigned})
	rej, ok := err.(*errs.SecurityRejected)
	if !ok {
		t.Fatalf("expected *errs.SecurityRejected, got %T (%v)", err, err)
	}
	if rej.Code() != "SecurityRejected" {
		t.Fatalf("unexpected code %q", rej.Code())
	}
}

func TestAdmitterPermissiveAdmitsWithWarnEvenInvalid(t *testing.T) {
	a := NewAdmitter(ModePermissive, DenyAll)
	if err := a.Decide("s1", "acme.widget", VerificationResult{Verdict: Invalid}); err != nil {
		t.Fatalf("unexpected rejection under permissive mode: %v", err)
	}
}

func TestAdmitterDefaultPromptsAndRemembersAllowAlways(t *testing.T) {
	calls := 0
	prompt := func(moduleName, reason string) PromptDecision {
		calls++
		return AllowAlways
	}
	a := NewAdmitter(ModeDefault, prompt)

	if err := a.Decide("s1", "acme.widget", VerificationResult{Verdict: Unsigned}); err != nil {
		t.Fatalf("unexpected rejection: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected prompt to be called once, got %d", calls)
	}

	// Second admission of the same module must not prompt again.
	if err := a.Decide("s2", "acme.widget", VerificationResult{Verdict: Unsigned}); err != nil {
		t.Fatalf("unexpected rejection on remembered module: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected AllowAlways to be remembered, prompt called %d times", calls)
	}
}

func TestAdmitterDefaultPromptDenyRejects(t *testing.T) {
	a := NewAdmitter(ModeDefault, func(string, string) PromptDecision { return Deny })
	err := a.Decide("s1", "acme.widget", VerificationResult{Verdict: SignedButUntrusted, SignerID: "ghost"})
	if _, ok := err.(*errs.SecurityRejected); !ok {
		t.Fatalf("expected *errs.SecurityRejected, got %T (%v)", err, err)
	}
}

func TestAdmitterDefaultPromptAllowOnceDoesNotRemember(t *testing.T) {
	calls := 0
	prompt := func(string, string) PromptDecision {
		calls++
		return AllowOnce
	}
	a := NewAdmitter(ModeDefault, prompt)
	a.Decide("s1", "acme.widget", VerificationResult{Verdict: Unsigned})
	a.Decide("s2", "acme.widget", VerificationResult{Verdict: Unsigned})
	if calls != 2 {
		t.Fatalf("expected prompt to be called again since AllowOnce is not remembered, got %d calls", calls)
	}
}

func TestAdmitterInvalidRejectedInDefaultAndParanoid(t *testing.T) {
	for _, mode := range []Mode{ModeParanoid, ModeDefault} {
		a := NewAdmitter(mode, DenyAll)
		err := a.Decide("s1", "acme.widget", VerificationResult{Verdict: Invalid})
		if _, ok := err.(*errs.SecurityRejected); !ok {
			t.Fatalf("mode %s: expected rejection for Invalid verdict, got %v", mode, err)
		}
	}
}
