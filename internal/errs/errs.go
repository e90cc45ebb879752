// Package errs defines the error taxonomy of spec §7: a fixed set of
// kinds each implementation must distinguish, with a stable Code()
// suitable for test assertions. These are not a type hierarchy — each
// kind is its own exported type implementing the Coded interface.
package errs

import "fmt"

// Coded is implemented by every taxonomy error; Code is stable across
// releases and intended for test assertion, per spec §7.
type Coded interface {
	error
	Code() string
}

// BadManifest is a configuration-time error: a module manifest failed
// syntactic or field validation.
type BadManifest struct {
	Path   string
	Reason string
}

func (e *BadManifest) Error() string {
	return fmt.Sprintf("bad manifest %s: %s", e.Path, e.Reason)
}
func (e *BadManifest) Code() string { return "BadManifest" }

// BadPipeline is a configuration-time error: a pipeline document failed
// syntactic or semantic validation.
type BadPipeline struct {
	Path   string
	Reason string
}

func (e *BadPipeline) Error() string {
	return fmt.Sprintf("bad pipeline %s: %s", e.Path, e.Reason)
}
func (e *BadPipeline) Code() string { return "BadPipeline" }

// Cycle reports a dependency cycle detected during topological
// reduction, naming the offending node list.
type Cycle struct {
	Nodes []string
}

func (e *Cycle) Error() string { return fmt.Sprintf("cycle detected among slots: %v", e.Nodes) }
func (e *Cycle) Code() string  { return "Cycle" }

// UnknownModule is raised when a slot names a manifest that was not
// discovered by the registry.
type UnknownModule struct {
	SlotID string
	Name   string
}

func (e *UnknownModule) Error() string {
	return fmt.Sprintf("slot %q: unknown module %q", e.SlotID, e.Name)
}
func (e *UnknownModule) Code() string { return "UnknownModule" }

// UnknownOutput is raised when an input binding references an output
// the target manifest does not declare.
type UnknownOutput struct {
	SlotID     string
	TargetSlot string
	Output     string
}

func (e *UnknownOutput) Error() string {
	return fmt.Sprintf("slot %q: target slot %q has no output %q", e.SlotID, e.TargetSlot, e.Output)
}
func (e *UnknownOutput) Code() string { return "UnknownOutput" }

// TypeIncompatible is raised when a wiring's source output type cannot
// be made compatible with the destination input type.
type TypeIncompatible struct {
	SlotID    string
	Input     string
	SourceTyp string
	DestTyp   string
}

func (e *TypeIncompatible) Error() string {
	return fmt.Sprintf("slot %q input %q: %s is not compatible with %s", e.SlotID, e.Input, e.SourceTyp, e.DestTyp)
}
func (e *TypeIncompatible) Code() string { return "TypeIncompatible" }

// SecurityRejected is a per-module error: a slot's module failed
// admission under the active security mode. It is not fatal to the
// whole run unless no slots remain afterward.
type SecurityRejected struct {
	SlotID string
	Module string
	Verdict string
	Signer  string
}

func (e *SecurityRejected) Error() string {
	if e.Signer != "" {
		return fmt.Sprintf("module %q (slot %q) rejected: %s (signer %s)", e.Module, e.SlotID, e.Verdict, e.Signer)
	}
	return fmt.Sprintf("module %q (slot %q) rejected: %s", e.Module, e.SlotID, e.Verdict)
}
func (e *SecurityRejected) Code() string { return "SecurityRejected" }

// TranslationFailure is a per-delivery error: the bus could not
// translate a payload for one subscriber binding. The subscriber is
// skipped; fan-out to other subscribers continues.
type TranslationFailure struct {
	Src    string
	Dst    string
	Reason string
}

func (e *TranslationFailure) Error() string {
	return fmt.Sprintf("translation failure %s -> %s: %s", e.Src, e.Dst, e.Reason)
}
func (e *TranslationFailure) Code() string { return "TranslationFailure" }

// ModuleFault is raised from a module's Initialise/Iterate/OnInput/
// Teardown hook and resolved per the pipeline's error_policy.
type ModuleFault struct {
	SlotID string
	Phase  string
	Cause  error
}

func (e *ModuleFault) Error() string {
	return fmt.Sprintf("module fault in slot %q during %s: %v", e.SlotID, e.Phase, e.Cause)
}
func (e *ModuleFault) Code() string  { return "ModuleFault" }
func (e *ModuleFault) Unwrap() error { return e.Cause }

// MailboxOverflow is informational under the block policy and terminal
// under drop-new/drop-oldest (the subscriber remains running).
type MailboxOverflow struct {
	SlotID string
	Input  string
	Policy string
}

func (e *MailboxOverflow) Error() string {
	return fmt.Sprintf("mailbox overflow slot %q input %q policy %s", e.SlotID, e.Input, e.Policy)
}
func (e *MailboxOverflow) Code() string { return "MailboxOverflow" }

// ShutdownTimeout is emitted when a module's teardown grace period is
// exceeded and the task is forcibly terminated.
type ShutdownTimeout struct {
	SlotID string
}

func (e *ShutdownTimeout) Error() string {
	return fmt.Sprintf("shutdown grace period exceeded for slot %q", e.SlotID)
}
func (e *ShutdownTimeout) Code() string { return "ShutdownTimeout" }
