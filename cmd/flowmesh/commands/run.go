package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/flowmesh-dev/flowmesh/internal/builtins"
	"github.com/flowmesh-dev/flowmesh/internal/diagnostics"
	"github.com/flowmesh-dev/flowmesh/internal/engine"
	"github.com/flowmesh-dev/flowmesh/internal/manifest"
	"github.com/flowmesh-dev/flowmesh/internal/registry"
	"github.com/flowmesh-dev/flowmesh/internal/security"
	"github.com/spf13/cobra"
)

// RunOptions holds the resolved flags of `flowmesh run`.
type RunOptions struct {
	Pipeline        string
	SecurityMode    string
	AllowUnverified bool
	Sets            []string
	Watch           bool
}

// NewRunCmd builds the `run` subcommand: load a pipeline document,
// prepare an Engine against the discovered module registry, and run
// it until the process receives an interrupt or a module halts it.
func NewRunCmd() *cobra.Command {
	var opts RunOptions

	cmd := &cobra.Command{
		Use:   "run [pipelineName]",
		Short: "Run a pipeline",
		Long: `Load a pipeline document, wire its slots over the message bus
according to their dependencies, and run it until interrupted or a
halting module fault occurs.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Pipeline = args[0]
			return runRun(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.SecurityMode, "security-mode", string(security.ModeDefault),
		"Admission posture: paranoid, default, or permissive")
	cmd.Flags().BoolVar(&opts.AllowUnverified, "allow-unverified", false,
		"Under default mode, admit signed-but-untrusted/unsigned modules without prompting")
	cmd.Flags().StringArrayVar(&opts.Sets, "set", nil,
		"Override a slot's config: --set <slot>.<key>=<value> (repeatable)")
	cmd.Flags().BoolVar(&opts.Watch, "watch", false,
		"Show a live TUI of slot state transitions instead of NDJSON/log output")

	return cmd
}

func runRun(cmd *cobra.Command, opts RunOptions) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	go func() {
		<-sigCh
		cancel()
	}()

	mode := security.Mode(opts.SecurityMode)
	switch mode {
	case security.ModeParanoid, security.ModeDefault, security.ModePermissive:
	default:
		return &ConfigError{Err: fmt.Errorf("unknown --security-mode %q", opts.SecurityMode)}
	}

	pipelinePath, err := resolvePipelinePath(cmd, opts.Pipeline)
	if err != nil {
		return err
	}
	p, err := manifest.LoadPipeline(pipelinePath)
	if err != nil {
		return &ConfigError{Err: fmt.Errorf("load pipeline %s: %w", pipelinePath, err)}
	}
	if err := applySetOverrides(p, opts.Sets); err != nil {
		return &ConfigError{Err: err}
	}

	roots, err := moduleRoots(cmd)
	if err != nil {
		return err
	}
	signers, err := security.LoadTrustedSignerRegistry(trustedSignersPath(cmd))
	if err != nil {
		return &ConfigError{Err: err}
	}
	reg, discErrs := registry.Discover(roots, signers)
	if len(discErrs) > 0 {
		fmt.Fprintf(os.Stderr, "warning: %d module(s) failed discovery\n", len(discErrs))
		for _, e := range discErrs {
			fmt.Fprintf(os.Stderr, "  %v\n", e)
		}
	}

	var prompt security.PromptFunc
	if opts.AllowUnverified {
		prompt = func(string, string) security.PromptDecision { return security.AllowOnce }
	} else if jsonOutput(cmd) || opts.Watch {
		prompt = security.DenyAll
	} else {
		prompt = security.TerminalPrompt()
	}
	admitter := security.NewAdmitter(mode, prompt)

	var watchEvents chan diagnostics.Event
	events := buildEmitter(cmd, opts.Watch, &watchEvents)

	e := engine.New(reg, builtins.Factories(),
		engine.WithAdmitter(admitter),
		engine.WithEvents(events),
	)

	if err := e.Prepare(p); err != nil {
		return err
	}

	var watchDone chan struct{}
	if opts.Watch {
		watchDone = make(chan struct{})
		go runWatchTUI(e.Order(), watchEvents, watchDone)
	}

	runErr := e.Run(ctx)

	if opts.Watch {
		close(watchEvents)
		<-watchDone
	}

	if runErr != nil {
		return runErr
	}
	return nil
}

// buildEmitter resolves the diagnostics sink: NDJSON to stdout under
// --json, a human-readable NDJSON-plus-summary emitter by default, or
// (under --watch) a tee that also forwards every event to a channel
// the TUI consumes.
func buildEmitter(cmd *cobra.Command, watch bool, watchEvents *chan diagnostics.Event) diagnostics.EventEmitter {
	base := diagnostics.NewStdoutEmitter()
	if !jsonOutput(cmd) && !watch {
		base.WithHumanReadable(true)
	}
	if !watch {
		return base
	}
	ch := make(chan diagnostics.Event, 256)
	*watchEvents = ch
	return teeEmitter{ch: ch}
}

type teeEmitter struct {
	ch chan diagnostics.Event
}

func (t teeEmitter) Emit(ev diagnostics.Event) {
	select {
	case t.ch <- ev:
	default:
	}
}

// resolvePipelinePath locates a pipeline document by name under the
// resolved pipeline directory, trying a bare name and a .yaml suffix.
func resolvePipelinePath(cmd *cobra.Command, name string) (string, error) {
	dir := pipelineDir(cmd)
	candidates := []string{
		filepath.Join(dir, name+".yaml"),
		filepath.Join(dir, name),
		name,
	}
	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c, nil
		}
	}
	return "", &ConfigError{Err: fmt.Errorf("pipeline %q not found under %s", name, dir)}
}

// applySetOverrides applies every --set <slot>.<key>=<value> flag to
// the in-memory pipeline document before Prepare validates it.
func applySetOverrides(p *manifest.Pipeline, sets []string) error {
	for _, raw := range sets {
		eq := strings.Index(raw, "=")
		if eq < 0 {
			return fmt.Errorf("malformed --set %q: expected <slot>.<key>=<value>", raw)
		}
		path, value := raw[:eq], raw[eq+1:]
		dot := strings.Index(path, ".")
		if dot < 0 {
			return fmt.Errorf("malformed --set %q: expected <slot>.<key>=<value>", raw)
		}
		slotID, key := path[:dot], path[dot+1:]

		slot := p.SlotByID(slotID)
		if slot == nil {
			return fmt.Errorf("--set references unknown slot %q", slotID)
		}
		if slot.Config == nil {
			slot.Config = make(map[string]any)
		}
		slot.Config[key] = parseSetValue(value)
	}
	return nil
}

// parseSetValue coerces a --set value string to bool/int/float where
// it unambiguously parses as one, otherwise leaves it as a string.
func parseSetValue(value string) any {
	if i, err := strconv.ParseInt(value, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(value, 64); err == nil {
		return f
	}
	if b, err := strconv.ParseBool(value); err == nil {
		return b
	}
	return value
}
