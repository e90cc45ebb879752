// Package commands implements flowmesh's cobra subcommand tree (spec
// §6 CLI surface): run, list modules/pipelines, and the security
// subcommand group.
package commands

import (
	"errors"
	"os"

	"github.com/flowmesh-dev/flowmesh/internal/errs"
	"github.com/flowmesh-dev/flowmesh/internal/registry"
	"github.com/spf13/cobra"
)

// Exit codes per spec §6.
const (
	ExitSuccess           = 0
	ExitPipelineError     = 1
	ExitSecurityRejection = 2
	ExitConfigError       = 3
)

// exitCoder is implemented by errors that carry their own exit code.
type exitCoder interface{ ExitCode() int }

// ConfigError wraps a CLI usage/configuration problem (exit code 3):
// a missing pipeline file, a malformed --set override, an unreadable
// trusted-signer registry.
type ConfigError struct{ Err error }

func (e *ConfigError) Error() string { return e.Err.Error() }
func (e *ConfigError) ExitCode() int  { return ExitConfigError }
func (e *ConfigError) Unwrap() error  { return e.Err }

// ExitCodeOf maps an error returned from a command's RunE to the
// process exit code spec §6 documents.
func ExitCodeOf(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var ec exitCoder
	if errors.As(err, &ec) {
		return ec.ExitCode()
	}
	var rejected *errs.SecurityRejected
	if errors.As(err, &rejected) {
		return ExitSecurityRejection
	}
	var coded errs.Coded
	if errors.As(err, &coded) {
		return ExitPipelineError
	}
	return ExitConfigError
}

// moduleRoots resolves the module search path from --module-dir,
// falling back to the MODULE_DIR environment variable.
func moduleRoots(cmd *cobra.Command) ([]string, error) {
	flag, _ := cmd.Root().PersistentFlags().GetString("module-dir")
	value := flag
	if value == "" {
		value = os.Getenv("MODULE_DIR")
	}
	roots := registry.SplitRoots(value)
	if len(roots) == 0 {
		return nil, &ConfigError{Err: errors.New("no module roots configured: set --module-dir or MODULE_DIR")}
	}
	return roots, nil
}

// pipelineDir resolves the pipeline document search directory from
// --pipeline-dir, falling back to PIPELINE_DIR, then the current
// directory.
func pipelineDir(cmd *cobra.Command) string {
	flag, _ := cmd.Root().PersistentFlags().GetString("pipeline-dir")
	if flag != "" {
		return flag
	}
	if env := os.Getenv("PIPELINE_DIR"); env != "" {
		return env
	}
	return "."
}

func trustedSignersPath(cmd *cobra.Command) string {
	path, _ := cmd.Root().PersistentFlags().GetString("trusted-signers")
	return path
}

func jsonOutput(cmd *cobra.Command) bool {
	v, _ := cmd.Root().PersistentFlags().GetBool("json")
	return v
}
