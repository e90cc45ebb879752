package commands

import (
	"errors"
	"testing"

	"github.com/flowmesh-dev/flowmesh/internal/errs"
	"github.com/stretchr/testify/require"
)

func TestExitCodeOfSuccess(t *testing.T) {
	require.Equal(t, ExitSuccess, ExitCodeOf(nil))
}

func TestExitCodeOfConfigError(t *testing.T) {
	err := &ConfigError{Err: errors.New("bad flag")}
	require.Equal(t, ExitConfigError, ExitCodeOf(err))
	require.Equal(t, err.Err, errors.Unwrap(err))
}

func TestExitCodeOfSecurityRejected(t *testing.T) {
	err := &errs.SecurityRejected{SlotID: "s", Module: "m", Verdict: "Unsigned"}
	require.Equal(t, ExitSecurityRejection, ExitCodeOf(err))
}

func TestExitCodeOfCodedPipelineError(t *testing.T) {
	err := &errs.Cycle{Nodes: []string{"a", "b", "a"}}
	require.Equal(t, ExitPipelineError, ExitCodeOf(err))
}

func TestExitCodeOfUnrecognizedError(t *testing.T) {
	require.Equal(t, ExitConfigError, ExitCodeOf(errors.New("cobra usage error")))
}
