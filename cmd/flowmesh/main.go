package main

import (
	"fmt"
	"os"

	"github.com/flowmesh-dev/flowmesh/cmd/flowmesh/commands"
	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "flowmesh",
	Short: "flowmesh pluggable dataflow runtime",
	Long: `flowmesh composes independently developed modules into a
directed acyclic pipeline, routes typed messages between them over an
in-process publish/subscribe bus, and enforces integrity of the
modules it loads via detached cryptographic signatures.`,
	Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
}

func init() {
	rootCmd.SetVersionTemplate("flowmesh version {{.Version}}\n")

	rootCmd.PersistentFlags().String("pipeline-dir", "", "Directory to search for pipeline documents (env PIPELINE_DIR)")
	rootCmd.PersistentFlags().String("module-dir", "", "Colon/semicolon-separated module root list (env MODULE_DIR)")
	rootCmd.PersistentFlags().String("trusted-signers", "trusted-signers.json", "Path to the trusted signer registry")
	rootCmd.PersistentFlags().Bool("json", false, "Emit NDJSON diagnostics to stdout instead of human-readable output")

	rootCmd.AddCommand(commands.NewRunCmd())
	rootCmd.AddCommand(commands.NewListCmd())
	rootCmd.AddCommand(commands.NewSecurityCmd())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(commands.ExitCodeOf(err))
	}
}
