package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/flowmesh-dev/flowmesh/internal/security"
	"github.com/spf13/cobra"
)

// NewSecurityCmd builds the `security` subcommand group: verify, sign,
// generate-keypair, trust, untrust, list-trusted.
func NewSecurityCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "security",
		Short: "Inspect and manage module signatures and trusted signers",
	}
	cmd.AddCommand(newSecurityVerifyCmd())
	cmd.AddCommand(newSecuritySignCmd())
	cmd.AddCommand(newSecurityGenerateKeyPairCmd())
	cmd.AddCommand(newSecurityTrustCmd())
	cmd.AddCommand(newSecurityUntrustCmd())
	cmd.AddCommand(newSecurityListTrustedCmd())
	return cmd
}

func newSecurityVerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify <module-path>",
		Short: "Verify a module's signature against the trusted signer registry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			signers, err := security.LoadTrustedSignerRegistry(trustedSignersPath(cmd))
			if err != nil {
				return &ConfigError{Err: err}
			}
			result, err := security.Verify(args[0], signers)
			if err != nil {
				return &ConfigError{Err: err}
			}

			if jsonOutput(cmd) {
				return printJSON(struct {
					Verdict string `json:"verdict"`
					Signer  string `json:"signer,omitempty"`
				}{string(result.Verdict), result.SignerID})
			}

			fmt.Printf("verdict: %s\n", result.Verdict)
			if result.SignerID != "" {
				fmt.Printf("signer:  %s\n", result.SignerID)
			}
			if result.Verdict != security.VerifiedByTrusted {
				return &ConfigError{Err: fmt.Errorf("module not verified by a trusted signer: %s", result.Verdict)}
			}
			return nil
		},
	}
}

func newSecuritySignCmd() *cobra.Command {
	var keyPath string
	cmd := &cobra.Command{
		Use:   "sign <module-path>",
		Short: "Sign a module with a private key, writing module.sig alongside it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			modulePath := args[0]
			privPEM, err := os.ReadFile(keyPath)
			if err != nil {
				return &ConfigError{Err: fmt.Errorf("read private key %s: %w", keyPath, err)}
			}
			digest, err := security.Digest(modulePath)
			if err != nil {
				return &ConfigError{Err: err}
			}
			sig, err := security.Sign(privPEM, digest)
			if err != nil {
				return &ConfigError{Err: err}
			}
			sigPath := filepath.Join(modulePath, security.SignatureFileName)
			if err := os.WriteFile(sigPath, sig, 0o644); err != nil {
				return &ConfigError{Err: fmt.Errorf("write signature %s: %w", sigPath, err)}
			}
			fmt.Printf("wrote %s\n", sigPath)
			return nil
		},
	}
	cmd.Flags().StringVar(&keyPath, "key", "", "Path to a PEM-encoded RSA private key")
	cmd.MarkFlagRequired("key")
	return cmd
}

func newSecurityGenerateKeyPairCmd() *cobra.Command {
	var outDir string
	cmd := &cobra.Command{
		Use:   "generate-keypair",
		Short: "Generate a new RSA signing keypair",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			privPEM, pubPEM, err := security.GenerateKeyPair()
			if err != nil {
				return &ConfigError{Err: err}
			}
			if err := os.MkdirAll(outDir, 0o755); err != nil {
				return &ConfigError{Err: err}
			}
			privPath := filepath.Join(outDir, "signer.key")
			pubPath := filepath.Join(outDir, "signer.pub")
			if err := os.WriteFile(privPath, privPEM, 0o600); err != nil {
				return &ConfigError{Err: err}
			}
			if err := os.WriteFile(pubPath, pubPEM, 0o644); err != nil {
				return &ConfigError{Err: err}
			}
			fmt.Printf("wrote %s\nwrote %s\n", privPath, pubPath)
			return nil
		},
	}
	cmd.Flags().StringVar(&outDir, "output-dir", ".", "Directory to write signer.key and signer.pub into")
	return cmd
}

func newSecurityTrustCmd() *cobra.Command {
	var keyPath, id, comment string
	cmd := &cobra.Command{
		Use:   "trust",
		Short: "Add a public key to the trusted signer registry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			pubPEM, err := os.ReadFile(keyPath)
			if err != nil {
				return &ConfigError{Err: fmt.Errorf("read public key %s: %w", keyPath, err)}
			}
			path := trustedSignersPath(cmd)
			registry, err := security.LoadTrustedSignerRegistry(path)
			if err != nil {
				return &ConfigError{Err: err}
			}
			registry.Trust(id, string(pubPEM), comment)
			if err := registry.Save(path); err != nil {
				return &ConfigError{Err: err}
			}
			fmt.Printf("trusted %s\n", id)
			return nil
		},
	}
	cmd.Flags().StringVar(&keyPath, "key", "", "Path to a PEM-encoded RSA public key")
	cmd.Flags().StringVar(&id, "id", "", "Signer id to register the key under")
	cmd.Flags().StringVar(&comment, "comment", "", "Human-readable note stored alongside the record")
	cmd.MarkFlagRequired("key")
	cmd.MarkFlagRequired("id")
	return cmd
}

func newSecurityUntrustCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "untrust <id>",
		Short: "Remove a signer id from the trusted signer registry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := trustedSignersPath(cmd)
			registry, err := security.LoadTrustedSignerRegistry(path)
			if err != nil {
				return &ConfigError{Err: err}
			}
			if !registry.Untrust(args[0]) {
				return &ConfigError{Err: fmt.Errorf("signer %q is not trusted", args[0])}
			}
			if err := registry.Save(path); err != nil {
				return &ConfigError{Err: err}
			}
			fmt.Printf("untrusted %s\n", args[0])
			return nil
		},
	}
}

func newSecurityListTrustedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list-trusted",
		Short: "List every signer id in the trusted signer registry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			registry, err := security.LoadTrustedSignerRegistry(trustedSignersPath(cmd))
			if err != nil {
				return &ConfigError{Err: err}
			}
			records := registry.List()
			ids := make([]string, 0, len(records))
			for id := range records {
				ids = append(ids, id)
			}
			sort.Strings(ids)

			if jsonOutput(cmd) {
				return printJSON(records)
			}
			fmt.Println(tableHeaderStyle.Render(fmt.Sprintf("%-24s %s", "ID", "COMMENT")))
			for _, id := range ids {
				fmt.Printf("%-24s %s\n", id, records[id].Comment)
			}
			return nil
		},
	}
}
