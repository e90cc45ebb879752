package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/flowmesh-dev/flowmesh/internal/manifest"
	"github.com/flowmesh-dev/flowmesh/internal/registry"
	"github.com/flowmesh-dev/flowmesh/internal/security"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

// ModuleInfo is the JSON shape of one `list modules` row.
type ModuleInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	Verdict string `json:"verdict"`
	Signer  string `json:"signer,omitempty"`
	Path    string `json:"path"`
}

// PipelineInfo is the JSON shape of one `list pipelines` row.
type PipelineInfo struct {
	Name      string `json:"name"`
	SlotCount int    `json:"slot_count"`
	Path      string `json:"path"`
}

var (
	tableHeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("14"))
	tableDimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
)

// NewListCmd builds `list modules` and `list pipelines`.
func NewListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List discovered modules or pipelines",
	}
	cmd.AddCommand(newListModulesCmd())
	cmd.AddCommand(newListPipelinesCmd())
	return cmd
}

func newListModulesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "modules",
		Short: "List modules discovered under the configured module roots",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			roots, err := moduleRoots(cmd)
			if err != nil {
				return err
			}
			signers, err := security.LoadTrustedSignerRegistry(trustedSignersPath(cmd))
			if err != nil {
				return &ConfigError{Err: err}
			}
			reg, discErrs := registry.Discover(roots, signers)
			for _, e := range discErrs {
				fmt.Fprintf(os.Stderr, "warning: %v\n", e)
			}

			entries := reg.ListAll()
			names := make([]string, 0, len(entries))
			for name := range entries {
				names = append(names, name)
			}
			sort.Strings(names)

			infos := make([]ModuleInfo, 0, len(names))
			for _, name := range names {
				e := entries[name]
				infos = append(infos, ModuleInfo{
					Name:    e.Manifest.Name,
					Version: e.Manifest.Version,
					Verdict: string(e.Result.Verdict),
					Signer:  e.Result.SignerID,
					Path:    e.Path,
				})
			}

			if jsonOutput(cmd) {
				return printJSON(infos)
			}
			printModuleTable(infos)
			return nil
		},
	}
}

func newListPipelinesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pipelines",
		Short: "List pipeline documents under the configured pipeline directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := pipelineDir(cmd)
			children, err := os.ReadDir(dir)
			if err != nil {
				return &ConfigError{Err: fmt.Errorf("read pipeline dir %s: %w", dir, err)}
			}

			var infos []PipelineInfo
			for _, child := range children {
				if child.IsDir() || !isYAMLFile(child.Name()) {
					continue
				}
				path := dir + string(os.PathSeparator) + child.Name()
				p, err := manifest.LoadPipeline(path)
				if err != nil {
					fmt.Fprintf(os.Stderr, "warning: skipping %s: %v\n", path, err)
					continue
				}
				infos = append(infos, PipelineInfo{Name: p.Name, SlotCount: len(p.Slots), Path: path})
			}
			sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })

			if jsonOutput(cmd) {
				return printJSON(infos)
			}
			printPipelineTable(infos)
			return nil
		},
	}
}

func isYAMLFile(name string) bool {
	for _, suffix := range []string{".yaml", ".yml"} {
		if len(name) > len(suffix) && name[len(name)-len(suffix):] == suffix {
			return true
		}
	}
	return false
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printModuleTable(infos []ModuleInfo) {
	fmt.Println(tableHeaderStyle.Render(fmt.Sprintf("%-24s %-10s %-22s %-12s %s", "NAME", "VERSION", "VERDICT", "SIGNER", "PATH")))
	if len(infos) == 0 {
		fmt.Println(tableDimStyle.Render("(no modules discovered)"))
		return
	}
	for _, m := range infos {
		style := verdictStyle(m.Verdict)
		fmt.Printf("%-24s %-10s %s %-12s %s\n",
			m.Name, m.Version, style.Render(fmt.Sprintf("%-22s", m.Verdict)), m.Signer, tableDimStyle.Render(m.Path))
	}
}

func printPipelineTable(infos []PipelineInfo) {
	fmt.Println(tableHeaderStyle.Render(fmt.Sprintf("%-24s %-6s %s", "NAME", "SLOTS", "PATH")))
	if len(infos) == 0 {
		fmt.Println(tableDimStyle.Render("(no pipelines found)"))
		return
	}
	for _, p := range infos {
		fmt.Printf("%-24s %-6d %s\n", p.Name, p.SlotCount, tableDimStyle.Render(p.Path))
	}
}

func verdictStyle(verdict string) lipgloss.Style {
	switch security.Verdict(verdict) {
	case security.VerifiedByTrusted:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	case security.SignedButUntrusted:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	case security.Invalid:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	default:
		return tableDimStyle
	}
}
