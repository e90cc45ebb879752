package security

import (
	"os"

	"github.com/charmbracelet/huh"
	"golang.org/x/term"
)

// TerminalPrompt builds a PromptFunc that asks the operator, via a huh
// select form, whether to admit a module. When stdin is
// not an interactive terminal (golang.org/x/term.IsTerminal), it falls
// back to Deny rather than blocking a non-interactive run forever.
func TerminalPrompt() PromptFunc {
	return func(moduleName, reason string) PromptDecision {
		if !term.IsTerminal(int(os.Stdin.Fd())) {
			return Deny
		}

		options := []huh.Option[string]{
			huh.NewOption("Allow once", string(AllowOnce)),
			huh.NewOption("Deny", string(Deny)),
			huh.NewOption("Always allow this module", string(AllowAlways)),
		}

		choice := string(Deny)
		form := huh.NewForm(
			huh.NewGroup(
				huh.NewSelect[string]().
					Title("Module " + moduleName + " requires admission").
					Description(reason).
					Options(options...).
					Value(&choice),
			),
		)
		if err := form.Run(); err != nil {
			return Deny
		}
		return PromptDecision(choice)
	}
}
