package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"diagramport/pkg/backend"
)

// backendsCommand creates the backends command listing the rendering
// backends and their current availability.
func (c *CLI) backendsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "backends",
		Short: "List rendering backends and their availability",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sel := backend.NewDefaultSelector(0)

			spin := newSpinnerWithContext(cmd.Context(), "Probing backends")
			spin.Start()
			probes := make([]bool, len(sel.Backends()))
			for i, b := range sel.Backends() {
				probes[i] = b.Probe(cmd.Context())
			}
			spin.Stop()

			fmt.Println(StyleTitle.Render("Rendering Backends"))
			for i, b := range sel.Backends() {
				status := StyleWarning.Render("unavailable")
				if probes[i] {
					status = StyleSuccess.Render("available")
				}
				role := "fallback"
				if i == 0 {
					role = "primary"
				}
				printKeyValue(b.Name(), status+" "+StyleDim.Render("("+role+")"))
			}
			printNextStep("Force a backend", "diagramport export --backend embedded-graphviz <path>")
			return nil
		},
	}
}
