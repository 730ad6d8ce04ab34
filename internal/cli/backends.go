package cli

import (
	"os/exec"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/diagrender/pkg/render/backends"
	"github.com/matzehuels/diagrender/pkg/render/dot"
)

// lookPath finds tools for the backends command.
var lookPath = exec.LookPath

// backendsCommand creates the backends command listing available renderers.
func (c *CLI) backendsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "backends",
		Short: "List backends, the block classes they handle and their tools",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			missing := 0
			for _, b := range backends.Registry().Backends() {
				printKeyValue(b.Name(), strings.Join(b.Classes(), ", "))
				for _, tool := range backends.Tools[b.Name()] {
					path, err := lookPath(tool)
					switch {
					case err == nil:
						printDetail("%s %s %s", iconSuccess, tool, path)
					case b.Name() == dot.Name:
						printDetail("%s %s not found, using the builtin renderer", iconInfo, tool)
					default:
						printDetail("%s %s not found", iconError, tool)
						missing++
					}
				}
			}
			if missing > 0 {
				printWarning("%d tools missing; set <backend>-path in the configuration to point at them", missing)
			}
			return nil
		},
	}
}
