package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/diagrender/pkg/render/backends"
)

// completionCommand creates the completion command for generating shell completions.
func (c *CLI) completionCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Long: `Generate shell completion scripts for diagrender.

To load completions:

Bash:
  $ source <(diagrender completion bash)

  # To load completions for each session, execute once:
  # Linux:
  $ diagrender completion bash > /etc/bash_completion.d/diagrender
  # macOS:
  $ diagrender completion bash > $(brew --prefix)/etc/bash_completion.d/diagrender

Zsh:
  # If shell completion is not already enabled in your environment,
  # you will need to enable it. You can execute the following once:
  $ echo "autoload -U compinit; compinit" >> ~/.zshrc

  # To load completions for each session, execute once:
  $ diagrender completion zsh > "${fpath[1]}/_diagrender"

  # You will need to start a new shell for this setup to take effect.

Fish:
  $ diagrender completion fish | source

  # To load completions for each session, execute once:
  $ diagrender completion fish > ~/.config/fish/completions/diagrender.fish

PowerShell:
  PS> diagrender completion powershell | Out-String | Invoke-Expression

  # To load completions for every new session, run:
  PS> diagrender completion powershell > diagrender.ps1
  # and source this file from your PowerShell profile.
`,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletion(cmd.OutOrStdout())
			case "zsh":
				return cmd.Root().GenZshCompletion(cmd.OutOrStdout())
			case "fish":
				return cmd.Root().GenFishCompletion(cmd.OutOrStdout(), true)
			case "powershell":
				return cmd.Root().GenPowerShellCompletionWithDesc(cmd.OutOrStdout())
			}
			return nil
		},
	}

	return cmd
}

// completeClasses completes block classes for --lang. Classes are listed
// with their backend as the description.
func completeClasses(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	var out []string
	for _, b := range backends.All() {
		for _, class := range b.Classes() {
			if strings.HasPrefix(class, toComplete) {
				out = append(out, class+"\t"+b.Name())
			}
		}
	}
	return out, cobra.ShellCompDirectiveNoFileComp
}

// completeBackends completes backend names for --backends.
func completeBackends(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	var out []string
	for _, b := range backends.All() {
		out = append(out, b.Name())
	}
	return out, cobra.ShellCompDirectiveNoFileComp
}
