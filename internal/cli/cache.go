package cli

import (
	"fmt"
	"sort"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/matzehuels/diagrender/pkg/cache"
	"github.com/matzehuels/diagrender/pkg/config"
	"github.com/matzehuels/diagrender/pkg/errors"
)

// cacheCommand creates the cache management command.
func (c *CLI) cacheCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and clear image folders",
		Long: `Manage cached images. Without a folder argument, the commands use every
<backend>-image-folder set in the configuration file, or the current directory.`,
	}

	cmd.AddCommand(c.cacheListCommand())
	cmd.AddCommand(c.cacheClearCommand())
	cmd.AddCommand(c.cacheBrowseCommand())

	return cmd
}

// cacheListCommand creates the "cache list" subcommand.
func (c *CLI) cacheListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list [folder...]",
		Short: "List cached images",
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := c.cacheEntries(args)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				printInfo("No cached images")
				printNextStep("Render a document", "diagrender render notes.md -o out.md")
				return nil
			}

			out := cmd.OutOrStdout()
			var total int64
			for _, e := range entries {
				fmt.Fprintf(out, "%s\t%s\n", e.Path, formatSize(e.Size))
				total += e.Size
			}
			printDetail("%d images, %s", len(entries), formatSize(total))
			return nil
		},
	}
}

// cacheClearCommand creates the "cache clear" subcommand.
func (c *CLI) cacheClearCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "clear [folder...]",
		Short: "Remove cached images",
		Long:  `Remove every file named like a cache entry (<identity>[n].<format>). Other files are left alone.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			folders, err := c.cacheFolders(args)
			if err != nil {
				return err
			}
			count := 0
			for _, folder := range folders {
				n, err := cache.NewStore(folder).Clear()
				count += n
				if err != nil {
					return errors.Wrap(errors.ErrCodeFilesystem, err, "clear %s", folder)
				}
			}
			if count == 0 {
				printInfo("Cache is empty")
				return nil
			}
			printSuccess("Cleared %d cached images", count)
			printDetail("Folders: %s", strings.Join(folders, ", "))
			return nil
		},
	}
}

// cacheBrowseCommand creates the "cache browse" subcommand.
func (c *CLI) cacheBrowseCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "browse [folder...]",
		Short: "Browse and delete cached images interactively",
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := c.cacheEntries(args)
			if err != nil {
				return err
			}

			final, err := tea.NewProgram(NewCacheBrowserModel(entries), tea.WithContext(cmd.Context())).Run()
			if err != nil {
				return errors.Wrap(errors.ErrCodeInternal, err, "cache browser")
			}

			m := final.(CacheBrowserModel)
			if m.Deleted > 0 {
				printSuccess("Deleted %d cached images", m.Deleted)
			}
			if m.Selected != nil {
				fmt.Fprintln(cmd.OutOrStdout(), m.Selected.Path)
			}
			return nil
		},
	}
}

// cacheFolders returns args, or the image folders named in the
// configuration file, or the current directory.
func (c *CLI) cacheFolders(args []string) ([]string, error) {
	if len(args) > 0 {
		for _, f := range args {
			if err := errors.ValidateFolder(f); err != nil {
				return nil, err
			}
		}
		return args, nil
	}

	cfg, err := config.Load(c.configPath)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "load configuration")
	}
	seen := map[string]bool{}
	var folders []string
	for k, v := range cfg.Metadata {
		s, ok := v.(string)
		if !ok || !strings.HasSuffix(k, "-image-folder") || seen[s] {
			continue
		}
		seen[s] = true
		folders = append(folders, s)
	}
	if len(folders) == 0 {
		return []string{"."}, nil
	}
	sort.Strings(folders)
	return folders, nil
}

func (c *CLI) cacheEntries(args []string) ([]cache.Entry, error) {
	folders, err := c.cacheFolders(args)
	if err != nil {
		return nil, err
	}
	var all []cache.Entry
	for _, folder := range folders {
		entries, err := cache.NewStore(folder).Entries()
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeFilesystem, err, "list %s", folder)
		}
		all = append(all, entries...)
	}
	return all, nil
}
