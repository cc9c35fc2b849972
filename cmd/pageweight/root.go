package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for pageweight.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pageweight",
		Short: "Find what makes the HTML of a website heavy",
		Long: `pageweight audits the HTML weight of a website.

It reads the sitemap, groups the pages into URL templates, crawls a few
sample pages per template and reports the inline elements that inflate
the HTML: scripts, styles, SVG, data URIs, serialized JSON state,
hidden content and large DOM subtrees.

Fetched pages are cached on disk so that repeated audits do not hit the
site again, and every report is kept in a local run history.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().Bool("log-json", false, "Write logs as JSON")

	cmd.AddCommand(NewAuditCmd())
	cmd.AddCommand(NewHistoryCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
