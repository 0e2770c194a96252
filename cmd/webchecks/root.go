package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for webchecks.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "webchecks",
		Short: "Polite, policy-constrained web crawler",
		Long: `webchecks crawls websites while staying inside an operator-defined
security policy and the robots.txt of every host it touches.

Requests to each host are paced by an access profile, fetched content is
archived on disk and a summary of the run is printed when it ends.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")

	cmd.AddCommand(NewCrawlCmd())
	cmd.AddCommand(NewCheckCmd())
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
