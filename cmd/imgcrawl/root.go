package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for imgcrawl.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "imgcrawl",
		Short: "Crawl a website and transform every image it links",
		Long: `imgcrawl crawls a website from a root page, follows hyperlinks up to a
bounded depth, downloads each image it finds once, and applies a pipeline of
transforms to every image.

Transformed images are cached, and a per-(image, transform) claim in the local
database makes sure each pair is processed at most once, across runs too.
Use --fresh to process everything again.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().Bool("log-json", false, "Write logs as JSON")

	cmd.AddCommand(NewCrawlCmd())
	cmd.AddCommand(NewHistoryCmd())
	cmd.AddCommand(NewTransformsCmd())
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
