package main

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/nao1215/imgcrawl/internal/config"
	"github.com/nao1215/imgcrawl/internal/transform"
)

// NewTransformsCmd creates the transforms command.
func NewTransformsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "transforms",
		Short: "List available image transforms",
		Long: `List the built-in transforms that can be passed to 'imgcrawl crawl --transforms'.

Transforms marked with * run by default.`,
		Args: cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Available transforms (%d):\n\n", len(transform.Names()))
			for _, name := range transform.Names() {
				marker := " "
				if slices.Contains(config.DefaultTransforms, name) {
					marker = "*"
				}
				fmt.Fprintf(out, "  %s %-10s %-10s %s\n",
					marker, name, transform.DisplayName(name), transform.Description(name))
			}
		},
	}
}
