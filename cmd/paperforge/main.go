package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

var noColor bool

var rootCmd = &cobra.Command{
	Use:   "paperforge",
	Short: "paperforge — personal knowledge graph built from papers",
	Long: `paperforge extracts concepts and relations from papers, stores them in a
per-user knowledge graph, and serves keyword, traversal, and semantic
similarity queries over HTTP and MCP.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the paperforge version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("paperforge version %s\n", version)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.AddCommand(startCmd, stopCmd, statusCmd, ingestCmd, searchCmd, papersCmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
