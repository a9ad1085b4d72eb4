package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/docsage/docsage/internal/cli"
	"github.com/docsage/docsage/internal/cli/client"
)

var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:   "docsage",
		Short: "Docsage CLI - Ask questions about your documents",
		Long: `Docsage CLI provides commands to ingest documents and query them.

Environment variables:
  DOCSAGE_API_URL   API base URL (default: http://localhost:8080)`,
		Version: version,
	}

	rootCmd.PersistentFlags().Bool("output", false, "Output as JSON")
	rootCmd.PersistentFlags().String("api-url", "", "API base URL (overrides env)")
	cli.AddHelpJSONFlag(rootCmd)

	rootCmd.AddCommand(client.QueryCmd())
	rootCmd.AddCommand(client.SearchCmd())
	rootCmd.AddCommand(client.UploadCmd())
	rootCmd.AddCommand(client.ProcessCmd())
	rootCmd.AddCommand(client.DocsCmd())
	rootCmd.AddCommand(client.StatsCmd())

	cli.CheckHelpJSON(rootCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
