package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/akaclinicalco/jtskb/internal/cli"
	"github.com/akaclinicalco/jtskb/internal/cli/client"
)

var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:   "jtskb",
		Short: "JTS knowledge base CLI - trauma guideline question answering",
		Long: `jtskb asks questions of a running jtskbd daemon.

Environment variables:
  JTSKB_API_URL   API base URL (default: http://localhost:8080)`,
		Version: version,
	}

	rootCmd.PersistentFlags().Bool("output", false, "Output as JSON")
	rootCmd.PersistentFlags().String("api-url", "", "API base URL (overrides env)")
	cli.AddHelpJSONFlag(rootCmd)

	rootCmd.AddCommand(client.AskCmd())
	rootCmd.AddCommand(client.SearchCmd())
	rootCmd.AddCommand(client.StatusCmd())
	rootCmd.AddCommand(client.BuildCmd())

	cli.CheckHelpJSON(rootCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
