package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/akaclinicalco/jtskb/internal/cli"
	"github.com/akaclinicalco/jtskb/internal/cli/admin"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "jtskbd",
		Short: "JTS knowledge base daemon",
		Long:  "jtskbd serves trauma-guideline question answering and manages the knowledge store",
	}

	cli.AddHelpJSONFlag(rootCmd)
	rootCmd.AddCommand(admin.ServeCmd())
	rootCmd.AddCommand(admin.BuildCmd())

	if len(os.Args) == 1 {
		os.Args = append(os.Args, "serve")
	}

	cli.CheckHelpJSON(rootCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
