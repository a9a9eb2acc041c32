package admin

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/akaclinicalco/jtskb/internal/config"
)

// BuildCmd returns the build command, which rebuilds the knowledge store
// from the configured corpus without starting the server.
func BuildCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "build",
		Short: "Rebuild the knowledge store",
		Long:  "Chunk, embed, and index the configured corpus into a fresh knowledge store",
		RunE:  runBuild,
	}
}

func runBuild(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	comps, err := newComponents(ctx, cfg)
	if err != nil {
		return err
	}

	report, err := comps.reindexer.Force(ctx)
	if err != nil {
		return fmt.Errorf("build failed: %w", err)
	}

	fmt.Printf("build %s complete: %d documents, %d passages, took %s\n",
		report.BuildID, report.Documents, report.Passages, report.Elapsed.Round(time.Millisecond))
	for _, s := range report.Skipped {
		fmt.Printf("  skipped %s: %s\n", s.ID, s.Reason)
	}
	return nil
}
