package client

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

// BuildResponse represents the build API response.
type BuildResponse struct {
	BuildID   string `json:"build_id"`
	Documents int    `json:"documents"`
	Passages  int    `json:"passages"`
	Skipped   []struct {
		ID     string `json:"id"`
		Reason string `json:"reason"`
	} `json:"skipped,omitempty"`
	ElapsedMS int64 `json:"elapsed_ms"`
}

// BuildCmd creates the build command, which asks the daemon to rebuild its
// knowledge store.
func BuildCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "build",
		Short: "Trigger a knowledge store rebuild",
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runBuild(cmd, outputJSON)
		},
	}
}

func runBuild(cmd *cobra.Command, outputJSON bool) error {
	api, err := NewAPIClientWithCmd(cmd)
	if err != nil {
		return err
	}

	resp, err := api.Post("/build", nil)
	if err != nil {
		return fmt.Errorf("build failed: %w", err)
	}

	var buildResp BuildResponse
	if err := json.Unmarshal(resp.Data, &buildResp); err != nil {
		return fmt.Errorf("failed to parse build report: %w", err)
	}

	if outputJSON {
		output, _ := json.MarshalIndent(buildResp, "", "  ")
		fmt.Println(string(output))
		return nil
	}

	fmt.Printf("build %s complete: %d documents, %d passages, %dms\n",
		buildResp.BuildID, buildResp.Documents, buildResp.Passages, buildResp.ElapsedMS)
	for _, s := range buildResp.Skipped {
		fmt.Printf("  skipped %s: %s\n", s.ID, s.Reason)
	}
	return nil
}
