package client

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

// StatusResponse represents the status API response.
type StatusResponse struct {
	Ready       bool   `json:"ready"`
	Building    bool   `json:"building"`
	BuildID     string `json:"build_id,omitempty"`
	Passages    int    `json:"passages,omitempty"`
	Dimensions  int    `json:"dimensions,omitempty"`
	BuiltAt     string `json:"built_at,omitempty"`
	Fingerprint string `json:"fingerprint,omitempty"`
}

// StatusCmd creates the status command.
func StatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show knowledge store status",
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runStatus(cmd, outputJSON)
		},
	}
}

func runStatus(cmd *cobra.Command, outputJSON bool) error {
	api, err := NewAPIClientWithCmd(cmd)
	if err != nil {
		return err
	}

	resp, err := api.Get("/status")
	if err != nil {
		return fmt.Errorf("status failed: %w", err)
	}

	var status StatusResponse
	if err := json.Unmarshal(resp.Data, &status); err != nil {
		return fmt.Errorf("failed to parse status: %w", err)
	}

	if outputJSON {
		output, _ := json.MarshalIndent(status, "", "  ")
		fmt.Println(string(output))
		return nil
	}

	if !status.Ready {
		fmt.Println("No knowledge store loaded.")
	} else {
		fmt.Printf("Build:      %s\n", status.BuildID)
		fmt.Printf("Passages:   %d\n", status.Passages)
		fmt.Printf("Dimensions: %d\n", status.Dimensions)
		fmt.Printf("Built at:   %s\n", status.BuiltAt)
	}
	if status.Building {
		fmt.Println("A rebuild is currently in progress.")
	}
	return nil
}
