package client

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

// SearchRequest represents the search API request.
type SearchRequest struct {
	Query    string  `json:"query"`
	K        int     `json:"k,omitempty"`
	MinScore float32 `json:"min_score,omitempty"`
}

// SearchResult represents one retrieved passage.
type SearchResult struct {
	ID             string  `json:"id"`
	SourceDocument string  `json:"source_document"`
	Text           string  `json:"text"`
	Score          float32 `json:"score"`
}

// SearchResponse represents the search API response.
type SearchResponse struct {
	Results []SearchResult `json:"results"`
}

// SearchCmd creates the search command.
func SearchCmd() *cobra.Command {
	var (
		k        int
		minScore float32
	)

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the knowledge base",
		Long:  "Retrieves the most relevant guideline passages without generating an answer.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runSearch(cmd, args[0], k, minScore, outputJSON)
		},
	}

	cmd.Flags().IntVarP(&k, "k", "n", 0, "Maximum number of passages (0 = server default)")
	cmd.Flags().Float32Var(&minScore, "min-score", 0, "Minimum similarity score (0 = server default)")

	return cmd
}

func runSearch(cmd *cobra.Command, query string, k int, minScore float32, outputJSON bool) error {
	api, err := NewAPIClientWithCmd(cmd)
	if err != nil {
		return err
	}

	resp, err := api.Post("/search", SearchRequest{Query: query, K: k, MinScore: minScore})
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	var searchResp SearchResponse
	if err := json.Unmarshal(resp.Data, &searchResp); err != nil {
		return fmt.Errorf("failed to parse search results: %w", err)
	}

	if outputJSON {
		output, _ := json.MarshalIndent(searchResp, "", "  ")
		fmt.Println(string(output))
		return nil
	}

	if len(searchResp.Results) == 0 {
		fmt.Println("No relevant passages found.")
		return nil
	}
	for _, r := range searchResp.Results {
		fmt.Printf("%s (%.3f)\n  %s\n", r.ID, r.Score, r.Text)
	}
	return nil
}
