package client

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/akaclinicalco/jtskb/internal/engine"
)

// ExchangeRequest is one prior question/answer pair sent with a query.
type ExchangeRequest struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// AskRequest represents the query API request.
type AskRequest struct {
	Query    string            `json:"query"`
	History  []ExchangeRequest `json:"history,omitempty"`
	TierHint string            `json:"tier_hint,omitempty"`
}

// AskResponse represents the query API response.
type AskResponse struct {
	AnswerText  string `json:"answer_text"`
	Tier        string `json:"tier"`
	Cached      bool   `json:"cached"`
	ChunksFound int    `json:"chunks_found"`
}

// AskCmd creates the ask command.
func AskCmd() *cobra.Command {
	var (
		tierHint    string
		interactive bool
	)

	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask the knowledge base a question",
		Long:  "Sends a question through the retrieval pipeline and prints the generated answer.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			if interactive || len(args) == 0 {
				return runAskInteractive(cmd, tierHint)
			}
			return runAsk(cmd, args[0], nil, tierHint, outputJSON)
		},
	}

	cmd.Flags().StringVar(&tierHint, "tier", "", "Preferred generation tier (remote, cloud, local)")
	cmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "Start an interactive session")

	return cmd
}

func runAsk(cmd *cobra.Command, question string, history []ExchangeRequest, tierHint string, outputJSON bool) error {
	api, err := NewAPIClientWithCmd(cmd)
	if err != nil {
		return err
	}

	resp, err := api.Post("/query", AskRequest{
		Query:    question,
		History:  history,
		TierHint: tierHint,
	})
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}

	var askResp AskResponse
	if err := json.Unmarshal(resp.Data, &askResp); err != nil {
		return fmt.Errorf("failed to parse answer: %w", err)
	}

	if outputJSON {
		output, _ := json.MarshalIndent(askResp, "", "  ")
		fmt.Println(string(output))
		return nil
	}

	fmt.Println(askResp.AnswerText)
	if askResp.Cached {
		fmt.Println("(cached)")
	}
	return nil
}

// runAskInteractive holds a conversation, carrying a bounded window of
// prior exchanges so follow-up questions have context.
func runAskInteractive(cmd *cobra.Command, tierHint string) error {
	api, err := NewAPIClientWithCmd(cmd)
	if err != nil {
		return err
	}

	session := engine.NewSession(engine.DefaultMaxHistory)
	scanner := bufio.NewScanner(os.Stdin)

	fmt.Println("Interactive session. Empty line or Ctrl-D exits.")
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		question := strings.TrimSpace(scanner.Text())
		if question == "" {
			break
		}

		var history []ExchangeRequest
		for _, ex := range session.History() {
			history = append(history, ExchangeRequest{Question: ex.Question, Answer: ex.Answer})
		}

		resp, err := api.Post("/query", AskRequest{
			Query:    question,
			History:  history,
			TierHint: tierHint,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			continue
		}

		var askResp AskResponse
		if err := json.Unmarshal(resp.Data, &askResp); err != nil {
			fmt.Fprintf(os.Stderr, "error: failed to parse answer: %v\n", err)
			continue
		}

		fmt.Println(askResp.AnswerText)
		session.Record(question, askResp.AnswerText)
	}
	return scanner.Err()
}
