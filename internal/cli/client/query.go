package client

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// QueryRequest represents the query API request.
type QueryRequest struct {
	Query        string `json:"query"`
	DocumentName string `json:"document_name,omitempty"`
}

// QuerySource represents one cited source of an answer.
type QuerySource struct {
	Content      string  `json:"content"`
	DocumentName string  `json:"document_name"`
	ChunkIndex   int     `json:"chunk_index"`
	Similarity   float64 `json:"similarity"`
}

// QueryResponse represents the query API response.
type QueryResponse struct {
	Answer     string        `json:"answer"`
	Sources    []QuerySource `json:"sources"`
	Confidence float64       `json:"confidence"`
}

// QueryCmd creates the query command.
func QueryCmd() *cobra.Command {
	var document string

	cmd := &cobra.Command{
		Use:   "query <question>",
		Short: "Ask a question",
		Long:  "Asks a question against the ingested documents and prints the answer with its sources.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runQuery(cmd, args[0], document, outputJSON)
		},
	}

	cmd.Flags().StringVarP(&document, "document", "d", "", "Restrict the answer to one document")

	return cmd
}

func runQuery(cmd *cobra.Command, question, document string, outputJSON bool) error {
	api, err := NewAPIClientWithCmd(cmd)
	if err != nil {
		return err
	}

	resp, err := api.Post("/query", QueryRequest{
		Query:        question,
		DocumentName: document,
	})
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}

	var queryResp QueryResponse
	if err := json.Unmarshal(resp.Data, &queryResp); err != nil {
		return fmt.Errorf("failed to parse query response: %w", err)
	}

	if outputJSON {
		output, _ := json.MarshalIndent(queryResp, "", "  ")
		fmt.Println(string(output))
		return nil
	}

	fmt.Println(queryResp.Answer)
	fmt.Printf("\nConfidence: %.2f\n", queryResp.Confidence)

	if len(queryResp.Sources) > 0 {
		fmt.Printf("\nSources:\n")
		for i, src := range queryResp.Sources {
			fmt.Printf("%d. %s (chunk %d, %.2f)\n", i+1, src.DocumentName, src.ChunkIndex, src.Similarity)
			if src.Content != "" {
				fmt.Printf("   %s\n", strings.ReplaceAll(src.Content, "\n", " "))
			}
		}
	}

	return nil
}
