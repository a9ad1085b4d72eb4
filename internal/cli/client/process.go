package client

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

// ProcessRequest represents the process API request.
type ProcessRequest struct {
	FileName     string `json:"file_name"`
	DocumentName string `json:"document_name,omitempty"`
}

// ProcessResponse represents the process API response.
type ProcessResponse struct {
	DocumentName             string `json:"document_name"`
	ChunksProcessed          int    `json:"chunks_processed"`
	FewShotExamplesGenerated bool   `json:"few_shot_examples_generated"`
}

// ProcessCmd creates the process command.
func ProcessCmd() *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "process <object-key>",
		Short: "Ingest an already-uploaded object synchronously",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runProcess(cmd, args[0], name, outputJSON)
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Document name (defaults to the object key base name)")

	return cmd
}

func runProcess(cmd *cobra.Command, objectKey, name string, outputJSON bool) error {
	api, err := NewAPIClientWithCmd(cmd)
	if err != nil {
		return err
	}

	resp, err := api.Post("/documents/process", ProcessRequest{
		FileName:     objectKey,
		DocumentName: name,
	})
	if err != nil {
		return fmt.Errorf("processing failed: %w", err)
	}

	var processResp ProcessResponse
	if err := json.Unmarshal(resp.Data, &processResp); err != nil {
		return fmt.Errorf("failed to parse process response: %w", err)
	}

	if outputJSON {
		output, _ := json.MarshalIndent(processResp, "", "  ")
		fmt.Println(string(output))
		return nil
	}

	fmt.Printf("Ingested %q: %d chunks stored", processResp.DocumentName, processResp.ChunksProcessed)
	if processResp.FewShotExamplesGenerated {
		fmt.Print(", example set generated")
	}
	fmt.Println()

	return nil
}
