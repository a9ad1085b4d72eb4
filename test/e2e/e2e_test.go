//go:build e2e

package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"testing"
	"time"
)

func postJSON(t *testing.T, url string, body string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s failed: %v", url, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read response: %v", err)
	}
	return resp, data
}

func getJSON(t *testing.T, url string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s failed: %v", url, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read response: %v", err)
	}
	return resp, data
}

func decodeData(t *testing.T, raw []byte, out interface{}) {
	t.Helper()
	var envelope struct {
		Data  json.RawMessage `json:"data"`
		Error string          `json:"error"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		t.Fatalf("failed to decode envelope: %v (%s)", err, raw)
	}
	if envelope.Error != "" {
		t.Fatalf("unexpected API error: %s", envelope.Error)
	}
	if err := json.Unmarshal(envelope.Data, out); err != nil {
		t.Fatalf("failed to decode data: %v (%s)", err, envelope.Data)
	}
}

const policyText = `Refund policy. Customers may request a refund within 30 days of purchase.
Refunds are processed to the original payment method within 5 business days.
Shipping policy. Orders ship within 2 business days. Expedited shipping is
available for an additional fee. International orders may incur customs duties.
Warranty policy. All products carry a 12 month limited warranty covering
manufacturing defects. The warranty does not cover accidental damage.`

func TestFullIngestionAndQueryFlow(t *testing.T) {
	env := SetupE2EEnv(t)
	base := env.Server.URL

	// Stage the document in the blob store and ingest synchronously.
	key := "uploads/policies.txt"
	if err := env.S3Client.PutObject(env.Ctx, key, "text/plain", strings.NewReader(policyText)); err != nil {
		t.Fatalf("failed to stage object: %v", err)
	}
	t.Cleanup(func() {
		if err := env.S3Client.DeleteObject(env.Ctx, key); err != nil {
			t.Logf("failed to delete staged object: %v", err)
		}
	})

	resp, raw := postJSON(t, base+"/documents/process", fmt.Sprintf(`{"file_name":%q,"document_name":"policies"}`, key))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("process returned %d: %s", resp.StatusCode, raw)
	}
	var processed struct {
		ChunksProcessed          int  `json:"chunks_processed"`
		FewShotExamplesGenerated bool `json:"few_shot_examples_generated"`
	}
	decodeData(t, raw, &processed)
	if processed.ChunksProcessed == 0 {
		t.Fatal("expected at least one chunk")
	}
	if !processed.FewShotExamplesGenerated {
		t.Fatal("expected few-shot examples to be generated")
	}

	// Re-processing is idempotent.
	resp, raw = postJSON(t, base+"/documents/process", fmt.Sprintf(`{"file_name":%q,"document_name":"policies"}`, key))
	var reprocessed struct {
		ChunksProcessed int `json:"chunks_processed"`
	}
	decodeData(t, raw, &reprocessed)
	if reprocessed.ChunksProcessed != processed.ChunksProcessed {
		t.Fatalf("idempotent reprocess reported %d chunks, want %d", reprocessed.ChunksProcessed, processed.ChunksProcessed)
	}

	// Search finds refund content.
	resp, raw = postJSON(t, base+"/search", `{"query":"refund within 30 days of purchase","limit":5}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("search returned %d: %s", resp.StatusCode, raw)
	}
	var search struct {
		Results []struct {
			Content      string  `json:"content"`
			DocumentName string  `json:"document_name"`
			Similarity   float64 `json:"similarity"`
		} `json:"results"`
	}
	decodeData(t, raw, &search)
	if len(search.Results) == 0 {
		t.Fatal("expected search results")
	}
	if search.Results[0].DocumentName != "policies" {
		t.Fatalf("unexpected document: %s", search.Results[0].DocumentName)
	}
	for i := 1; i < len(search.Results); i++ {
		if search.Results[i].Similarity > search.Results[i-1].Similarity {
			t.Fatal("results not ordered by similarity")
		}
	}

	// Query produces an answer with sources and confidence.
	resp, raw = postJSON(t, base+"/query", `{"query":"How long is the refund window after purchase?","document_name":"policies"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("query returned %d: %s", resp.StatusCode, raw)
	}
	var answer struct {
		Answer     string  `json:"answer"`
		Confidence float64 `json:"confidence"`
		Sources    []struct {
			DocumentName string `json:"document_name"`
		} `json:"sources"`
	}
	decodeData(t, raw, &answer)
	if answer.Answer == "" {
		t.Fatal("expected a non-empty answer")
	}
	if len(answer.Sources) == 0 {
		t.Fatal("expected sources")
	}
	if answer.Confidence <= 0 || answer.Confidence > 1 {
		t.Fatalf("confidence out of range: %f", answer.Confidence)
	}

	// Listing shows the document.
	resp, raw = getJSON(t, base+"/documents")
	var listing struct {
		Items []struct {
			Name       string `json:"name"`
			ChunkCount int    `json:"chunk_count"`
		} `json:"items"`
	}
	decodeData(t, raw, &listing)
	if len(listing.Items) != 1 || listing.Items[0].Name != "policies" {
		t.Fatalf("unexpected listing: %+v", listing.Items)
	}
	if listing.Items[0].ChunkCount != processed.ChunksProcessed {
		t.Fatalf("listing chunk count %d, want %d", listing.Items[0].ChunkCount, processed.ChunksProcessed)
	}

	// Stats reflect the store.
	resp, raw = getJSON(t, base+"/stats")
	var stats struct {
		Documents   int `json:"documents"`
		Chunks      int `json:"chunks"`
		ExampleSets int `json:"example_sets"`
		Queries     int `json:"queries"`
	}
	decodeData(t, raw, &stats)
	if stats.Documents != 1 || stats.Chunks != processed.ChunksProcessed || stats.ExampleSets != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if stats.Queries == 0 {
		t.Fatal("expected query log entries")
	}

	// Deleting removes chunks and examples together.
	req, _ := http.NewRequest(http.MethodDelete, base+"/documents/policies", nil)
	delResp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	delRaw, _ := io.ReadAll(delResp.Body)
	delResp.Body.Close()
	if delResp.StatusCode != http.StatusOK {
		t.Fatalf("delete returned %d: %s", delResp.StatusCode, delRaw)
	}
	var deleted struct {
		DeletedChunks   int  `json:"deleted_chunks"`
		DeletedExamples bool `json:"deleted_examples"`
	}
	decodeData(t, delRaw, &deleted)
	if deleted.DeletedChunks != processed.ChunksProcessed || !deleted.DeletedExamples {
		t.Fatalf("unexpected delete result: %+v", deleted)
	}

	// Gone from the store.
	resp, raw = postJSON(t, base+"/query", `{"query":"refund window"}`)
	var emptyAnswer struct {
		Confidence float64 `json:"confidence"`
		Sources    []struct{} `json:"sources"`
	}
	decodeData(t, raw, &emptyAnswer)
	if emptyAnswer.Confidence != 0 || len(emptyAnswer.Sources) != 0 {
		t.Fatalf("expected empty-store answer, got %+v", emptyAnswer)
	}
}

func TestAsyncUploadFlow(t *testing.T) {
	env := SetupE2EEnv(t)
	base := env.Server.URL

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", "notes.txt")
	if err != nil {
		t.Fatal(err)
	}
	part.Write([]byte("Meeting notes. The quarterly budget review is scheduled for March."))
	writer.WriteField("document_name", "notes")
	writer.Close()

	resp, err := http.Post(base+"/documents", writer.FormDataContentType(), &buf)
	if err != nil {
		t.Fatalf("upload failed: %v", err)
	}
	raw, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("upload returned %d: %s", resp.StatusCode, raw)
	}
	var upload struct {
		JobID  string `json:"job_id"`
		Status string `json:"status"`
	}
	decodeData(t, raw, &upload)
	if upload.Status != "pending" {
		t.Fatalf("unexpected job status: %s", upload.Status)
	}

	// Wait for the worker to pick up and complete the job.
	deadline := time.Now().Add(15 * time.Second)
	for {
		_, raw := getJSON(t, base+"/documents")
		var listing struct {
			Items []struct {
				Name string `json:"name"`
			} `json:"items"`
		}
		decodeData(t, raw, &listing)
		if len(listing.Items) == 1 && listing.Items[0].Name == "notes" {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for ingestion job")
		}
		time.Sleep(300 * time.Millisecond)
	}

	_, raw = postJSON(t, base+"/search", `{"query":"quarterly budget review"}`)
	var search struct {
		Results []struct {
			DocumentName string `json:"document_name"`
		} `json:"results"`
	}
	decodeData(t, raw, &search)
	if len(search.Results) == 0 || search.Results[0].DocumentName != "notes" {
		t.Fatalf("expected notes in search results, got %+v", search.Results)
	}
}
