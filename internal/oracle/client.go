// Package oracle talks to the external classification service: it
// labels a URL's content status or assigns bookmarks to semantic
// categories. The service is a black box behind a fixed JSON contract;
// malformed responses are retryable, a quota signature is fatal.
package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

const (
	apiURL       = "https://api.anthropic.com/v1/messages"
	apiVersion   = "2023-06-01"
	betaHeader   = "structured-outputs-2025-11-13"
	defaultModel = "claude-haiku-4-5-20251001"
)

var (
	ErrNoAPIKey        = errors.New("ANTHROPIC_API_KEY environment variable not set")
	ErrAPIRequest      = errors.New("API request failed")
	ErrInvalidResponse = errors.New("invalid API response")

	// ErrQuotaExceeded means the usage allowance is exhausted for the
	// current period. Retrying cannot help; callers must abort the
	// whole pipeline and stop issuing oracle calls.
	ErrQuotaExceeded = errors.New("oracle quota exceeded")
)

// quotaSignatures are body fragments that identify quota, billing, or
// rate-limit rejections rather than transient failures.
var quotaSignatures = []string{
	"quota",
	"billing",
	"rate limit",
	"rate_limit",
	"credit balance",
	"insufficient credits",
}

// IsQuotaSignature reports whether text carries a quota/billing/rate
// limit indicator.
func IsQuotaSignature(text string) bool {
	lower := strings.ToLower(text)
	for _, sig := range quotaSignatures {
		if strings.Contains(lower, sig) {
			return true
		}
	}
	return false
}

// Client handles communication with the classification service.
type Client struct {
	apiKey     string
	model      string
	httpClient *http.Client
}

// NewClient creates a new oracle client.
// Returns an error if ANTHROPIC_API_KEY is not set.
func NewClient(model string) (*Client, error) {
	apiKey := os.Getenv("ANTHROPIC_API_KEY")
	if apiKey == "" {
		return nil, ErrNoAPIKey
	}
	if model == "" {
		model = defaultModel
	}

	return &Client{
		apiKey: apiKey,
		model:  model,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}, nil
}

// ClassifyLinks submits one batch of {id, url} pairs and returns one
// verdict per id from the closed status set.
func (c *Client) ClassifyLinks(ctx context.Context, targets []LinkTarget) ([]LinkVerdict, error) {
	payload, err := json.Marshal(targets)
	if err != nil {
		return nil, fmt.Errorf("marshal targets: %w", err)
	}

	noExtra := false
	schema := jsonSchema{
		Type: "array",
		Items: &jsonSchema{
			Type: "object",
			Properties: map[string]jsonSchema{
				"id":     {Type: "string"},
				"status": {Type: "string", Enum: statusLabels},
				"newUrl": {Type: "string"},
			},
			Required:             []string{"id", "status"},
			AdditionalProperties: &noExtra,
		},
	}

	text, err := c.complete(ctx, buildClassifyPrompt(string(payload)), schema)
	if err != nil {
		return nil, err
	}

	var verdicts []LinkVerdict
	if err := json.Unmarshal([]byte(text), &verdicts); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	for _, v := range verdicts {
		if v.ID == "" || !v.Status.Valid() {
			return nil, fmt.Errorf("%w: verdict missing id or status", ErrInvalidResponse)
		}
	}
	return verdicts, nil
}

// Categorize submits one batch of {id, title, url} items and returns
// proposed folders with member bookmark ids. Items the oracle leaves
// unassigned are simply absent from every assignment.
func (c *Client) Categorize(ctx context.Context, items []CategorizeItem) ([]CategoryAssignment, error) {
	payload, err := json.Marshal(items)
	if err != nil {
		return nil, fmt.Errorf("marshal items: %w", err)
	}

	noExtra := false
	schema := jsonSchema{
		Type: "array",
		Items: &jsonSchema{
			Type: "object",
			Properties: map[string]jsonSchema{
				"folderName":  {Type: "string"},
				"bookmarkIds": {Type: "array", Items: &jsonSchema{Type: "string"}},
			},
			Required:             []string{"folderName", "bookmarkIds"},
			AdditionalProperties: &noExtra,
		},
	}

	text, err := c.complete(ctx, buildCategorizePrompt(string(payload)), schema)
	if err != nil {
		return nil, err
	}

	var assignments []CategoryAssignment
	if err := json.Unmarshal([]byte(text), &assignments); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	for _, a := range assignments {
		if a.FolderName == "" {
			return nil, fmt.Errorf("%w: assignment missing folderName", ErrInvalidResponse)
		}
	}
	return assignments, nil
}

// complete sends one structured-output request and returns the text of
// the first content block.
func (c *Client) complete(ctx context.Context, prompt string, schema jsonSchema) (string, error) {
	reqBody := apiRequest{
		Model:     c.model,
		MaxTokens: 4096,
		Messages: []apiMessage{
			{Role: "user", Content: prompt},
		},
		OutputFormat: &outputFormat{
			Type:   "json_schema",
			Schema: schema,
		},
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", apiURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", apiVersion)
	req.Header.Set("anthropic-beta", betaHeader)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrAPIRequest, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return "", fmt.Errorf("%w: status 429", ErrQuotaExceeded)
	}
	if resp.StatusCode != http.StatusOK {
		if IsQuotaSignature(string(body)) {
			return "", fmt.Errorf("%w: %s", ErrQuotaExceeded, strings.TrimSpace(string(body)))
		}
		return "", fmt.Errorf("%w: status %d: %s", ErrAPIRequest, resp.StatusCode, string(body))
	}

	var apiResp apiResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}

	if len(apiResp.Content) == 0 || apiResp.Content[0].Type != "text" {
		return "", ErrInvalidResponse
	}

	return apiResp.Content[0].Text, nil
}

func buildClassifyPrompt(targetsJSON string) string {
	return fmt.Sprintf(`Classify the current content status of each bookmarked URL below.

Bookmarks (JSON array of {id, url}):
%s

Instructions:
- Return one object per input id
- status must be one of: %s
- Use OK when the URL still serves the content a bookmark owner would expect
- Use PermanentRedirect when the content moved for good, and set newUrl to the new location
- Use ContentShift when the page exists but its content changed topic entirely
- Use ParkedDomain / DomainForSale for lapsed domains
- Use UnknownError only when nothing else fits`, targetsJSON, strings.Join(statusLabels, ", "))
}

func buildCategorizePrompt(itemsJSON string) string {
	return fmt.Sprintf(`Group the bookmarks below into a small set of semantic categories.

Bookmarks (JSON array of {id, title, url}):
%s

Instructions:
- Propose concise, capitalized category names (e.g. "Development", "News")
- Assign every bookmark id to exactly one category
- Prefer 5-12 broad categories over many narrow ones
- Reuse an earlier category name when it fits instead of inventing a variant`, itemsJSON)
}
