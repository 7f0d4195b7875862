package verification

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

var ErrAPIKeyRequired = errors.New("AI API key is required")

const comparePrompt = `You verify identities. The first image is an identity document, the second is a selfie.
Decide whether both show the same person. Answer only with JSON:
{"match": true|false, "confidence": <number between 0 and 1>, "reason": "<short reason>"}`

// MatchResult is the model's verdict.
type MatchResult struct {
	Match      bool    `json:"match"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason"`
}

// Matcher compares an identity document to a selfie.
type Matcher interface {
	Compare(ctx context.Context, documentURL, selfieURL string) (*MatchResult, error)
}

// OpenAIMatcher talks to an OpenAI-compatible chat completions endpoint
// with image inputs.
type OpenAIMatcher struct {
	apiKey  string
	baseURL string
	model   string
	client  *http.Client
}

func NewOpenAIMatcher(cfg Config, httpClient *http.Client) (*OpenAIMatcher, error) {
	if !cfg.IsConfigured() {
		return nil, ErrAPIKeyRequired
	}
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	return &OpenAIMatcher{
		apiKey:  cfg.APIKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		client:  httpClient,
	}, nil
}

type chatRequest struct {
	Model          string            `json:"model"`
	Messages       []chatMessage     `json:"messages"`
	ResponseFormat map[string]string `json:"response_format,omitempty"`
	Temperature    float64           `json:"temperature"`
}

type chatMessage struct {
	Role    string        `json:"role"`
	Content []contentPart `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type chatErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

func (m *OpenAIMatcher) Compare(ctx context.Context, documentURL, selfieURL string) (*MatchResult, error) {
	reqBody := chatRequest{
		Model: m.model,
		Messages: []chatMessage{{
			Role: "user",
			Content: []contentPart{
				{Type: "text", Text: comparePrompt},
				{Type: "image_url", ImageURL: &imageURL{URL: documentURL}},
				{Type: "image_url", ImageURL: &imageURL{URL: selfieURL}},
			},
		}},
		ResponseFormat: map[string]string{"type": "json_object"},
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL+"/chat/completions", bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+m.apiKey)

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("AI request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var errResp chatErrorResponse
		if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error.Message != "" {
			return nil, fmt.Errorf("AI API error: %s", errResp.Error.Message)
		}
		return nil, fmt.Errorf("AI API returned status %d", resp.StatusCode)
	}

	var chat chatResponse
	if err := json.Unmarshal(body, &chat); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if len(chat.Choices) == 0 {
		return nil, errors.New("AI response has no choices")
	}
	return parseMatchResult(chat.Choices[0].Message.Content)
}

// parseMatchResult tolerates models that wrap the JSON in a code fence.
func parseMatchResult(content string) (*MatchResult, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)

	var result MatchResult
	if err := json.Unmarshal([]byte(content), &result); err != nil {
		return nil, fmt.Errorf("AI returned malformed verdict: %w", err)
	}
	if result.Confidence < 0 || result.Confidence > 1 {
		return nil, fmt.Errorf("AI confidence out of range: %v", result.Confidence)
	}
	return &result, nil
}
