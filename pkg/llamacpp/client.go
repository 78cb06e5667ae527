package llamacpp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/menta2k/xray-deid/pkg/client"
)

// DefaultURL is where llama-server listens unless told otherwise
const DefaultURL = "http://localhost:8080"

// Client talks to the OpenAI-compatible chat endpoint of llama-server
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

type message struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []message `json:"messages"`
	Temperature float64   `json:"temperature"`
	Seed        int       `json:"seed"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Stream      bool      `json:"stream"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			// string or an array of content parts, depending on the server build
			Content json.RawMessage `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// systemPrompt keeps the model from answering the label instead of copying it
const systemPrompt = "You are an OCR engine. Reply with the transcribed text only."

// NewClient creates a client for serverURL; empty means DefaultURL. apiKey is
// sent as a bearer token when llama-server runs with --api-key.
func NewClient(serverURL, apiKey string) (*Client, error) {
	if serverURL == "" {
		serverURL = DefaultURL
	}
	if !strings.HasPrefix(serverURL, "http://") && !strings.HasPrefix(serverURL, "https://") {
		return nil, fmt.Errorf("invalid llama.cpp URL %q: scheme must be http or https", serverURL)
	}

	return &Client{
		baseURL: strings.TrimSuffix(serverURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 5 * time.Minute,
		},
	}, nil
}

// NewRecognizer returns a text recognizer backed by a llama.cpp server
func NewRecognizer(serverURL, model, apiKey string) (*client.VisionRecognizer, error) {
	c, err := NewClient(serverURL, apiKey)
	if err != nil {
		return nil, err
	}
	return client.NewVisionRecognizer(c, model), nil
}

// SimpleQuery sends prompt and an optional base64 PNG and returns the reply.
// Sampling is pinned (temperature 0, fixed seed) so repeated reads of the
// same rendering agree.
func (c *Client) SimpleQuery(ctx context.Context, model, prompt, imgB64 string) (string, error) {
	parts := []contentPart{{Type: "text", Text: prompt}}
	if imgB64 != "" {
		parts = append(parts, contentPart{
			Type:     "image_url",
			ImageURL: &imageURL{URL: "data:image/png;base64," + imgB64},
		})
	}

	body, err := c.post(ctx, "/v1/chat/completions", chatRequest{
		Model: model,
		Messages: []message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: parts},
		},
		MaxTokens: 256,
	})
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}

	var resp chatResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices in response")
	}
	return replyText(resp.Choices[0].Message.Content)
}

func replyText(raw json.RawMessage) (string, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}

	var parts []contentPart
	if err := json.Unmarshal(raw, &parts); err != nil {
		return "", fmt.Errorf("unexpected content in response: %s", raw)
	}
	var lines []string
	for _, p := range parts {
		if p.Text != "" {
			lines = append(lines, p.Text)
		}
	}
	if len(lines) == 0 {
		return "", fmt.Errorf("no text content in response")
	}
	return strings.Join(lines, "\n"), nil
}

func (c *Client) post(ctx context.Context, endpoint string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("server returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return body, nil
}
