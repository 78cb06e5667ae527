package ollama

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"

	"github.com/menta2k/xray-deid/pkg/client"
)

const (
	// DefaultURL is the local Ollama daemon
	DefaultURL = "http://localhost:11434"
	// DefaultModel is a small vision model that reads printed text well
	DefaultModel = "llava:7b"
)

// queryTimeout bounds one transcription when the caller set no deadline.
// CPU-only hosts need minutes for a 7B vision model.
const queryTimeout = 5 * time.Minute

const systemPrompt = "You are an OCR engine. Reply with the transcribed text only."

// Client wraps the Ollama API client
type Client struct {
	client *api.Client
}

// NewClient creates a client for ollamaURL; empty means DefaultURL. Any path
// such as /api/chat is dropped, the API client adds its own.
func NewClient(ollamaURL string) (*Client, error) {
	if ollamaURL == "" {
		ollamaURL = DefaultURL
	}
	u, err := url.Parse(ollamaURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid URL: %q needs a scheme and host", ollamaURL)
	}

	base := &url.URL{Scheme: u.Scheme, Host: u.Host}
	return &Client{client: api.NewClient(base, http.DefaultClient)}, nil
}

// NewRecognizer returns a text recognizer backed by an Ollama vision model
func NewRecognizer(ollamaURL, model string) (*client.VisionRecognizer, error) {
	c, err := NewClient(ollamaURL)
	if err != nil {
		return nil, err
	}
	if model == "" {
		model = DefaultModel
	}
	return client.NewVisionRecognizer(c, model), nil
}

// SimpleQuery sends prompt with a base64 image and returns the full reply.
// Sampling is pinned so the same rendering reads the same way every time.
func (c *Client) SimpleQuery(ctx context.Context, model, prompt, imgB64 string) (string, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, queryTimeout)
		defer cancel()
	}

	user := api.Message{Role: "user", Content: prompt}
	if imgB64 != "" {
		img, err := base64.StdEncoding.DecodeString(imgB64)
		if err != nil {
			return "", fmt.Errorf("failed to decode base64 image: %w", err)
		}
		user.Images = []api.ImageData{img}
	}

	stream := false
	req := &api.ChatRequest{
		Model:    model,
		Messages: []api.Message{{Role: "system", Content: systemPrompt}, user},
		Stream:   &stream,
		Options: map[string]any{
			"temperature": 0,
			"seed":        0,
			"num_predict": 256,
		},
	}

	var reply strings.Builder
	err := c.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		reply.WriteString(resp.Message.Content)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("ollama chat error: %w", err)
	}
	return reply.String(), nil
}
