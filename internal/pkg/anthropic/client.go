package anthropic

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const apiVersion = "2023-06-01"

// Config holds Anthropic API configuration
type Config struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

// Client talks to the Anthropic Messages API.
type Client struct {
	httpClient *http.Client
	config     Config
}

// Attachment is a document or image sent alongside a prompt.
type Attachment struct {
	MediaType string // application/pdf, image/png, image/jpeg
	Data      []byte
}

// Request describes one structured-output generation call.
// The model is instructed to answer with a single JSON object; the caller
// provides the shape description in System and decodes into its own struct.
type Request struct {
	System     string
	Prompt     string
	Attachment *Attachment
	MaxTokens  int
}

type contentBlock struct {
	Type   string       `json:"type"`
	Text   string       `json:"text,omitempty"`
	Source *blockSource `json:"source,omitempty"`
}

type blockSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

type message struct {
	Role    string         `json:"role"`
	Content []contentBlock `json:"content"`
}

type messagesRequest struct {
	Model     string    `json:"model"`
	System    string    `json:"system,omitempty"`
	MaxTokens int       `json:"max_tokens"`
	Messages  []message `json:"messages"`
}

type messagesResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
}

// NewClient creates an Anthropic API client
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 120 * time.Second
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.anthropic.com"
	}

	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		config:     cfg,
	}
}

// GenerateJSON runs one generation call and decodes the model's JSON answer
// into out.
func (c *Client) GenerateJSON(ctx context.Context, req Request, out interface{}) error {
	if c == nil || c.httpClient == nil {
		return fmt.Errorf("anthropic client is not initialized")
	}
	if strings.TrimSpace(c.config.APIKey) == "" {
		return fmt.Errorf("anthropic config error: api key is empty")
	}

	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = 1024
	}

	content := []contentBlock{{Type: "text", Text: req.Prompt}}
	if req.Attachment != nil {
		blockType := "document"
		if strings.HasPrefix(req.Attachment.MediaType, "image/") {
			blockType = "image"
		}
		content = append(content, contentBlock{
			Type: blockType,
			Source: &blockSource{
				Type:      "base64",
				MediaType: req.Attachment.MediaType,
				Data:      base64.StdEncoding.EncodeToString(req.Attachment.Data),
			},
		})
	}

	system := strings.TrimSpace(req.System + "\n\nRespond with a single JSON object and nothing else.")

	body := messagesRequest{
		Model:     c.config.Model,
		System:    system,
		MaxTokens: maxTokens,
		Messages:  []message{{Role: "user", Content: content}},
	}

	jsonData, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode anthropic request: %w", err)
	}

	base := strings.TrimRight(c.config.BaseURL, "/")
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, base+"/v1/messages", bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("anthropic api call failed: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.config.APIKey)
	httpReq.Header.Set("anthropic-version", apiVersion)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("anthropic api call failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("anthropic api call failed: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("anthropic api returned non-2xx status: %d, body: %s", resp.StatusCode, string(respBody))
	}

	var parsed messagesResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return fmt.Errorf("failed to parse anthropic response: %w", err)
	}

	var text string
	for _, block := range parsed.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}

	if err := json.Unmarshal([]byte(extractJSON(text)), out); err != nil {
		return fmt.Errorf("model returned malformed JSON: %w", err)
	}
	return nil
}

// extractJSON tolerates models wrapping the object in a ```json fence or
// leading prose despite the instruction.
func extractJSON(s string) string {
	s = strings.TrimSpace(s)

	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		if idx := strings.LastIndex(s, "```"); idx != -1 {
			s = s[:idx]
		}
		return strings.TrimSpace(s)
	}

	start := strings.IndexAny(s, "{[")
	if start == -1 {
		return s
	}
	var end int
	if s[start] == '{' {
		end = strings.LastIndex(s, "}")
	} else {
		end = strings.LastIndex(s, "]")
	}
	if end > start {
		return s[start : end+1]
	}
	return s
}
