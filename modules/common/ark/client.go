package ark

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"regexp"
	"strings"
	"time"

	"ulook-server/modules/common/config"
)

// UpstreamError - non-success response from the Ark API, preserved for passthrough
type UpstreamError struct {
	Status  int
	Message string
	Raw     json.RawMessage
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("ark api error (status %d): %s", e.Status, e.Message)
}

// IsRateLimit - whether the error is a rate-limit / quota rejection
func (e *UpstreamError) IsRateLimit() bool {
	if e.Status == http.StatusTooManyRequests {
		return true
	}
	lower := strings.ToLower(e.Message)
	return strings.Contains(lower, "rate limit") || strings.Contains(lower, "quota")
}

// Client - thin HTTP client for the Ark OpenAI-compatible endpoints
type Client struct {
	baseURL    string
	apiKey     string
	authType   string
	httpClient *http.Client
}

// NewClient - build a client from the loaded configuration
func NewClient(cfg *config.Config) *Client {
	return &Client{
		baseURL:  cfg.ArkBaseURL,
		apiKey:   cfg.ArkAPIKey,
		authType: cfg.ArkAuthType,
		httpClient: &http.Client{
			Timeout: 180 * time.Second,
		},
	}
}

var apiKeyJunk = regexp.MustCompile(`\s+`)

// CleanAPIKey - strip whitespace and newlines that sneak in via .env files
func CleanAPIKey(apiKey string) string {
	return apiKeyJunk.ReplaceAllString(strings.TrimSpace(apiKey), "")
}

// AuthHeader - authorization header for the configured auth type
func AuthHeader(apiKey, authType string) (map[string]string, error) {
	cleaned := CleanAPIKey(apiKey)
	if cleaned == "" {
		return nil, fmt.Errorf("API key is empty")
	}

	switch authType {
	case "api-key", "direct":
		return map[string]string{"Authorization": cleaned}, nil
	case "x-api-key":
		return map[string]string{"X-API-Key": cleaned}, nil
	default: // "bearer"
		return map[string]string{"Authorization": "Bearer " + cleaned}, nil
	}
}

// ChatMessage - one turn of an Ark chat conversation. Content is either a
// plain string or a slice of ContentPart for multimodal requests.
type ChatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

// ContentPart - multimodal message fragment (text or image_url)
type ContentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

type ImageURL struct {
	URL string `json:"url"`
}

// TextPart - convenience constructor for a text fragment
func TextPart(text string) ContentPart {
	return ContentPart{Type: "text", Text: text}
}

// ImagePart - convenience constructor for an image_url fragment
func ImagePart(dataURL string) ContentPart {
	return ContentPart{Type: "image_url", ImageURL: &ImageURL{URL: dataURL}}
}

// ChatRequest - request body for /chat/completions
type ChatRequest struct {
	Model       string        `json:"model"`
	Messages    []ChatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatResponseBody struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		Text string `json:"text"`
	} `json:"choices"`
}

// ImagePayload - request body for /images/generations (Seedream format)
type ImagePayload struct {
	Model                     string   `json:"model"`
	Prompt                    string   `json:"prompt"`
	N                         int      `json:"n"`
	ResponseFormat            string   `json:"response_format"`
	Watermark                 bool     `json:"watermark"`
	SequentialImageGeneration string   `json:"sequential_image_generation"`
	Size                      string   `json:"size"`
	Image                     []string `json:"image,omitempty"`
}

// GeneratedImage - one output entry; the API returns either url or b64_json
type GeneratedImage struct {
	URL     string `json:"url"`
	B64JSON string `json:"b64_json"`
}

type imagesResponseBody struct {
	Data []GeneratedImage `json:"data"`
}

// ChatCompletion - POST /chat/completions, returning the first choice's text
// and the raw response for passthrough.
func (c *Client) ChatCompletion(ctx context.Context, req ChatRequest) (string, json.RawMessage, error) {
	raw, err := c.post(ctx, "/chat/completions", req)
	if err != nil {
		return "", raw, err
	}

	var body chatResponseBody
	if err := json.Unmarshal(raw, &body); err != nil {
		return "", raw, fmt.Errorf("invalid JSON response from Ark API: %w", err)
	}

	text := ""
	if len(body.Choices) > 0 {
		text = body.Choices[0].Message.Content
		if text == "" {
			text = body.Choices[0].Text
		}
	}
	return text, raw, nil
}

// GenerateImages - POST /images/generations
func (c *Client) GenerateImages(ctx context.Context, payload ImagePayload) ([]GeneratedImage, json.RawMessage, error) {
	log.Printf("📤 [Ark] Calling %s with model %s (%d reference images)", c.baseURL+"/images/generations", payload.Model, len(payload.Image))

	raw, err := c.post(ctx, "/images/generations", payload)
	if err != nil {
		return nil, raw, err
	}

	var body imagesResponseBody
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, raw, fmt.Errorf("invalid JSON response from Ark API: %w", err)
	}
	return body.Data, raw, nil
}

// post - send a JSON request, mapping non-2xx responses to *UpstreamError
func (c *Client) post(ctx context.Context, path string, body any) (json.RawMessage, error) {
	encoded, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(encoded))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	headers, err := AuthHeader(c.apiKey, c.authType)
	if err != nil {
		return nil, fmt.Errorf("authentication setup error: %w", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ark request failed: %w", err)
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read ark response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return respBytes, &UpstreamError{
			Status:  resp.StatusCode,
			Message: extractErrorMessage(respBytes),
			Raw:     respBytes,
		}
	}
	return respBytes, nil
}

// extractErrorMessage - pull error.message out of an Ark error body, falling
// back to a truncated raw text.
func extractErrorMessage(body []byte) string {
	var parsed struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Error.Message != "" {
		return parsed.Error.Message
	}

	text := strings.TrimSpace(string(body))
	if len(text) > 200 {
		text = text[:200]
	}
	if text == "" {
		text = "Ark API error"
	}
	return text
}
