package chat

import "encoding/json"

// Message - one conversation turn sent by the client
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest - POST /api/chat request body
type ChatRequest struct {
	Messages    []Message `json:"messages"`
	System      string    `json:"system,omitempty"`
	Temperature *float64  `json:"temperature,omitempty"`
}

// ChatResponse - POST /api/chat success body
type ChatResponse struct {
	Text string          `json:"text"`
	Raw  json.RawMessage `json:"raw"`
}
