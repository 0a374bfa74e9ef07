package chat

import (
	"context"
	"encoding/json"

	"ulook-server/modules/common/ark"
	"ulook-server/modules/common/config"
)

// DefaultTemperature - sampling temperature when the client sends none
const DefaultTemperature = 0.7

// Service forwards stylist conversations to the Ark chat model.
type Service struct {
	cfg *config.Config
	ark *ark.Client
}

// NewService - 스타일리스트 채팅 서비스 생성
func NewService(cfg *config.Config, client *ark.Client) *Service {
	return &Service{cfg: cfg, ark: client}
}

// Chat - run one conversation turn. An optional system instruction is
// prepended to the message list.
func (s *Service) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	if missing := s.cfg.MissingChatVars(); len(missing) > 0 {
		return nil, &config.MissingVarsError{Missing: missing}
	}

	temperature := DefaultTemperature
	if req.Temperature != nil {
		temperature = *req.Temperature
	}

	// system 메시지는 항상 맨 앞에
	messages := make([]ark.ChatMessage, 0, len(req.Messages)+1)
	if req.System != "" {
		messages = append(messages, ark.ChatMessage{Role: "system", Content: req.System})
	}
	for _, msg := range req.Messages {
		messages = append(messages, ark.ChatMessage{Role: msg.Role, Content: msg.Content})
	}

	text, raw, err := s.ark.ChatCompletion(ctx, ark.ChatRequest{
		Model:       s.cfg.ArkChatModel,
		Messages:    messages,
		Temperature: temperature,
	})
	if err != nil {
		return nil, err
	}

	if !json.Valid(raw) {
		raw = nil
	}
	return &ChatResponse{Text: text, Raw: raw}, nil
}
