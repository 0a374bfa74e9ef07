package analyze

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"regexp"
	"strings"

	"ulook-server/modules/common/ark"
	"ulook-server/modules/common/config"
	"ulook-server/modules/common/imaging"
)

const analyzePrompt = "Analyze this clothing. Return JSON only: {name, category, tags}."

var jsonBlockPattern = regexp.MustCompile(`(?s)\{.*\}`)

// Service classifies a single wardrobe image via the multimodal chat model.
type Service struct {
	cfg *config.Config
	ark *ark.Client
}

// NewService - 의류 분석 서비스 생성
func NewService(cfg *config.Config, client *ark.Client) *Service {
	return &Service{cfg: cfg, ark: client}
}

// Analyze - classify one clothing image. Missing configuration and upstream
// rejections are returned as errors; every other failure degrades to the
// placeholder result so batch uploads never abort on one item.
func (s *Service) Analyze(ctx context.Context, imageBase64 string) (AnalyzeResult, error) {
	if missing := s.cfg.MissingChatVars(); len(missing) > 0 {
		return AnalyzeResult{}, &config.MissingVarsError{Missing: missing}
	}

	normalized := s.normalizeInput(imageBase64)

	text, _, err := s.ark.ChatCompletion(ctx, ark.ChatRequest{
		Model: s.cfg.ArkChatModel,
		Messages: []ark.ChatMessage{{
			Role: "user",
			Content: []ark.ContentPart{
				ark.ImagePart(normalized),
				ark.TextPart(analyzePrompt),
			},
		}},
		Temperature: 0.7,
	})
	if err != nil {
		var upstream *ark.UpstreamError
		if errors.As(err, &upstream) {
			return AnalyzeResult{}, err
		}
		log.Printf("⚠️ [Analyze] Chat call failed, returning placeholder: %v", err)
		result := PlaceholderResult()
		result.Error = err.Error()
		return result, nil
	}

	return parseResult(text), nil
}

// normalizeInput converts the incoming image to canonical JPEG form. Bare
// base64 is first wrapped as a data URL. Normalization failures fall back to
// the original bytes.
func (s *Service) normalizeInput(imageBase64 string) string {
	dataURL := imageBase64
	if !strings.HasPrefix(dataURL, "data:") {
		dataURL = imaging.ToRawDataURL("image/png", imageBase64)
	}

	normalized, err := imaging.NormalizeToJPEG(dataURL, 0, 0)
	if err != nil {
		log.Printf("⚠️ [Analyze] Image normalization failed, using original: %v", err)
		return imaging.EnsureDataURL(imageBase64)
	}
	log.Printf("✅ [Analyze] Normalized image to JPEG")
	return normalized
}

// parseResult extracts {name, category, tags} from the model's reply,
// tolerating prose and code fences around the JSON.
func parseResult(text string) AnalyzeResult {
	var parsed struct {
		Name     string   `json:"name"`
		Category string   `json:"category"`
		Tags     []string `json:"tags"`
	}

	if err := json.Unmarshal([]byte(text), &parsed); err != nil {
		block := jsonBlockPattern.FindString(text)
		if block == "" {
			log.Printf("⚠️ [Analyze] No JSON block found in response")
			return PlaceholderResult()
		}
		if err := json.Unmarshal([]byte(block), &parsed); err != nil {
			log.Printf("⚠️ [Analyze] Failed to parse extracted JSON: %v", err)
			return PlaceholderResult()
		}
	}

	result := PlaceholderResult()
	if parsed.Name != "" {
		result.Name = parsed.Name
	}
	if parsed.Category != "" {
		result.Category = parsed.Category
	}
	if parsed.Tags != nil {
		result.Tags = parsed.Tags
	}
	return result
}
