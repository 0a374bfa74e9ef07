package tryon

import (
	"context"
	"encoding/json"
	"log"
	"regexp"
	"time"

	"ulook-server/modules/common/ark"
	"ulook-server/modules/common/imaging"
)

// MaxAnalyzeImages - 분석 호출 1회당 최대 이미지 수
const MaxAnalyzeImages = 4

// analyzeTimeout bounds the vision call so a slow upstream degrades instead
// of stalling the whole generation request.
const analyzeTimeout = 60 * time.Second

const analyzePrompt = `Analyze these clothing images and extract ONLY the most critical details for accurate reproduction. Return ONLY valid JSON (no markdown, no code blocks, no extra text) in this exact format:

{
  "garments": [
    {
      "category": "shirt/t-shirt/jacket/pants/shoes/etc",
      "dominant_colors": ["color1", "color2"],
      "pattern": "solid/stripes/plaid/floral/etc",
      "material": "cotton/denim/wool/etc",
      "logos": [
        {
          "text": "exact logo text if visible",
          "position": "left chest/right sleeve/back/etc",
          "color": "text color"
        }
      ],
      "hardware": ["button type", "zipper type", "etc"],
      "unique_details": ["detail1", "detail2"]
    }
  ]
}

Focus on: logo text (if any), logo position, pattern type and spacing, dominant colors (max 2), material, hardware/buttons.
Ignore minor decorative elements. Output ONLY the JSON object. No explanations, no markdown, no code blocks.`

var jsonBlockPattern = regexp.MustCompile(`(?s)\{.*\}`)

// analyzeGarmentDetails sends up to MaxAnalyzeImages clothing images through
// the vision chat model and parses a structured garment description. This is
// best-effort enrichment: every failure path returns an empty record along
// with the error, never aborting the caller.
func analyzeGarmentDetails(ctx context.Context, client *ark.Client, model string, images []string) (GarmentDetails, error) {
	empty := GarmentDetails{Garments: []Garment{}}

	if len(images) > MaxAnalyzeImages {
		images = images[:MaxAnalyzeImages]
	}

	parts := make([]ark.ContentPart, 0, len(images)+1)
	for _, img := range images {
		parts = append(parts, ark.ImagePart(imaging.EnsureDataURL(img)))
	}
	parts = append(parts, ark.TextPart(analyzePrompt))

	ctx, cancel := context.WithTimeout(ctx, analyzeTimeout)
	defer cancel()

	text, _, err := client.ChatCompletion(ctx, ark.ChatRequest{
		Model:       model,
		Messages:    []ark.ChatMessage{{Role: "user", Content: parts}},
		Temperature: 0.1,
	})
	if err != nil {
		log.Printf("⚠️ [Analyzer] Vision call failed, using empty details: %v", err)
		return empty, err
	}

	details, err := parseGarmentDetails(text)
	if err != nil {
		log.Printf("⚠️ [Analyzer] Failed to parse analysis response, using empty details: %v", err)
		return empty, err
	}
	return details, nil
}

// parseGarmentDetails parses the model's reply as JSON, falling back to the
// first {...} block when the reply is wrapped in prose or code fences.
func parseGarmentDetails(text string) (GarmentDetails, error) {
	var details GarmentDetails
	if err := json.Unmarshal([]byte(text), &details); err != nil {
		block := jsonBlockPattern.FindString(text)
		if block == "" {
			return GarmentDetails{Garments: []Garment{}}, err
		}
		if err := json.Unmarshal([]byte(block), &details); err != nil {
			return GarmentDetails{Garments: []Garment{}}, err
		}
	}
	if details.Garments == nil {
		details.Garments = []Garment{}
	}
	return details, nil
}
