package tryon

import (
	"fmt"
	"strings"

	"ulook-server/modules/common/ark"
	"ulook-server/modules/common/imaging"
)

// MaxOutputImages - upstream limit on images generated per call
const MaxOutputImages = 4

// FidelityParams - generation parameters resolved from a fidelity level
type FidelityParams struct {
	Size            string
	PatchesPerImage int
	MaxTotalImages  int
}

// MapFidelity - fixed fidelity lookup table. The nominal MaxTotalImages is a
// ceiling that the budgeter narrows further per mode.
func MapFidelity(fidelity Fidelity) FidelityParams {
	switch fidelity {
	case FidelityHigh:
		return FidelityParams{Size: "2K", PatchesPerImage: 2, MaxTotalImages: 8}
	case FidelityMedium:
		return FidelityParams{Size: "2K", PatchesPerImage: 1, MaxTotalImages: 8}
	default:
		return FidelityParams{Size: "1K", PatchesPerImage: 0, MaxTotalImages: 8}
	}
}

// SelectModel - switch to the reference-capable Seedream variant whenever at
// least one reference image is present.
func SelectModel(defaultModel, seedreamModel string, hasReferenceImages bool) string {
	if hasReferenceImages {
		return seedreamModel
	}
	return defaultModel
}

// BuildImagePayload assembles the upstream generation request. Every
// reference image must be a well-formed data URL; the output count is
// clamped to MaxOutputImages, watermarking and sequential generation are
// disabled, and the resolution comes from the fidelity table.
func BuildImagePayload(model, prompt string, images []string, fidelity Fidelity, n int) (ark.ImagePayload, error) {
	if n < 1 {
		n = 1
	}
	if n > MaxOutputImages {
		n = MaxOutputImages
	}

	for i, img := range images {
		if !strings.HasPrefix(img, "data:") {
			return ark.ImagePayload{}, fmt.Errorf("%w: index %d must be a data URL", ErrInvalidReferenceImage, i)
		}
		if !strings.Contains(img, ";base64,") {
			return ark.ImagePayload{}, fmt.Errorf("%w: index %d is missing base64 data", ErrInvalidReferenceImage, i)
		}
	}

	return ark.ImagePayload{
		Model:                     model,
		Prompt:                    prompt,
		N:                         n,
		ResponseFormat:            "b64_json",
		Watermark:                 false,
		SequentialImageGeneration: "disabled",
		Size:                      MapFidelity(fidelity).Size,
		Image:                     images,
	}, nil
}

// ExtractFirstImage - first generated image as a data URL, favoring inline
// base64 and falling back to a hosted URL.
func ExtractFirstImage(images []ark.GeneratedImage) (string, error) {
	if len(images) == 0 {
		return "", fmt.Errorf("no image generated")
	}
	first := images[0]
	if first.B64JSON != "" {
		return imaging.ToRawDataURL("image/png", first.B64JSON), nil
	}
	if first.URL != "" {
		return first.URL, nil
	}
	return "", fmt.Errorf("invalid image response format")
}
