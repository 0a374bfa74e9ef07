package tryon

import (
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"

	"ulook-server/modules/common/imaging"
)

// ErrInvalidReferenceImage - a budgeted reference is not a usable data URL
var ErrInvalidReferenceImage = errors.New("invalid reference image")

const (
	// MaxPreviewImages - hard ceiling on preview-mode reference images
	MaxPreviewImages = 5
	// MinPayloadChars - shortest base64 payload accepted as a real image
	MinPayloadChars = 100
)

// categoryPriority - 카테고리별 우선순위 (낮을수록 중요). Unknown categories
// sink to the bottom.
var categoryPriority = map[string]int{
	"top":         1,
	"shirt":       1,
	"jacket":      2,
	"coat":        2,
	"outerwear":   2,
	"bottom":      3,
	"pants":       3,
	"skirt":       3,
	"shoes":       4,
	"accessories": 5,
	"accessory":   5,
}

const defaultCategoryPriority = 10

// CategoryPriority - priority rank for a wardrobe category. Categories are
// normalized to lowercase before lookup.
func CategoryPriority(category string) int {
	if category == "" {
		return defaultCategoryPriority
	}
	if p, ok := categoryPriority[strings.ToLower(strings.TrimSpace(category))]; ok {
		return p
	}
	return defaultCategoryPriority
}

// clothingItem pairs a wardrobe image with its category and any matching
// user-drawn detail crop.
type clothingItem struct {
	index      int
	image      string
	category   string
	priority   int
	detailCrop *DetailCrop
}

// matchCrops pairs detail crops with clothing items, by index first and by
// comparing a prefix of the base64 payload when indexes do not line up.
func matchCrops(images []string, crops []DetailCrop, categories []string) []clothingItem {
	items := make([]clothingItem, len(images))
	for i, img := range images {
		category := ""
		if i < len(categories) {
			category = categories[i]
		}

		var crop *DetailCrop
		if i < len(crops) {
			crop = &crops[i]
		} else {
			imgPrefix := payloadPrefix(img, 100)
			for j := range crops {
				cropPrefix := payloadPrefix(crops[j].Image, 100)
				if imgPrefix != "" && cropPrefix != "" && (cropPrefix == imgPrefix || strings.Contains(crops[j].Image, imgPrefix[:min(50, len(imgPrefix))])) {
					crop = &crops[j]
					break
				}
			}
		}

		items[i] = clothingItem{
			index:      i,
			image:      img,
			category:   category,
			priority:   CategoryPriority(category),
			detailCrop: crop,
		}
	}
	return items
}

func payloadPrefix(dataURL string, n int) string {
	payload := imaging.Payload(dataURL)
	if len(payload) > n {
		return payload[:n]
	}
	return payload
}

// previewBudgetOptions - inputs for preview-mode reference selection
type previewBudgetOptions struct {
	clothingImages     []string
	clothingCategories []string
	detailCrops        []DetailCrop
	bodyRefImage       string
	includeBodyRef     bool
	autoPatches        []string
}

// buildPreviewInputs selects at most MaxPreviewImages references for a fast
// preview pass. For each item, ranked by category priority with input order
// as the tie-break, a user-drawn detail patch takes the item's slot; items
// without a patch contribute their full image instead. An item never gets
// both. Leftover budget goes to at most one auto patch (only when the user
// drew no crops) and then the body reference if explicitly requested.
func buildPreviewInputs(opts previewBudgetOptions) (inputs []string, userPatchCount int) {
	// 카테고리 우선순위로 정렬 (동순위는 입력 순서 유지)
	items := matchCrops(opts.clothingImages, opts.detailCrops, opts.clothingCategories)
	sort.SliceStable(items, func(a, b int) bool {
		return items[a].priority < items[b].priority
	})

	// 1. 유저가 그린 디테일 크롭 패치 우선
	for _, item := range items {
		if len(inputs) >= MaxPreviewImages {
			break
		}
		if item.detailCrop == nil {
			continue
		}
		patch, err := imaging.ExtractDetailPatch(item.detailCrop.Image, item.detailCrop.Rect)
		if err != nil {
			log.Printf("⚠️ [Preview] Failed to process detail crop for clothing[%d], skipping: %v", item.index, err)
			continue
		}
		inputs = append(inputs, patch)
		userPatchCount++
		log.Printf("🔍 [Preview] Added detail patch for clothing[%d] (category: %s)", item.index, itemCategory(item))
	}

	// 2. 패치가 없는 아이템은 원본 이미지
	for _, item := range items {
		if len(inputs) >= MaxPreviewImages {
			break
		}
		if item.detailCrop != nil {
			continue
		}
		inputs = append(inputs, item.image)
		log.Printf("🔍 [Preview] Added full image for clothing[%d] (category: %s)", item.index, itemCategory(item))
	}

	// 3. 남은 예산에 auto patch 1장 (유저 크롭이 없을 때만)
	if len(inputs) < MaxPreviewImages && len(opts.autoPatches) > 0 && len(opts.detailCrops) == 0 {
		inputs = append(inputs, opts.autoPatches[0])
		log.Printf("🔍 [Preview] Added 1 auto patch (remaining budget: %d)", MaxPreviewImages-len(inputs))
	}

	// 4. 옵트인 시 바디 레퍼런스 마지막에 추가
	if len(inputs) < MaxPreviewImages && opts.bodyRefImage != "" && opts.includeBodyRef {
		inputs = append(inputs, opts.bodyRefImage)
		log.Printf("🔍 [Preview] Added body reference (remaining budget: %d)", MaxPreviewImages-len(inputs))
	}

	log.Printf("✅ [Preview] Final image inputs: %d/%d (%d clothing items)", len(inputs), MaxPreviewImages, len(items))
	return inputs, userPatchCount
}

// refineBudgetOptions - inputs for refine-mode reference selection
type refineBudgetOptions struct {
	clothingImages    []string
	userDetailPatches []string
	autoPatches       []string
	bodyRefImage      string
	faceImages        []string
	fidelity          Fidelity
	nominalCap        int
}

// refineCap resolves the effective reference cap for refine mode. With user
// detail patches present, medium fidelity narrows to 3 and high to 5; without
// them the same targets apply, leaving only low fidelity at the nominal cap.
func refineCap(fidelity Fidelity, nominalCap int) int {
	switch fidelity {
	case FidelityMedium:
		return 3
	case FidelityHigh:
		return 5
	}
	return nominalCap
}

// buildRefineInputs assembles refine-mode references in fixed priority order:
// user detail patches, auto patches, full wardrobe images, body reference,
// face references. At medium fidelity with user patches the wardrobe set is
// truncated to its first item.
func buildRefineInputs(opts refineBudgetOptions) []string {
	limit := refineCap(opts.fidelity, opts.nominalCap)

	clothing := opts.clothingImages
	if len(opts.userDetailPatches) > 0 && opts.fidelity == FidelityMedium && len(clothing) > 1 {
		clothing = clothing[:1]
		log.Printf("🔍 [Refine] Medium fidelity with user detail patches: limiting to 1 clothing image")
	}

	inputs := make([]string, 0, limit)
	appendUpTo := func(images ...string) {
		for _, img := range images {
			if len(inputs) >= limit {
				return
			}
			if img != "" {
				inputs = append(inputs, img)
			}
		}
	}

	appendUpTo(opts.userDetailPatches...)
	appendUpTo(opts.autoPatches...)
	appendUpTo(clothing...)
	appendUpTo(opts.bodyRefImage)
	appendUpTo(opts.faceImages...)

	log.Printf("✅ [Refine] Final image inputs: %d/%d", len(inputs), limit)
	return inputs
}

// validateReferences confirms every budgeted reference is a canonical data
// URL with a non-trivial payload before anything is sent upstream.
func validateReferences(inputs []string) error {
	for i, img := range inputs {
		if !imaging.IsDataURL(img) {
			return fmt.Errorf("%w: index %d is not an image data URL", ErrInvalidReferenceImage, i)
		}
		if !strings.Contains(img, ";base64,") {
			return fmt.Errorf("%w: index %d is missing base64 data", ErrInvalidReferenceImage, i)
		}
		if len(imaging.Payload(img)) < MinPayloadChars {
			return fmt.Errorf("%w: index %d payload is empty or too short", ErrInvalidReferenceImage, i)
		}
	}
	return nil
}

func itemCategory(item clothingItem) string {
	if item.category == "" {
		return "unknown"
	}
	return item.category
}
