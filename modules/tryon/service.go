package tryon

import (
	"context"
	"fmt"
	"log"

	"golang.org/x/sync/errgroup"

	"ulook-server/modules/common/ark"
	"ulook-server/modules/common/cache"
	"ulook-server/modules/common/config"
	"ulook-server/modules/common/imaging"
)

// Normalization targets per input role. Faces carry less detail weight, so
// they are shrunk harder.
const (
	clothingMaxDim   = 1024
	faceMaxDim       = 512
	normalizeQuality = 80
)

// Service runs the try-on generation pipeline: normalize, enrich (user
// patches, auto patches, detail analysis), budget, compose, call upstream.
type Service struct {
	cfg          *config.Config
	ark          *ark.Client
	detailsCache *cache.Store[GarmentDetails]
	patchesCache *cache.Store[[]string]
}

// NewService - 트라이온 생성 서비스 생성
func NewService(cfg *config.Config, client *ark.Client, detailsCache *cache.Store[GarmentDetails], patchesCache *cache.Store[[]string]) *Service {
	return &Service{
		cfg:          cfg,
		ark:          client,
		detailsCache: detailsCache,
		patchesCache: patchesCache,
	}
}

// enrichment holds the three parallel enrichment results joined before the
// budgeter runs. Each field is filled by exactly one task; a failed task
// leaves its field empty.
type enrichment struct {
	userPatches []string
	autoPatches []string
	details     *GarmentDetails
}

// Generate - run one full try-on generation request
func (s *Service) Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	if missing := s.cfg.MissingImageVars(); len(missing) > 0 {
		return nil, &config.MissingVarsError{Missing: missing}
	}

	mode := req.Mode
	if mode != ModeRefine {
		mode = ModePreview
	}
	isPreview := mode == ModePreview

	requestedFidelity := req.Fidelity
	if requestedFidelity == "" {
		requestedFidelity = FidelityMedium
	}
	// Preview always runs at medium: the Seedream model needs 2K output,
	// so preview speeds up by shrinking the reference set instead.
	effectiveFidelity := requestedFidelity
	if isPreview {
		effectiveFidelity = FidelityMedium
	}
	params := MapFidelity(effectiveFidelity)

	clothing, bodyRef, faces, crops, err := s.normalizeInputs(req)
	if err != nil {
		return nil, err
	}

	hasImages := len(clothing) > 0 || bodyRef != "" || len(faces) > 0
	model := SelectModel(s.cfg.ArkImageModel, s.cfg.ArkSeedreamModel, hasImages)

	enriched := s.runEnrichment(ctx, enrichmentInput{
		isPreview:         isPreview,
		requestedFidelity: requestedFidelity,
		effectiveFidelity: effectiveFidelity,
		params:            params,
		clothing:          clothing,
		bodyRef:           bodyRef,
		faces:             faces,
		crops:             crops,
	})

	prompt := BuildPrompt(promptOptions{
		prompt:         req.Prompt,
		bodyRefImage:   bodyRef,
		clothingImages: clothing,
		faceImages:     faces,
		details:        enriched.details,
	})

	var inputs []string
	userPatchCount := len(enriched.userPatches)
	if isPreview {
		log.Printf("🎨 [TryOn] Preview mode: budgeting %d clothing items", len(clothing))
		inputs, userPatchCount = buildPreviewInputs(previewBudgetOptions{
			clothingImages:     clothing,
			clothingCategories: req.ClothingCategories,
			detailCrops:        crops,
			bodyRefImage:       bodyRef,
			includeBodyRef:     req.IncludeBodyRefInPreview,
			autoPatches:        enriched.autoPatches,
		})
	} else {
		inputs = buildRefineInputs(refineBudgetOptions{
			clothingImages:    clothing,
			userDetailPatches: enriched.userPatches,
			autoPatches:       enriched.autoPatches,
			bodyRefImage:      bodyRef,
			faceImages:        faces,
			fidelity:          requestedFidelity,
			nominalCap:        params.MaxTotalImages,
		})
	}

	if err := validateReferences(inputs); err != nil {
		return nil, err
	}

	payload, err := BuildImagePayload(model, prompt, inputs, effectiveFidelity, req.N)
	if err != nil {
		return nil, err
	}

	log.Printf("🎨 [TryOn] Mode: %s, model: %s, fidelity: %s (requested: %s), references: %d", mode, model, effectiveFidelity, requestedFidelity, len(inputs))

	images, raw, err := s.ark.GenerateImages(ctx, payload)
	if err != nil {
		return nil, err
	}

	imageURL, err := ExtractFirstImage(images)
	if err != nil {
		return nil, err
	}

	return &GenerateResponse{
		Image: imageURL,
		Raw:   raw,
		Metadata: Metadata{
			Mode:                 mode,
			Model:                model,
			Fidelity:             effectiveFidelity,
			RequestedFidelity:    requestedFidelity,
			HasClothingDetails:   enriched.details != nil && !enriched.details.IsEmpty(),
			UserDetailPatchCount: userPatchCount,
			AutoPatchCount:       len(enriched.autoPatches),
			TotalImageInputs:     len(inputs),
		},
	}, nil
}

// normalizeInputs - 모든 입력 이미지를 JPEG로 정규화.
// A failed HEIC conversion is fatal for the request; other failures degrade
// to the original image.
func (s *Service) normalizeInputs(req GenerateRequest) (clothing []string, bodyRef string, faces []string, crops []DetailCrop, err error) {
	// 의류 이미지 정규화
	if len(req.ClothingImages) > 0 {
		log.Printf("🔍 [TryOn] Normalizing %d clothing images (maxDim=%d, quality=%d)", len(req.ClothingImages), clothingMaxDim, normalizeQuality)
		clothing, err = imaging.NormalizeAllToJPEG(req.ClothingImages, clothingMaxDim, normalizeQuality)
		if err != nil {
			return nil, "", nil, nil, heicFailure(err)
		}
	}

	if req.BodyRefImage != "" {
		bodyRef, err = normalizeOrDegrade(req.BodyRefImage, clothingMaxDim)
		if err != nil {
			return nil, "", nil, nil, heicFailure(err)
		}
	}

	if len(req.FaceImages) > 0 {
		faces, err = imaging.NormalizeAllToJPEG(req.FaceImages, faceMaxDim, normalizeQuality)
		if err != nil {
			return nil, "", nil, nil, heicFailure(err)
		}
	}

	// 크롭 소스 이미지도 동일하게 정규화 (좌표는 그대로 사용)
	if len(req.ClothingDetailCrops) > 0 {
		crops = make([]DetailCrop, len(req.ClothingDetailCrops))
		for i, crop := range req.ClothingDetailCrops {
			normalized, cropErr := normalizeOrDegrade(crop.Image, clothingMaxDim)
			if cropErr != nil {
				return nil, "", nil, nil, heicFailure(cropErr)
			}
			crops[i] = DetailCrop{Image: normalized, Rect: crop.Rect}
		}
	}

	return clothing, bodyRef, faces, crops, nil
}

// normalizeOrDegrade normalizes a single image, falling back to the original
// for non-HEIC failures.
func normalizeOrDegrade(dataURL string, maxDim int) (string, error) {
	normalized, err := imaging.NormalizeToJPEG(dataURL, maxDim, normalizeQuality)
	if err != nil {
		mime, _, _ := imaging.ParseDataURL(dataURL)
		if imaging.IsHEIC(mime) {
			return "", err
		}
		log.Printf("⚠️ [TryOn] Normalization failed (%s), using original: %v", mime, err)
		return dataURL, nil
	}
	return normalized, nil
}

// heicFailure wraps a fatal HEIC normalization error with a user-facing hint
func heicFailure(err error) error {
	return fmt.Errorf("%w: HEIC conversion failed, please upload JPG or PNG images instead", err)
}

type enrichmentInput struct {
	isPreview         bool
	requestedFidelity Fidelity
	effectiveFidelity Fidelity
	params            FidelityParams
	clothing          []string
	bodyRef           string
	faces             []string
	crops             []DetailCrop
}

// runEnrichment dispatches the three independent enrichment tasks in
// parallel and joins them. Each task recovers its own failures, so the
// pipeline always proceeds with whatever enrichment succeeded.
func (s *Service) runEnrichment(ctx context.Context, in enrichmentInput) enrichment {
	var result enrichment
	g, gctx := errgroup.WithContext(ctx)

	// User-drawn detail crops. Preview extracts them inside the budgeter
	// instead, so each patch can be charged against its item's slot.
	if !in.isPreview && len(in.crops) > 0 && in.requestedFidelity != FidelityLow {
		g.Go(func() error {
			sources := make([]string, len(in.crops))
			rects := make([]imaging.Rect, len(in.crops))
			for i, crop := range in.crops {
				sources[i] = crop.Image
				rects[i] = crop.Rect
			}
			result.userPatches = imaging.ExtractDetailPatches(gctx, sources, rects)
			log.Printf("🔍 [TryOn] Generated %d user detail patches", len(result.userPatches))
			return nil
		})
	}

	// Heuristic auto patches, cached per clothing image
	if patchesPerImage := s.effectiveAutoPatchCount(in); patchesPerImage > 0 && len(in.clothing) > 0 {
		g.Go(func() error {
			result.autoPatches = s.collectAutoPatches(gctx, in, patchesPerImage)
			log.Printf("🔍 [TryOn] Collected %d auto patches", len(result.autoPatches))
			return nil
		})
	}

	// Vision detail analysis, refine+high only
	if !in.isPreview && len(in.clothing) > 0 && in.requestedFidelity == FidelityHigh {
		g.Go(func() error {
			key := cache.Key(in.clothing[0])
			if cached, ok := s.detailsCache.Get(key); ok {
				log.Printf("✅ [TryOn] Clothing details from cache")
				result.details = &cached
				return nil
			}
			details, err := analyzeGarmentDetails(gctx, s.ark, s.cfg.ArkChatModel, in.clothing)
			if err != nil {
				return nil
			}
			s.detailsCache.Set(key, details)
			result.details = &details
			return nil
		})
	}

	g.Wait()
	return result
}

// effectiveAutoPatchCount resolves how many auto patches each clothing image
// may contribute, applying the smart reduction rules: preview uses at most
// one patch overall and only when the user drew no crops; refine disables
// auto patches at medium fidelity when user crops exist and caps them at one
// at high fidelity.
func (s *Service) effectiveAutoPatchCount(in enrichmentInput) int {
	if in.isPreview {
		if len(in.crops) == 0 {
			return 1
		}
		return 0
	}

	patchesPerImage := in.params.PatchesPerImage
	if len(in.crops) > 0 {
		switch in.requestedFidelity {
		case FidelityMedium:
			log.Printf("🔍 [TryOn] Smart reduction: medium fidelity with user crops, disabling auto patches")
			return 0
		case FidelityHigh:
			log.Printf("🔍 [TryOn] Smart reduction: high fidelity with user crops, limiting auto patches to 1 total")
			return 1
		}
	}
	return patchesPerImage
}

// collectAutoPatches returns cached patches where available and generates
// the rest with bounded concurrency, caching new results per source image.
func (s *Service) collectAutoPatches(ctx context.Context, in enrichmentInput, patchesPerImage int) []string {
	var cached []string
	var uncached []string
	var uncachedKeys []string

	for _, img := range in.clothing {
		key := cache.Key(img)
		if patches, ok := s.patchesCache.Get(key); ok {
			cached = append(cached, patches...)
			continue
		}
		uncached = append(uncached, img)
		uncachedKeys = append(uncachedKeys, key)
	}

	if len(uncached) == 0 {
		log.Printf("✅ [TryOn] All auto patches from cache")
		return cached
	}

	maxTotal := s.maxAutoPatches(in)
	if maxTotal <= 0 {
		return cached
	}

	// 입력 순서대로 슬롯이 채워지므로 각 결과를 해당 소스의 키에 캐싱
	fresh := imaging.ExtractManyAutoPatches(ctx, uncached, patchesPerImage, maxTotal)
	collected := cached
	budget := maxTotal
	for i, patches := range fresh {
		if len(patches) == 0 {
			continue
		}
		s.patchesCache.Set(uncachedKeys[i], patches)
		if len(patches) > budget {
			patches = patches[:budget]
		}
		collected = append(collected, patches...)
		budget -= len(patches)
		if budget <= 0 {
			break
		}
	}

	return collected
}

// maxAutoPatches bounds total auto-patch count by the slots left after user
// patches, full images, body and face references are accounted for.
func (s *Service) maxAutoPatches(in enrichmentInput) int {
	bodyCount := 0
	if in.bodyRef != "" {
		bodyCount = 1
	}
	remaining := in.params.MaxTotalImages - len(in.crops) - len(in.clothing) - bodyCount - len(in.faces)
	if remaining < 0 {
		remaining = 0
	}

	switch in.effectiveFidelity {
	case FidelityMedium:
		return min(remaining, 2)
	case FidelityHigh:
		if len(in.crops) > 0 {
			return 1
		}
		return remaining
	}
	return remaining
}
