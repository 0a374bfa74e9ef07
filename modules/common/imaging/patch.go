package imaging

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"log"
	"sync"

	"golang.org/x/image/draw"
	"golang.org/x/sync/errgroup"
)

const (
	// PatchSize - output size of every detail patch
	PatchSize = 640
	// MinCropSize - smallest allowed crop side in source pixels
	MinCropSize = 32
	// CropPaddingPercent - extra margin added around user crops
	CropPaddingPercent = 10
	// AutoPatchSourceMax - auto-patch sources are downscaled to this first
	AutoPatchSourceMax = 1024
	// AutoPatchConcurrency - images processed in parallel during batch extraction
	AutoPatchConcurrency = 2
)

// Auto-patch regions as fractions of the source image. The chest region is
// where logos, pockets and embroidery most often sit; the center region
// captures the main print.
var (
	chestRegion  = regionFraction{0.20, 0.15, 0.60, 0.40}
	centerRegion = regionFraction{0.25, 0.25, 0.50, 0.50}
)

type regionFraction struct {
	x, y, w, h float64
}

// ExtractDetailPatch - crop a user-selected region and magnify it into a
// PatchSize x PatchSize JPEG patch. The region is clamped to the image,
// padded by CropPaddingPercent on each side, and contain-fitted onto a
// white canvas.
func ExtractDetailPatch(dataURL string, rect Rect) (string, error) {
	mime, data, err := ParseDataURL(dataURL)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrCropFailed, err)
	}

	img, err := decodeImage(mime, data)
	if err != nil {
		return "", fmt.Errorf("%w: decoding %s: %v", ErrCropFailed, mime, err)
	}

	bounds := img.Bounds()
	imgW, imgH := bounds.Dx(), bounds.Dy()

	x := max(0, rect.X)
	y := max(0, rect.Y)
	w := max(MinCropSize, min(rect.W, imgW-x))
	h := max(MinCropSize, min(rect.H, imgH-y))
	if x >= imgW || y >= imgH || w <= 0 || h <= 0 {
		return "", fmt.Errorf("%w: region (%d,%d %dx%d) outside image %dx%d", ErrCropFailed, rect.X, rect.Y, rect.W, rect.H, imgW, imgH)
	}

	padX := w * CropPaddingPercent / 100
	padY := h * CropPaddingPercent / 100
	x = max(0, x-padX)
	y = max(0, y-padY)
	w = min(imgW-x, w+padX*2)
	h = min(imgH-y, h+padY*2)

	cropped := cropRegion(img, image.Rect(bounds.Min.X+x, bounds.Min.Y+y, bounds.Min.X+x+w, bounds.Min.Y+y+h))
	patch := containOnWhite(cropped, PatchSize)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, patch, &jpeg.Options{Quality: DefaultJPEGQuality}); err != nil {
		return "", fmt.Errorf("%w: encoding patch: %v", ErrCropFailed, err)
	}
	return ToDataURL("image/jpeg", buf.Bytes()), nil
}

// ExtractDetailPatches - process a batch of user crops in parallel. Failed
// crops are skipped; successful patches keep their input order.
func ExtractDetailPatches(ctx context.Context, sources []string, rects []Rect) []string {
	results := make([]string, len(sources))
	g, _ := errgroup.WithContext(ctx)
	for i := range sources {
		i := i
		g.Go(func() error {
			patch, err := ExtractDetailPatch(sources[i], rects[i])
			if err != nil {
				log.Printf("⚠️ Skipping detail crop %d: %v", i, err)
				return nil
			}
			results[i] = patch
			return nil
		})
	}
	g.Wait()

	patches := make([]string, 0, len(results))
	for _, p := range results {
		if p != "" {
			patches = append(patches, p)
		}
	}
	return patches
}

// ExtractAutoPatches - generate up to patchCount heuristic detail patches
// from a clothing image: the chest region first, then a center crop. The
// source is downscaled to AutoPatchSourceMax before cropping. Any failure
// degrades to an empty result.
func ExtractAutoPatches(dataURL string, patchCount int) []string {
	mime, data, err := ParseDataURL(dataURL)
	if err != nil {
		log.Printf("⚠️ Auto patch extraction skipped: %v", err)
		return nil
	}

	img, err := decodeImage(mime, data)
	if err != nil {
		log.Printf("⚠️ Auto patch extraction skipped: decoding %s: %v", mime, err)
		return nil
	}
	img = fitInside(img, AutoPatchSourceMax)

	regions := []regionFraction{chestRegion, centerRegion}
	if patchCount < len(regions) {
		regions = regions[:max(0, patchCount)]
	}

	bounds := img.Bounds()
	imgW, imgH := bounds.Dx(), bounds.Dy()

	patches := make([]string, 0, len(regions))
	for _, region := range regions {
		rect := image.Rect(
			bounds.Min.X+int(float64(imgW)*region.x),
			bounds.Min.Y+int(float64(imgH)*region.y),
			bounds.Min.X+int(float64(imgW)*(region.x+region.w)),
			bounds.Min.Y+int(float64(imgH)*(region.y+region.h)),
		)
		cropped := cropRegion(img, rect)
		patch := coverFit(cropped, PatchSize)

		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, patch, &jpeg.Options{Quality: DefaultJPEGQuality}); err != nil {
			log.Printf("⚠️ Auto patch encode failed: %v", err)
			continue
		}
		patches = append(patches, ToDataURL("image/jpeg", buf.Bytes()))
	}
	return patches
}

// ExtractManyAutoPatches - 여러 이미지의 auto patch를 제한된 동시성으로 추출.
// Results are slotted by input index so callers can attribute each patch set
// to its source image regardless of goroutine completion order. Scheduling
// stops once maxTotal patches have been produced; the exact cap is applied by
// the caller in input order.
func ExtractManyAutoPatches(ctx context.Context, dataURLs []string, patchesPerImage, maxTotal int) [][]string {
	results := make([][]string, len(dataURLs))
	if maxTotal <= 0 {
		return results
	}

	var mu sync.Mutex
	produced := 0

	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(AutoPatchConcurrency)
	for i, dataURL := range dataURLs {
		i, dataURL := i, dataURL
		mu.Lock()
		full := produced >= maxTotal
		mu.Unlock()
		if full {
			break
		}

		g.Go(func() error {
			patches := ExtractAutoPatches(dataURL, patchesPerImage)

			mu.Lock()
			produced += len(patches)
			mu.Unlock()

			results[i] = patches
			return nil
		})
	}
	g.Wait()
	return results
}

func cropRegion(img image.Image, rect image.Rectangle) image.Image {
	rect = rect.Intersect(img.Bounds())
	dst := image.NewRGBA(image.Rect(0, 0, rect.Dx(), rect.Dy()))
	draw.Draw(dst, dst.Bounds(), img, rect.Min, draw.Src)
	return dst
}

// containOnWhite - scale to fit inside a size x size white canvas, centered
func containOnWhite(img image.Image, size int) image.Image {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	var newW, newH int
	if w >= h {
		newW = size
		newH = h * size / w
	} else {
		newH = size
		newW = w * size / h
	}
	if newW < 1 {
		newW = 1
	}
	if newH < 1 {
		newH = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)

	offsetX := (size - newW) / 2
	offsetY := (size - newH) / 2
	target := image.Rect(offsetX, offsetY, offsetX+newW, offsetY+newH)
	draw.CatmullRom.Scale(dst, target, img, bounds, draw.Over, nil)
	return dst
}

// coverFit - scale to fill a size x size canvas, cropping the overflow
func coverFit(img image.Image, size int) image.Image {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w < 1 || h < 1 {
		return image.NewRGBA(image.Rect(0, 0, size, size))
	}

	// Scale so the shorter side matches size, then center-crop the rest
	var srcRect image.Rectangle
	if w > h {
		cropW := h
		offset := (w - cropW) / 2
		srcRect = image.Rect(bounds.Min.X+offset, bounds.Min.Y, bounds.Min.X+offset+cropW, bounds.Max.Y)
	} else {
		cropH := w
		offset := (h - cropH) / 2
		srcRect = image.Rect(bounds.Min.X, bounds.Min.Y+offset, bounds.Max.X, bounds.Min.Y+offset+cropH)
	}

	dst := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, srcRect, draw.Over, nil)
	return dst
}
