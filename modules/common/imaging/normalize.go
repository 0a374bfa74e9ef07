package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"log"

	"github.com/jdeng/goheif"
	"github.com/kolesa-team/go-webp/decoder"
	"github.com/kolesa-team/go-webp/webp"
	"golang.org/x/image/draw"
)

// DefaultJPEGQuality - canonical quality for normalized reference images
const DefaultJPEGQuality = 85

var supportedMimes = map[string]bool{
	"image/jpeg": true,
	"image/jpg":  true,
	"image/png":  true,
	"image/webp": true,
	"image/heic": true,
	"image/heif": true,
}

// IsHEIC - whether the mime type needs HEIC conversion
func IsHEIC(mime string) bool {
	return mime == "image/heic" || mime == "image/heif"
}

// NormalizeToJPEG - convert any supported image data URL into a canonical
// JPEG data URL, optionally downscaling so the longest side fits maxDim.
// Images are never upscaled. maxDim <= 0 disables resizing; quality <= 0
// falls back to DefaultJPEGQuality.
func NormalizeToJPEG(dataURL string, maxDim, quality int) (string, error) {
	mime, data, err := ParseDataURL(dataURL)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrConversionFailed, err)
	}
	if !supportedMimes[mime] {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, mime)
	}
	if quality <= 0 {
		quality = DefaultJPEGQuality
	}

	// Already-canonical JPEGs skip the decode/encode round trip
	if (mime == "image/jpeg" || mime == "image/jpg") && maxDim <= 0 && quality == DefaultJPEGQuality {
		return dataURL, nil
	}

	img, err := decodeImage(mime, data)
	if err != nil {
		return "", fmt.Errorf("%w: decoding %s: %v", ErrConversionFailed, mime, err)
	}

	if maxDim > 0 {
		img = fitInside(img, maxDim)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return "", fmt.Errorf("%w: encoding JPEG: %v", ErrConversionFailed, err)
	}
	return ToDataURL("image/jpeg", buf.Bytes()), nil
}

// NormalizeAllToJPEG - normalize a batch of data URLs. HEIC inputs that fail
// to convert abort the batch; other failures fall back to the original image.
func NormalizeAllToJPEG(dataURLs []string, maxDim, quality int) ([]string, error) {
	out := make([]string, 0, len(dataURLs))
	for i, dataURL := range dataURLs {
		normalized, err := NormalizeToJPEG(dataURL, maxDim, quality)
		if err != nil {
			mime, _, _ := ParseDataURL(dataURL)
			if IsHEIC(mime) {
				return nil, fmt.Errorf("image %d: %w", i, err)
			}
			log.Printf("⚠️ Failed to normalize image %d (%s), using original: %v", i, mime, err)
			out = append(out, dataURL)
			continue
		}
		out = append(out, normalized)
	}
	return out, nil
}

func decodeImage(mime string, data []byte) (image.Image, error) {
	switch mime {
	case "image/jpeg", "image/jpg":
		return jpeg.Decode(bytes.NewReader(data))
	case "image/png":
		return png.Decode(bytes.NewReader(data))
	case "image/webp":
		return webp.Decode(bytes.NewReader(data), &decoder.Options{})
	case "image/heic", "image/heif":
		return goheif.Decode(bytes.NewReader(data))
	}
	return nil, fmt.Errorf("no decoder for %s", mime)
}

// fitInside - scale down so the longest side is at most maxDim, preserving
// aspect ratio. Smaller images pass through untouched.
func fitInside(img image.Image, maxDim int) image.Image {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= maxDim && h <= maxDim {
		return img
	}

	var newW, newH int
	if w >= h {
		newW = maxDim
		newH = h * maxDim / w
	} else {
		newH = maxDim
		newW = w * maxDim / h
	}
	if newW < 1 {
		newW = 1
	}
	if newH < 1 {
		newH = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, newW, newH))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
	return dst
}
