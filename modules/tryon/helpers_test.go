package tryon

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"image"
	"image/color"
	"image/jpeg"
	"net/http"
	"strings"
	"testing"

	"ulook-server/modules/common/imaging"
)

func jsonDecode(r *http.Request, v any) error {
	return json.NewDecoder(r.Body).Decode(v)
}

// testJPEG encodes a real JPEG data URL for paths that decode pixels.
func testJPEG(t *testing.T, w, h int) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 64, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 85}); err != nil {
		t.Fatalf("encode jpeg: %v", err)
	}
	return imaging.ToDataURL("image/jpeg", buf.Bytes())
}

// fakeRef builds a syntactically valid data URL with a distinct payload per
// tag, long enough to pass reference validation. Paths that never decode
// pixels (budgeting, validation) use these.
func fakeRef(tag string) string {
	payload := base64.StdEncoding.EncodeToString([]byte(strings.Repeat(tag+"|", 40)))
	return "data:image/jpeg;base64," + payload
}
