package imaging

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnsupportedFormat - the image mime type is not one we can decode
	ErrUnsupportedFormat = errors.New("unsupported image format")
	// ErrConversionFailed - decoding or re-encoding the image failed
	ErrConversionFailed = errors.New("image conversion failed")
	// ErrCropFailed - a crop region could not be extracted
	ErrCropFailed = errors.New("image crop failed")
)

// Rect - crop region in source pixel coordinates
type Rect struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

// ParseDataURL - split a data URL into its mime type and decoded bytes
func ParseDataURL(dataURL string) (mime string, data []byte, err error) {
	if !strings.HasPrefix(dataURL, "data:") {
		return "", nil, fmt.Errorf("not a data URL")
	}
	comma := strings.Index(dataURL, ",")
	if comma < 0 {
		return "", nil, fmt.Errorf("malformed data URL: missing payload")
	}

	meta := dataURL[len("data:"):comma]
	if semi := strings.Index(meta, ";"); semi >= 0 {
		mime = meta[:semi]
	} else {
		mime = meta
	}
	mime = strings.ToLower(strings.TrimSpace(mime))

	data, err = base64.StdEncoding.DecodeString(dataURL[comma+1:])
	if err != nil {
		return mime, nil, fmt.Errorf("invalid base64 payload: %w", err)
	}
	return mime, data, nil
}

// ToDataURL - encode bytes as a base64 data URL with the given mime type
func ToDataURL(mime string, data []byte) string {
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// ToRawDataURL - wrap an already-base64-encoded payload as a data URL
func ToRawDataURL(mime, base64Payload string) string {
	return "data:" + mime + ";base64," + base64Payload
}

// Payload - the base64 payload portion of a data URL ("" when absent)
func Payload(dataURL string) string {
	if idx := strings.Index(dataURL, ","); idx >= 0 {
		return dataURL[idx+1:]
	}
	return ""
}

// IsDataURL - whether the string looks like an image data URL
func IsDataURL(s string) bool {
	return strings.HasPrefix(s, "data:image/")
}

// EnsureDataURL - wrap bare base64 as a JPEG data URL, leaving data URLs as-is
func EnsureDataURL(s string) string {
	if IsDataURL(s) {
		return s
	}
	return "data:image/jpeg;base64," + s
}
