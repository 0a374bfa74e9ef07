package tryon

import (
	"errors"
	"testing"

	"ulook-server/modules/common/ark"
)

func TestMapFidelity(t *testing.T) {
	tests := []struct {
		fidelity Fidelity
		want     FidelityParams
	}{
		{FidelityLow, FidelityParams{Size: "1K", PatchesPerImage: 0, MaxTotalImages: 8}},
		{FidelityMedium, FidelityParams{Size: "2K", PatchesPerImage: 1, MaxTotalImages: 8}},
		{FidelityHigh, FidelityParams{Size: "2K", PatchesPerImage: 2, MaxTotalImages: 8}},
		{Fidelity(""), FidelityParams{Size: "1K", PatchesPerImage: 0, MaxTotalImages: 8}},
	}
	for _, tt := range tests {
		if got := MapFidelity(tt.fidelity); got != tt.want {
			t.Errorf("MapFidelity(%q) = %+v, want %+v", tt.fidelity, got, tt.want)
		}
	}
}

func TestSelectModel(t *testing.T) {
	if got := SelectModel("default-model", "seedream-model", false); got != "default-model" {
		t.Fatalf("without references got %q", got)
	}
	if got := SelectModel("default-model", "seedream-model", true); got != "seedream-model" {
		t.Fatalf("with references got %q", got)
	}
}

func TestBuildImagePayload(t *testing.T) {
	images := []string{fakeRef("a"), fakeRef("b")}
	payload, err := BuildImagePayload("seedream", "a prompt", images, FidelityHigh, 2)
	if err != nil {
		t.Fatalf("BuildImagePayload: %v", err)
	}

	if payload.Model != "seedream" || payload.Prompt != "a prompt" {
		t.Fatalf("payload = %+v", payload)
	}
	if payload.N != 2 {
		t.Fatalf("n = %d, want 2", payload.N)
	}
	if payload.ResponseFormat != "b64_json" {
		t.Fatalf("response_format = %q", payload.ResponseFormat)
	}
	if payload.Watermark {
		t.Fatal("watermark must be disabled")
	}
	if payload.SequentialImageGeneration != "disabled" {
		t.Fatalf("sequential_image_generation = %q", payload.SequentialImageGeneration)
	}
	if payload.Size != "2K" {
		t.Fatalf("size = %q, want 2K", payload.Size)
	}
	if len(payload.Image) != 2 {
		t.Fatalf("image count = %d", len(payload.Image))
	}
}

func TestBuildImagePayloadClampsN(t *testing.T) {
	payload, err := BuildImagePayload("m", "p", nil, FidelityLow, 99)
	if err != nil {
		t.Fatalf("BuildImagePayload: %v", err)
	}
	if payload.N != MaxOutputImages {
		t.Fatalf("n = %d, want %d", payload.N, MaxOutputImages)
	}

	payload, _ = BuildImagePayload("m", "p", nil, FidelityLow, 0)
	if payload.N != 1 {
		t.Fatalf("n = %d, want default 1", payload.N)
	}
}

func TestBuildImagePayloadRejectsMalformedImages(t *testing.T) {
	_, err := BuildImagePayload("m", "p", []string{"https://example.com/a.jpg"}, FidelityLow, 1)
	if !errors.Is(err, ErrInvalidReferenceImage) {
		t.Fatalf("err = %v, want ErrInvalidReferenceImage", err)
	}

	_, err = BuildImagePayload("m", "p", []string{"data:image/jpeg,no-base64-marker"}, FidelityLow, 1)
	if !errors.Is(err, ErrInvalidReferenceImage) {
		t.Fatalf("err = %v, want ErrInvalidReferenceImage", err)
	}
}

func TestExtractFirstImage(t *testing.T) {
	url, err := ExtractFirstImage([]ark.GeneratedImage{{B64JSON: "QUJD"}})
	if err != nil {
		t.Fatalf("ExtractFirstImage: %v", err)
	}
	if url != "data:image/png;base64,QUJD" {
		t.Fatalf("url = %q", url)
	}

	url, err = ExtractFirstImage([]ark.GeneratedImage{{URL: "https://cdn.example.com/out.png"}})
	if err != nil {
		t.Fatalf("ExtractFirstImage: %v", err)
	}
	if url != "https://cdn.example.com/out.png" {
		t.Fatalf("url = %q", url)
	}

	if _, err := ExtractFirstImage(nil); err == nil {
		t.Fatal("empty result set must fail")
	}
	if _, err := ExtractFirstImage([]ark.GeneratedImage{{}}); err == nil {
		t.Fatal("entry with neither url nor b64 must fail")
	}
}
