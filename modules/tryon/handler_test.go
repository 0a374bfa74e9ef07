package tryon

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"

	"ulook-server/modules/common/ark"
	"ulook-server/modules/common/cache"
	"ulook-server/modules/common/config"
	"ulook-server/modules/common/imaging"
)

// upstreamRecorder fakes the Ark image endpoint and remembers what it saw.
type upstreamRecorder struct {
	called  bool
	payload ark.ImagePayload
}

func (u *upstreamRecorder) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u.called = true
		if r.URL.Path == "/images/generations" {
			json.NewDecoder(r.Body).Decode(&u.payload)
			w.Write([]byte(`{"data":[{"b64_json":"R0VORVJBVEVE"}]}`))
			return
		}
		// chat/completions (detail analyzer)
		w.Write([]byte(`{"choices":[{"message":{"content":"{\"garments\":[]}"}}]}`))
	}
}

func newTestRouter(t *testing.T, baseURL string) (*mux.Router, *Service) {
	t.Helper()
	cfg := &config.Config{
		ArkAPIKey:        "test-key",
		ArkBaseURL:       baseURL,
		ArkChatModel:     "chat-model",
		ArkImageModel:    "image-model",
		ArkSeedreamModel: "seedream-model",
		ArkAuthType:      "bearer",
	}
	service := NewService(cfg, ark.NewClient(cfg),
		cache.New[GarmentDetails](100, 24*time.Hour),
		cache.New[[]string](100, 24*time.Hour))

	r := mux.NewRouter()
	NewHandler(service).RegisterRoutes(r)
	return r, service
}

func postImage(t *testing.T, router *mux.Router, req GenerateRequest) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/image", bytes.NewReader(body)))
	return rec
}

func TestGenerateRequiresPrompt(t *testing.T) {
	router, _ := newTestRouter(t, "http://unused")
	rec := postImage(t, router, GenerateRequest{})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestGenerateMissingConfig(t *testing.T) {
	cfg := &config.Config{}
	service := NewService(cfg, ark.NewClient(cfg),
		cache.New[GarmentDetails](100, 24*time.Hour),
		cache.New[[]string](100, 24*time.Hour))
	r := mux.NewRouter()
	NewHandler(service).RegisterRoutes(r)

	rec := postImage(t, r, GenerateRequest{Prompt: "a look"})
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}

	var body map[string]any
	json.Unmarshal(rec.Body.Bytes(), &body)
	msg, _ := body["error"].(string)
	for _, name := range []string{"ARK_API_KEY", "ARK_BASE_URL", "ARK_IMAGE_MODEL"} {
		if !bytes.Contains([]byte(msg), []byte(name)) {
			t.Errorf("error message %q missing %s", msg, name)
		}
	}
}

func TestPreviewSixItemsProducesFiveReferences(t *testing.T) {
	upstream := &upstreamRecorder{}
	server := httptest.NewServer(upstream.handler())
	defer server.Close()

	router, _ := newTestRouter(t, server.URL)

	images := make([]string, 6)
	categories := make([]string, 6)
	for i := range images {
		images[i] = testJPEG(t, 200+i, 200)
		categories[i] = "top"
	}

	rec := postImage(t, router, GenerateRequest{
		Prompt:             "street style outfit",
		Mode:               ModePreview,
		ClothingImages:     images,
		ClothingCategories: categories,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp GenerateResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}

	if resp.Metadata.TotalImageInputs != 5 {
		t.Fatalf("totalImageInputs = %d, want 5", resp.Metadata.TotalImageInputs)
	}
	if resp.Metadata.Mode != ModePreview {
		t.Fatalf("mode = %q", resp.Metadata.Mode)
	}
	if resp.Metadata.Fidelity != FidelityMedium {
		t.Fatalf("preview must run at medium fidelity, got %q", resp.Metadata.Fidelity)
	}
	if resp.Metadata.Model != "seedream-model" {
		t.Fatalf("model = %q, reference images must select the seedream variant", resp.Metadata.Model)
	}
	if resp.Image != "data:image/png;base64,R0VORVJBVEVE" {
		t.Fatalf("image = %q", resp.Image)
	}
	if len(upstream.payload.Image) != 5 {
		t.Fatalf("upstream received %d images, want 5", len(upstream.payload.Image))
	}
}

func TestPreviewForcesFidelityToMedium(t *testing.T) {
	upstream := &upstreamRecorder{}
	server := httptest.NewServer(upstream.handler())
	defer server.Close()

	router, _ := newTestRouter(t, server.URL)
	rec := postImage(t, router, GenerateRequest{
		Prompt:         "outfit",
		Mode:           ModePreview,
		Fidelity:       FidelityHigh,
		ClothingImages: []string{testJPEG(t, 200, 200)},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp GenerateResponse
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Metadata.Fidelity != FidelityMedium || resp.Metadata.RequestedFidelity != FidelityHigh {
		t.Fatalf("fidelity = %q (requested %q)", resp.Metadata.Fidelity, resp.Metadata.RequestedFidelity)
	}
}

func TestRefineMediumWithCropStaysUnderThree(t *testing.T) {
	upstream := &upstreamRecorder{}
	server := httptest.NewServer(upstream.handler())
	defer server.Close()

	router, _ := newTestRouter(t, server.URL)

	item := testJPEG(t, 400, 400)
	rec := postImage(t, router, GenerateRequest{
		Prompt:         "refined outfit",
		Mode:           ModeRefine,
		Fidelity:       FidelityMedium,
		ClothingImages: []string{item},
		ClothingDetailCrops: []DetailCrop{
			{Image: item, Rect: imaging.Rect{X: 40, Y: 40, W: 120, H: 120}},
		},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp GenerateResponse
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Metadata.TotalImageInputs > 3 {
		t.Fatalf("totalImageInputs = %d, medium refine with crops must stay <= 3", resp.Metadata.TotalImageInputs)
	}
	if resp.Metadata.UserDetailPatchCount != 1 {
		t.Fatalf("userDetailPatchCount = %d, want 1", resp.Metadata.UserDetailPatchCount)
	}
	if resp.Metadata.AutoPatchCount != 0 {
		t.Fatalf("autoPatchCount = %d, smart reduction must disable auto patches", resp.Metadata.AutoPatchCount)
	}
}

func TestShortPayloadRejectedBeforeUpstream(t *testing.T) {
	upstream := &upstreamRecorder{}
	server := httptest.NewServer(upstream.handler())
	defer server.Close()

	router, _ := newTestRouter(t, server.URL)

	// Undecodable and far below the minimum payload length. Normalization
	// degrades to the original, which validation must then reject.
	rec := postImage(t, router, GenerateRequest{
		Prompt:         "outfit",
		Mode:           ModePreview,
		ClothingImages: []string{"data:image/png;base64,QUJDRA=="},
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400, body = %s", rec.Code, rec.Body.String())
	}
	if upstream.called {
		t.Fatal("invalid references must abort before any upstream call")
	}
}

func TestBrokenHEICReturns400(t *testing.T) {
	upstream := &upstreamRecorder{}
	server := httptest.NewServer(upstream.handler())
	defer server.Close()

	router, _ := newTestRouter(t, server.URL)
	rec := postImage(t, router, GenerateRequest{
		Prompt:         "outfit",
		ClothingImages: []string{"data:image/heic;base64,bm90LWEtaGVpYy1maWxl"},
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if upstream.called {
		t.Fatal("HEIC failure must not reach upstream")
	}
}

func TestUpstreamRateLimitPassthrough(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"message":"Too many requests"}}`))
	}))
	defer server.Close()

	router, _ := newTestRouter(t, server.URL)
	rec := postImage(t, router, GenerateRequest{
		Prompt:         "outfit",
		ClothingImages: []string{testJPEG(t, 200, 200)},
	})
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}

	var body map[string]any
	json.Unmarshal(rec.Body.Bytes(), &body)
	msg, _ := body["error"].(string)
	if !bytes.Contains([]byte(msg), []byte("Rate limit")) {
		t.Fatalf("error = %q, want rate-limit specific message", msg)
	}
}

func TestGenerateWithoutReferencesUsesDefaultModel(t *testing.T) {
	upstream := &upstreamRecorder{}
	server := httptest.NewServer(upstream.handler())
	defer server.Close()

	router, _ := newTestRouter(t, server.URL)
	rec := postImage(t, router, GenerateRequest{Prompt: "an outfit from scratch"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp GenerateResponse
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Metadata.Model != "image-model" {
		t.Fatalf("model = %q, want the configured default", resp.Metadata.Model)
	}
	if resp.Metadata.TotalImageInputs != 0 {
		t.Fatalf("totalImageInputs = %d, want 0", resp.Metadata.TotalImageInputs)
	}
}
