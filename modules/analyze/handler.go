package analyze

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/gorilla/mux"

	"ulook-server/modules/common/ark"
	"ulook-server/modules/common/config"
)

// Handler exposes the garment analysis endpoint used by wardrobe uploads.
type Handler struct {
	service *Service
}

// NewHandler - 의류 분석 핸들러 생성
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes wires analyze endpoints.
func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/api/analyze", h.handleAnalyze).Methods("POST", "OPTIONS")
}

func (h *Handler) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	var req AnalyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ImageBase64 == "" {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{"error": "imageBase64 is required and must be a string"})
		return
	}

	result, err := h.service.Analyze(r.Context(), req.ImageBase64)
	if err != nil {
		var missingVars *config.MissingVarsError
		if errors.As(err, &missingVars) {
			w.WriteHeader(http.StatusInternalServerError)
			json.NewEncoder(w).Encode(map[string]string{"error": missingVars.Error()})
			return
		}

		var upstream *ark.UpstreamError
		if errors.As(err, &upstream) {
			w.WriteHeader(upstream.Status)
			json.NewEncoder(w).Encode(map[string]any{
				"error":  upstream.Message,
				"status": upstream.Status,
			})
			return
		}

		// Anything unexpected still yields a usable placeholder so batch
		// uploads keep going.
		log.Printf("⚠️ [Analyze] Unexpected failure, returning placeholder: %v", err)
		result = PlaceholderResult()
		result.Error = err.Error()
	}

	if err := json.NewEncoder(w).Encode(result); err != nil {
		log.Printf("❌ [Analyze] Failed to encode response: %v", err)
	}
}
