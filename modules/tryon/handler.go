package tryon

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/gorilla/mux"

	"ulook-server/modules/common/ark"
	"ulook-server/modules/common/config"
	"ulook-server/modules/common/imaging"
)

// Handler exposes the try-on generation endpoint.
type Handler struct {
	service *Service
}

// NewHandler - 트라이온 핸들러 생성
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes wires try-on endpoints.
func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/api/image", h.handleGenerate).Methods("POST", "OPTIONS")
}

type errorResponse struct {
	Error  string `json:"error"`
	Status int    `json:"status,omitempty"`
	Raw    any    `json:"raw,omitempty"`
}

func (h *Handler) handleGenerate(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	var req GenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if req.Prompt == "" {
		writeError(w, http.StatusBadRequest, errorResponse{Error: "prompt is required and must be a string"})
		return
	}

	resp, err := h.service.Generate(r.Context(), req)
	if err != nil {
		writeGenerateError(w, err)
		return
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		log.Printf("❌ [TryOn] Failed to encode response: %v", err)
	}
}

// writeGenerateError maps pipeline errors onto HTTP statuses: validation and
// image-format problems are 400, missing configuration is 500, upstream
// errors pass through with their own status.
func writeGenerateError(w http.ResponseWriter, err error) {
	var missingVars *config.MissingVarsError
	if errors.As(err, &missingVars) {
		writeError(w, http.StatusInternalServerError, errorResponse{Error: missingVars.Error()})
		return
	}

	if errors.Is(err, ErrInvalidReferenceImage) ||
		errors.Is(err, imaging.ErrConversionFailed) ||
		errors.Is(err, imaging.ErrUnsupportedFormat) {
		writeError(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	var upstream *ark.UpstreamError
	if errors.As(err, &upstream) {
		message := upstream.Message
		if upstream.IsRateLimit() {
			message = "Rate limit exceeded. Please wait a moment and try again, or check your API quota."
		}
		resp := errorResponse{Error: message, Status: upstream.Status}
		if json.Valid(upstream.Raw) {
			resp.Raw = json.RawMessage(upstream.Raw)
		} else {
			resp.Raw = string(upstream.Raw)
		}
		writeError(w, upstream.Status, resp)
		return
	}

	log.Printf("❌ [TryOn] Generation failed: %v", err)
	writeError(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
}

func writeError(w http.ResponseWriter, status int, body errorResponse) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("❌ Failed to encode error response: %v", err)
	}
}
