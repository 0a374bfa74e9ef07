package chat

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/gorilla/mux"

	"ulook-server/modules/common/ark"
	"ulook-server/modules/common/config"
)

// Handler exposes the stylist chat endpoint.
type Handler struct {
	service *Service
}

// NewHandler - 채팅 핸들러 생성
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes wires chat endpoints.
func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/api/chat", h.handleChat).Methods("POST", "OPTIONS")
}

type errorResponse struct {
	Error  string `json:"error"`
	Status int    `json:"status,omitempty"`
	Hint   string `json:"hint,omitempty"`
	Raw    any    `json:"raw,omitempty"`
}

func (h *Handler) handleChat(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if len(req.Messages) == 0 {
		writeError(w, http.StatusBadRequest, errorResponse{Error: "messages is required and must be a non-empty array"})
		return
	}

	resp, err := h.service.Chat(r.Context(), req)
	if err != nil {
		writeChatError(w, err)
		return
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		log.Printf("❌ [Chat] Failed to encode response: %v", err)
	}
}

func writeChatError(w http.ResponseWriter, err error) {
	var missingVars *config.MissingVarsError
	if errors.As(err, &missingVars) {
		writeError(w, http.StatusInternalServerError, errorResponse{Error: missingVars.Error()})
		return
	}

	var upstream *ark.UpstreamError
	if errors.As(err, &upstream) {
		resp := errorResponse{Status: upstream.Status}
		if json.Valid(upstream.Raw) {
			resp.Raw = json.RawMessage(upstream.Raw)
		} else {
			resp.Raw = string(upstream.Raw)
		}

		switch {
		case upstream.Status == http.StatusUnauthorized:
			log.Printf("❌ [Chat] 401 Unauthorized, API key authentication failed")
			resp.Error = "Authentication failed: Invalid or missing API key. Please check your ARK_API_KEY in .env file. If the issue persists, try setting ARK_AUTH_TYPE to \"direct\" or \"x-api-key\"."
			resp.Hint = "Try: ARK_AUTH_TYPE=direct or ARK_AUTH_TYPE=x-api-key in your .env file"
		case upstream.IsRateLimit():
			resp.Error = "Rate limit exceeded. Please wait a moment and try again, or check your API quota."
		default:
			resp.Error = upstream.Message
		}
		writeError(w, upstream.Status, resp)
		return
	}

	log.Printf("❌ [Chat] Request failed: %v", err)
	writeError(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
}

func writeError(w http.ResponseWriter, status int, body errorResponse) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("❌ Failed to encode error response: %v", err)
	}
}
