package handler

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"estoque/internal/core/domain"
	"estoque/internal/core/service"
)

// HTTPHandler exposes the coordinator to the UI layer. Every response
// is a structured JSON body; failure kinds map to stable status codes
// so screens render consistent feedback.
type HTTPHandler struct {
	coordinator *service.Coordinator
}

func NewHTTPHandler(coordinator *service.Coordinator) *HTTPHandler {
	return &HTTPHandler{coordinator: coordinator}
}

// Routes mounts the API.
func (h *HTTPHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/health", h.HealthCheck)
	r.Get("/api/items/{class}", h.ListItems)
	r.Get("/api/ledger", h.ListLedger)
	r.Post("/api/scan", h.Scan)
	r.Post("/api/adjust", h.Adjust)
	return r
}

type itemsResponse struct {
	Items   []domain.InventoryItem `json:"items"`
	Pending bool                   `json:"pending,omitempty"`
}

func (h *HTTPHandler) ListItems(w http.ResponseWriter, r *http.Request) {
	class := domain.Category(chi.URLParam(r, "class"))
	location := r.URL.Query().Get("location")

	items, err := h.coordinator.Items(r.Context(), class, location)
	if errors.Is(err, service.ErrPending) {
		// Throttled with nothing cached: the client keeps its previous
		// state and retries later.
		writeJSON(w, http.StatusAccepted, itemsResponse{Pending: true})
		return
	}
	if err != nil {
		h.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, itemsResponse{Items: items})
}

func (h *HTTPHandler) ListLedger(w http.ResponseWriter, r *http.Request) {
	location := r.URL.Query().Get("location")

	entries, err := h.coordinator.Ledger(r.Context(), location)
	if errors.Is(err, service.ErrPending) {
		writeJSON(w, http.StatusAccepted, map[string]bool{"pending": true})
		return
	}
	if err != nil {
		h.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"entries": entries})
}

type scanRequest struct {
	Token    string `json:"token"`
	Location string `json:"location"`
}

func (h *HTTPHandler) Scan(w http.ResponseWriter, r *http.Request) {
	var req scanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, domain.ScanResult{
			Kind:    domain.FailureMalformedToken,
			Message: "invalid request body",
		})
		return
	}
	if req.Token == "" || req.Location == "" {
		writeJSON(w, http.StatusBadRequest, domain.ScanResult{
			Kind:    domain.FailureMalformedToken,
			Message: "token and location are required",
		})
		return
	}

	result := h.coordinator.ProcessScan(r.Context(), req.Token, req.Location)
	writeJSON(w, statusForKind(result.Kind), result)
}

type adjustRequest struct {
	Class     string `json:"class"`
	ItemID    string `json:"item_id"`
	Quantity  int    `json:"quantity"`
	Direction string `json:"direction"`
	Note      string `json:"note"`
	Location  string `json:"location"`
}

func (h *HTTPHandler) Adjust(w http.ResponseWriter, r *http.Request) {
	var req adjustRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid request body"})
		return
	}
	if req.ItemID == "" || req.Quantity <= 0 || req.Location == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "item_id, positive quantity and location are required"})
		return
	}

	result, err := h.coordinator.AdjustStock(r.Context(), service.AdjustInput{
		Class:     domain.Category(req.Class),
		ItemID:    req.ItemID,
		Quantity:  req.Quantity,
		Direction: domain.Direction(req.Direction),
		Note:      req.Note,
		Location:  req.Location,
	})
	if err != nil {
		h.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// writeFailure classifies err and renders it. Unexpected kinds get
// logged here with the raw error; clients only ever see the generic
// message for them.
func (h *HTTPHandler) writeFailure(w http.ResponseWriter, err error) {
	outcome := service.Classify(err)
	switch outcome.Kind {
	case domain.FailureConflict, domain.FailureUnknown:
		log.Printf("http: request failed: %v", err)
	}
	writeJSON(w, statusForKind(outcome.Kind), map[string]interface{}{
		"error_kind": outcome.Kind,
		"retryable":  outcome.Retryable,
	})
}

func statusForKind(kind domain.FailureKind) int {
	switch kind {
	case domain.FailureNone:
		return http.StatusOK
	case domain.FailureMalformedToken:
		return http.StatusBadRequest
	case domain.FailureNotFound:
		return http.StatusNotFound
	case domain.FailureOutOfStock:
		return http.StatusGone
	case domain.FailureAlreadyUsed, domain.FailureBusy:
		return http.StatusConflict
	case domain.FailureRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
