package http

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"spendlens/internal/core"
	"spendlens/internal/ingest"
)

// createReceiptRequest is the manual-create payload. Items is a pointer so
// a missing field can be told apart from an empty array, and Total so an
// absent total can be computed from the items.
type createReceiptRequest struct {
	Store  string              `json:"store"`
	Date   string              `json:"date"`
	Items  *[]core.ReceiptItem `json:"items"`
	Total  *float64            `json:"total"`
	UserID string              `json:"user_id"`
}

// handleReceipts serves GET (list all) and POST (manual create) on
// /api/receipts.
func (s *Server) handleReceipts(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleListReceipts(w, r)
	case http.MethodPost:
		s.handleCreateReceipt(w, r)
	default:
		w.Header().Set("Allow", "GET, POST")
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) handleListReceipts(w http.ResponseWriter, r *http.Request) {
	userID := sanitizeInput(r.URL.Query().Get("user_id"))

	receipts, err := s.getReceipts(r.Context(), userID)
	if err != nil {
		slog.ErrorContext(r.Context(), "List receipts error", "error", err, "user_id", userID)
		writeError(w, http.StatusInternalServerError, "failed to fetch receipts")
		return
	}
	if receipts == nil {
		receipts = []core.Receipt{}
	}
	writeJSON(w, http.StatusOK, receipts)
}

func (s *Server) handleCreateReceipt(w http.ResponseWriter, r *http.Request) {
	var req createReceiptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid receipt data")
		return
	}

	req.Store = sanitizeInput(req.Store)
	req.Date = sanitizeInput(req.Date)
	if req.Store == "" || req.Date == "" || req.Items == nil {
		writeError(w, http.StatusBadRequest, "invalid receipt data")
		return
	}

	receipt := core.Receipt{
		ID:     uuid.New().String(),
		Store:  req.Store,
		Date:   req.Date,
		Items:  *req.Items,
		UserID: sanitizeInput(req.UserID),
	}
	// A supplied total is accepted as-is, even when it disagrees with the
	// item sum; an absent one is computed from the items.
	if req.Total != nil {
		receipt.Total = *req.Total
	} else {
		receipt.Total = receipt.ItemsTotal()
	}

	if err := s.receipts.Create(r.Context(), receipt); err != nil {
		slog.ErrorContext(r.Context(), "Create receipt error", "error", err, "id", receipt.ID)
		writeError(w, http.StatusInternalServerError, "failed to create receipt")
		return
	}

	s.invalidateReceipts(receipt.UserID)
	writeJSON(w, http.StatusCreated, receipt)
}

// handleRecentReceipts serves GET /api/receipts/recent.
func (s *Server) handleRecentReceipts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	userID := sanitizeInput(r.URL.Query().Get("user_id"))
	limit := 0
	if v := strings.TrimSpace(r.URL.Query().Get("limit")); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}

	receipts, err := s.receipts.ListRecent(r.Context(), userID, limit)
	if err != nil {
		slog.ErrorContext(r.Context(), "List recent receipts error", "error", err, "user_id", userID)
		writeError(w, http.StatusInternalServerError, "failed to fetch receipts")
		return
	}
	if receipts == nil {
		receipts = []core.Receipt{}
	}
	writeJSON(w, http.StatusOK, receipts)
}

// handleProcessReceipt serves POST /api/receipts/process: multipart upload
// with a "receipt" image file and a "user_id" field.
func (s *Server) handleProcessReceipt(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	if err := r.ParseMultipartForm(s.maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid upload")
		return
	}

	file, _, err := r.FormFile("receipt")
	if err != nil {
		writeError(w, http.StatusBadRequest, "no receipt file provided")
		return
	}
	defer file.Close()

	image, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid upload")
		return
	}

	userID := sanitizeInput(r.FormValue("user_id"))

	receipt, err := s.processor.Process(r.Context(), image, userID)
	if err != nil {
		if errors.Is(err, ingest.ErrNoImage) {
			writeError(w, http.StatusBadRequest, "no receipt file provided")
			return
		}
		slog.ErrorContext(r.Context(), "Process receipt error", "error", err, "user_id", userID)
		writeError(w, http.StatusInternalServerError, "failed to process receipt")
		return
	}

	receiptsProcessed.Inc()
	s.invalidateReceipts(userID)
	writeJSON(w, http.StatusCreated, receipt)
}
