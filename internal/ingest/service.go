// Package ingest orchestrates receipt processing: OCR, structured
// extraction, and persistence, in that order. Both upstream calls are
// sequential with no internal concurrency; a failure at any step surfaces
// as a single processing error and nothing is persisted.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"spendlens/internal/core"
	"spendlens/internal/store"
)

// ErrNoImage is returned when Process is called without image bytes.
var ErrNoImage = errors.New("no receipt image provided")

// ErrProcessing is the single error the caller sees for any upstream or
// storage failure; the cause is logged, not retried.
var ErrProcessing = errors.New("failed to process receipt")

type (
	// TextExtractor is the OCR port. An image with no detectable text
	// yields an empty string, not an error.
	TextExtractor interface {
		ExtractText(ctx context.Context, image []byte) (string, error)
	}

	// ReceiptExtractor is the structured-generation port. The returned
	// receipt carries no ID or user; the service assigns those.
	ReceiptExtractor interface {
		ExtractReceipt(ctx context.Context, text string) (core.Receipt, error)
	}
)

// Service is the ingestion adapter.
type Service struct {
	ocr       TextExtractor
	extractor ReceiptExtractor
	store     store.ReceiptStore
	logger    *slog.Logger
}

func NewService(ocr TextExtractor, extractor ReceiptExtractor, receipts store.ReceiptStore, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		ocr:       ocr,
		extractor: extractor,
		store:     receipts,
		logger:    logger,
	}
}

// Process turns an uploaded receipt image into a persisted receipt for the
// given user. Persistence is the last step, so a failure anywhere leaves
// the store untouched and no compensation is needed.
func (s *Service) Process(ctx context.Context, image []byte, userID string) (core.Receipt, error) {
	if len(image) == 0 {
		return core.Receipt{}, ErrNoImage
	}

	text, err := s.ocr.ExtractText(ctx, image)
	if err != nil {
		s.logger.ErrorContext(ctx, "OCR failed", "error", err, "image_bytes", len(image))
		return core.Receipt{}, fmt.Errorf("%w: %v", ErrProcessing, err)
	}
	if text == "" {
		// Not fatal; the extractor is told the text may be empty and
		// will reject the receipt if it cannot produce items.
		s.logger.WarnContext(ctx, "OCR produced no text, continuing", "image_bytes", len(image))
	}

	receipt, err := s.extractor.ExtractReceipt(ctx, text)
	if err != nil {
		s.logger.ErrorContext(ctx, "Receipt extraction failed", "error", err)
		return core.Receipt{}, fmt.Errorf("%w: %v", ErrProcessing, err)
	}

	receipt.ID = uuid.New().String()
	receipt.UserID = userID

	if err := s.store.Create(ctx, receipt); err != nil {
		s.logger.ErrorContext(ctx, "Receipt persistence failed", "error", err, "id", receipt.ID)
		return core.Receipt{}, fmt.Errorf("%w: %v", ErrProcessing, err)
	}

	s.logger.InfoContext(ctx, "Receipt processed",
		"id", receipt.ID,
		"store", receipt.Store,
		"items", len(receipt.Items),
		"total", receipt.Total,
		"user_id", userID)

	return receipt, nil
}
