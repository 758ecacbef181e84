// Package extract turns raw receipt text into a structured receipt using
// Gemini constrained JSON generation.
package extract

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	goption "google.golang.org/api/option"

	"spendlens/internal/core"
	"spendlens/internal/ingest"
)

var _ ingest.ReceiptExtractor = (*Extractor)(nil)

// ErrNoCandidates is returned when the model produces no usable output.
var ErrNoCandidates = errors.New("model returned no candidates")

const prompt = `You are an assistant that processes grocery receipts.
Below is the raw text extracted from a receipt image by OCR. Extract:

1. Store name
2. Purchase date, formatted YYYY-MM-DD (use today's date if none is present)
3. The list of purchased items with:
   - Item name
   - Price
   - Category (one of: Produce, Meat & Seafood, Dairy, Bakery, Pantry,
     Frozen, Beverages, Snacks, Household, Personal Care)
4. Total amount

Ignore loyalty-card lines, payment lines and change. If the text is empty
or unreadable, respond with an empty items list.

Receipt text:
`

// receiptSchema constrains the model output to the receipt shape. The
// response is still treated as untrusted and re-validated after parsing.
var receiptSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"store": {Type: genai.TypeString},
		"date":  {Type: genai.TypeString},
		"items": {
			Type: genai.TypeArray,
			Items: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"name":     {Type: genai.TypeString},
					"price":    {Type: genai.TypeNumber},
					"category": {Type: genai.TypeString},
				},
				Required: []string{"name", "price", "category"},
			},
		},
		"total": {Type: genai.TypeNumber},
	},
	Required: []string{"store", "date", "items", "total"},
}

type Extractor struct {
	client *genai.Client
	model  *genai.GenerativeModel
}

// New creates an Extractor backed by the named Gemini model.
func New(ctx context.Context, apiKey, modelName string) (*Extractor, error) {
	if apiKey == "" {
		return nil, errors.New("missing Gemini API key")
	}
	client, err := genai.NewClient(ctx, goption.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}

	model := client.GenerativeModel(modelName)
	model.ResponseMIMEType = "application/json"
	model.ResponseSchema = receiptSchema

	return &Extractor{client: client, model: model}, nil
}

func (e *Extractor) Close() error {
	return e.client.Close()
}

// ExtractReceipt implements ingest.ReceiptExtractor. The returned receipt
// has no ID or user attached; the ingestion service assigns those.
func (e *Extractor) ExtractReceipt(ctx context.Context, text string) (core.Receipt, error) {
	resp, err := e.model.GenerateContent(ctx, genai.Text(prompt+text))
	if err != nil {
		return core.Receipt{}, fmt.Errorf("generate receipt: %w", err)
	}

	raw, err := firstText(resp)
	if err != nil {
		return core.Receipt{}, err
	}

	receipt, err := ParseReceiptJSON([]byte(raw), time.Now())
	if err != nil {
		return core.Receipt{}, err
	}

	slog.InfoContext(ctx, "Receipt extracted",
		"store", receipt.Store,
		"date", receipt.Date,
		"items", len(receipt.Items),
		"total", receipt.Total)

	return receipt, nil
}

func firstText(resp *genai.GenerateContentResponse) (string, error) {
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if t, ok := part.(genai.Text); ok && t != "" {
				return string(t), nil
			}
		}
	}
	return "", ErrNoCandidates
}

// ParseReceiptJSON decodes and validates a model response. Model output is
// an untrusted boundary: prices must be finite and non-negative, categories
// and names non-empty, and the date parseable (falling back to now when it
// is not). The total is recomputed from the items, overriding whatever the
// model reported.
func ParseReceiptJSON(data []byte, now time.Time) (core.Receipt, error) {
	var parsed struct {
		Store string             `json:"store"`
		Date  string             `json:"date"`
		Items []core.ReceiptItem `json:"items"`
		Total float64            `json:"total"`
	}
	if err := json.Unmarshal(data, &parsed); err != nil {
		return core.Receipt{}, fmt.Errorf("decode model response: %w", err)
	}

	receipt := core.Receipt{
		Store: strings.TrimSpace(parsed.Store),
		Date:  strings.TrimSpace(parsed.Date),
		Items: parsed.Items,
	}
	if receipt.Store == "" {
		return core.Receipt{}, core.ErrEmptyStore
	}
	if _, err := core.ParseDate(receipt.Date); err != nil {
		receipt.Date = now.Format(core.DateLayout)
	}
	if len(receipt.Items) == 0 {
		return core.Receipt{}, core.ErrNoItems
	}
	for i := range receipt.Items {
		receipt.Items[i].Name = strings.TrimSpace(receipt.Items[i].Name)
		receipt.Items[i].Category = strings.TrimSpace(receipt.Items[i].Category)
		if math.IsNaN(receipt.Items[i].Price) || math.IsInf(receipt.Items[i].Price, 0) {
			return core.Receipt{}, core.ErrNegativePrice
		}
		if err := receipt.Items[i].Validate(); err != nil {
			return core.Receipt{}, fmt.Errorf("model item %d: %w", i, err)
		}
	}

	receipt.Total = receipt.ItemsTotal()
	if parsed.Total != receipt.Total {
		slog.Debug("Model total differs from item sum, using item sum",
			"model_total", parsed.Total, "item_sum", receipt.Total)
	}

	return receipt, nil
}
