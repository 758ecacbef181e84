// Package vision wraps the Google Cloud Vision images:annotate endpoint
// for receipt text extraction.
package vision

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"os"

	goption "google.golang.org/api/option"
	gvision "google.golang.org/api/vision/v1"

	"spendlens/internal/ingest"
)

var _ ingest.TextExtractor = (*Client)(nil)

type Client struct {
	svc *gvision.Service
}

// NewFromEnv creates a Vision client using GOOGLE_CREDENTIALS_JSON,
// GOOGLE_APPLICATION_CREDENTIALS, or application default credentials, in
// that order.
func NewFromEnv(ctx context.Context) (*Client, error) {
	var opts []goption.ClientOption
	if raw := os.Getenv("GOOGLE_CREDENTIALS_JSON"); raw != "" {
		opts = append(opts, goption.WithCredentialsJSON([]byte(raw)))
	} else if path := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"); path != "" {
		opts = append(opts, goption.WithCredentialsFile(path))
	}
	return New(ctx, opts...)
}

func New(ctx context.Context, opts ...goption.ClientOption) (*Client, error) {
	svc, err := gvision.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("vision service: %w", err)
	}
	return &Client{svc: svc}, nil
}

// ExtractText runs TEXT_DETECTION on the image and returns the detected
// text. An image where nothing is detected yields an empty string, not an
// error; the downstream extractor handles empty input.
func (c *Client) ExtractText(ctx context.Context, image []byte) (string, error) {
	if len(image) == 0 {
		return "", errors.New("empty image")
	}

	req := &gvision.BatchAnnotateImagesRequest{
		Requests: []*gvision.AnnotateImageRequest{{
			Image: &gvision.Image{
				Content: base64.StdEncoding.EncodeToString(image),
			},
			Features: []*gvision.Feature{{
				Type:       "TEXT_DETECTION",
				MaxResults: 1,
			}},
		}},
	}

	resp, err := c.svc.Images.Annotate(req).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("annotate image: %w", err)
	}
	if len(resp.Responses) == 0 {
		return "", errors.New("annotate image: empty response")
	}

	r := resp.Responses[0]
	if r.Error != nil {
		return "", fmt.Errorf("annotate image: %s", r.Error.Message)
	}

	var text string
	switch {
	case r.FullTextAnnotation != nil:
		text = r.FullTextAnnotation.Text
	case len(r.TextAnnotations) > 0:
		text = r.TextAnnotations[0].Description
	}

	if text == "" {
		slog.WarnContext(ctx, "Vision detected no text in image", "image_bytes", len(image))
	}
	return text, nil
}
