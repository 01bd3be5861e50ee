package document

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// EngineClient is the production Analyzer: it sends the image to the
// OCR/document-forensics engine and extracts claim fields from the returned
// text locally, so the extraction heuristics stay swappable without touching
// the engine.
type EngineClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewEngineClient builds a client for the document engine at baseURL.
func NewEngineClient(baseURL string, timeout time.Duration, logger *zap.Logger) *EngineClient {
	return &EngineClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.Named("document_engine"),
	}
}

type scanResponse struct {
	Text string `json:"text"`
	// MeanWordConfidence is the engine's tesseract-style mean word
	// confidence on a 0-100 scale.
	MeanWordConfidence float64 `json:"mean_word_confidence"`
	TamperScore        float64 `json:"tamper_score"`
	SecurityScore      float64 `json:"security_score"`
}

// Analyze implements Analyzer. The engine call honors ctx, so in-flight work
// is abandoned when the request is cancelled.
func (c *EngineClient) Analyze(ctx context.Context, image []byte) (*Claims, *Quality, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/document/scan", bytes.NewReader(image))
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("document engine request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, nil, fmt.Errorf("document engine returned status %d", resp.StatusCode)
	}

	var payload scanResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, nil, fmt.Errorf("document engine response: %w", err)
	}

	claims := extractClaims(payload.Text)
	quality := &Quality{
		OCRConfidence: clamp01(payload.MeanWordConfidence / 100),
		TamperScore:   clamp01(payload.TamperScore),
		SecurityScore: clamp01(payload.SecurityScore),
	}

	c.logger.Debug("document analyzed",
		zap.Bool("name_found", claims.Name != ""),
		zap.Bool("dob_found", claims.DateOfBirth != ""),
		zap.Float64("ocr_confidence", quality.OCRConfidence))

	return claims, quality, nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
