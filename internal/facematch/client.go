package facematch

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// EngineClient is the production Matcher, backed by the face embedding
// engine. The engine detects a face in the document image, embeds both
// faces, and reports the normalized embedding distance.
type EngineClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewEngineClient builds a client for the face engine at baseURL.
func NewEngineClient(baseURL string, timeout time.Duration, logger *zap.Logger) *EngineClient {
	return &EngineClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.Named("face_engine"),
	}
}

type compareRequest struct {
	DocumentImage string `json:"document_image"`
	LiveFace      string `json:"live_face"`
}

type compareResponse struct {
	FaceFound bool    `json:"face_found"`
	Distance  float64 `json:"distance"`
}

// Match implements Matcher. An absent live face short-circuits to 0.0
// without calling the engine; an absent document face reported by the engine
// also scores 0.0. Otherwise the score is one minus the embedding distance,
// clamped to [0,1].
func (c *EngineClient) Match(ctx context.Context, documentImage, liveFace []byte) (float64, error) {
	if len(documentImage) == 0 || len(liveFace) == 0 {
		return 0, nil
	}

	body, err := json.Marshal(compareRequest{
		DocumentImage: base64.StdEncoding.EncodeToString(documentImage),
		LiveFace:      base64.StdEncoding.EncodeToString(liveFace),
	})
	if err != nil {
		return 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/face/compare", bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("face engine request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("face engine returned status %d", resp.StatusCode)
	}

	var payload compareResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return 0, fmt.Errorf("face engine response: %w", err)
	}

	if !payload.FaceFound {
		c.logger.Debug("no face detected in document photo")
		return 0, nil
	}
	return clamp01(1 - payload.Distance), nil
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
