package video

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// EngineClient is the production Analyzer, backed by the media analysis
// engine (frame liveness model, face detector, speech-to-text).
type EngineClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewEngineClient builds a client for the media engine at baseURL. Timeouts
// should be generous: the engine decodes and transcribes whole videos.
func NewEngineClient(baseURL string, timeout time.Duration, logger *zap.Logger) *EngineClient {
	return &EngineClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.Named("media_engine"),
	}
}

type analyzeResponse struct {
	LivenessScore float64 `json:"liveness_score"`
	FaceImage     *string `json:"face_image"` // base64, null when no face detected
	Transcript    string  `json:"transcript"`
}

// Analyze implements Analyzer, streaming the video to the engine. A face the
// engine reports but that fails to decode is treated as no face found.
func (c *EngineClient) Analyze(ctx context.Context, media io.Reader) (*Signals, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/video/analyze", media)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("media engine request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("media engine returned status %d", resp.StatusCode)
	}

	var payload analyzeResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("media engine response: %w", err)
	}

	signals := &Signals{
		LivenessScore: clamp01(payload.LivenessScore),
		SpokenText:    payload.Transcript,
	}
	if payload.FaceImage != nil {
		face, err := base64.StdEncoding.DecodeString(*payload.FaceImage)
		if err != nil {
			c.logger.Warn("discarding undecodable face crop", zap.Error(err))
		} else if len(face) > 0 {
			signals.FaceImage = face
		}
	}

	c.logger.Debug("video analyzed",
		zap.Float64("liveness_score", signals.LivenessScore),
		zap.Bool("face_found", signals.FaceImage != nil),
		zap.Int("transcript_len", len(signals.SpokenText)))

	return signals, nil
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
