package video

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
)

func newTestClient(t *testing.T, body string) (*EngineClient, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/video/analyze" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return NewEngineClient(server.URL, time.Second, zap.NewNop()), server
}

func TestEngineClientAnalyzeDecodesSignals(t *testing.T) {
	face := base64.StdEncoding.EncodeToString([]byte("face-crop"))
	client, _ := newTestClient(t, fmt.Sprintf(
		`{"liveness_score": 0.82, "face_image": %q, "transcript": "my name is John Smith"}`, face))

	signals, err := client.Analyze(context.Background(), strings.NewReader("video-bytes"))
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if signals.LivenessScore != 0.82 {
		t.Errorf("liveness = %v, want 0.82", signals.LivenessScore)
	}
	if string(signals.FaceImage) != "face-crop" {
		t.Errorf("face image = %q", signals.FaceImage)
	}
	if signals.SpokenText != "my name is John Smith" {
		t.Errorf("transcript = %q", signals.SpokenText)
	}
}

func TestEngineClientAnalyzeClampsLiveness(t *testing.T) {
	client, _ := newTestClient(t, `{"liveness_score": 1.7, "face_image": null, "transcript": ""}`)

	signals, err := client.Analyze(context.Background(), strings.NewReader("video"))
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if signals.LivenessScore != 1.0 {
		t.Errorf("liveness = %v, want clamp to 1.0", signals.LivenessScore)
	}
	if signals.FaceImage != nil {
		t.Errorf("expected nil face image, got %d bytes", len(signals.FaceImage))
	}
}

func TestEngineClientAnalyzeDropsUndecodableFace(t *testing.T) {
	client, _ := newTestClient(t, `{"liveness_score": 0.5, "face_image": "!!!not-base64!!!", "transcript": "hello"}`)

	signals, err := client.Analyze(context.Background(), strings.NewReader("video"))
	if err != nil {
		t.Fatalf("expected degraded signals, got error: %v", err)
	}
	if signals.FaceImage != nil {
		t.Error("expected undecodable face to be dropped")
	}
	if signals.SpokenText != "hello" {
		t.Errorf("transcript = %q, want preserved", signals.SpokenText)
	}
}

func TestEngineClientAnalyzeReportsEngineFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewEngineClient(server.URL, time.Second, zap.NewNop())
	if _, err := client.Analyze(context.Background(), strings.NewReader("video")); err == nil {
		t.Fatal("expected error for engine failure")
	}
}
