package facematch

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
)

func newCompareServer(t *testing.T, calls *atomic.Int64, response compareResponse) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.URL.Path != "/v1/face/compare" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req compareRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("bad request body: %v", err)
		}
		if req.DocumentImage == "" || req.LiveFace == "" {
			t.Error("expected both images in request")
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(response)
	}))
	t.Cleanup(server.Close)
	return server
}

func TestMatchScoresOneMinusDistance(t *testing.T) {
	var calls atomic.Int64
	server := newCompareServer(t, &calls, compareResponse{FaceFound: true, Distance: 0.35})

	client := NewEngineClient(server.URL, time.Second, zap.NewNop())
	score, err := client.Match(context.Background(), []byte("doc"), []byte("face"))
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if score != 0.65 {
		t.Fatalf("score = %v, want 0.65", score)
	}
}

func TestMatchClampsNegativeSimilarity(t *testing.T) {
	var calls atomic.Int64
	server := newCompareServer(t, &calls, compareResponse{FaceFound: true, Distance: 1.4})

	client := NewEngineClient(server.URL, time.Second, zap.NewNop())
	score, err := client.Match(context.Background(), []byte("doc"), []byte("face"))
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if score != 0.0 {
		t.Fatalf("score = %v, want clamp to 0.0", score)
	}
}

func TestMatchAbsentLiveFaceScoresZeroWithoutEngineCall(t *testing.T) {
	var calls atomic.Int64
	server := newCompareServer(t, &calls, compareResponse{FaceFound: true, Distance: 0})

	client := NewEngineClient(server.URL, time.Second, zap.NewNop())
	score, err := client.Match(context.Background(), []byte("doc"), nil)
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if score != 0.0 {
		t.Fatalf("score = %v, want 0.0 for absent face", score)
	}
	if calls.Load() != 0 {
		t.Fatalf("expected no engine call, got %d", calls.Load())
	}
}

func TestMatchAbsentDocumentFaceScoresZero(t *testing.T) {
	var calls atomic.Int64
	server := newCompareServer(t, &calls, compareResponse{FaceFound: false, Distance: 0})

	client := NewEngineClient(server.URL, time.Second, zap.NewNop())
	score, err := client.Match(context.Background(), []byte("doc"), []byte("face"))
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if score != 0.0 {
		t.Fatalf("score = %v, want 0.0 when document has no face", score)
	}
}

func TestMatchReportsEngineFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewEngineClient(server.URL, time.Second, zap.NewNop())
	if _, err := client.Match(context.Background(), []byte("doc"), []byte("face")); err == nil {
		t.Fatal("expected error for engine failure")
	}
}
