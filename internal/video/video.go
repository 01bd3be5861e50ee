package video

import (
	"context"
	"io"
)

// Signals is what a verification video contributes to the pipeline.
// FaceImage and SpokenText are optional: a nil face or empty transcript means
// the corresponding downstream score is exactly 0.0, not that the request
// failed.
type Signals struct {
	LivenessScore float64 // always in [0,1]; 0.0 for corrupt or faceless input
	FaceImage     []byte  // one representative face crop, nil when none found
	SpokenText    string  // transcript, "" when speech recognition failed
}

// Analyzer extracts liveness, face, and speech signals from a video stream.
type Analyzer interface {
	Analyze(ctx context.Context, media io.Reader) (*Signals, error)
}
