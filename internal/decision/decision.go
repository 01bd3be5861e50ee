package decision

import (
	"errors"
	"fmt"
	"math"
)

// Outcome is the terminal verdict of a verification request.
type Outcome string

const (
	Approved     Outcome = "Approved"
	ManualReview Outcome = "Manual Review"
	Rejected     Outcome = "Rejected"
)

// Weights holds the fixed fusion policy. The values are system policy, not a
// per-call tunable; they are exposed as a struct so the policy can be
// validated independently of the fusion arithmetic.
type Weights struct {
	Document    float64
	OCR         float64
	Liveness    float64
	CrossVerify float64
	FaceMatch   float64
}

// DefaultWeights is the production fusion policy.
var DefaultWeights = Weights{
	Document:    0.30,
	OCR:         0.20,
	Liveness:    0.15,
	CrossVerify: 0.20,
	FaceMatch:   0.15,
}

// Validate checks that the weights form a convex combination.
func (w Weights) Validate() error {
	sum := w.Document + w.OCR + w.Liveness + w.CrossVerify + w.FaceMatch
	if math.Abs(sum-1.0) > 1e-9 {
		return fmt.Errorf("fusion weights sum to %v, want 1.0", sum)
	}
	return nil
}

// Decision thresholds, evaluated top-down with closed lower bounds.
const (
	ApproveThreshold = 0.90
	ReviewThreshold  = 0.70
)

// PartialScores carries the five independent signals feeding the fuser.
// Each producer guarantees its value is already clamped to [0,1]; a value
// outside that range reaching Fuse is a programming defect.
type PartialScores struct {
	Document    float64
	OCR         float64
	Liveness    float64
	CrossVerify float64
	FaceMatch   float64
}

// Result is the immutable output of a fused verification.
type Result struct {
	Scores     PartialScores
	FinalScore float64
	Outcome    Outcome
}

// ErrScoreOutOfRange reports a contract violation by a score producer.
var ErrScoreOutOfRange = errors.New("partial score outside [0,1]")

// Fuse combines the five partial scores under DefaultWeights and maps the
// weighted sum onto an outcome. Inputs are contract-checked, never clamped:
// clamping here would hide a defect in the producing component.
func Fuse(scores PartialScores) (*Result, error) {
	for name, v := range map[string]float64{
		"document":     scores.Document,
		"ocr":          scores.OCR,
		"liveness":     scores.Liveness,
		"cross_verify": scores.CrossVerify,
		"face_match":   scores.FaceMatch,
	} {
		if v < 0 || v > 1 || math.IsNaN(v) {
			return nil, fmt.Errorf("%w: %s=%v", ErrScoreOutOfRange, name, v)
		}
	}

	final := scores.Document*DefaultWeights.Document +
		scores.OCR*DefaultWeights.OCR +
		scores.Liveness*DefaultWeights.Liveness +
		scores.CrossVerify*DefaultWeights.CrossVerify +
		scores.FaceMatch*DefaultWeights.FaceMatch

	return &Result{
		Scores:     scores,
		FinalScore: final,
		Outcome:    outcomeFor(final),
	}, nil
}

func outcomeFor(final float64) Outcome {
	switch {
	case final >= ApproveThreshold:
		return Approved
	case final >= ReviewThreshold:
		return ManualReview
	default:
		return Rejected
	}
}
