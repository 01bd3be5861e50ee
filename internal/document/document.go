package document

import "context"

// Claims is the structured identity asserted by a scanned document. Fields
// that could not be extracted are empty strings, never an error: a missing
// claim degrades its downstream match score to zero instead of failing the
// request.
type Claims struct {
	Name        string
	DateOfBirth string // normalized YYYY-MM-DD, or "" when unparsable
	Address     string
	IDNumber    string
}

// Quality carries the document-level confidence signals, all in [0,1].
// OCRConfidence is normalized from the engine's tesseract-style mean word
// confidence (0-100 scale).
type Quality struct {
	OCRConfidence float64
	TamperScore   float64
	SecurityScore float64
}

// Score is the composite document signal consumed by the decision fuser:
// the mean of the tamper and security-feature likelihoods.
func (q Quality) Score() float64 {
	return (q.TamperScore + q.SecurityScore) / 2
}

// Analyzer turns a document image into claims and quality signals. It must
// not fail for a structurally valid image; per-field extraction failures
// surface as empty claim fields.
type Analyzer interface {
	Analyze(ctx context.Context, image []byte) (*Claims, *Quality, error)
}
