package facematch

import "context"

// Matcher scores the similarity between the document photo and the face
// captured from the verification video. Implementations return exactly 0.0,
// not an error, when either side has no usable face.
type Matcher interface {
	Match(ctx context.Context, documentImage, liveFace []byte) (float64, error)
}
