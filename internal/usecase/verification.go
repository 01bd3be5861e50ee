package usecase

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/example/kyc-verify/internal/crossverify"
	"github.com/example/kyc-verify/internal/decision"
	"github.com/example/kyc-verify/internal/document"
	"github.com/example/kyc-verify/internal/facematch"
	"github.com/example/kyc-verify/internal/logging"
	"github.com/example/kyc-verify/internal/repository"
	"github.com/example/kyc-verify/internal/video"
)

// ErrDocumentUnreadable marks a request whose document yielded no usable
// claims at all; unlike missing video signals this is not degradable.
var ErrDocumentUnreadable = errors.New("document unreadable")

// VerificationRepository defines the persistence operations needed by the
// use case.
type VerificationRepository interface {
	SaveLog(ctx context.Context, log *repository.VerificationLog) error
	FindByRequestIDAndUser(ctx context.Context, requestID, userID string) (*repository.VerificationLog, error)
	FindDuplicatesByDocumentHash(ctx context.Context, userID, documentSHA1, excludeRequestID string) ([]*repository.VerificationLog, error)
	AggregateMetrics(ctx context.Context) (*repository.MetricsAggregation, error)
}

// VerificationUseCase runs the fusion pipeline: document and video analysis
// in parallel, then cross-verification and face matching, then decision
// fusion, then persistence and caching of the immutable result.
type VerificationUseCase struct {
	repo           VerificationRepository
	cache          Cache
	documents      document.Analyzer
	videos         video.Analyzer
	faces          facematch.Matcher
	logger         *zap.Logger
	retryAttempts  int
	initialBackoff time.Duration
	maxBackoff     time.Duration
}

// NewVerificationUseCase constructs a new use case instance.
func NewVerificationUseCase(
	repo VerificationRepository,
	cache Cache,
	documents document.Analyzer,
	videos video.Analyzer,
	faces facematch.Matcher,
	logger *zap.Logger,
) *VerificationUseCase {
	return &VerificationUseCase{
		repo:           repo,
		cache:          cache,
		documents:      documents,
		videos:         videos,
		faces:          faces,
		logger:         logger.Named("verification_usecase"),
		retryAttempts:  3,
		initialBackoff: 50 * time.Millisecond,
		maxBackoff:     time.Second,
	}
}

type cachedVerification struct {
	RequestID        string    `json:"request_id"`
	UserID           string    `json:"user_id"`
	DocumentScore    float64   `json:"document_score"`
	OCRScore         float64   `json:"ocr_score"`
	LivenessScore    float64   `json:"liveness_score"`
	CrossVerifyScore float64   `json:"cross_verify_score"`
	FaceMatchScore   float64   `json:"face_match_score"`
	FinalScore       float64   `json:"final_score"`
	Decision         string    `json:"decision"`
	DocumentSHA1     string    `json:"document_sha1"`
	CreatedAt        time.Time `json:"created_at"`
}

// DuplicateReport lists prior submissions of the same document by the same
// user.
type DuplicateReport struct {
	Request    *repository.VerificationLog
	Duplicates []*repository.VerificationLog
}

// Verify runs the full pipeline for one request and returns the request id
// and the fused result. The media reader is consumed exactly once. On
// cancellation in-flight engine work is abandoned and no partial decision is
// emitted.
func (uc *VerificationUseCase) Verify(ctx context.Context, userID string, documentImage []byte, media io.Reader) (string, *decision.Result, error) {
	requestID := uuid.NewString()
	opLogger := logging.WithOperation(uc.logger, "usecase.verify_identity", requestID)
	started := time.Now()

	cacheKey := cacheKeyFor(requestID)
	if err := uc.withRedisRetry(ctx, requestID, "cache.set.processing", func() error {
		return uc.cache.Set(ctx, cacheKey, "processing", time.Minute)
	}); err != nil {
		opLogger.Error("failed to set processing flag", zap.Error(err))
		return "", nil, err
	}

	// The two leaf analyzers are independent; run them concurrently.
	var (
		claims  *document.Claims
		quality *document.Quality
		signals *video.Signals
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		c, q, err := uc.documents.Analyze(gctx, documentImage)
		if err != nil {
			return logging.NewOperationError("usecase.analyze_document", requestID,
				fmt.Errorf("%w: %v", ErrDocumentUnreadable, err))
		}
		claims, quality = c, q
		return nil
	})
	g.Go(func() error {
		s, err := uc.videos.Analyze(gctx, media)
		if err != nil {
			// Degradable: the pipeline proceeds with zero video signals.
			opLogger.Warn("video analysis failed, degrading to zero signals", zap.Error(err))
			signals = &video.Signals{}
			return nil
		}
		signals = s
		return nil
	})
	if err := g.Wait(); err != nil {
		opLogger.Error("document analysis failed", zap.Error(err))
		return "", nil, err
	}

	// Cross-verification and face matching only depend on the leaf outputs
	// and not on each other.
	var crossScore, faceScore float64
	g2, g2ctx := errgroup.WithContext(ctx)
	g2.Go(func() error {
		crossScore = crossverify.Score(claims, signals.SpokenText)
		return nil
	})
	g2.Go(func() error {
		score, err := uc.faces.Match(g2ctx, documentImage, signals.FaceImage)
		if err != nil {
			opLogger.Warn("face match failed, degrading to zero score", zap.Error(err))
			score = 0
		}
		faceScore = score
		return nil
	})
	_ = g2.Wait()

	if err := ctx.Err(); err != nil {
		return "", nil, logging.NewOperationError("usecase.verify_identity", requestID, err)
	}

	result, err := decision.Fuse(decision.PartialScores{
		Document:    quality.Score(),
		OCR:         quality.OCRConfidence,
		Liveness:    signals.LivenessScore,
		CrossVerify: crossScore,
		FaceMatch:   faceScore,
	})
	if err != nil {
		wrapped := logging.NewOperationError("usecase.fuse_scores", requestID, err)
		opLogger.Error("score fusion rejected partial scores", zap.Error(wrapped))
		return "", nil, wrapped
	}

	hash := sha1.Sum(documentImage)
	log := &repository.VerificationLog{
		RequestID:        requestID,
		UserID:           userID,
		DocumentScore:    result.Scores.Document,
		OCRScore:         result.Scores.OCR,
		LivenessScore:    result.Scores.Liveness,
		CrossVerifyScore: result.Scores.CrossVerify,
		FaceMatchScore:   result.Scores.FaceMatch,
		FinalScore:       result.FinalScore,
		Decision:         string(result.Outcome),
		DocumentSHA1:     hex.EncodeToString(hash[:]),
		LatencyMs:        time.Since(started).Milliseconds(),
		CreatedAt:        time.Now().UTC(),
	}
	if err := uc.repo.SaveLog(ctx, log); err != nil {
		wrapped := logging.NewOperationError("usecase.save_log", requestID, err)
		opLogger.Error("failed to persist verification log", zap.Error(wrapped))
		return "", nil, wrapped
	}

	cached := cachedVerification{
		RequestID:        log.RequestID,
		UserID:           log.UserID,
		DocumentScore:    log.DocumentScore,
		OCRScore:         log.OCRScore,
		LivenessScore:    log.LivenessScore,
		CrossVerifyScore: log.CrossVerifyScore,
		FaceMatchScore:   log.FaceMatchScore,
		FinalScore:       log.FinalScore,
		Decision:         log.Decision,
		DocumentSHA1:     log.DocumentSHA1,
		CreatedAt:        log.CreatedAt,
	}
	serialized, err := json.Marshal(cached)
	if err != nil {
		opLogger.Error("failed to serialize verification result", zap.Error(err))
		return "", nil, err
	}
	if err := uc.withRedisRetry(ctx, requestID, "cache.set.result", func() error {
		return uc.cache.Set(ctx, cacheKey, string(serialized), 5*time.Minute)
	}); err != nil {
		opLogger.Error("failed to cache verification result", zap.Error(err))
		return "", nil, err
	}

	opLogger.Info("verification complete",
		zap.String("decision", log.Decision),
		zap.Float64("final_score", log.FinalScore),
		zap.Int64("latency_ms", log.LatencyMs))

	return requestID, result, nil
}

// GetResult retrieves a cached verification outcome or falls back to
// persistence.
func (uc *VerificationUseCase) GetResult(ctx context.Context, userID, requestID string) (*repository.VerificationLog, error) {
	cacheKey := cacheKeyFor(requestID)
	if cached, err := uc.withRedisGet(ctx, requestID, "cache.get.result", cacheKey); err == nil {
		var payload cachedVerification
		if err := json.Unmarshal([]byte(cached), &payload); err != nil {
			logging.WithOperation(uc.logger, "usecase.get_result", requestID).Warn("failed to decode cached result", zap.Error(err))
		} else if payload.RequestID == requestID && payload.UserID == userID {
			return &repository.VerificationLog{
				RequestID:        payload.RequestID,
				UserID:           payload.UserID,
				DocumentScore:    payload.DocumentScore,
				OCRScore:         payload.OCRScore,
				LivenessScore:    payload.LivenessScore,
				CrossVerifyScore: payload.CrossVerifyScore,
				FaceMatchScore:   payload.FaceMatchScore,
				FinalScore:       payload.FinalScore,
				Decision:         payload.Decision,
				DocumentSHA1:     payload.DocumentSHA1,
				CreatedAt:        payload.CreatedAt,
			}, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		logging.WithOperation(uc.logger, "usecase.get_result", requestID).Warn("failed to read cache", zap.Error(err))
	}

	return uc.repo.FindByRequestIDAndUser(ctx, requestID, userID)
}

// GetDuplicateReport builds a duplicate-document report for a verification
// request.
func (uc *VerificationUseCase) GetDuplicateReport(ctx context.Context, userID, requestID string) (*DuplicateReport, error) {
	log, err := uc.repo.FindByRequestIDAndUser(ctx, requestID, userID)
	if err != nil {
		return nil, err
	}
	duplicates, err := uc.repo.FindDuplicatesByDocumentHash(ctx, userID, log.DocumentSHA1, log.RequestID)
	if err != nil {
		return nil, err
	}
	return &DuplicateReport{Request: log, Duplicates: duplicates}, nil
}

func cacheKeyFor(requestID string) string {
	return "verification:" + requestID
}

func (uc *VerificationUseCase) withRedisRetry(ctx context.Context, requestID, operation string, fn func() error) error {
	if uc.retryAttempts <= 1 {
		return logging.NewOperationError(operation, requestID, fn())
	}

	backoff := uc.initialBackoff
	opLogger := logging.WithOperation(uc.logger, operation, requestID)
	var err error
	for attempt := 0; attempt < uc.retryAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return logging.NewOperationError(operation, requestID, ctx.Err())
			case <-time.After(backoff):
			}
			if next := backoff * 2; next <= uc.maxBackoff {
				backoff = next
			}
		}

		err = fn()
		if err == nil {
			if attempt > 0 {
				opLogger.Info("redis operation succeeded after retry", zap.Int("attempt", attempt+1))
			}
			return nil
		}
		if !isTransientError(err) || attempt == uc.retryAttempts-1 {
			opLogger.Error("redis operation failed", zap.Error(err), zap.Int("attempt", attempt+1))
			return logging.NewOperationError(operation, requestID, err)
		}
		opLogger.Warn("transient redis error", zap.Error(err), zap.Int("attempt", attempt+1))
	}
	return logging.NewOperationError(operation, requestID, err)
}

func (uc *VerificationUseCase) withRedisGet(ctx context.Context, requestID, operation, cacheKey string) (string, error) {
	var result string
	err := uc.withRedisRetry(ctx, requestID, operation, func() error {
		value, err := uc.cache.Get(ctx, cacheKey)
		if err != nil {
			return err
		}
		result = value
		return nil
	})
	if err != nil {
		return "", err
	}
	return result, nil
}

func isTransientError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var temporary interface{ Temporary() bool }
	return errors.As(err, &temporary) && temporary.Temporary()
}
