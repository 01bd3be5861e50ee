package repository

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/example/kyc-verify/internal/logging"
)

// VerificationLog is the persisted outcome of one verification request: the
// five partial scores, the fused score and decision, plus a document hash
// for duplicate-submission lookups.
type VerificationLog struct {
	ID               uint      `gorm:"primaryKey"`
	RequestID        string    `gorm:"column:request_id;uniqueIndex;size:64"`
	UserID           string    `gorm:"column:user_id;index;size:64"`
	DocumentScore    float64   `gorm:"column:document_score"`
	OCRScore         float64   `gorm:"column:ocr_score"`
	LivenessScore    float64   `gorm:"column:liveness_score"`
	CrossVerifyScore float64   `gorm:"column:cross_verify_score"`
	FaceMatchScore   float64   `gorm:"column:face_match_score"`
	FinalScore       float64   `gorm:"column:final_score"`
	Decision         string    `gorm:"column:decision;size:32"`
	DocumentSHA1     string    `gorm:"column:document_sha1;index;size:40"`
	LatencyMs        int64     `gorm:"column:latency_ms"`
	CreatedAt        time.Time `gorm:"column:created_at"`
}

// TableName overrides the default table name.
func (VerificationLog) TableName() string {
	return "verification_logs"
}

// MetricsAggregation is the raw aggregate over all verification logs.
type MetricsAggregation struct {
	TotalCount        int64
	ApprovedCount     int64
	ManualReviewCount int64
	RejectedCount     int64
	AverageFinalScore float64
	AverageLatencyMs  float64
}

// VerificationRepository provides persistence for verification logs.
type VerificationRepository struct {
	db             *gorm.DB
	logger         *zap.Logger
	retryAttempts  int
	initialBackoff time.Duration
	maxBackoff     time.Duration
}

// NewVerificationRepository creates a repository with transient-error
// retries enabled for writes.
func NewVerificationRepository(db *gorm.DB, logger *zap.Logger) *VerificationRepository {
	return &VerificationRepository{
		db:             db,
		logger:         logger.Named("verification_repository"),
		retryAttempts:  3,
		initialBackoff: 50 * time.Millisecond,
		maxBackoff:     time.Second,
	}
}

// AutoMigrate ensures the schema is available.
func (r *VerificationRepository) AutoMigrate(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(&VerificationLog{})
}

// SaveLog persists a verification log entry.
func (r *VerificationRepository) SaveLog(ctx context.Context, log *VerificationLog) error {
	return r.executeWithRetry(ctx, "repository.save_log", log.RequestID, func() error {
		return r.db.WithContext(ctx).Create(log).Error
	})
}

// FindByRequestIDAndUser retrieves a log owned by the given user.
func (r *VerificationRepository) FindByRequestIDAndUser(ctx context.Context, requestID, userID string) (*VerificationLog, error) {
	var log VerificationLog
	if err := r.db.WithContext(ctx).First(&log, "request_id = ? AND user_id = ?", requestID, userID).Error; err != nil {
		return nil, err
	}
	return &log, nil
}

// FindDuplicatesByDocumentHash lists other requests by the same user that
// submitted a byte-identical document.
func (r *VerificationRepository) FindDuplicatesByDocumentHash(ctx context.Context, userID, documentSHA1, excludeRequestID string) ([]*VerificationLog, error) {
	var logs []*VerificationLog
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND document_sha1 = ? AND request_id <> ?", userID, documentSHA1, excludeRequestID).
		Order("created_at DESC").
		Find(&logs).Error
	if err != nil {
		return nil, err
	}
	return logs, nil
}

type totalsRow struct {
	TotalCount int64
	AvgScore   float64
	AvgLatency float64
}

type decisionCountRow struct {
	Decision string
	Count    int64
}

// AggregateMetrics computes request totals, per-decision counts, and score
// and latency averages over all persisted logs.
func (r *VerificationRepository) AggregateMetrics(ctx context.Context) (*MetricsAggregation, error) {
	var totals totalsRow
	err := r.db.WithContext(ctx).
		Model(&VerificationLog{}).
		Select("COUNT(*) AS total_count, COALESCE(AVG(final_score), 0) AS avg_score, COALESCE(AVG(latency_ms), 0) AS avg_latency").
		Scan(&totals).Error
	if err != nil {
		return nil, err
	}

	var counts []decisionCountRow
	err = r.db.WithContext(ctx).
		Model(&VerificationLog{}).
		Select("decision, COUNT(*) AS count").
		Group("decision").
		Scan(&counts).Error
	if err != nil {
		return nil, err
	}

	agg := &MetricsAggregation{
		TotalCount:        totals.TotalCount,
		AverageFinalScore: totals.AvgScore,
		AverageLatencyMs:  totals.AvgLatency,
	}
	for _, row := range counts {
		switch row.Decision {
		case "Approved":
			agg.ApprovedCount = row.Count
		case "Manual Review":
			agg.ManualReviewCount = row.Count
		case "Rejected":
			agg.RejectedCount = row.Count
		}
	}
	return agg, nil
}

// executeWithRetry retries fn on transient failures with doubling backoff,
// wrapping the terminal error with operation context.
func (r *VerificationRepository) executeWithRetry(ctx context.Context, operation, requestID string, fn func() error) error {
	opLogger := logging.WithOperation(r.logger, operation, requestID)
	backoff := r.initialBackoff

	var err error
	for attempt := 0; attempt < r.retryAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return logging.NewOperationError(operation, requestID, ctx.Err())
			case <-time.After(backoff):
			}
			if next := backoff * 2; next <= r.maxBackoff {
				backoff = next
			}
		}

		err = fn()
		if err == nil {
			if attempt > 0 {
				opLogger.Info("database operation succeeded after retry", zap.Int("attempt", attempt+1))
			}
			return nil
		}
		if !isTransient(err) || attempt == r.retryAttempts-1 {
			opLogger.Error("database operation failed", zap.Error(err), zap.Int("attempt", attempt+1))
			return logging.NewOperationError(operation, requestID, err)
		}
		opLogger.Warn("transient database error", zap.Error(err), zap.Int("attempt", attempt+1))
	}
	return logging.NewOperationError(operation, requestID, err)
}

func isTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var timeout interface{ Timeout() bool }
	if errors.As(err, &timeout) && timeout.Timeout() {
		return true
	}
	var temporary interface{ Temporary() bool }
	return errors.As(err, &temporary) && temporary.Temporary()
}
