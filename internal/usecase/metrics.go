package usecase

import "context"

// MetricsSummary represents aggregated verification insights.
type MetricsSummary struct {
	TotalRequests     int64   `json:"total_requests"`
	Approved          int64   `json:"approved"`
	ManualReview      int64   `json:"manual_review"`
	Rejected          int64   `json:"rejected"`
	ApprovalRate      float64 `json:"approval_rate"`
	AverageFinalScore float64 `json:"average_final_score"`
	AverageLatencyMs  float64 `json:"average_latency_ms"`
}

// GetMetricsSummary aggregates decision outcomes from persisted logs.
func (uc *VerificationUseCase) GetMetricsSummary(ctx context.Context) (*MetricsSummary, error) {
	aggregation, err := uc.repo.AggregateMetrics(ctx)
	if err != nil {
		return nil, err
	}

	summary := &MetricsSummary{
		TotalRequests:     aggregation.TotalCount,
		Approved:          aggregation.ApprovedCount,
		ManualReview:      aggregation.ManualReviewCount,
		Rejected:          aggregation.RejectedCount,
		AverageFinalScore: aggregation.AverageFinalScore,
		AverageLatencyMs:  aggregation.AverageLatencyMs,
	}
	if aggregation.TotalCount > 0 {
		summary.ApprovalRate = float64(aggregation.ApprovedCount) / float64(aggregation.TotalCount)
	}
	return summary, nil
}
