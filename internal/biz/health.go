package biz

import (
	"context"

	"FootyCollect/internal/model"
	"FootyCollect/pkg/fkapi"
)

// HealthUsecase reports the upstream breaker and cache state.
type HealthUsecase struct {
	breaker fkapi.Breaker
	cache   CacheInfo
	metrics MetricsReader
}

// NewHealthUsecase creates a new health use case.
func NewHealthUsecase(breaker fkapi.Breaker, cache CacheInfo, metrics MetricsReader) *HealthUsecase {
	return &HealthUsecase{
		breaker: breaker,
		cache:   cache,
		metrics: metrics,
	}
}

// Health is "ok" unless the upstream breaker is open, then "degraded".
func (uc *HealthUsecase) Health(ctx context.Context) *model.HealthStatus {
	snap := uc.breaker.Snapshot()
	status := &model.HealthStatus{
		Status:       "ok",
		CacheBackend: uc.cache.CacheBackend(),
		Breaker: model.BreakerStatus{
			Name:            snap.Name,
			State:           snap.State,
			FailureCount:    snap.FailureCount,
			LastFailureTime: snap.LastFailureTime,
		},
	}
	if snap.State == fkapi.StateOpen.String() {
		status.Status = "degraded"
	}
	return status
}

// UpstreamMetrics returns the shared client event counters.
func (uc *HealthUsecase) UpstreamMetrics(ctx context.Context) map[string]int64 {
	return uc.metrics.Snapshot(ctx)
}
