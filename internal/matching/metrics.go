package matching

import (
	"time"

	"github.com/ideamlabs/guidesignal-matcher/internal/cache"
	"github.com/ideamlabs/guidesignal-matcher/internal/fairness"
	"github.com/ideamlabs/guidesignal-matcher/internal/learning"
	"github.com/ideamlabs/guidesignal-matcher/internal/workerpool"
)

type PerformanceMetrics struct {
	TotalProcessed int64         `json:"total_processed"`
	AvgLatency     time.Duration `json:"avg_latency"`
	CacheHitRate   float64       `json:"cache_hit_rate"`
	// ErrorRate counts failed calls and degraded computations over all calls.
	ErrorRate      float64          `json:"error_rate"`
	Failed         int64            `json:"failed"`
	Degraded       int64            `json:"degraded"`
	WeightsVersion uint64           `json:"weights_version"`
	Cache          cache.Stats      `json:"cache"`
	Pool           workerpool.Stats `json:"pool"`
	Learning       learning.Stats   `json:"learning"`
}

func (e *Engine) GetPerformanceMetrics() PerformanceMetrics {
	m := PerformanceMetrics{
		TotalProcessed: e.processed.Load(),
		Failed:         e.failures.Load(),
		Degraded:       e.degraded.Load(),
		WeightsVersion: e.model.Snapshot().Version,
		Cache:          e.cache.Stats(),
		Pool:           e.pool.Stats(),
		Learning:       e.loop.Stats(),
	}
	m.CacheHitRate = m.Cache.HitRate()
	if m.TotalProcessed > 0 {
		m.AvgLatency = time.Duration(e.latency.Load() / m.TotalProcessed)
		m.ErrorRate = float64(m.Failed+m.Degraded) / float64(m.TotalProcessed)
	}
	return m
}

func (e *Engine) GetFairnessReport() fairness.Report {
	return e.adjuster.Report()
}
