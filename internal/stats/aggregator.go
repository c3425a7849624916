// Package stats provides read-only rollups over the pattern repository:
// per-pattern and per-category statistics, and the top-performers ranking.
package stats

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/patternd/internal/pattern"
	"github.com/fyrsmithlabs/patternd/internal/store"
)

const (
	// Top-pattern score weights: empirical reliability dominates, usage
	// saturates at 100 applications.
	successWeight   = 0.7
	usageWeight     = 0.3
	usageSaturation = 100
)

// StatsStore is the read surface the aggregator needs. Satisfied by
// *store.Store.
type StatsStore interface {
	GetPattern(ctx context.Context, id string) (*pattern.Pattern, error)
	ListAll(ctx context.Context) ([]*pattern.Pattern, error)
	PatternApplicationStats(ctx context.Context, patternID string) (total, successes int64, avgExecutionMs float64, err error)
	ApplicationStatsByCategory(ctx context.Context) ([]store.CategoryApplicationStats, error)
	ApplicationsForPattern(ctx context.Context, patternID string, since time.Time, limit int) ([]*pattern.Application, error)
}

// PatternStatistics is the per-pattern rollup.
type PatternStatistics struct {
	PatternID      string  `json:"pattern_id"`
	Name           string  `json:"name"`
	Category       string  `json:"category"`
	Applications   int64   `json:"applications"`
	Successes      int64   `json:"successes"`
	SuccessRate    float64 `json:"success_rate"`
	AvgExecutionMs float64 `json:"avg_execution_ms"`
}

// CategoryStatistics is the per-category rollup.
type CategoryStatistics struct {
	Category       string  `json:"category"`
	Applications   int64   `json:"applications"`
	Successes      int64   `json:"successes"`
	AvgExecutionMs float64 `json:"avg_execution_ms"`
}

// TopPattern pairs a pattern with its composite performance score.
type TopPattern struct {
	Pattern *pattern.Pattern `json:"pattern"`
	Score   float64          `json:"score"`
}

// Aggregator computes read-only statistics views.
type Aggregator struct {
	store  StatsStore
	logger *zap.Logger
}

// NewAggregator creates a stats aggregator over the given store.
func NewAggregator(st StatsStore, logger *zap.Logger) (*Aggregator, error) {
	if st == nil {
		return nil, errors.New("stats store is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Aggregator{store: st, logger: logger}, nil
}

// PatternStatistics returns the rollup for one pattern.
func (a *Aggregator) PatternStatistics(ctx context.Context, patternID string) (*PatternStatistics, error) {
	p, err := a.store.GetPattern(ctx, patternID)
	if err != nil {
		return nil, err
	}

	total, successes, avgMs, err := a.store.PatternApplicationStats(ctx, patternID)
	if err != nil {
		return nil, err
	}

	rate := 0.0
	if total > 0 {
		rate = float64(successes) / float64(total)
	}

	return &PatternStatistics{
		PatternID:      p.ID,
		Name:           p.Name,
		Category:       p.Category,
		Applications:   total,
		Successes:      successes,
		SuccessRate:    rate,
		AvgExecutionMs: avgMs,
	}, nil
}

// CategoryStatistics returns the per-category rollup across the whole
// application log.
func (a *Aggregator) CategoryStatistics(ctx context.Context) ([]CategoryStatistics, error) {
	rollup, err := a.store.ApplicationStatsByCategory(ctx)
	if err != nil {
		return nil, err
	}

	stats := make([]CategoryStatistics, 0, len(rollup))
	for _, cs := range rollup {
		stats = append(stats, CategoryStatistics{
			Category:       cs.Category,
			Applications:   cs.Applications,
			Successes:      cs.Successes,
			AvgExecutionMs: cs.AvgExecutionMs,
		})
	}
	return stats, nil
}

// RecentApplications returns the newest application records for a pattern
// within the given window. A zero window means the full history.
func (a *Aggregator) RecentApplications(ctx context.Context, patternID string, window time.Duration, limit int) ([]*pattern.Application, error) {
	var since time.Time
	if window > 0 {
		since = time.Now().Add(-window)
	}
	return a.store.ApplicationsForPattern(ctx, patternID, since, limit)
}

// TopPatterns ranks patterns by success_rate*0.7 + min(usage,100)/100*0.3,
// descending. Patterns with zero recorded applications are excluded
// regardless of their stored success_rate: a pattern that has never been
// applied cannot be top-performing.
func (a *Aggregator) TopPatterns(ctx context.Context, limit int) ([]*TopPattern, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be positive, got %d", limit)
	}

	corpus, err := a.store.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	top := make([]*TopPattern, 0, len(corpus))
	for _, p := range corpus {
		if p.UsageCount == 0 {
			continue
		}
		usage := p.UsageCount
		if usage > usageSaturation {
			usage = usageSaturation
		}
		score := p.SuccessRate*successWeight + float64(usage)/usageSaturation*usageWeight
		top = append(top, &TopPattern{Pattern: p, Score: score})
	}

	sort.SliceStable(top, func(i, j int) bool {
		if top[i].Score != top[j].Score {
			return top[i].Score > top[j].Score
		}
		return top[i].Pattern.Name < top[j].Pattern.Name
	})
	if len(top) > limit {
		top = top[:limit]
	}
	return top, nil
}
