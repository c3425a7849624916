package matcher

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/patternd/internal/pattern"
)

const instrumentationName = "github.com/fyrsmithlabs/patternd/internal/matcher"

const (
	// minConfidence filters out weak matches from results.
	minConfidence = 0.1

	// maxResults caps the ranked list.
	maxResults = 10
)

// PatternSource supplies the corpus to score. Satisfied by *store.Store.
type PatternSource interface {
	ListAll(ctx context.Context) ([]*pattern.Pattern, error)
}

// Match pairs a pattern with its computed confidence.
type Match struct {
	Pattern    *pattern.Pattern `json:"pattern"`
	Confidence float64          `json:"confidence"`
}

// Service ranks stored patterns against observed errors.
type Service struct {
	source PatternSource
	logger *zap.Logger

	tracer         trace.Tracer
	meter          metric.Meter
	matchCounter   metric.Int64Counter
	skippedCounter metric.Int64Counter
}

// NewService creates a matcher over the given pattern source.
func NewService(source PatternSource, logger *zap.Logger) (*Service, error) {
	if source == nil {
		return nil, errors.New("pattern source is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Service{
		source: source,
		logger: logger,
		tracer: otel.Tracer(instrumentationName),
		meter:  otel.Meter(instrumentationName),
	}
	s.initMetrics()
	return s, nil
}

func (s *Service) initMetrics() {
	var err error

	s.matchCounter, err = s.meter.Int64Counter(
		"patternd.matcher.queries_total",
		metric.WithDescription("Total number of diagnosis queries"),
		metric.WithUnit("{query}"),
	)
	if err != nil {
		s.logger.Warn("failed to create query counter", zap.Error(err))
	}

	s.skippedCounter, err = s.meter.Int64Counter(
		"patternd.matcher.patterns_skipped_total",
		metric.WithDescription("Total number of corpus patterns skipped as malformed"),
		metric.WithUnit("{pattern}"),
	)
	if err != nil {
		s.logger.Warn("failed to create skip counter", zap.Error(err))
	}
}

// FindMatches scores every stored pattern against errorText and the
// diagnosis context, returning matches with confidence above 0.1, ordered
// by confidence then success rate, capped at 10.
//
// Malformed stored patterns are skipped with a warning rather than failing
// the query: the corpus is advisory, not critical-path. The result is
// deterministic for a fixed store snapshot.
func (s *Service) FindMatches(ctx context.Context, errorText string, diagCtx pattern.Context) ([]*Match, error) {
	ctx, span := s.tracer.Start(ctx, "matcher.find_matches")
	defer span.End()
	span.SetAttributes(
		attribute.Int("error_text_len", len(errorText)),
		attribute.Int("context_keys", len(diagCtx)),
	)

	corpus, err := s.source.ListAll(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("load corpus: %w", err)
	}

	matches := make([]*Match, 0, len(corpus))
	for _, p := range corpus {
		confidence, err := Score(errorText, p.ErrorSignatures, p.ConfidenceIndicators, diagCtx)
		if err != nil {
			s.logger.Warn("skipping malformed pattern",
				zap.String("pattern_id", p.ID),
				zap.String("name", p.Name),
				zap.Error(err),
			)
			if s.skippedCounter != nil {
				s.skippedCounter.Add(ctx, 1)
			}
			continue
		}
		if confidence > minConfidence {
			matches = append(matches, &Match{Pattern: p, Confidence: confidence})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Confidence != matches[j].Confidence {
			return matches[i].Confidence > matches[j].Confidence
		}
		if matches[i].Pattern.SuccessRate != matches[j].Pattern.SuccessRate {
			return matches[i].Pattern.SuccessRate > matches[j].Pattern.SuccessRate
		}
		return matches[i].Pattern.Name < matches[j].Pattern.Name
	})
	if len(matches) > maxResults {
		matches = matches[:maxResults]
	}

	if s.matchCounter != nil {
		s.matchCounter.Add(ctx, 1, metric.WithAttributes(
			attribute.Int("result_count", len(matches)),
		))
	}
	span.SetAttributes(attribute.Int("result_count", len(matches)))

	s.logger.Debug("diagnosis complete",
		zap.Int("corpus_size", len(corpus)),
		zap.Int("matches", len(matches)),
	)
	return matches, nil
}
