package matcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/patternd/internal/pattern"
)

func TestScore_ExactSignatureHit(t *testing.T) {
	// The canonical port-conflict scenario: an exact regex hit plus one
	// satisfied framework indicator.
	errorText := "Error: listen EADDRINUSE :::3000"
	signatures := []string{`EADDRINUSE.*:3000`}
	indicators := []string{"react detected"}
	diagCtx := pattern.Context{"react": true, "ports": []any{float64(3000)}}

	confidence, err := Score(errorText, signatures, indicators, diagCtx)
	require.NoError(t, err)

	assert.InDelta(t, 0.95, confidence, 0.0001)
	assert.GreaterOrEqual(t, confidence, 0.8)
	assert.LessOrEqual(t, confidence, 1.0)
}

func TestScore_ExactHitIsCaseInsensitive(t *testing.T) {
	confidence, err := Score("error: listen eaddrinuse :::3000", []string{`EADDRINUSE.*:3000`}, nil, nil)
	require.NoError(t, err)
	assert.InDelta(t, 0.8, confidence, 0.0001)
}

func TestScore_FuzzyFallback(t *testing.T) {
	// No exact hit: "modul" vs "module". One edit over 26 characters gives
	// similarity 25/26, discounted to ~0.577.
	errorText := "Cannot find modul 'react'"
	signatures := []string{"Cannot find module 'react'"}

	fuzzy, err := Score(errorText, signatures, nil, nil)
	require.NoError(t, err)
	assert.InDelta(t, (1-1.0/26)*0.6, fuzzy, 0.0001)

	// The same pattern with an exact hit must score strictly higher.
	exact, err := Score("Cannot find module 'react'", signatures, nil, nil)
	require.NoError(t, err)
	assert.InDelta(t, 0.8, exact, 0.0001)
	assert.Less(t, fuzzy, exact)
}

func TestScore_FuzzyBelowThresholdScoresZero(t *testing.T) {
	// The distilled scenario from production traffic: resolve vs find is
	// too far an edit for the 0.6 similarity threshold.
	confidence, err := Score("Cannot resolve module 'react-dom'", []string{"Cannot find module"}, nil, nil)
	require.NoError(t, err)
	assert.Zero(t, confidence)
}

func TestScore_FuzzyTakesMaximumAcrossSignatures(t *testing.T) {
	errorText := "connection timed out"
	closeSig := "connection timed-out!"    // distance 2 of 21: similarity ~0.905
	fartherSig := "connection timed outwards" // distance 5 of 25: similarity 0.8
	wantBest := (1 - 2.0/21) * fuzzyDiscount

	forward, err := Score(errorText, []string{closeSig, fartherSig}, nil, nil)
	require.NoError(t, err)
	assert.InDelta(t, wantBest, forward, 0.0001)

	// Reversing the signature order must not change the score: the fuzzy
	// pass maximizes across all signatures, it does not stop at the first
	// one above threshold.
	reversed, err := Score(errorText, []string{fartherSig, closeSig}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, forward, reversed)
}

func TestScore_EmptyErrorText(t *testing.T) {
	confidence, err := Score("", []string{`EADDRINUSE.*:3000`, "something else"}, nil, nil)
	require.NoError(t, err)
	assert.Zero(t, confidence)
}

func TestScore_NoSignaturesContextBonusOnly(t *testing.T) {
	diagCtx := pattern.Context{"docker": true, "ci": true}
	confidence, err := Score("anything", nil, []string{"docker detected", "ci environment"}, diagCtx)
	require.NoError(t, err)
	assert.InDelta(t, 0.30, confidence, 0.0001)
}

func TestScore_ContextBonusMonotonicity(t *testing.T) {
	// Holding the signature score fixed at zero, confidence must be
	// non-decreasing as more indicators are satisfied.
	diagCtx := pattern.Context{"react": true, "docker": true, "typescript": true}
	indicators := []string{"react detected", "docker running", "typescript project"}

	prev := 0.0
	for i := 1; i <= len(indicators); i++ {
		confidence, err := Score("unrelated error", nil, indicators[:i], diagCtx)
		require.NoError(t, err)
		assert.Greater(t, confidence, prev, "confidence must grow with satisfied indicators")
		prev = confidence
	}
}

func TestScore_UnsatisfiedIndicatorAddsNothing(t *testing.T) {
	base, err := Score("boom", nil, []string{"react detected"}, pattern.Context{"react": true})
	require.NoError(t, err)

	withNoise, err := Score("boom", nil,
		[]string{"react detected", "vue detected", "port 9999 in use"},
		pattern.Context{"react": true})
	require.NoError(t, err)

	assert.Equal(t, base, withNoise)
}

func TestScore_ClampsToOne(t *testing.T) {
	diagCtx := pattern.Context{"react": true, "docker": true}
	confidence, err := Score("Error: listen EADDRINUSE :::3000",
		[]string{"EADDRINUSE"},
		[]string{"react detected", "docker running"},
		diagCtx)
	require.NoError(t, err)
	// 0.8 + 0.15 + 0.15 clamps at 1.0.
	assert.Equal(t, 1.0, confidence)
}

func TestScore_InvalidSignatureReturnsError(t *testing.T) {
	_, err := Score("boom", []string{"(unclosed"}, nil, nil)
	assert.Error(t, err)
}

func TestScore_ShortCircuitsOnFirstExactHit(t *testing.T) {
	// The invalid regex sits after a matching one; the exact pass stops
	// scanning once it hits, so the pattern still scores.
	confidence, err := Score("timeout waiting for response",
		[]string{"timeout", "(unclosed"}, nil, nil)
	require.NoError(t, err)
	assert.InDelta(t, 0.8, confidence, 0.0001)
}

func TestIndicatorSatisfied(t *testing.T) {
	tests := []struct {
		name      string
		indicator string
		ctx       pattern.Context
		want      bool
	}{
		{
			name:      "verbatim flag",
			indicator: "react_project",
			ctx:       pattern.Context{"react_project": true},
			want:      true,
		},
		{
			name:      "framework name mentioned in indicator",
			indicator: "react project detected",
			ctx:       pattern.Context{"react": true},
			want:      true,
		},
		{
			name:      "false flag does not satisfy",
			indicator: "react project detected",
			ctx:       pattern.Context{"react": false},
			want:      false,
		},
		{
			name:      "string value mentioned in indicator",
			indicator: "npm workspace detected",
			ctx:       pattern.Context{"package_manager": "npm"},
			want:      true,
		},
		{
			name:      "port in context port list",
			indicator: "port 3000 in use",
			ctx:       pattern.Context{"ports": []any{float64(3000), float64(8080)}},
			want:      true,
		},
		{
			name:      "port absent from list",
			indicator: "port 4000 in use",
			ctx:       pattern.Context{"ports": []any{float64(3000)}},
			want:      false,
		},
		{
			name:      "typed int port list",
			indicator: "port 8080 in use",
			ctx:       pattern.Context{"ports": []int{8080}},
			want:      true,
		},
		{
			name:      "empty context",
			indicator: "react detected",
			ctx:       nil,
			want:      false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, indicatorSatisfied(tt.indicator, tt.ctx))
		})
	}
}

func TestLevenshtein(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"abc", "", 3},
		{"", "abc", 3},
		{"kitten", "sitting", 3},
		{"flaw", "lawn", 2},
		{"same", "same", 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, levenshtein([]rune(tt.a), []rune(tt.b)), "lev(%q, %q)", tt.a, tt.b)
	}
}

func TestSimilarity_BothEmpty(t *testing.T) {
	assert.Zero(t, similarity("", ""))
}
