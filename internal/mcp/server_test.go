package mcp

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/patternd/internal/matcher"
	"github.com/fyrsmithlabs/patternd/internal/outcome"
	"github.com/fyrsmithlabs/patternd/internal/stats"
	"github.com/fyrsmithlabs/patternd/internal/store"
)

func newTestServices(t *testing.T) (*store.Store, *matcher.Service, *outcome.Tracker, *stats.Aggregator) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "patterns.db"), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	matcherSvc, err := matcher.NewService(st, zap.NewNop())
	require.NoError(t, err)
	tracker, err := outcome.NewTracker(st, zap.NewNop())
	require.NoError(t, err)
	aggregator, err := stats.NewAggregator(st, zap.NewNop())
	require.NoError(t, err)
	return st, matcherSvc, tracker, aggregator
}

func TestNewServer(t *testing.T) {
	st, matcherSvc, tracker, aggregator := newTestServices(t)

	srv, err := NewServer(nil, st, matcherSvc, tracker, aggregator)
	require.NoError(t, err)
	assert.NotNil(t, srv)
}

func TestNewServer_RequiresServices(t *testing.T) {
	st, matcherSvc, tracker, aggregator := newTestServices(t)
	cfg := DefaultConfig()

	_, err := NewServer(cfg, nil, matcherSvc, tracker, aggregator)
	assert.ErrorContains(t, err, "store")

	_, err = NewServer(cfg, st, nil, tracker, aggregator)
	assert.ErrorContains(t, err, "matcher")

	_, err = NewServer(cfg, st, matcherSvc, nil, aggregator)
	assert.ErrorContains(t, err, "tracker")

	_, err = NewServer(cfg, st, matcherSvc, tracker, nil)
	assert.ErrorContains(t, err, "aggregator")
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "patternd", cfg.Name)
	assert.Equal(t, "1.0.0", cfg.Version)
	assert.NotNil(t, cfg.Logger)
}
