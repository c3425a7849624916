package store

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/patternd/internal/pattern"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "patterns.db"), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func validPattern(name string) *pattern.Pattern {
	return &pattern.Pattern{
		Name:                 name,
		Category:             "runtime",
		Description:          "a process already listens on the target port",
		ErrorSignatures:      []string{`EADDRINUSE.*:\d+`, "address already in use"},
		ConfidenceIndicators: []string{"port 3000 in use"},
		SolutionTemplate:     "kill-port-process",
		ValidationScript:     "check-port-free",
	}
}

func TestAddPattern_AssignsServerFields(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	in := validPattern("port-conflict")
	// Client-supplied server fields must be overwritten, not trusted.
	in.ID = "client-chosen"
	in.SuccessRate = 0.99
	in.UsageCount = 42

	committed, err := s.AddPattern(ctx, in)
	require.NoError(t, err)

	assert.NotEmpty(t, committed.ID)
	assert.NotEqual(t, "client-chosen", committed.ID)
	assert.Zero(t, committed.SuccessRate)
	assert.Zero(t, committed.UsageCount)
	assert.False(t, committed.CreatedAt.IsZero())
	assert.Equal(t, committed.CreatedAt, committed.UpdatedAt)

	got, err := s.GetPattern(ctx, committed.ID)
	require.NoError(t, err)
	assert.Equal(t, committed.Name, got.Name)
	assert.Equal(t, committed.Category, got.Category)
	assert.Equal(t, []string{`EADDRINUSE.*:\d+`, "address already in use"}, got.ErrorSignatures)
	assert.Equal(t, []string{"port 3000 in use"}, got.ConfidenceIndicators)
	assert.Equal(t, committed.SolutionTemplate, got.SolutionTemplate)
	assert.Equal(t, committed.ValidationScript, got.ValidationScript)
}

func TestAddPattern_DuplicateName(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.AddPattern(ctx, validPattern("port-conflict"))
	require.NoError(t, err)

	_, err = s.AddPattern(ctx, validPattern("port-conflict"))
	assert.ErrorIs(t, err, pattern.ErrDuplicateName)
}

func TestAddPattern_Malformed(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		mutate func(*pattern.Pattern)
	}{
		{"missing name", func(p *pattern.Pattern) { p.Name = "" }},
		{"missing category", func(p *pattern.Pattern) { p.Category = "" }},
		{"missing description", func(p *pattern.Pattern) { p.Description = "" }},
		{"no signatures", func(p *pattern.Pattern) { p.ErrorSignatures = nil }},
		{"missing solution", func(p *pattern.Pattern) { p.SolutionTemplate = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := validPattern("candidate")
			tt.mutate(p)
			_, err := s.AddPattern(ctx, p)
			assert.ErrorIs(t, err, pattern.ErrMalformedPattern)
		})
	}

	// Nothing from the failed attempts may have been committed.
	info, err := s.HealthInfo(ctx)
	require.NoError(t, err)
	assert.Zero(t, info.TotalPatterns)
}

func TestAddPatterns_ContinueOnError(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.AddPattern(ctx, validPattern("taken"))
	require.NoError(t, err)

	malformed := validPattern("broken")
	malformed.SolutionTemplate = ""

	results := s.AddPatterns(ctx, []*pattern.Pattern{
		validPattern("taken"), // duplicate
		malformed,
		validPattern("fresh"),
	})
	require.Len(t, results, 3)

	assert.ErrorIs(t, results[0].Err, pattern.ErrDuplicateName)
	assert.Nil(t, results[0].Pattern)
	assert.ErrorIs(t, results[1].Err, pattern.ErrMalformedPattern)
	assert.NoError(t, results[2].Err)
	require.NotNil(t, results[2].Pattern)
	assert.Equal(t, "fresh", results[2].Pattern.Name)

	// The failing items did not block the valid one.
	info, err := s.HealthInfo(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, info.TotalPatterns)
}

func TestGetPattern_NotFound(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.GetPattern(ctx, "no-such-id")
	assert.ErrorIs(t, err, pattern.ErrPatternNotFound)

	_, err = s.GetPatternByName(ctx, "no-such-name")
	assert.ErrorIs(t, err, pattern.ErrPatternNotFound)
}

func TestListByCategory(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a := validPattern("runtime-a")
	b := validPattern("runtime-b")
	c := validPattern("network-c")
	c.Category = "network"
	for _, p := range []*pattern.Pattern{a, b, c} {
		_, err := s.AddPattern(ctx, p)
		require.NoError(t, err)
	}

	runtime, err := s.ListByCategory(ctx, "runtime")
	require.NoError(t, err)
	require.Len(t, runtime, 2)
	for _, p := range runtime {
		assert.Equal(t, "runtime", p.Category)
	}

	empty, err := s.ListByCategory(ctx, "absent")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestListAll_StableOrder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, name := range []string{"zeta", "alpha", "mike"} {
		_, err := s.AddPattern(ctx, validPattern(name))
		require.NoError(t, err)
	}

	all, err := s.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "alpha", all[0].Name)
	assert.Equal(t, "mike", all[1].Name)
	assert.Equal(t, "zeta", all[2].Name)
}

func TestSearchPatterns(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	port := validPattern("port-conflict")
	module := validPattern("missing-module")
	module.Category = "dependency"
	module.Description = "a required module cannot be resolved"
	for _, p := range []*pattern.Pattern{port, module} {
		_, err := s.AddPattern(ctx, p)
		require.NoError(t, err)
	}

	// Case-insensitive name match.
	res, err := s.SearchPatterns(ctx, "PORT", "")
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, "port-conflict", res[0].Name)

	// Description match.
	res, err = s.SearchPatterns(ctx, "resolved", "")
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, "missing-module", res[0].Name)

	// Category filter.
	res, err = s.SearchPatterns(ctx, "module", "dependency")
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, "missing-module", res[0].Name)

	res, err = s.SearchPatterns(ctx, "module", "runtime")
	require.NoError(t, err)
	assert.Empty(t, res)
}

func TestSearchPatterns_CapsResults(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < searchLimit+5; i++ {
		_, err := s.AddPattern(ctx, validPattern(fmt.Sprintf("timeout-%02d", i)))
		require.NoError(t, err)
	}

	res, err := s.SearchPatterns(ctx, "timeout", "")
	require.NoError(t, err)
	assert.Len(t, res, searchLimit)
}

func TestRecordApplication_RecomputesStats(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	p, err := s.AddPattern(ctx, validPattern("port-conflict"))
	require.NoError(t, err)

	outcomes := []bool{true, true, false, true}
	for _, success := range outcomes {
		_, err := s.RecordApplication(ctx, &pattern.Application{
			PatternID:       p.ID,
			ProjectType:     "react",
			Success:         success,
			ExecutionTimeMs: 120,
			ContextSnapshot: `{"react":true}`,
		})
		require.NoError(t, err)
	}

	got, err := s.GetPattern(ctx, p.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 4, got.UsageCount)
	assert.InDelta(t, 0.75, got.SuccessRate, 0.0001)
	assert.True(t, got.UpdatedAt.After(p.UpdatedAt) || got.UpdatedAt.Equal(p.UpdatedAt))

	total, successes, avgMs, err := s.PatternApplicationStats(ctx, p.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 4, total)
	assert.EqualValues(t, 3, successes)
	assert.InDelta(t, 120, avgMs, 0.0001)
}

func TestRecordApplication_UnknownPattern(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.RecordApplication(ctx, &pattern.Application{PatternID: "ghost", Success: true})
	assert.ErrorIs(t, err, pattern.ErrPatternNotFound)

	_, err = s.RecordApplication(ctx, &pattern.Application{Success: true})
	assert.ErrorIs(t, err, pattern.ErrPatternNotFound)

	// The failed recording left no orphan log entries.
	info, err := s.HealthInfo(ctx)
	require.NoError(t, err)
	assert.Zero(t, info.TotalApplications)
}

func TestApplicationsForPattern_WindowAndOrder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	p, err := s.AddPattern(ctx, validPattern("port-conflict"))
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := s.RecordApplication(ctx, &pattern.Application{
			PatternID:    p.ID,
			Success:      true,
			ErrorMessage: fmt.Sprintf("attempt %d", i),
		})
		require.NoError(t, err)
		time.Sleep(2 * time.Millisecond) // distinct applied_at timestamps
	}

	apps, err := s.ApplicationsForPattern(ctx, p.ID, time.Time{}, 10)
	require.NoError(t, err)
	require.Len(t, apps, 3)
	// Newest first.
	assert.Equal(t, "attempt 2", apps[0].ErrorMessage)
	assert.Equal(t, "attempt 0", apps[2].ErrorMessage)
	assert.True(t, apps[0].AppliedAt.After(apps[2].AppliedAt))

	// A window starting after the first recording excludes it.
	since := apps[2].AppliedAt.Add(time.Millisecond)
	windowed, err := s.ApplicationsForPattern(ctx, p.ID, since, 10)
	require.NoError(t, err)
	assert.Len(t, windowed, 2)

	limited, err := s.ApplicationsForPattern(ctx, p.ID, time.Time{}, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestApplicationStatsByCategory(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	runtime, err := s.AddPattern(ctx, validPattern("runtime-a"))
	require.NoError(t, err)
	network := validPattern("network-a")
	network.Category = "network"
	netCommitted, err := s.AddPattern(ctx, network)
	require.NoError(t, err)

	for _, rec := range []struct {
		id      string
		success bool
		ms      int64
	}{
		{runtime.ID, true, 100},
		{runtime.ID, false, 300},
		{netCommitted.ID, true, 50},
	} {
		_, err := s.RecordApplication(ctx, &pattern.Application{
			PatternID: rec.id, Success: rec.success, ExecutionTimeMs: rec.ms,
		})
		require.NoError(t, err)
	}

	stats, err := s.ApplicationStatsByCategory(ctx)
	require.NoError(t, err)
	require.Len(t, stats, 2)

	// Ordered by category name.
	assert.Equal(t, "network", stats[0].Category)
	assert.EqualValues(t, 1, stats[0].Applications)
	assert.EqualValues(t, 1, stats[0].Successes)

	assert.Equal(t, "runtime", stats[1].Category)
	assert.EqualValues(t, 2, stats[1].Applications)
	assert.EqualValues(t, 1, stats[1].Successes)
	assert.InDelta(t, 200, stats[1].AvgExecutionMs, 0.0001)
}

func TestHealthInfo(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	info, err := s.HealthInfo(ctx)
	require.NoError(t, err)
	assert.Zero(t, info.TotalPatterns)
	assert.Zero(t, info.TotalApplications)
	assert.Zero(t, info.AvgSuccessRate)

	a, err := s.AddPattern(ctx, validPattern("runtime-a"))
	require.NoError(t, err)
	b := validPattern("network-b")
	b.Category = "network"
	_, err = s.AddPattern(ctx, b)
	require.NoError(t, err)

	_, err = s.RecordApplication(ctx, &pattern.Application{PatternID: a.ID, Success: true})
	require.NoError(t, err)

	info, err = s.HealthInfo(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, info.TotalPatterns)
	assert.EqualValues(t, 1, info.TotalApplications)
	assert.EqualValues(t, 2, info.DistinctCategories)
	assert.InDelta(t, 0.5, info.AvgSuccessRate, 0.0001) // (1.0 + 0.0) / 2
}

func TestListAll_SkipsUndecodableRows(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	good, err := s.AddPattern(ctx, validPattern("good"))
	require.NoError(t, err)

	// Corrupt a stored row behind the repository's back.
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO patterns (
			id, name, category, description,
			error_signatures, confidence_indicators,
			solution_template, validation_script,
			success_rate, usage_count, created_at, updated_at
		) VALUES ('bad-id', 'bad', 'runtime', 'corrupted row',
			'not-json', '[]', 'noop', '', 0, 0, 0, 0)`)
	require.NoError(t, err)

	all, err := s.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, good.ID, all[0].ID)
}

func TestEncodeDecodeList(t *testing.T) {
	encoded, err := encodeList([]string{`EADDRINUSE.*:\d+`, "it's quoted"})
	require.NoError(t, err)
	decoded, err := decodeList(encoded)
	require.NoError(t, err)
	assert.Equal(t, []string{`EADDRINUSE.*:\d+`, "it's quoted"}, decoded)

	encoded, err = encodeList(nil)
	require.NoError(t, err)
	assert.Equal(t, "[]", encoded)

	decoded, err = decodeList("")
	require.NoError(t, err)
	assert.Nil(t, decoded)

	_, err = decodeList("{broken")
	assert.Error(t, err)
}
