package seed

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/patternd/internal/store"
)

const corpusYAML = `patterns:
  - name: port-conflict
    category: runtime
    description: a process already listens on the target port
    error_signatures:
      - 'EADDRINUSE.*:\d+'
      - address already in use
    confidence_indicators:
      - port 3000 in use
    solution_template: kill-port-process
    validation_script: check-port-free
  - name: incomplete-entry
    category: runtime
    description: missing its solution template
    error_signatures:
      - whatever
`

func writeCorpus(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "patterns.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func newTestSeeder(t *testing.T) (*Seeder, *store.Store) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "patterns.db"), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	seeder, err := NewSeeder(st, zap.NewNop())
	require.NoError(t, err)
	return seeder, st
}

func TestLoadFile(t *testing.T) {
	patterns, err := LoadFile(writeCorpus(t, corpusYAML))
	require.NoError(t, err)
	require.Len(t, patterns, 2)

	p := patterns[0]
	assert.Equal(t, "port-conflict", p.Name)
	assert.Equal(t, "runtime", p.Category)
	assert.Equal(t, []string{`EADDRINUSE.*:\d+`, "address already in use"}, p.ErrorSignatures)
	assert.Equal(t, []string{"port 3000 in use"}, p.ConfidenceIndicators)
	assert.Equal(t, "kill-port-process", p.SolutionTemplate)
	assert.Equal(t, "check-port-free", p.ValidationScript)

	// Validation is deferred to the store.
	assert.Empty(t, patterns[1].SolutionTemplate)
}

func TestLoadFile_Missing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoadFile_BadYAML(t *testing.T) {
	_, err := LoadFile(writeCorpus(t, "patterns: [unclosed"))
	assert.Error(t, err)
}

func TestApplyFile(t *testing.T) {
	seeder, st := newTestSeeder(t)
	ctx := context.Background()

	res, err := seeder.ApplyFile(ctx, writeCorpus(t, corpusYAML))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Committed)
	assert.Equal(t, 0, res.Duplicates)
	assert.Equal(t, 1, res.Failed) // the entry missing its solution template

	committed, err := st.GetPatternByName(ctx, "port-conflict")
	require.NoError(t, err)
	assert.Equal(t, "kill-port-process", committed.SolutionTemplate)
}

func TestApply_ReseedIsIdempotent(t *testing.T) {
	seeder, _ := newTestSeeder(t)
	ctx := context.Background()

	first, err := seeder.Apply(ctx, DefaultCorpus())
	require.NoError(t, err)
	assert.Equal(t, len(DefaultCorpus()), first.Committed)
	assert.Zero(t, first.Failed)

	second, err := seeder.Apply(ctx, DefaultCorpus())
	require.NoError(t, err)
	assert.Zero(t, second.Committed)
	assert.Equal(t, len(DefaultCorpus()), second.Duplicates)
	assert.Zero(t, second.Failed)
}

func TestDefaultCorpus_AllValid(t *testing.T) {
	corpus := DefaultCorpus()
	require.NotEmpty(t, corpus)

	seen := map[string]bool{}
	for _, p := range corpus {
		assert.NoError(t, p.Validate(), "built-in pattern %q", p.Name)
		assert.False(t, seen[p.Name], "duplicate built-in name %q", p.Name)
		seen[p.Name] = true
	}
}

func TestNewSeeder_RequiresStore(t *testing.T) {
	_, err := NewSeeder(nil, zap.NewNop())
	assert.Error(t, err)
}

func TestNewWatcher_Validation(t *testing.T) {
	seeder, _ := newTestSeeder(t)

	_, err := NewWatcher("", seeder, zap.NewNop())
	assert.Error(t, err)
	_, err = NewWatcher("patterns.yaml", nil, zap.NewNop())
	assert.Error(t, err)

	w, err := NewWatcher("patterns.yaml", seeder, nil)
	require.NoError(t, err)
	assert.NotNil(t, w)
}
