package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/fyrsmithlabs/patternd/internal/pattern"
)

const searchLimit = 20

// Store is the SQLite-backed pattern repository.
type Store struct {
	db     *sql.DB
	logger *zap.Logger
}

// Open opens (creating if necessary) the pattern database at path and
// applies the schema. Returns ErrStoreUnavailable when the database cannot
// be reached.
func Open(path string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", pattern.ErrStoreUnavailable, err)
	}

	// modernc.org/sqlite serializes writes per connection; a single
	// connection avoids SQLITE_BUSY between concurrent recordings.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("%w: %v", pattern.ErrStoreUnavailable, err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	logger.Info("pattern store opened", zap.String("path", path))
	return &Store{db: db, logger: logger}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// AddPattern validates and commits a new pattern, assigning the
// server-owned fields (ID, timestamps, zeroed statistics). Returns the
// committed pattern. Fails with ErrDuplicateName when the name is taken and
// ErrMalformedPattern when a required field is missing.
func (s *Store) AddPattern(ctx context.Context, p *pattern.Pattern) (*pattern.Pattern, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	committed := *p
	committed.ID = uuid.New().String()
	committed.SuccessRate = 0
	committed.UsageCount = 0
	committed.CreatedAt = now
	committed.UpdatedAt = now

	signatures, err := encodeList(committed.ErrorSignatures)
	if err != nil {
		return nil, fmt.Errorf("encode signatures: %w", err)
	}
	indicators, err := encodeList(committed.ConfidenceIndicators)
	if err != nil {
		return nil, fmt.Errorf("encode indicators: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO patterns (
			id, name, category, description,
			error_signatures, confidence_indicators,
			solution_template, validation_script,
			success_rate, usage_count, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0, 0, ?, ?)`,
		committed.ID, committed.Name, committed.Category, committed.Description,
		signatures, indicators,
		committed.SolutionTemplate, committed.ValidationScript,
		now.UnixMicro(), now.UnixMicro(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: %q", pattern.ErrDuplicateName, committed.Name)
		}
		return nil, fmt.Errorf("insert pattern: %w", err)
	}

	s.logger.Debug("pattern added",
		zap.String("id", committed.ID),
		zap.String("name", committed.Name),
		zap.String("category", committed.Category),
	)
	return &committed, nil
}

// AddPatterns commits a batch sequentially with a continue-on-error policy:
// a failure on one item never aborts the rest. The returned slice has one
// entry per input item, carrying either the committed pattern or the
// per-item error.
func (s *Store) AddPatterns(ctx context.Context, batch []*pattern.Pattern) []pattern.BatchResult {
	results := make([]pattern.BatchResult, 0, len(batch))
	for _, p := range batch {
		committed, err := s.AddPattern(ctx, p)
		if err != nil {
			results = append(results, pattern.BatchResult{Name: p.Name, Err: err})
			continue
		}
		results = append(results, pattern.BatchResult{Name: committed.Name, Pattern: committed})
	}
	return results
}

// GetPattern retrieves a pattern by ID.
func (s *Store) GetPattern(ctx context.Context, id string) (*pattern.Pattern, error) {
	row := s.db.QueryRowContext(ctx, selectPattern+` WHERE id = ?`, id)
	p, err := scanPattern(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", pattern.ErrPatternNotFound, id)
	}
	return p, err
}

// GetPatternByName retrieves a pattern by its unique name.
func (s *Store) GetPatternByName(ctx context.Context, name string) (*pattern.Pattern, error) {
	row := s.db.QueryRowContext(ctx, selectPattern+` WHERE name = ?`, name)
	p, err := scanPattern(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %q", pattern.ErrPatternNotFound, name)
	}
	return p, err
}

// ListByCategory returns every pattern in a category, best performers first.
func (s *Store) ListByCategory(ctx context.Context, category string) ([]*pattern.Pattern, error) {
	rows, err := s.db.QueryContext(ctx,
		selectPattern+` WHERE category = ? ORDER BY success_rate DESC, usage_count DESC, name ASC`,
		category)
	if err != nil {
		return nil, fmt.Errorf("list by category: %w", err)
	}
	defer rows.Close()
	return s.collectPatterns(rows)
}

// ListAll returns the full corpus in a stable order. Rows that fail to
// decode are skipped with a warning: the corpus is advisory, a corrupted
// entry must not fail a whole diagnosis.
func (s *Store) ListAll(ctx context.Context) ([]*pattern.Pattern, error) {
	rows, err := s.db.QueryContext(ctx, selectPattern+` ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("list patterns: %w", err)
	}
	defer rows.Close()
	return s.collectPatterns(rows)
}

// SearchPatterns finds patterns whose name or description contains query
// (case-insensitive substring), optionally restricted to a category.
// Results are ordered by success rate, then usage, capped at 20.
func (s *Store) SearchPatterns(ctx context.Context, query, category string) ([]*pattern.Pattern, error) {
	q := selectPattern + ` WHERE (instr(lower(name), lower(?)) > 0 OR instr(lower(description), lower(?)) > 0)`
	args := []any{query, query}
	if category != "" {
		q += ` AND category = ?`
		args = append(args, category)
	}
	q += ` ORDER BY success_rate DESC, usage_count DESC, name ASC LIMIT ?`
	args = append(args, searchLimit)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("search patterns: %w", err)
	}
	defer rows.Close()
	return s.collectPatterns(rows)
}

// HealthInfo reports coarse corpus statistics.
func (s *Store) HealthInfo(ctx context.Context) (*pattern.HealthInfo, error) {
	info := &pattern.HealthInfo{}
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(AVG(success_rate), 0), COUNT(DISTINCT category)
		FROM patterns`).Scan(&info.TotalPatterns, &info.AvgSuccessRate, &info.DistinctCategories)
	if err != nil {
		return nil, fmt.Errorf("pattern stats: %w", err)
	}
	err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM applications`).Scan(&info.TotalApplications)
	if err != nil {
		return nil, fmt.Errorf("application stats: %w", err)
	}
	return info, nil
}

// RecordApplication appends an immutable application record and recomputes
// the pattern's success_rate and usage_count from the application log, all
// in one transaction. Returns ErrPatternNotFound for an unknown pattern ID.
func (s *Store) RecordApplication(ctx context.Context, app *pattern.Application) (*pattern.Application, error) {
	if app.PatternID == "" {
		return nil, fmt.Errorf("%w: empty pattern id", pattern.ErrPatternNotFound)
	}

	committed := *app
	committed.ID = uuid.New().String()
	committed.AppliedAt = time.Now().UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM patterns WHERE id = ?`, committed.PatternID).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("check pattern: %w", err)
	}
	if exists == 0 {
		return nil, fmt.Errorf("%w: %s", pattern.ErrPatternNotFound, committed.PatternID)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO applications (
			id, pattern_id, project_type, success,
			execution_time_ms, error_message, context_snapshot, applied_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		committed.ID, committed.PatternID, committed.ProjectType, committed.Success,
		committed.ExecutionTimeMs, committed.ErrorMessage, committed.ContextSnapshot,
		committed.AppliedAt.UnixMicro(),
	)
	if err != nil {
		return nil, fmt.Errorf("insert application: %w", err)
	}

	// Recompute from the log rather than incrementing a counter, so the
	// statistics can never drift from the audit trail.
	var total, successes int64
	err = tx.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(success), 0)
		FROM applications WHERE pattern_id = ?`, committed.PatternID).Scan(&total, &successes)
	if err != nil {
		return nil, fmt.Errorf("recompute stats: %w", err)
	}

	rate := 0.0
	if total > 0 {
		rate = float64(successes) / float64(total)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE patterns SET success_rate = ?, usage_count = ?, updated_at = ?
		WHERE id = ?`,
		rate, total, committed.AppliedAt.UnixMicro(), committed.PatternID)
	if err != nil {
		return nil, fmt.Errorf("update pattern stats: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	s.logger.Debug("application recorded",
		zap.String("pattern_id", committed.PatternID),
		zap.Bool("success", committed.Success),
		zap.Float64("success_rate", rate),
		zap.Int64("usage_count", total),
	)
	return &committed, nil
}

// ApplicationsForPattern returns applications for a pattern recorded at or
// after since, newest first, capped at limit. A zero since means no window.
func (s *Store) ApplicationsForPattern(ctx context.Context, patternID string, since time.Time, limit int) ([]*pattern.Application, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, pattern_id, project_type, success,
		       execution_time_ms, error_message, context_snapshot, applied_at
		FROM applications
		WHERE pattern_id = ? AND applied_at >= ?
		ORDER BY applied_at DESC
		LIMIT ?`, patternID, since.UnixMicro(), limit)
	if err != nil {
		return nil, fmt.Errorf("list applications: %w", err)
	}
	defer rows.Close()

	var apps []*pattern.Application
	for rows.Next() {
		var (
			app       pattern.Application
			success   int
			appliedAt int64
		)
		err := rows.Scan(&app.ID, &app.PatternID, &app.ProjectType, &success,
			&app.ExecutionTimeMs, &app.ErrorMessage, &app.ContextSnapshot, &appliedAt)
		if err != nil {
			return nil, fmt.Errorf("scan application: %w", err)
		}
		app.Success = success != 0
		app.AppliedAt = time.UnixMicro(appliedAt).UTC()
		apps = append(apps, &app)
	}
	return apps, rows.Err()
}

// PatternApplicationStats aggregates the application log for one pattern.
func (s *Store) PatternApplicationStats(ctx context.Context, patternID string) (total, successes int64, avgExecutionMs float64, err error) {
	err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(success), 0), COALESCE(AVG(execution_time_ms), 0)
		FROM applications WHERE pattern_id = ?`, patternID).Scan(&total, &successes, &avgExecutionMs)
	if err != nil {
		err = fmt.Errorf("pattern application stats: %w", err)
	}
	return total, successes, avgExecutionMs, err
}

// CategoryApplicationStats aggregates the application log per category.
type CategoryApplicationStats struct {
	Category       string
	Applications   int64
	Successes      int64
	AvgExecutionMs float64
}

// ApplicationStatsByCategory rolls up application counts per pattern category.
func (s *Store) ApplicationStatsByCategory(ctx context.Context) ([]CategoryApplicationStats, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT p.category, COUNT(a.id), COALESCE(SUM(a.success), 0), COALESCE(AVG(a.execution_time_ms), 0)
		FROM applications a
		JOIN patterns p ON p.id = a.pattern_id
		GROUP BY p.category
		ORDER BY p.category ASC`)
	if err != nil {
		return nil, fmt.Errorf("category stats: %w", err)
	}
	defer rows.Close()

	var stats []CategoryApplicationStats
	for rows.Next() {
		var cs CategoryApplicationStats
		if err := rows.Scan(&cs.Category, &cs.Applications, &cs.Successes, &cs.AvgExecutionMs); err != nil {
			return nil, fmt.Errorf("scan category stats: %w", err)
		}
		stats = append(stats, cs)
	}
	return stats, rows.Err()
}

// Row scanning helpers

const selectPattern = `
	SELECT id, name, category, description,
	       error_signatures, confidence_indicators,
	       solution_template, validation_script,
	       success_rate, usage_count, created_at, updated_at
	FROM patterns`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPattern(row rowScanner) (*pattern.Pattern, error) {
	var (
		p                      pattern.Pattern
		signatures, indicators string
		createdAt, updatedAt   int64
	)
	err := row.Scan(&p.ID, &p.Name, &p.Category, &p.Description,
		&signatures, &indicators,
		&p.SolutionTemplate, &p.ValidationScript,
		&p.SuccessRate, &p.UsageCount, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	if p.ErrorSignatures, err = decodeList(signatures); err != nil {
		return nil, fmt.Errorf("decode signatures for %q: %w", p.Name, err)
	}
	if p.ConfidenceIndicators, err = decodeList(indicators); err != nil {
		return nil, fmt.Errorf("decode indicators for %q: %w", p.Name, err)
	}
	p.CreatedAt = time.UnixMicro(createdAt).UTC()
	p.UpdatedAt = time.UnixMicro(updatedAt).UTC()
	return &p, nil
}

// collectPatterns drains rows, skipping entries that fail to decode.
func (s *Store) collectPatterns(rows *sql.Rows) ([]*pattern.Pattern, error) {
	var patterns []*pattern.Pattern
	for rows.Next() {
		p, err := scanPattern(rows)
		if err != nil {
			s.logger.Warn("skipping undecodable pattern row", zap.Error(err))
			continue
		}
		patterns = append(patterns, p)
	}
	return patterns, rows.Err()
}

// List encoding

func encodeList(items []string) (string, error) {
	if items == nil {
		items = []string{}
	}
	b, err := json.Marshal(items)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decodeList(raw string) ([]string, error) {
	if raw == "" {
		return nil, nil
	}
	var items []string
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil, err
	}
	return items, nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
