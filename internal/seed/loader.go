// Package seed loads failure-pattern corpora into the store.
//
// Corpora come from two places: the built-in default corpus compiled into
// the binary, and an optional YAML file the operator maintains. Seeding
// goes through the store's batch insert, whose continue-on-error policy
// makes reseeding an already-populated store a harmless no-op: existing
// names come back as duplicates and everything else still commits.
package seed

import (
	"context"
	"errors"
	"fmt"
	"os"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/fyrsmithlabs/patternd/internal/pattern"
)

// corpusFile is the YAML corpus schema.
type corpusFile struct {
	Patterns []corpusEntry `yaml:"patterns"`
}

type corpusEntry struct {
	Name                 string   `yaml:"name"`
	Category             string   `yaml:"category"`
	Description          string   `yaml:"description"`
	ErrorSignatures      []string `yaml:"error_signatures"`
	ConfidenceIndicators []string `yaml:"confidence_indicators"`
	SolutionTemplate     string   `yaml:"solution_template"`
	ValidationScript     string   `yaml:"validation_script"`
}

// LoadFile parses a YAML corpus file into patterns. Field validation is
// left to the store so a bad entry surfaces as a per-item batch error, not
// a load failure.
func LoadFile(path string) ([]*pattern.Pattern, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read corpus file: %w", err)
	}

	var file corpusFile
	if err := yaml.Unmarshal(content, &file); err != nil {
		return nil, fmt.Errorf("parse corpus file %s: %w", path, err)
	}

	patterns := make([]*pattern.Pattern, 0, len(file.Patterns))
	for _, e := range file.Patterns {
		patterns = append(patterns, &pattern.Pattern{
			Name:                 e.Name,
			Category:             e.Category,
			Description:          e.Description,
			ErrorSignatures:      e.ErrorSignatures,
			ConfidenceIndicators: e.ConfidenceIndicators,
			SolutionTemplate:     e.SolutionTemplate,
			ValidationScript:     e.ValidationScript,
		})
	}
	return patterns, nil
}

// BatchStore is the insert surface the seeder needs. Satisfied by
// *store.Store.
type BatchStore interface {
	AddPatterns(ctx context.Context, batch []*pattern.Pattern) []pattern.BatchResult
}

// Result summarizes one seeding run.
type Result struct {
	Committed  int
	Duplicates int
	Failed     int
}

// Seeder inserts corpora into the store.
type Seeder struct {
	store  BatchStore
	logger *zap.Logger
}

// NewSeeder creates a seeder over the given store.
func NewSeeder(store BatchStore, logger *zap.Logger) (*Seeder, error) {
	if store == nil {
		return nil, errors.New("store is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Seeder{store: store, logger: logger}, nil
}

// Apply seeds the given patterns, tolerating duplicates.
func (s *Seeder) Apply(ctx context.Context, patterns []*pattern.Pattern) (*Result, error) {
	res := &Result{}
	for _, item := range s.store.AddPatterns(ctx, patterns) {
		switch {
		case item.Err == nil:
			res.Committed++
		case errors.Is(item.Err, pattern.ErrDuplicateName):
			res.Duplicates++
			s.logger.Debug("seed pattern already present", zap.String("name", item.Name))
		default:
			res.Failed++
			s.logger.Warn("seed pattern rejected",
				zap.String("name", item.Name),
				zap.Error(item.Err),
			)
		}
	}

	s.logger.Info("corpus seeded",
		zap.Int("committed", res.Committed),
		zap.Int("duplicates", res.Duplicates),
		zap.Int("failed", res.Failed),
	)
	return res, nil
}

// ApplyFile loads and seeds a YAML corpus file.
func (s *Seeder) ApplyFile(ctx context.Context, path string) (*Result, error) {
	patterns, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	return s.Apply(ctx, patterns)
}
