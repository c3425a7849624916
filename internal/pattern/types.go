package pattern

import (
	"errors"
	"fmt"
	"time"
)

// Common errors for pattern operations.
var (
	// ErrDuplicateName indicates a pattern with the same name already exists.
	ErrDuplicateName = errors.New("pattern name already exists")

	// ErrPatternNotFound indicates the referenced pattern does not exist.
	ErrPatternNotFound = errors.New("pattern not found")

	// ErrMalformedPattern indicates a required field is missing or empty.
	ErrMalformedPattern = errors.New("malformed pattern")

	// ErrStoreUnavailable indicates the persistence layer is unreachable.
	ErrStoreUnavailable = errors.New("pattern store unavailable")
)

// Pattern represents a stored failure pattern: a recognizable error shape
// and its candidate remedy.
//
// Identity fields (Name, Category, ErrorSignatures, SolutionTemplate) are
// immutable after creation. SuccessRate and UsageCount are derived from the
// Application log and mutated only by the outcome tracker.
type Pattern struct {
	// ID is the unique pattern identifier (UUID), assigned by the store.
	ID string `json:"id"`

	// Name is a unique human-readable identifier for the pattern.
	Name string `json:"name"`

	// Category is a free-form tag used for grouping and filtered lookups
	// (e.g. "runtime", "dependency", "network").
	Category string `json:"category"`

	// Description explains what the pattern recognizes and remedies.
	Description string `json:"description"`

	// ErrorSignatures is an ordered list of case-insensitive regular
	// expressions matched against observed error text.
	ErrorSignatures []string `json:"error_signatures"`

	// ConfidenceIndicators is an ordered list of context predicates.
	// Each satisfied indicator adds a fixed bonus to the match confidence.
	ConfidenceIndicators []string `json:"confidence_indicators,omitempty"`

	// SolutionTemplate is an opaque reference consumed by the external
	// solution executor. The engine never interprets it.
	SolutionTemplate string `json:"solution_template"`

	// ValidationScript is an optional opaque reference used by the
	// executor to verify a fix took effect.
	ValidationScript string `json:"validation_script,omitempty"`

	// SuccessRate is the empirical success probability in [0,1], derived
	// from recorded applications. Zero when no applications exist.
	SuccessRate float64 `json:"success_rate"`

	// UsageCount is the total number of recorded applications.
	UsageCount int64 `json:"usage_count"`

	// CreatedAt is when the pattern was created.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is when the pattern statistics were last recomputed.
	UpdatedAt time.Time `json:"updated_at"`
}

// Validate checks the fields callers must supply before a pattern can be
// committed. Server-assigned fields (ID, timestamps, statistics) are not
// checked here.
func (p *Pattern) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("%w: name is required", ErrMalformedPattern)
	}
	if p.Category == "" {
		return fmt.Errorf("%w: category is required", ErrMalformedPattern)
	}
	if p.Description == "" {
		return fmt.Errorf("%w: description is required", ErrMalformedPattern)
	}
	if len(p.ErrorSignatures) == 0 {
		return fmt.Errorf("%w: at least one error signature is required", ErrMalformedPattern)
	}
	if p.SolutionTemplate == "" {
		return fmt.Errorf("%w: solution template is required", ErrMalformedPattern)
	}
	return nil
}

// Application is one immutable record of a pattern's solution being tried.
// Applications are append-only: created once, never modified or deleted.
type Application struct {
	// ID is the unique application identifier (UUID).
	ID string `json:"id"`

	// PatternID references the applied pattern.
	PatternID string `json:"pattern_id"`

	// ProjectType describes the project the pattern was applied to
	// (e.g. "react", "go"). Informational only.
	ProjectType string `json:"project_type,omitempty"`

	// Success records whether the solution resolved the issue.
	Success bool `json:"success"`

	// ExecutionTimeMs is how long the solution took to apply.
	ExecutionTimeMs int64 `json:"execution_time_ms"`

	// ErrorMessage is the original error text, when the caller supplies it.
	ErrorMessage string `json:"error_message,omitempty"`

	// ContextSnapshot is the JSON-serialized diagnosis context at apply time.
	ContextSnapshot string `json:"context_snapshot,omitempty"`

	// AppliedAt is when the outcome was recorded.
	AppliedAt time.Time `json:"applied_at"`
}

// BatchResult is the per-item outcome of a batch insert. Exactly one of
// Pattern or Err is set.
type BatchResult struct {
	// Name identifies the batch item, present on success and failure.
	Name string `json:"name"`

	// Pattern is the committed pattern, nil when the item failed.
	Pattern *Pattern `json:"pattern,omitempty"`

	// Err is the per-item failure, nil when the item committed.
	Err error `json:"-"`
}

// HealthInfo is a coarse snapshot of the pattern corpus.
type HealthInfo struct {
	TotalPatterns      int64   `json:"total_patterns"`
	TotalApplications  int64   `json:"total_applications"`
	AvgSuccessRate     float64 `json:"avg_success_rate"`
	DistinctCategories int64   `json:"distinct_categories"`
}
