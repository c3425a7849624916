package mcp

import (
	"context"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/patternd/internal/outcome"
	"github.com/fyrsmithlabs/patternd/internal/pattern"
	"github.com/fyrsmithlabs/patternd/internal/stats"
)

// patternSummary is the wire shape of a pattern in tool outputs.
type patternSummary struct {
	ID               string  `json:"id" jsonschema:"Pattern ID"`
	Name             string  `json:"name" jsonschema:"Pattern name"`
	Category         string  `json:"category" jsonschema:"Pattern category"`
	Description      string  `json:"description" jsonschema:"What the pattern recognizes"`
	SolutionTemplate string  `json:"solution_template" jsonschema:"Opaque solution reference for the executor"`
	ValidationScript string  `json:"validation_script,omitempty" jsonschema:"Optional validation reference"`
	SuccessRate      float64 `json:"success_rate" jsonschema:"Empirical success rate"`
	UsageCount       int64   `json:"usage_count" jsonschema:"Number of recorded applications"`
}

func summarize(p *pattern.Pattern) patternSummary {
	return patternSummary{
		ID:               p.ID,
		Name:             p.Name,
		Category:         p.Category,
		Description:      p.Description,
		SolutionTemplate: p.SolutionTemplate,
		ValidationScript: p.ValidationScript,
		SuccessRate:      p.SuccessRate,
		UsageCount:       p.UsageCount,
	}
}

// registerTools registers all MCP tools with the server.
func (s *Server) registerTools() {
	s.registerDiagnoseTools()
	s.registerOutcomeTools()
	s.registerCorpusTools()
	s.registerStatsTools()
}

// ===== DIAGNOSIS TOOLS =====

type diagnoseInput struct {
	ErrorText string         `json:"error_text" jsonschema:"required,The observed error text to diagnose"`
	Context   map[string]any `json:"context,omitempty" jsonschema:"Project context from the inspector (framework flags, ports, project type)"`
}

type diagnoseMatch struct {
	patternSummary
	Confidence float64 `json:"confidence" jsonschema:"Match confidence in [0,1]"`
}

type diagnoseOutput struct {
	Matches []diagnoseMatch `json:"matches" jsonschema:"Ranked candidate patterns, best first"`
}

func (s *Server) registerDiagnoseTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "diagnose_error",
		Description: "Match an error message against the known failure patterns and rank candidate fixes by confidence",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args diagnoseInput) (*mcp.CallToolResult, diagnoseOutput, error) {
		matches, err := s.matcherSvc.FindMatches(ctx, args.ErrorText, pattern.Context(args.Context))
		if err != nil {
			return nil, diagnoseOutput{}, err
		}

		out := diagnoseOutput{Matches: make([]diagnoseMatch, 0, len(matches))}
		for _, m := range matches {
			out.Matches = append(out.Matches, diagnoseMatch{
				patternSummary: summarize(m.Pattern),
				Confidence:     m.Confidence,
			})
		}
		return nil, out, nil
	})
}

// ===== OUTCOME TOOLS =====

type recordOutcomeInput struct {
	PatternID       string         `json:"pattern_id" jsonschema:"required,The applied pattern's ID"`
	Success         bool           `json:"success" jsonschema:"Whether the solution resolved the issue"`
	ExecutionTimeMs int64          `json:"execution_time_ms" jsonschema:"How long the solution took to apply"`
	ProjectType     string         `json:"project_type,omitempty" jsonschema:"Target project type"`
	ErrorMessage    string         `json:"error_message,omitempty" jsonschema:"The original error text"`
	Context         map[string]any `json:"context,omitempty" jsonschema:"Diagnosis context at apply time"`
}

type recordOutcomeOutput struct {
	ApplicationID string `json:"application_id" jsonschema:"ID of the recorded application"`
	PatternID     string `json:"pattern_id" jsonschema:"Pattern the outcome was recorded for"`
	Success       bool   `json:"success" jsonschema:"Recorded outcome"`
}

func (s *Server) registerOutcomeTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "record_outcome",
		Description: "Report the outcome of applying a pattern's solution; updates the pattern's success statistics",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args recordOutcomeInput) (*mcp.CallToolResult, recordOutcomeOutput, error) {
		app, err := s.tracker.Record(ctx, &outcome.Request{
			PatternID:       args.PatternID,
			ProjectType:     args.ProjectType,
			Success:         args.Success,
			ExecutionTimeMs: args.ExecutionTimeMs,
			ErrorMessage:    args.ErrorMessage,
			Context:         pattern.Context(args.Context),
		})
		if err != nil {
			return nil, recordOutcomeOutput{}, err
		}
		return nil, recordOutcomeOutput{
			ApplicationID: app.ID,
			PatternID:     app.PatternID,
			Success:       app.Success,
		}, nil
	})
}

// ===== CORPUS TOOLS =====

type patternSearchInput struct {
	Query    string `json:"query" jsonschema:"required,Substring to match against pattern names and descriptions"`
	Category string `json:"category,omitempty" jsonschema:"Restrict results to one category"`
}

type patternSearchOutput struct {
	Patterns []patternSummary `json:"patterns" jsonschema:"Matching patterns, best performers first"`
}

type addPatternEntry struct {
	Name                 string   `json:"name" jsonschema:"required,Unique pattern name"`
	Category             string   `json:"category" jsonschema:"required,Pattern category"`
	Description          string   `json:"description" jsonschema:"required,What the pattern recognizes"`
	ErrorSignatures      []string `json:"error_signatures" jsonschema:"required,Ordered case-insensitive regexes matched against error text"`
	ConfidenceIndicators []string `json:"confidence_indicators,omitempty" jsonschema:"Context predicates that raise confidence"`
	SolutionTemplate     string   `json:"solution_template" jsonschema:"required,Opaque solution reference for the executor"`
	ValidationScript     string   `json:"validation_script,omitempty" jsonschema:"Optional validation reference"`
}

type addPatternsInput struct {
	Patterns []addPatternEntry `json:"patterns" jsonschema:"required,Patterns to add"`
}

type addPatternItemResult struct {
	Name  string `json:"name" jsonschema:"Batch item name"`
	ID    string `json:"id,omitempty" jsonschema:"Assigned pattern ID on success"`
	Error string `json:"error,omitempty" jsonschema:"Per-item failure, empty on success"`
}

type addPatternsOutput struct {
	Results   []addPatternItemResult `json:"results" jsonschema:"One result per input item"`
	Committed int                    `json:"committed" jsonschema:"Number of items committed"`
}

func (s *Server) registerCorpusTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "pattern_search",
		Description: "Search stored failure patterns by name or description",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args patternSearchInput) (*mcp.CallToolResult, patternSearchOutput, error) {
		found, err := s.store.SearchPatterns(ctx, args.Query, args.Category)
		if err != nil {
			return nil, patternSearchOutput{}, err
		}

		out := patternSearchOutput{Patterns: make([]patternSummary, 0, len(found))}
		for _, p := range found {
			out.Patterns = append(out.Patterns, summarize(p))
		}
		return nil, out, nil
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "add_patterns",
		Description: "Add failure patterns to the corpus; invalid or duplicate items are reported per item without aborting the batch",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args addPatternsInput) (*mcp.CallToolResult, addPatternsOutput, error) {
		batch := make([]*pattern.Pattern, 0, len(args.Patterns))
		for _, e := range args.Patterns {
			batch = append(batch, &pattern.Pattern{
				Name:                 e.Name,
				Category:             e.Category,
				Description:          e.Description,
				ErrorSignatures:      e.ErrorSignatures,
				ConfidenceIndicators: e.ConfidenceIndicators,
				SolutionTemplate:     e.SolutionTemplate,
				ValidationScript:     e.ValidationScript,
			})
		}

		out := addPatternsOutput{Results: make([]addPatternItemResult, 0, len(batch))}
		for _, r := range s.store.AddPatterns(ctx, batch) {
			item := addPatternItemResult{Name: r.Name}
			if r.Err != nil {
				item.Error = r.Err.Error()
			} else {
				item.ID = r.Pattern.ID
				out.Committed++
			}
			out.Results = append(out.Results, item)
		}

		s.logger.Info("patterns added via MCP",
			zap.Int("committed", out.Committed),
			zap.Int("total", len(out.Results)),
		)
		return nil, out, nil
	})
}

// ===== STATS TOOLS =====

type patternStatsInput struct {
	PatternID    string `json:"pattern_id,omitempty" jsonschema:"Pattern to report on; omit for a per-category rollup"`
	RecentWindow string `json:"recent_window,omitempty" jsonschema:"Optional Go duration (e.g. 168h) limiting the recent-applications list"`
	RecentLimit  int    `json:"recent_limit,omitempty" jsonschema:"Max recent applications to return (default 10)"`
}

type applicationSummary struct {
	ID              string `json:"id" jsonschema:"Application ID"`
	Success         bool   `json:"success" jsonschema:"Outcome"`
	ExecutionTimeMs int64  `json:"execution_time_ms" jsonschema:"Execution time"`
	ProjectType     string `json:"project_type,omitempty" jsonschema:"Target project type"`
	AppliedAt       string `json:"applied_at" jsonschema:"RFC3339 timestamp"`
}

type patternStatsOutput struct {
	Pattern    *stats.PatternStatistics  `json:"pattern,omitempty" jsonschema:"Per-pattern rollup, set when pattern_id was given"`
	Recent     []applicationSummary      `json:"recent,omitempty" jsonschema:"Recent applications, set when pattern_id was given"`
	Categories []stats.CategoryStatistics `json:"categories,omitempty" jsonschema:"Per-category rollup, set when pattern_id was omitted"`
}

type topPatternsInput struct {
	Limit int `json:"limit,omitempty" jsonschema:"Max patterns to return (default 5)"`
}

type topPatternEntry struct {
	patternSummary
	Score float64 `json:"score" jsonschema:"Composite performance score"`
}

type topPatternsOutput struct {
	Patterns []topPatternEntry `json:"patterns" jsonschema:"Best performing patterns, highest score first"`
}

type engineHealthOutput struct {
	TotalPatterns      int64   `json:"total_patterns" jsonschema:"Number of stored patterns"`
	TotalApplications  int64   `json:"total_applications" jsonschema:"Number of recorded applications"`
	AvgSuccessRate     float64 `json:"avg_success_rate" jsonschema:"Mean success rate across patterns"`
	DistinctCategories int64   `json:"distinct_categories" jsonschema:"Number of distinct categories"`
}

func (s *Server) registerStatsTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "pattern_stats",
		Description: "Report application statistics for one pattern, or a per-category rollup when no pattern is given",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args patternStatsInput) (*mcp.CallToolResult, patternStatsOutput, error) {
		if args.PatternID == "" {
			categories, err := s.aggregator.CategoryStatistics(ctx)
			if err != nil {
				return nil, patternStatsOutput{}, err
			}
			return nil, patternStatsOutput{Categories: categories}, nil
		}

		ps, err := s.aggregator.PatternStatistics(ctx, args.PatternID)
		if err != nil {
			return nil, patternStatsOutput{}, err
		}

		window := time.Duration(0)
		if args.RecentWindow != "" {
			window, err = time.ParseDuration(args.RecentWindow)
			if err != nil {
				return nil, patternStatsOutput{}, err
			}
		}
		limit := args.RecentLimit
		if limit <= 0 {
			limit = 10
		}
		recent, err := s.aggregator.RecentApplications(ctx, args.PatternID, window, limit)
		if err != nil {
			return nil, patternStatsOutput{}, err
		}

		out := patternStatsOutput{Pattern: ps, Recent: make([]applicationSummary, 0, len(recent))}
		for _, app := range recent {
			out.Recent = append(out.Recent, applicationSummary{
				ID:              app.ID,
				Success:         app.Success,
				ExecutionTimeMs: app.ExecutionTimeMs,
				ProjectType:     app.ProjectType,
				AppliedAt:       app.AppliedAt.Format(time.RFC3339),
			})
		}
		return nil, out, nil
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "top_patterns",
		Description: "List the best performing patterns by success rate and usage",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args topPatternsInput) (*mcp.CallToolResult, topPatternsOutput, error) {
		limit := args.Limit
		if limit <= 0 {
			limit = 5
		}
		top, err := s.aggregator.TopPatterns(ctx, limit)
		if err != nil {
			return nil, topPatternsOutput{}, err
		}

		out := topPatternsOutput{Patterns: make([]topPatternEntry, 0, len(top))}
		for _, tp := range top {
			out.Patterns = append(out.Patterns, topPatternEntry{
				patternSummary: summarize(tp.Pattern),
				Score:          tp.Score,
			})
		}
		return nil, out, nil
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "engine_health",
		Description: "Report corpus-wide health statistics",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args struct{}) (*mcp.CallToolResult, engineHealthOutput, error) {
		info, err := s.store.HealthInfo(ctx)
		if err != nil {
			return nil, engineHealthOutput{}, err
		}
		return nil, engineHealthOutput{
			TotalPatterns:      info.TotalPatterns,
			TotalApplications:  info.TotalApplications,
			AvgSuccessRate:     info.AvgSuccessRate,
			DistinctCategories: info.DistinctCategories,
		}, nil
	})
}
