// Package mcp exposes the diagnosis engine as MCP tools over stdio.
//
// This is the surface AI coding agents use: diagnose an error against the
// pattern corpus, report the outcome of an applied fix, and inspect corpus
// statistics. The package calls the internal services directly; it adds no
// semantics of its own.
package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/patternd/internal/matcher"
	"github.com/fyrsmithlabs/patternd/internal/outcome"
	"github.com/fyrsmithlabs/patternd/internal/stats"
	"github.com/fyrsmithlabs/patternd/internal/store"
)

// Server wires the diagnosis engine into an MCP stdio server.
type Server struct {
	mcp        *mcp.Server
	store      *store.Store
	matcherSvc *matcher.Service
	tracker    *outcome.Tracker
	aggregator *stats.Aggregator
	logger     *zap.Logger
}

// Config configures the MCP server.
type Config struct {
	// Name is the server implementation name (default: "patternd").
	Name string

	// Version is the server version (default: "1.0.0").
	Version string

	// Logger for structured logging.
	Logger *zap.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Name:    "patternd",
		Version: "1.0.0",
		Logger:  zap.NewNop(),
	}
}

// NewServer creates an MCP server over the given services.
func NewServer(
	cfg *Config,
	st *store.Store,
	matcherSvc *matcher.Service,
	tracker *outcome.Tracker,
	aggregator *stats.Aggregator,
) (*Server, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if st == nil {
		return nil, fmt.Errorf("store is required")
	}
	if matcherSvc == nil {
		return nil, fmt.Errorf("matcher service is required")
	}
	if tracker == nil {
		return nil, fmt.Errorf("outcome tracker is required")
	}
	if aggregator == nil {
		return nil, fmt.Errorf("stats aggregator is required")
	}

	mcpServer := mcp.NewServer(
		&mcp.Implementation{
			Name:    cfg.Name,
			Version: cfg.Version,
		},
		nil,
	)

	s := &Server{
		mcp:        mcpServer,
		store:      st,
		matcherSvc: matcherSvc,
		tracker:    tracker,
		aggregator: aggregator,
		logger:     cfg.Logger,
	}
	s.registerTools()
	return s, nil
}

// Run starts the MCP server on the stdio transport.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("starting MCP server on stdio transport")
	transport := &mcp.StdioTransport{}
	if err := s.mcp.Run(ctx, transport); err != nil {
		return fmt.Errorf("server run failed: %w", err)
	}
	return nil
}

// Close closes the server's store.
func (s *Server) Close() error {
	s.logger.Info("closing MCP server")
	return s.store.Close()
}
