// Package mcp exposes the journey graph to MCP clients over stdio.
//
// Two tools are registered:
//   - journey_graph_get returns the current document and its ETag
//   - journey_graph_put replaces the document, optionally guarded by if_match
package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/nvandessel/journeygraph/internal/journey"
	"github.com/nvandessel/journeygraph/internal/store"
)

// Config holds MCP server identity.
type Config struct {
	Name    string
	Version string
}

// Server wraps an MCP server bound to a journey repository. It owns the
// store behind the repository and closes it on Close.
type Server struct {
	server *mcp.Server
	repo   *journey.Repository
	store  store.GraphStore
	logger *zap.Logger

	closeOnce sync.Once
	closeErr  error
}

// NewServer creates an MCP server over s.
func NewServer(cfg *Config, s store.GraphStore, repo *journey.Repository, logger *zap.Logger) (*Server, error) {
	if cfg == nil || cfg.Name == "" {
		return nil, fmt.Errorf("mcp server name is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	srv := &Server{
		server: mcp.NewServer(&mcp.Implementation{Name: cfg.Name, Version: cfg.Version}, nil),
		repo:   repo,
		store:  s,
		logger: logger,
	}
	srv.registerTools()
	return srv, nil
}

// Run serves over stdio until the client disconnects or ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("MCP server starting on stdio")
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// Connect attaches the server to an arbitrary transport; used by tests.
func (s *Server) Connect(ctx context.Context, t mcp.Transport) (*mcp.ServerSession, error) {
	return s.server.Connect(ctx, t, nil)
}

// Close releases the underlying store. Safe to call more than once.
func (s *Server) Close() error {
	s.closeOnce.Do(func() {
		if s.store != nil {
			s.closeErr = s.store.Close()
		}
	})
	return s.closeErr
}

// GraphOutput is returned by journey_graph_get.
type GraphOutput struct {
	Nodes     []any  `json:"nodes"`
	Edges     []any  `json:"edges"`
	UpdatedAt string `json:"updatedAt,omitempty"`
	ETag      string `json:"etag"`
}

// GetInput is the (empty) argument object of journey_graph_get.
type GetInput struct{}

// PutInput is the argument object of journey_graph_put.
type PutInput struct {
	Nodes   []any  `json:"nodes" jsonschema:"ordered node records; stored as given"`
	Edges   []any  `json:"edges" jsonschema:"ordered edge records; stored as given"`
	IfMatch string `json:"if_match,omitempty" jsonschema:"ETag from journey_graph_get; the write fails if the graph changed since"`
}

// PutOutput is returned by journey_graph_put.
type PutOutput struct {
	OK   bool   `json:"ok"`
	ETag string `json:"etag"`
}

func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "journey_graph_get",
		Description: "Return the current journey graph (nodes, edges, updatedAt) and its ETag.",
	}, s.handleGet)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "journey_graph_put",
		Description: "Replace the whole journey graph with the given nodes and edges. Pass if_match to avoid overwriting a newer graph.",
	}, s.handlePut)
}

func (s *Server) handleGet(ctx context.Context, req *mcp.CallToolRequest, _ GetInput) (*mcp.CallToolResult, GraphOutput, error) {
	g, err := s.repo.Read(ctx)
	if err != nil {
		return nil, GraphOutput{}, err
	}

	out := GraphOutput{ETag: journey.ETag(g)}
	if out.Nodes, err = decodeRecords(g.Nodes); err != nil {
		return nil, GraphOutput{}, err
	}
	if out.Edges, err = decodeRecords(g.Edges); err != nil {
		return nil, GraphOutput{}, err
	}
	if g.UpdatedAt != nil {
		out.UpdatedAt = g.UpdatedAt.Format(time.RFC3339Nano)
	}
	return nil, out, nil
}

func (s *Server) handlePut(ctx context.Context, req *mcp.CallToolRequest, in PutInput) (*mcp.CallToolResult, PutOutput, error) {
	// Records are taken from the raw arguments so numbers and key order
	// survive exactly as sent.
	nodes, edges, err := journey.DecodePayload(rawArguments(req, in))
	if err != nil {
		return nil, PutOutput{}, err
	}

	var g store.Graph
	if in.IfMatch != "" {
		g, err = s.repo.WriteIfMatch(ctx, in.IfMatch, nodes, edges)
	} else {
		g, err = s.repo.Write(ctx, nodes, edges)
	}
	if err != nil {
		return nil, PutOutput{}, err
	}

	s.logger.Info("Journey graph written via MCP",
		zap.Int("nodes", len(nodes)),
		zap.Int("edges", len(edges)))
	return nil, PutOutput{OK: true, ETag: journey.ETag(g)}, nil
}

// rawArguments returns the tool arguments as sent by the client, falling back
// to re-encoding the decoded input.
func rawArguments(req *mcp.CallToolRequest, in PutInput) []byte {
	if req != nil && req.Params != nil && len(req.Params.Arguments) > 0 {
		return req.Params.Arguments
	}
	data, err := json.Marshal(in)
	if err != nil {
		return nil
	}
	return data
}

// decodeRecords decodes stored records for structured output. Numbers are
// kept as json.Number so large integers are not rounded.
func decodeRecords(raw []json.RawMessage) ([]any, error) {
	out := make([]any, 0, len(raw))
	for _, r := range raw {
		dec := json.NewDecoder(bytes.NewReader(r))
		dec.UseNumber()
		var v any
		if err := dec.Decode(&v); err != nil {
			return nil, fmt.Errorf("decode record: %w", err)
		}
		out = append(out, v)
	}
	return out, nil
}
