// Package mcp exposes the classification engine as MCP tools over stdio.
// The server is stateless: every call carries its chart, and the shared
// compiled policy is read-only, so calls are safe to serve concurrently.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"gyeokguk/internal/classify"
	"gyeokguk/internal/facts"
	"gyeokguk/internal/policy"
	"gyeokguk/internal/rules"
)

// Server wraps the MCP SDK server around one compiled policy.
type Server struct {
	MCPServer *sdkmcp.Server

	patterns *classify.PatternEngine
	hits     *classify.HitEngine
}

// NewServer creates an MCP server serving classification for one policy.
// A nil evaluator gets the expr reference evaluator.
func NewServer(p *policy.Policy, eval rules.Evaluator) *Server {
	s := &Server{
		patterns: classify.NewPatternEngine(p, eval),
		hits:     classify.NewHitEngine(p, eval),
	}
	s.MCPServer = sdkmcp.NewServer(
		&sdkmcp.Implementation{Name: "gyeokguk", Version: "dev"},
		nil,
	)
	s.registerTools()
	return s
}

func (s *Server) registerTools() {
	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "classify_pattern",
		Description: "Rank the candidate patterns for one chart and pick the dominant one. Takes the chart fact base as JSON.",
	}, s.handleClassifyPattern)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "score_hits",
		Description: "Score the quality of every detection found on one chart. Takes the chart fact base as JSON.",
	}, s.handleScoreHits)
}

// --- Tool input/output types ---

type classifyInput struct {
	ChartJSON string `json:"chart_json" jsonschema:"chart fact base as a JSON object (pillars, signals, quality_multiplier)"`
}

type classifyPatternOutput struct {
	Result *classify.PatternResult `json:"result"`
}

type scoreHitsOutput struct {
	Result *classify.HitResult `json:"result"`
}

// --- Tool handlers ---

func (s *Server) handleClassifyPattern(_ context.Context, _ *sdkmcp.CallToolRequest, input classifyInput) (*sdkmcp.CallToolResult, classifyPatternOutput, error) {
	chart, err := decodeChart(input.ChartJSON)
	if err != nil {
		return nil, classifyPatternOutput{}, err
	}
	return nil, classifyPatternOutput{Result: s.patterns.Run(chart)}, nil
}

func (s *Server) handleScoreHits(_ context.Context, _ *sdkmcp.CallToolRequest, input classifyInput) (*sdkmcp.CallToolResult, scoreHitsOutput, error) {
	chart, err := decodeChart(input.ChartJSON)
	if err != nil {
		return nil, scoreHitsOutput{}, err
	}
	return nil, scoreHitsOutput{Result: s.hits.Run(chart)}, nil
}

func decodeChart(chartJSON string) (*facts.Chart, error) {
	var chart facts.Chart
	if err := json.Unmarshal([]byte(chartJSON), &chart); err != nil {
		return nil, fmt.Errorf("decode chart: %w", err)
	}
	return &chart, nil
}
