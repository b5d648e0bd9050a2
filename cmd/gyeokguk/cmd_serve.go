package main

import (
	"github.com/spf13/cobra"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"gyeokguk/internal/logging"
	mcpserver "gyeokguk/internal/mcp"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server over stdio",
	Long: `Starts an MCP server over stdin/stdout exposing the classify_pattern
and score_hits tools. The policy is compiled once at startup; every tool
call carries its own chart, so calls are independent and stateless.`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	p, err := loadPolicy()
	if err != nil {
		return err
	}
	srv := mcpserver.NewServer(p, nil)

	logging.New("mcp").Info("starting gyeokguk MCP server over stdio", "policy", p.Version)
	return srv.MCPServer.Run(cmd.Context(), &sdkmcp.StdioTransport{})
}
