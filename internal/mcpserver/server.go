// Package mcpserver exposes a [bridge.Bridge] over the Model Context Protocol
// using the official Go SDK. It is the Transport Session adapter: the SDK
// owns framing, the initialize handshake and tool discovery; every tools/call
// is forwarded verbatim to [bridge.Bridge.Dispatch].
package mcpserver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/MrWong99/dbbridge/internal/bridge"
)

// Implementation name reported during the initialize handshake.
const serverName = "dbbridge"

// Server is an MCP server advertising one bridge's catalog.
type Server struct {
	srv    *mcpsdk.Server
	bridge *bridge.Bridge
}

// New registers every tool of b's catalog with a fresh SDK server. version is
// reported to clients in the handshake.
func New(b *bridge.Bridge, version string) *Server {
	// HasTools keeps tools/list answerable when neither store connected.
	srv := mcpsdk.NewServer(
		&mcpsdk.Implementation{Name: serverName, Version: version},
		&mcpsdk.ServerOptions{HasTools: true},
	)
	s := &Server{srv: srv, bridge: b}
	for _, t := range b.Catalog().Tools() {
		srv.AddTool(&mcpsdk.Tool{
			Name:        t.Name,
			Title:       t.Title,
			Description: t.Description,
			InputSchema: t.Schema.JSONSchema(),
		}, s.handler(t.Name))
	}
	slog.Info("mcp server: tools registered", "count", b.Catalog().Len(), "tools", b.Catalog().Names())
	return s
}

func (s *Server) handler(name string) mcpsdk.ToolHandler {
	return func(ctx context.Context, req *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
		env, err := s.bridge.Dispatch(ctx, name, req.Params.Arguments)
		if err != nil {
			return nil, err
		}
		return toResult(env), nil
	}
}

func toResult(env *bridge.Envelope) *mcpsdk.CallToolResult {
	res := &mcpsdk.CallToolResult{Content: make([]mcpsdk.Content, 0, len(env.Content))}
	for _, c := range env.Content {
		res.Content = append(res.Content, &mcpsdk.TextContent{Text: c.Text})
	}
	return res
}

// Run serves t until ctx is cancelled or the peer disconnects. Both count as
// a clean stop.
func (s *Server) Run(ctx context.Context, t mcpsdk.Transport) error {
	err := s.srv.Run(ctx, t)
	if err == nil || ctx.Err() != nil || errors.Is(err, io.EOF) {
		return nil
	}
	return fmt.Errorf("mcp server: %w", err)
}

// Connect starts a session over t without blocking. Tests use it with
// in-memory transports.
func (s *Server) Connect(ctx context.Context, t mcpsdk.Transport) (*mcpsdk.ServerSession, error) {
	ss, err := s.srv.Connect(ctx, t, nil)
	if err != nil {
		return nil, fmt.Errorf("mcp server: connect: %w", err)
	}
	return ss, nil
}
