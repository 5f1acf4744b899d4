package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"memoryd/internal/logging"
)

// Server serves the MCP tools/* surface over stdio JSON-RPC 2.0.
type Server struct {
	registry *Registry
	info     ServerInfo
	logger   *logging.Logger
}

// NewServer builds a Server around registry.
func NewServer(registry *Registry, info ServerInfo) *Server {
	return &Server{registry: registry, info: info, logger: logging.Get(logging.CategoryMCP)}
}

// Run reads JSON-RPC requests from stdin and writes responses to stdout
// until stdin closes or ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 1024*1024), 10*1024*1024)
	encoder := json.NewEncoder(os.Stdout)

	s.logger.Info("memoryd mcp server started: name=%s version=%s", s.info.Name, s.info.Version)

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		resp := s.handleMessage(ctx, line)
		if resp != nil {
			if err := encoder.Encode(resp); err != nil {
				s.logger.Error("failed to write response: %v", err)
				return fmt.Errorf("mcp: write response: %w", err)
			}
		}
	}

	if err := scanner.Err(); err != nil && err != io.EOF {
		return fmt.Errorf("mcp: read stdin: %w", err)
	}
	s.logger.Info("memoryd mcp server stopped (stdin closed)")
	return nil
}

func (s *Server) handleMessage(ctx context.Context, data []byte) *Response {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		s.logger.Error("failed to parse request: %v", err)
		return &Response{JSONRPC: "2.0", Error: &RPCError{Code: ErrCodeParse, Message: "Parse error", Data: err.Error()}}
	}

	if req.ID == nil {
		if req.Method != "notifications/initialized" {
			s.logger.Info("received notification: method=%s", req.Method)
		}
		return nil
	}

	result, rpcErr := s.dispatch(ctx, &req)
	resp := &Response{JSONRPC: "2.0", ID: req.ID}
	if rpcErr != nil {
		resp.Error = rpcErr
	} else {
		resp.Result = result
	}
	return resp
}

func (s *Server) dispatch(ctx context.Context, req *Request) (any, *RPCError) {
	switch req.Method {
	case "initialize":
		return s.handleInitialize(req.Params)
	case "tools/list":
		return &ToolsListResult{Tools: s.registry.List()}, nil
	case "tools/call":
		return s.handleToolsCall(ctx, req.Params)
	default:
		return nil, &RPCError{Code: ErrCodeMethodNotFound, Message: fmt.Sprintf("method not found: %s", req.Method)}
	}
}

func (s *Server) handleInitialize(params json.RawMessage) (any, *RPCError) {
	return &InitializeResult{
		ProtocolVersion: "2024-11-05",
		Capabilities:    ServerCapability{Tools: &ToolsCapability{}},
		ServerInfo:      s.info,
	}, nil
}

func (s *Server) handleToolsCall(ctx context.Context, params json.RawMessage) (any, *RPCError) {
	var callParams ToolsCallParams
	if err := json.Unmarshal(params, &callParams); err != nil {
		return nil, &RPCError{Code: ErrCodeInvalidParams, Message: "Invalid tools/call params", Data: err.Error()}
	}

	tool := s.registry.Get(callParams.Name)
	if tool == nil {
		return nil, &RPCError{Code: ErrCodeMethodNotFound, Message: fmt.Sprintf("tool not found: %s", callParams.Name)}
	}

	s.logger.Info("calling tool: %s", callParams.Name)
	result, err := tool.Execute(ctx, callParams.Arguments)
	if err != nil {
		s.logger.Error("tool execution failed: tool=%s error=%v", callParams.Name, err)
		return ErrorResult(fmt.Sprintf("tool execution failed: %v", err)), nil
	}
	return result, nil
}
