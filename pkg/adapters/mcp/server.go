// Package mcp exposes the orchestrator as a Model Context Protocol server, so
// that another agent can drive conversations as tool calls.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/MikaYeghi/agent-first/pkg/domain"
	"github.com/MikaYeghi/agent-first/pkg/graph"
	"github.com/MikaYeghi/agent-first/pkg/runner"
)

const graphURI = "agentorg://graph"

// Engine is the part of the orchestrator exposed as tools.
// *agentfirst.Engine satisfies it.
type Engine interface {
	GetResponse(ctx context.Context, req domain.Request) (domain.Response, error)
	Converse(ctx context.Context, sessionID, text string) (domain.TurnResult, error)
	Graph() *graph.Graph
	Handlers() []domain.HandlerDescriptor
}

// TurnResponse is the structured result of the get_response tool.
type TurnResponse struct {
	Answer     string         `json:"answer" jsonschema_description:"The reply to show the user"`
	Parameters map[string]any `json:"parameters" jsonschema_description:"Parameters to send back with the next turn"`
}

// ConverseResponse is the structured result of the converse tool.
type ConverseResponse struct {
	Answer     string `json:"answer" jsonschema_description:"The reply to show the user"`
	Node       string `json:"node" jsonschema_description:"The node the next turn will execute"`
	Terminated bool   `json:"terminated" jsonschema_description:"Whether the conversation has ended"`
}

// Server wraps the engine in an MCP server.
type Server struct {
	engine    Engine
	mcpServer *server.MCPServer
	logger    *slog.Logger
}

// NewServer creates an MCP server named agentorg-mcp.
func NewServer(engine Engine, version string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	s := &Server{
		engine:    engine,
		mcpServer: server.NewMCPServer("agentorg-mcp", version),
		logger:    logger,
	}
	s.registerTools()
	s.registerResources()
	return s
}

// MCPServer returns the underlying server.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// ServeStdio serves on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE serves over SSE on addr until ctx is done.
func (s *Server) ServeSSE(ctx context.Context, addr, baseURL string) error {
	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", corsMiddleware(sseServer.SSEHandler()))
	mux.Handle("/message", corsMiddleware(sseServer.MessageHandler()))
	httpServer := &http.Server{Addr: addr, Handler: mux}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("mcp server listening (sse)", "addr", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool("get_response",
		mcp.WithDescription("Run one stateless conversation turn. Send back the returned parameters with the next turn; omit them to start a new conversation."),
		mcp.WithString("text", mcp.Required(), mcp.Description("The user message")),
		mcp.WithString("chat_history", mcp.Description("JSON array of {role, content} messages (optional)")),
		mcp.WithString("parameters", mcp.Description("JSON object returned by the previous turn (optional)")),
		mcp.WithOutputSchema[TurnResponse](),
	), mcp.NewStructuredToolHandler(s.handleGetResponse))

	s.mcpServer.AddTool(mcp.NewTool("converse",
		mcp.WithDescription("Run one turn of a stored conversation, creating it on first use."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Conversation id")),
		mcp.WithString("text", mcp.Required(), mcp.Description("The user message")),
		mcp.WithOutputSchema[ConverseResponse](),
	), mcp.NewStructuredToolHandler(s.handleConverse))

	s.mcpServer.AddTool(mcp.NewTool("get_graph",
		mcp.WithDescription("Get the dialogue graph: nodes and edges."),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		data, err := s.graphJSON()
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(string(data)), nil
	})

	s.mcpServer.AddTool(mcp.NewTool("list_handlers",
		mcp.WithDescription("List the registered agents and workers."),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		data, err := json.Marshal(s.engine.Handlers())
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(string(data)), nil
	})
}

func (s *Server) handleGetResponse(ctx context.Context, request mcp.CallToolRequest, args map[string]any) (TurnResponse, error) {
	text, _ := args["text"].(string)
	clean, err := runner.SanitizeInput(text)
	if err != nil {
		return TurnResponse{}, fmt.Errorf("input rejected: %w", err)
	}

	req := domain.Request{Text: clean}
	if raw, ok := args["chat_history"].(string); ok && raw != "" {
		if err := json.Unmarshal([]byte(raw), &req.ChatHistory); err != nil {
			return TurnResponse{}, fmt.Errorf("chat_history: %w", err)
		}
	}
	if raw, ok := args["parameters"].(string); ok && raw != "" {
		if err := json.Unmarshal([]byte(raw), &req.Parameters); err != nil {
			return TurnResponse{}, fmt.Errorf("parameters: %w", err)
		}
	}

	resp, err := s.engine.GetResponse(ctx, req)
	if err != nil {
		s.logger.Error("mcp turn failed", "err", err)
		return TurnResponse{}, fmt.Errorf("turn failed: %w", err)
	}
	return TurnResponse{Answer: resp.Answer, Parameters: resp.Parameters}, nil
}

func (s *Server) handleConverse(ctx context.Context, request mcp.CallToolRequest, args map[string]any) (ConverseResponse, error) {
	sessionID, _ := args["session_id"].(string)
	if sessionID == "" {
		return ConverseResponse{}, errors.New("session_id is required")
	}
	text, _ := args["text"].(string)
	clean, err := runner.SanitizeInput(text)
	if err != nil {
		return ConverseResponse{}, fmt.Errorf("input rejected: %w", err)
	}

	res, err := s.engine.Converse(ctx, sessionID, clean)
	if err != nil {
		s.logger.Error("mcp turn failed", "session_id", sessionID, "err", err)
		return ConverseResponse{}, fmt.Errorf("turn failed: %w", err)
	}
	return ConverseResponse{
		Answer:     res.Answer,
		Node:       res.State.CurrentNodeID,
		Terminated: res.State.Terminated(),
	}, nil
}

type graphView struct {
	Nodes []domain.Node `json:"nodes"`
	Edges []domain.Edge `json:"edges"`
}

func (s *Server) graphJSON() ([]byte, error) {
	g := s.engine.Graph()
	return json.Marshal(graphView{Nodes: g.Nodes(), Edges: g.Edges()})
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource(graphURI, "Dialogue graph",
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		data, err := s.graphJSON()
		if err != nil {
			return nil, fmt.Errorf("encode graph: %w", err)
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      graphURI,
				MIMEType: "application/json",
				Text:     string(data),
			},
		}, nil
	})
}
