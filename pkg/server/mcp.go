package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/mikeboe/socrates/pkg/history"
)

var errHistoryDisabled = errors.New("research history is disabled")

type SearchHistoryArgs struct {
	Query string `json:"query" jsonschema:"the search query"`
	TopK  int    `json:"topK,omitempty" jsonschema:"the number of top results to return, 5 when unset"`
	JobID string `json:"job_id,omitempty" jsonschema:"only search the history of this research job"`
}

type FindByJobArgs struct {
	JobID string `json:"job_id" jsonschema:"the research job id"`
}

type FindByMetadataArgs struct {
	Filter map[string]any `json:"filter" jsonschema:"metadata filter over job_id, query, kind, sub_question and url; supports $and, $or, $not and $in value lists"`
}

// NewMCPServer exposes the research history as MCP tools.
func (h *Handler) NewMCPServer() *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{Name: "socrates-mcp", Version: "1.0.0"}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "search_history",
		Description: "Semantic search over the findings and reports of earlier research jobs.",
	}, h.searchHistory)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "find_history_by_job",
		Description: "Return every indexed chunk of one research job.",
	}, h.findHistoryByJob)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "find_history_by_metadata",
		Description: "Find research history using logical filters on metadata (job_id, query, kind, sub_question, url).",
	}, h.findHistoryByMetadata)

	return server
}

// MCPHandler serves the MCP server over streamable HTTP. Sessions are kept by
// the SDK and end when the client closes them.
func (h *Handler) MCPHandler() http.Handler {
	server := h.NewMCPServer()
	return mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server { return server }, nil)
}

// searcher is read per call; history may be enabled after the routes are set up.
func (h *Handler) searcher() (*history.Searcher, error) {
	if h.Service.History == nil {
		return nil, errHistoryDisabled
	}
	return h.Service.History, nil
}

func (h *Handler) searchHistory(ctx context.Context, _ *mcp.CallToolRequest, args SearchHistoryArgs) (*mcp.CallToolResult, any, error) {
	s, err := h.searcher()
	if err != nil {
		return nil, nil, err
	}
	results, err := s.Search(ctx, args.Query, args.TopK, args.JobID)
	if err != nil {
		return nil, nil, err
	}
	return textResult(history.FormatResults(results)), nil, nil
}

func (h *Handler) findHistoryByJob(ctx context.Context, _ *mcp.CallToolRequest, args FindByJobArgs) (*mcp.CallToolResult, any, error) {
	s, err := h.searcher()
	if err != nil {
		return nil, nil, err
	}
	if args.JobID == "" {
		return nil, nil, errors.New("job_id is required")
	}
	docs, err := s.ByJob(ctx, args.JobID)
	if err != nil {
		return nil, nil, err
	}
	return textResult(history.FormatDocuments(docs)), nil, nil
}

func (h *Handler) findHistoryByMetadata(ctx context.Context, _ *mcp.CallToolRequest, args FindByMetadataArgs) (*mcp.CallToolResult, any, error) {
	s, err := h.searcher()
	if err != nil {
		return nil, nil, err
	}
	docs, err := s.ByMetadata(ctx, args.Filter)
	if err != nil {
		return nil, nil, err
	}
	return textResult(history.FormatDocuments(docs)), nil, nil
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: text}}}
}
