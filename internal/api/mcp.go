package api

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/paperforge/paperforge/internal/graph"
	"github.com/paperforge/paperforge/internal/pipeline"
	"github.com/paperforge/paperforge/internal/vector"
)

// MCPDeps holds dependencies for the MCP server. MCP clients are single-user;
// UserID scopes their graph (defaults to the anonymous scope).
type MCPDeps struct {
	Graph        *graph.Service
	Vector       *vector.Engine
	Orchestrator *pipeline.Orchestrator
	UserID       string
}

// NewMCPServer creates an MCP server exposing the knowledge graph as tools
// and resources.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	if deps.UserID == "" {
		deps.UserID = defaultUserID
	}

	s := server.NewMCPServer(
		"paperforge",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("paperforge — personal knowledge graph built from papers: concepts, relations, and semantic search."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("search_concepts",
			mcp.WithDescription("Search stored concepts by keyword, or semantically when a query embeds."),
			mcp.WithString("query", mcp.Description("Search query"), mcp.Required()),
			mcp.WithNumber("limit", mcp.Description("Maximum number of results (default 5)")),
			mcp.WithBoolean("semantic", mcp.Description("Use embedding similarity instead of keyword match")),
		),
		mcpSearchConcepts(deps),
	)

	s.AddTool(
		mcp.NewTool("related_concepts",
			mcp.WithDescription("Traverse the knowledge graph from a concept and return its neighbors."),
			mcp.WithString("concept_id", mcp.Description("Concept identifier"), mcp.Required()),
			mcp.WithNumber("depth", mcp.Description("Traversal depth (default 1)")),
		),
		mcpRelatedConcepts(deps),
	)

	s.AddTool(
		mcp.NewTool("suggest_relations",
			mcp.WithDescription("Propose semantically-related edges between concepts no stored relation connects."),
			mcp.WithNumber("threshold", mcp.Description("Similarity threshold (default 0.7)")),
		),
		mcpSuggestRelations(deps),
	)

	s.AddTool(
		mcp.NewTool("add_concept",
			mcp.WithDescription("Store a concept in the knowledge graph."),
			mcp.WithString("name", mcp.Description("Concept name"), mcp.Required()),
			mcp.WithString("definition", mcp.Description("Concept definition")),
			mcp.WithString("concept_type", mcp.Description("One of: method, model, dataset, task, metric, domain, theory, application, concept")),
		),
		mcpAddConcept(deps),
	)

	s.AddTool(
		mcp.NewTool("ingest_text",
			mcp.WithDescription("Run the extraction pipeline on raw text and grow the knowledge graph."),
			mcp.WithString("text", mcp.Description("Document text"), mcp.Required()),
			mcp.WithString("filename", mcp.Description("Optional source filename")),
		),
		mcpIngestText(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"graph://stats",
			"Knowledge Graph Stats",
			mcp.WithResourceDescription("Concept and relation counts with per-type histograms"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceStats(deps),
	)

	return s
}

func mcpSearchConcepts(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, err := req.RequireString("query")
		if err != nil {
			return mcpError("query is required"), nil
		}

		limit := req.GetInt("limit", 5)
		if limit <= 0 {
			limit = 5
		}
		if limit > 50 {
			limit = 50
		}

		if req.GetBool("semantic", false) {
			results, err := deps.Vector.SemanticSearch(ctx, deps.UserID, query, limit, 0)
			if err != nil {
				return mcpError(fmt.Sprintf("semantic search failed: %v", err)), nil
			}
			return mcpJSON(results)
		}

		concepts, err := deps.Graph.SearchConcepts(deps.UserID, query, limit)
		if err != nil {
			return mcpError(fmt.Sprintf("search failed: %v", err)), nil
		}
		return mcpJSON(concepts)
	}
}

func mcpRelatedConcepts(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		conceptID, err := req.RequireString("concept_id")
		if err != nil {
			return mcpError("concept_id is required"), nil
		}
		depth := req.GetInt("depth", 1)

		related, err := deps.Graph.RelatedConcepts(deps.UserID, conceptID, depth)
		if err != nil {
			return mcpError(fmt.Sprintf("traversal failed: %v", err)), nil
		}
		return mcpJSON(related)
	}
}

func mcpSuggestRelations(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		threshold := req.GetFloat("threshold", 0)

		suggestions, err := deps.Vector.SuggestRelations(ctx, deps.UserID, threshold)
		if err != nil {
			return mcpError(fmt.Sprintf("relation discovery failed: %v", err)), nil
		}
		return mcpJSON(suggestions)
	}
}

func mcpAddConcept(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		name, err := req.RequireString("name")
		if err != nil {
			return mcpError("name is required"), nil
		}

		c := graph.Concept{
			ID:          uuid.NewString(),
			Name:        name,
			Definition:  req.GetString("definition", ""),
			ConceptType: req.GetString("concept_type", graph.TypeConcept),
		}
		if err := deps.Graph.Store().PutConcept(deps.UserID, c); err != nil {
			return mcpError(fmt.Sprintf("failed to store concept: %v", err)), nil
		}
		return mcpText(fmt.Sprintf("Stored concept %s (%s)", c.Name, c.ID)), nil
	}
}

func mcpIngestText(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		text, err := req.RequireString("text")
		if err != nil {
			return mcpError("text is required"), nil
		}
		filename := req.GetString("filename", "")

		sessionID := deps.Orchestrator.Start(text, filename, deps.UserID)
		return mcpText(fmt.Sprintf("Started extraction pipeline, session %s", sessionID)), nil
	}
}

func mcpResourceStats(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		stats, err := deps.Graph.GraphStats(deps.UserID)
		if err != nil {
			return nil, fmt.Errorf("computing stats: %w", err)
		}

		b, err := json.Marshal(stats)
		if err != nil {
			return nil, fmt.Errorf("marshaling stats: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func mcpJSON(v any) (*mcp.CallToolResult, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return mcpError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcpText(string(b)), nil
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
