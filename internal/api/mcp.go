package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/scrapedesk/scrapedesk/internal/scrape"
	"github.com/scrapedesk/scrapedesk/internal/workspace"
)

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Workspace *workspace.Store
	Scraper   *scrape.Orchestrator
}

// NewMCPServer creates an MCP server with all workspace tools and
// resources registered.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	s := server.NewMCPServer(
		"scrapedesk",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("scrapedesk — workspace manager for scraping projects: URL queues, scrape runs, history, and RAG consent."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("list_projects",
			mcp.WithDescription("List all projects in the workspace with their URL queues and status."),
		),
		mcpListProjects(deps),
	)

	s.AddTool(
		mcp.NewTool("create_project",
			mcp.WithDescription("Create a new scraping project. The new project becomes active."),
			mcp.WithString("name", mcp.Description("Project name"), mcp.Required()),
		),
		mcpCreateProject(deps),
	)

	s.AddTool(
		mcp.NewTool("add_url",
			mcp.WithDescription("Add a URL with its scraping conditions to a project's queue."),
			mcp.WithString("project_id", mcp.Description("Project ID"), mcp.Required()),
			mcp.WithString("url", mcp.Description("URL to scrape"), mcp.Required()),
			mcp.WithString("conditions", mcp.Description("What to extract from the page"), mcp.Required()),
		),
		mcpAddURL(deps),
	)

	s.AddTool(
		mcp.NewTool("start_scrape",
			mcp.WithDescription("Run the scrape for every URL in a project's queue and record the outcome."),
			mcp.WithString("project_id", mcp.Description("Project ID"), mcp.Required()),
		),
		mcpStartScrape(deps),
	)

	s.AddTool(
		mcp.NewTool("scrape_history",
			mcp.WithDescription("Return a project's scrape history, newest first."),
			mcp.WithString("project_id", mcp.Description("Project ID"), mcp.Required()),
			mcp.WithNumber("limit", mcp.Description("Maximum number of entries (default 10)")),
		),
		mcpScrapeHistory(deps),
	)

	s.AddTool(
		mcp.NewTool("set_rag_consent",
			mcp.WithDescription("Record the consent decision for using a project's scraped content in chat."),
			mcp.WithString("project_id", mcp.Description("Project ID"), mcp.Required()),
			mcp.WithString("decision", mcp.Description("One of: enable, disable, later"), mcp.Required()),
		),
		mcpSetRagConsent(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"workspace://projects",
			"Workspace Projects",
			mcp.WithResourceDescription("All projects with queues, results, and history as JSON"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceProjects(deps),
	)

	return s
}

func mcpListProjects(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		type projectSummary struct {
			ID        string `json:"id"`
			Name      string `json:"name"`
			URLs      int    `json:"urls"`
			Runs      int    `json:"runs"`
			RagStatus string `json:"rag_status"`
			Active    bool   `json:"active"`
		}

		activeID := deps.Workspace.ActiveID()
		projects := deps.Workspace.Projects()
		summaries := make([]projectSummary, len(projects))
		for i, p := range projects {
			summaries[i] = projectSummary{
				ID:        p.ID,
				Name:      p.Name,
				URLs:      len(p.URLs),
				Runs:      len(p.History),
				RagStatus: string(p.RagStatus),
				Active:    p.ID == activeID,
			}
		}

		b, err := json.Marshal(summaries)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal projects: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpCreateProject(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		name, err := req.RequireString("name")
		if err != nil {
			return mcpError("name is required"), nil
		}

		p, err := deps.Workspace.CreateProject(name)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to create project: %v", err)), nil
		}
		return mcpText(fmt.Sprintf("Created project %s (%s)", p.Name, p.ID)), nil
	}
}

func mcpAddURL(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		projectID, err := req.RequireString("project_id")
		if err != nil {
			return mcpError("project_id is required"), nil
		}
		url, err := req.RequireString("url")
		if err != nil {
			return mcpError("url is required"), nil
		}
		conditions, err := req.RequireString("conditions")
		if err != nil {
			return mcpError("conditions is required"), nil
		}

		entry, err := deps.Workspace.AddURL(projectID, url, conditions)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to add url: %v", err)), nil
		}
		return mcpText(fmt.Sprintf("Added URL %d: %s", entry.ID, entry.URL)), nil
	}
}

func mcpStartScrape(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		projectID, err := req.RequireString("project_id")
		if err != nil {
			return mcpError("project_id is required"), nil
		}

		summary, err := deps.Scraper.StartScraping(ctx, projectID)
		if err != nil {
			if errors.Is(err, scrape.ErrEmptyQueue) || errors.Is(err, scrape.ErrMissingConditions) {
				if p, perr := deps.Workspace.Project(projectID); perr == nil && p.ErrorMessage != "" {
					return mcpError(p.ErrorMessage), nil
				}
			}
			return mcpError(fmt.Sprintf("scrape failed: %v", err)), nil
		}

		return mcpText(fmt.Sprintf("Scrape completed: %s (%d items, %s)",
			summary.History.URL, summary.History.ItemsScraped, summary.History.DataSize)), nil
	}
}

func mcpScrapeHistory(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		projectID, err := req.RequireString("project_id")
		if err != nil {
			return mcpError("project_id is required"), nil
		}

		limit := req.GetInt("limit", 10)
		if limit <= 0 {
			limit = 10
		}

		p, err := deps.Workspace.Project(projectID)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to load project: %v", err)), nil
		}

		history := p.History
		if len(history) > limit {
			history = history[:limit]
		}
		b, err := json.Marshal(history)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal history: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpSetRagConsent(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		projectID, err := req.RequireString("project_id")
		if err != nil {
			return mcpError("project_id is required"), nil
		}
		decision, err := req.RequireString("decision")
		if err != nil {
			return mcpError("decision is required"), nil
		}

		if err := deps.Workspace.ApplyRagDecision(projectID, workspace.RagDecision(decision)); err != nil {
			return mcpError(fmt.Sprintf("failed to apply decision: %v", err)), nil
		}
		return mcpText(fmt.Sprintf("RAG consent for %s set via %q", projectID, decision)), nil
	}
}

func mcpResourceProjects(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		b, err := json.Marshal(deps.Workspace.Projects())
		if err != nil {
			return nil, fmt.Errorf("failed to marshal projects: %w", err)
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
