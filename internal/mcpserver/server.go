// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes the card engine's read and write operations to LLM
// clients over stdio.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/cardweb/internal/api"
	"github.com/starford/cardweb/internal/apperr"
	"github.com/starford/cardweb/internal/cardservice"
	"github.com/starford/cardweb/internal/models"
)

const contractURI = "cardweb://card-format"

// Server wraps the MCP server with card tools.
type Server struct {
	mcp *server.MCPServer
	svc api.CardService
}

// New creates a new MCP server with all card tools registered.
func New(svc api.CardService) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"Cardweb",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("query_collection",
		mcp.WithDescription("Evaluate a collection description such as "+
			"'everything/starred/sort/title/' or 'everything/children/<card>/' and "+
			"return the matching cards in display order."),
		mcp.WithString("path", mcp.Description("Collection description; empty for the default set")),
		mcp.WithString("card", mcp.Description("Active card id or slug used by key-card filters")),
	), s.queryCollection)

	s.mcp.AddTool(mcp.NewTool("get_card",
		mcp.WithDescription("Read one card with its references and user flags."),
		mcp.WithString("card", mcp.Required(), mcp.Description("Card id or slug")),
	), s.getCard)

	s.mcp.AddTool(mcp.NewTool("search_cards",
		mcp.WithDescription("Full-text search through card titles, bodies and tags."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
	), s.searchCards)

	s.mcp.AddTool(mcp.NewTool("similar_cards",
		mcp.WithDescription("List cards whose text overlaps the given card, best first."),
		mcp.WithString("card", mcp.Required(), mcp.Description("Card id or slug")),
		mcp.WithNumber("limit", mcp.Description("Max results (default 10)")),
	), s.similarCards)

	s.mcp.AddTool(mcp.NewTool("suggest_concepts",
		mcp.WithDescription("List concept cards the given card mentions but does not reference yet."),
		mcp.WithString("card", mcp.Required(), mcp.Description("Card id or slug")),
	), s.suggestConcepts)

	s.mcp.AddTool(mcp.NewTool("get_backlinks",
		mcp.WithDescription("Find all references that point at the specified card."),
		mcp.WithString("card", mcp.Required(), mcp.Description("Card id or slug")),
	), s.getBacklinks)

	s.mcp.AddTool(mcp.NewTool("card_rank",
		mcp.WithDescription("List cards ordered by PageRank over the reference graph."),
		mcp.WithNumber("limit", mcp.Description("Max results (default 20)")),
	), s.cardRank)

	s.mcp.AddTool(mcp.NewTool("create_card",
		mcp.WithDescription("Create a new card with a generated id. "+
			"Read the contract first via the get_card_contract tool or the "+
			contractURI+" resource."),
		mcp.WithString("title", mcp.Required(), mcp.Description("Card title")),
		mcp.WithString("body", mcp.Description("Markdown body; [[id]] wikilinks become references")),
		mcp.WithString("type", mcp.Description("content, section-head, concept, quote or working-notes (default content)")),
		mcp.WithString("section", mcp.Description("Optional section")),
		mcp.WithString("tags", mcp.Description("Optional comma-separated tags")),
	), s.createCard)

	s.mcp.AddTool(mcp.NewTool("get_card_contract",
		mcp.WithDescription("Returns the card file format contract. "+
			"Call this before creating cards to ensure correct structure."),
	), s.getCardContract)

	s.mcp.AddResource(
		mcp.NewResource(contractURI, "Card Format Contract",
			mcp.WithResourceDescription("Card file format that every card follows."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readCardFormatResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

// jsonResult renders v as an indented JSON text result.
func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

// toolError turns a service error into a tool error result.
func toolError(err error) *mcp.CallToolResult {
	if errors.Is(err, apperr.ErrNotFound) {
		return mcp.NewToolResultError("not found: " + err.Error())
	}
	return mcp.NewToolResultError(err.Error())
}

func (s *Server) queryCollection(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	view, err := s.svc.Evaluate(ctx, req.GetString("path", ""), req.GetString("card", ""))
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(view)
}

func (s *Server) getCard(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	card, err := req.RequireString("card")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	detail, err := s.svc.GetCard(ctx, card)
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(detail)
}

func (s *Server) searchCards(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := s.svc.Search(ctx, query, 20)
	if err != nil {
		return toolError(err), nil
	}
	if len(results) == 0 {
		return mcp.NewToolResultText("no results"), nil
	}
	return jsonResult(results)
}

func (s *Server) similarCards(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	card, err := req.RequireString("card")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	cards, err := s.svc.Similar(ctx, card, req.GetInt("limit", 10))
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(cards)
}

func (s *Server) suggestConcepts(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	card, err := req.RequireString("card")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, err := s.svc.Suggestions(ctx, card)
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(out)
}

func (s *Server) getBacklinks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	card, err := req.RequireString("card")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	rows, err := s.svc.Backlinks(ctx, card)
	if err != nil {
		return toolError(err), nil
	}
	if len(rows) == 0 {
		return mcp.NewToolResultText("no backlinks found"), nil
	}
	lines := make([]string, 0, len(rows))
	for _, r := range rows {
		lines = append(lines, fmt.Sprintf("%s (%s)", r.Source, r.Type))
	}
	return mcp.NewToolResultText(strings.Join(lines, "\n")), nil
}

func (s *Server) cardRank(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	cards, err := s.svc.Rank(ctx, req.GetInt("limit", 20))
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(cards)
}

func (s *Server) createCard(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	title, err := req.RequireString("title")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	in := cardservice.NewCard{
		Type:    models.CardType(req.GetString("type", "")),
		Title:   title,
		Body:    req.GetString("body", ""),
		Section: req.GetString("section", ""),
	}
	for _, tag := range strings.Split(req.GetString("tags", ""), ",") {
		if tag = strings.TrimSpace(tag); tag != "" {
			in.Tags = append(in.Tags, tag)
		}
	}
	card, err := s.svc.CreateCard(ctx, in)
	if err != nil {
		return toolError(err), nil
	}
	return mcp.NewToolResultText("created: " + card.ID), nil
}

func (s *Server) getCardContract(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(CardFormatContract), nil
}

func (s *Server) readCardFormatResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      contractURI,
			MIMEType: "text/markdown",
			Text:     CardFormatContract,
		},
	}, nil
}
