package mcpserver

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/cardweb/internal/cardservice"
	"github.com/starford/cardweb/internal/index"
	"github.com/starford/cardweb/internal/snapshot"
	"github.com/starford/cardweb/internal/testutil"
)

func testServer(t *testing.T) *Server {
	t.Helper()

	vault, store := testutil.TestVault(t)
	db := testutil.TestDB(t)
	testutil.WriteCards(t, vault, map[string]string{
		"a.md": "---\ntitle: Alpha\nsection: s1\n---\nAlpha links to [[b]] and mentions gravity.\n",
		"b.md": "---\ntitle: Beta\nsection: s1\nstarred: true\n---\nBeta is about quantum gravity.\n",
		"g.md": "---\ntitle: Gravity\ntype: concept\n---\nGravity as a concept.\n",
	})

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if _, err := index.Sync(db, store, logger); err != nil {
		t.Fatal(err)
	}
	svc := cardservice.NewService(store, db, snapshot.NewStore(), cardservice.Options{Logger: logger})
	if _, err := svc.Rebuild(); err != nil {
		t.Fatal(err)
	}
	return New(svc)
}

func callTool(t *testing.T, srv *Server, name string, args map[string]interface{}) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	// mcp-go has no direct "call tool" helper, so dispatch to the handlers.
	var result *mcp.CallToolResult
	var err error

	switch name {
	case "query_collection":
		result, err = srv.queryCollection(ctx, req)
	case "get_card":
		result, err = srv.getCard(ctx, req)
	case "search_cards":
		result, err = srv.searchCards(ctx, req)
	case "similar_cards":
		result, err = srv.similarCards(ctx, req)
	case "suggest_concepts":
		result, err = srv.suggestConcepts(ctx, req)
	case "get_backlinks":
		result, err = srv.getBacklinks(ctx, req)
	case "card_rank":
		result, err = srv.cardRank(ctx, req)
	case "create_card":
		result, err = srv.createCard(ctx, req)
	case "get_card_contract":
		result, err = srv.getCardContract(ctx, req)
	default:
		t.Fatalf("unknown tool: %s", name)
	}

	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func TestQueryCollection(t *testing.T) {
	srv := testServer(t)

	r := callTool(t, srv, "query_collection", map[string]interface{}{"path": "everything/starred/"})
	if r.IsError {
		t.Fatalf("error: %s", resultText(r))
	}
	var view cardservice.CollectionView
	if err := json.Unmarshal([]byte(resultText(r)), &view); err != nil {
		t.Fatal(err)
	}
	if len(view.Cards) != 1 || view.Cards[0].ID != "b" {
		t.Errorf("cards = %+v", view.Cards)
	}

	r = callTool(t, srv, "query_collection", map[string]interface{}{"path": "everything/children/", "card": "a"})
	_ = json.Unmarshal([]byte(resultText(r)), &view)
	if len(view.Cards) != 1 || view.Cards[0].ID != "b" {
		t.Errorf("children of a = %+v", view.Cards)
	}
}

func TestGetCard(t *testing.T) {
	srv := testServer(t)

	r := callTool(t, srv, "get_card", map[string]interface{}{"card": "b"})
	if r.IsError || !strings.Contains(resultText(r), `"title": "Beta"`) {
		t.Errorf("get_card = %q", resultText(r))
	}

	r = callTool(t, srv, "get_card", map[string]interface{}{"card": "nope"})
	if !r.IsError {
		t.Error("expected error for missing card")
	}

	r = callTool(t, srv, "get_card", map[string]interface{}{})
	if !r.IsError {
		t.Error("expected error for missing argument")
	}
}

func TestSearchCards(t *testing.T) {
	srv := testServer(t)

	r := callTool(t, srv, "search_cards", map[string]interface{}{"query": "quantum"})
	if !strings.Contains(resultText(r), `"id": "b"`) {
		t.Errorf("search = %q", resultText(r))
	}

	r = callTool(t, srv, "search_cards", map[string]interface{}{"query": "zzzz"})
	if resultText(r) != "no results" {
		t.Errorf("empty search = %q", resultText(r))
	}
}

func TestSimilarAndSuggestions(t *testing.T) {
	srv := testServer(t)

	r := callTool(t, srv, "similar_cards", map[string]interface{}{"card": "a", "limit": 5})
	if r.IsError {
		t.Fatalf("similar error: %s", resultText(r))
	}
	var similar []cardservice.SimilarCard
	_ = json.Unmarshal([]byte(resultText(r)), &similar)
	for _, s := range similar {
		if s.ID == "a" {
			t.Error("similar_cards must not return the card itself")
		}
	}

	r = callTool(t, srv, "suggest_concepts", map[string]interface{}{"card": "b"})
	if !strings.Contains(resultText(r), `"g"`) {
		t.Errorf("suggestions = %q", resultText(r))
	}
}

func TestGetBacklinks(t *testing.T) {
	srv := testServer(t)

	r := callTool(t, srv, "get_backlinks", map[string]interface{}{"card": "b"})
	if text := resultText(r); text != "a (link)" {
		t.Errorf("backlinks = %q, want a (link)", text)
	}

	r = callTool(t, srv, "get_backlinks", map[string]interface{}{"card": "a"})
	if text := resultText(r); text != "no backlinks found" {
		t.Errorf("backlinks = %q", text)
	}
}

func TestCardRank(t *testing.T) {
	srv := testServer(t)

	r := callTool(t, srv, "card_rank", map[string]interface{}{"limit": 1})
	var ranked []cardservice.RankedCard
	if err := json.Unmarshal([]byte(resultText(r)), &ranked); err != nil {
		t.Fatal(err)
	}
	if len(ranked) != 1 || ranked[0].ID != "b" {
		t.Errorf("rank = %+v", ranked)
	}
}

func TestCreateCard(t *testing.T) {
	srv := testServer(t)

	r := callTool(t, srv, "create_card", map[string]interface{}{
		"title": "New",
		"body":  "See [[a]]",
		"tags":  "one, two",
	})
	text := resultText(r)
	if r.IsError || !strings.HasPrefix(text, "created: ") {
		t.Fatalf("create = %q", text)
	}
	id := strings.TrimPrefix(text, "created: ")

	r = callTool(t, srv, "get_backlinks", map[string]interface{}{"card": "a"})
	if !strings.Contains(resultText(r), id) {
		t.Errorf("new card should link a: %q", resultText(r))
	}

	r = callTool(t, srv, "create_card", map[string]interface{}{"title": "x", "type": "bogus"})
	if !r.IsError {
		t.Error("expected error for unknown type")
	}
}

func TestContract(t *testing.T) {
	srv := testServer(t)
	r := callTool(t, srv, "get_card_contract", nil)
	if !strings.Contains(resultText(r), "Card Format Contract") {
		t.Error("contract text missing")
	}
}
