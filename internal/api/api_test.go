package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/starford/cardweb/internal/cardservice"
	"github.com/starford/cardweb/internal/index"
	"github.com/starford/cardweb/internal/snapshot"
	"github.com/starford/cardweb/internal/testutil"
)

var fixture = map[string]string{
	"a.md": "---\ntitle: Alpha\nsection: s1\n---\nAlpha links to [[b]] and mentions gravity.\n",
	"b.md": "---\ntitle: Beta\nsection: s2\nstarred: true\nslugs: [beta]\n---\nBeta is about quantum gravity.\n",
	"g.md": "---\ntitle: Gravity\ntype: concept\n---\nGravity as a concept.\n",
}

// testEnv sets up a temp vault, SQLite DB, service, and router for testing.
// An empty authToken means disabled mode.
func testEnv(t *testing.T, authToken string) http.Handler {
	t.Helper()
	return testEnvWithSSE(t, authToken != "", authToken, nil)
}

func testEnvWithSSE(t *testing.T, authEnabled bool, token string, sseHandler http.Handler) http.Handler {
	t.Helper()
	vault, store := testutil.TestVault(t)
	db := testutil.TestDB(t)
	testutil.WriteCards(t, vault, fixture)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if _, err := index.Sync(db, store, logger); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	svc := cardservice.NewService(store, db, snapshot.NewStore(), cardservice.Options{Logger: logger})
	if _, err := svc.Rebuild(); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	return NewRouter(svc, authEnabled, token, sseHandler)
}

func do(t *testing.T, router http.Handler, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, target, r)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestCollection(t *testing.T) {
	router := testEnv(t, "")

	w := do(t, router, http.MethodGet, "/collections/everything/starred/", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var view cardservice.CollectionView
	if err := json.Unmarshal(w.Body.Bytes(), &view); err != nil {
		t.Fatal(err)
	}
	if view.Total != 1 || len(view.Cards) != 1 || view.Cards[0].ID != "b" {
		t.Errorf("view = %+v", view)
	}
	if view.Description != "everything/starred/" {
		t.Errorf("description = %q", view.Description)
	}
}

func TestCollection_EncodedSlashInQuery(t *testing.T) {
	router := testEnv(t, "")

	w := do(t, router, http.MethodGet, "/collections/everything/query/quantum%2Fgravity/", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var view cardservice.CollectionView
	if err := json.Unmarshal(w.Body.Bytes(), &view); err != nil {
		t.Fatal(err)
	}
	if want := "everything/query/quantum%2Fgravity/"; view.Description != want {
		t.Errorf("description = %q, want %q", view.Description, want)
	}

	w = do(t, router, http.MethodGet, "/collections/everything/query/a%2Fb/", nil)
	_ = json.Unmarshal(w.Body.Bytes(), &view)
	if want := "everything/query/a%2Fb/"; view.Description != want {
		t.Errorf("description = %q, want %q", view.Description, want)
	}
}

func TestCollection_DefaultAndActiveCard(t *testing.T) {
	router := testEnv(t, "")

	w := do(t, router, http.MethodGet, "/collections", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var view cardservice.CollectionView
	_ = json.Unmarshal(w.Body.Bytes(), &view)
	if view.Total != 2 {
		t.Errorf("main set total = %d, want 2", view.Total)
	}

	w = do(t, router, http.MethodGet, "/collections/everything/parents/?card=beta", nil)
	_ = json.Unmarshal(w.Body.Bytes(), &view)
	if len(view.Cards) != 1 || view.Cards[0].ID != "a" {
		t.Errorf("parents of beta = %+v", view.Cards)
	}
	if view.SelectedCard != "b" {
		t.Errorf("selected = %q, want slug resolved to b", view.SelectedCard)
	}
}

func TestGetCard(t *testing.T) {
	router := testEnv(t, "")

	w := do(t, router, http.MethodGet, "/cards/beta", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d", w.Code)
	}
	var card cardservice.CardDetail
	_ = json.Unmarshal(w.Body.Bytes(), &card)
	if card.Card == nil || card.ID != "b" || !card.Starred {
		t.Errorf("card = %+v", card)
	}

	w = do(t, router, http.MethodGet, "/cards/nope", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("missing card = %d, want 404", w.Code)
	}
}

func TestSimilarSuggestionsBacklinks(t *testing.T) {
	router := testEnv(t, "")

	w := do(t, router, http.MethodGet, "/cards/a/similar?limit=1", nil)
	var sim SimilarResponse
	_ = json.Unmarshal(w.Body.Bytes(), &sim)
	if w.Code != http.StatusOK || len(sim.Cards) != 1 {
		t.Errorf("similar = %d %+v", w.Code, sim)
	}

	w = do(t, router, http.MethodGet, "/cards/b/suggestions", nil)
	var sugg SuggestionsResponse
	_ = json.Unmarshal(w.Body.Bytes(), &sugg)
	if w.Code != http.StatusOK || len(sugg.Suggestions) == 0 || sugg.Suggestions[0].ConceptID != "g" {
		t.Errorf("suggestions = %d %+v", w.Code, sugg)
	}

	w = do(t, router, http.MethodGet, "/cards/b/backlinks", nil)
	var bl BacklinksResponse
	_ = json.Unmarshal(w.Body.Bytes(), &bl)
	if len(bl.References) != 1 || bl.References[0].Source != "a" {
		t.Errorf("backlinks = %+v", bl)
	}
}

func TestSetReferences(t *testing.T) {
	router := testEnv(t, "")

	body := SetReferencesRequest{Edits: []cardservice.ReferenceEdit{{Target: "g", Type: "concept"}}}
	w := do(t, router, http.MethodPut, "/cards/a/references", body)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	w = do(t, router, http.MethodGet, "/cards/g/backlinks", nil)
	var bl BacklinksResponse
	_ = json.Unmarshal(w.Body.Bytes(), &bl)
	if len(bl.References) != 1 || bl.References[0].Source != "a" {
		t.Errorf("backlinks after edit = %+v", bl)
	}
}

func TestSetReferences_Errors(t *testing.T) {
	router := testEnv(t, "")

	self := SetReferencesRequest{Edits: []cardservice.ReferenceEdit{{Target: "a", Type: "link"}}}
	w := do(t, router, http.MethodPut, "/cards/a/references", self)
	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("self reference = %d, want 422", w.Code)
	}
	if !strings.Contains(w.Body.String(), "self reference") {
		t.Errorf("reason missing: %s", w.Body.String())
	}

	w = do(t, router, http.MethodPut, "/cards/a/references", SetReferencesRequest{})
	if w.Code != http.StatusBadRequest {
		t.Errorf("empty edits = %d, want 400", w.Code)
	}

	req := httptest.NewRequest(http.MethodPut, "/cards/a/references", strings.NewReader("{"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad json = %d, want 400", rec.Code)
	}
}

func TestPreviewRemoval(t *testing.T) {
	router := testEnv(t, "")

	body := PreviewRemovalRequest{
		Collection: "everything/children/a/",
		Edits:      []cardservice.ReferenceEdit{{Target: "b", Type: "link", Remove: true}},
	}
	w := do(t, router, http.MethodPost, "/cards/a/references/preview", body)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var resp PreviewRemovalResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp.Removed) != 1 || resp.Removed[0] != "b" {
		t.Errorf("removed = %v", resp.Removed)
	}
}

func TestCreateCard(t *testing.T) {
	router := testEnv(t, "")

	w := do(t, router, http.MethodPost, "/cards", CreateCardRequest{Title: "New card", Body: "See [[a]]"})
	if w.Code != http.StatusCreated {
		t.Fatalf("create = %d, body = %s", w.Code, w.Body.String())
	}
	loc := w.Header().Get("Location")
	if !strings.HasPrefix(loc, "/api/cards/") {
		t.Fatalf("location = %q", loc)
	}

	w = do(t, router, http.MethodGet, strings.TrimPrefix(loc, "/api"), nil)
	if w.Code != http.StatusOK {
		t.Errorf("created card not readable: %d", w.Code)
	}

	w = do(t, router, http.MethodPost, "/cards", CreateCardRequest{})
	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("missing title = %d, want 422", w.Code)
	}
}

func TestSearch(t *testing.T) {
	router := testEnv(t, "")

	w := do(t, router, http.MethodGet, "/search?q=quantum", nil)
	var resp SearchResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if w.Code != http.StatusOK || len(resp.Results) != 1 || resp.Results[0].ID != "b" {
		t.Errorf("search = %d %+v", w.Code, resp)
	}

	w = do(t, router, http.MethodGet, "/search", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("empty query = %d, want 400", w.Code)
	}
}

func TestRank(t *testing.T) {
	router := testEnv(t, "")

	w := do(t, router, http.MethodGet, "/rank?limit=1", nil)
	var resp RankResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if w.Code != http.StatusOK || len(resp.Cards) != 1 || resp.Cards[0].ID != "b" {
		t.Errorf("rank = %d %+v", w.Code, resp)
	}
}

// Auth tests.

func TestAuth_DisabledMode(t *testing.T) {
	router := testEnv(t, "")
	w := do(t, router, http.MethodGet, "/rank", nil)
	if w.Code != http.StatusOK {
		t.Errorf("disabled mode = %d, want 200", w.Code)
	}
}

func TestAuth_TokenMode(t *testing.T) {
	router := testEnv(t, "secret")

	w := do(t, router, http.MethodGet, "/rank", nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("no token = %d, want 401", w.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/rank", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("wrong token = %d, want 401", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/rank", nil)
	req.Header.Set("Authorization", "Bearer secret")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("valid token = %d, want 200", rec.Code)
	}
}

func TestAuth_SSEProtected(t *testing.T) {
	// Minimal SSE handler stub that writes headers and blocks until context done.
	sseHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
		<-r.Context().Done()
	})
	router := testEnvWithSSE(t, true, "tok", sseHandler)

	w := do(t, router, http.MethodGet, "/events", nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("SSE no token = %d, want 401", w.Code)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/events", nil).WithContext(ctx)
	req.Header.Set("Authorization", "Bearer tok")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code == http.StatusUnauthorized {
		t.Error("SSE with valid token should not 401")
	}

	ctx2, cancel2 := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel2()
	req = httptest.NewRequest(http.MethodGet, "/events?access_token=tok", nil).WithContext(ctx2)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("SSE with query token = %d, want 200", rec.Code)
	}

	w = do(t, router, http.MethodGet, "/events?access_token=wrong", nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("SSE wrong query token = %d, want 401", w.Code)
	}
}
