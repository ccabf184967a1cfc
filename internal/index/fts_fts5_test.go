//go:build sqlite_fts5

package index

import (
	"testing"
)

func TestFTS5_TableExists(t *testing.T) {
	db := testDB(t)
	var count int
	if err := db.conn.QueryRow(`SELECT count(*) FROM cards_fts`).Scan(&count); err != nil {
		t.Fatalf("cards_fts table missing: %v", err)
	}
}

func TestFTS5_SearchWithSnippet(t *testing.T) {
	db := testDB(t)
	c := testCard("fts", "Cardweb provides powerful full-text search capabilities.", nil)
	c.Tags = []string{"search"}
	upsert(t, db, c, "f1")

	results, err := db.Search("powerful", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].ID != "fts" {
		t.Errorf("id = %q", results[0].ID)
	}
	if results[0].Snippet == "" {
		t.Error("expected non-empty snippet")
	}
}

func TestFTS5_DeleteRemovesFromFTS(t *testing.T) {
	db := testDB(t)
	upsert(t, db, testCard("gone", "vanishing content", nil), "g")
	_ = db.DeleteCard("gone.md")

	results, _ := db.Search("vanishing", 10)
	for _, r := range results {
		if r.ID == "gone" {
			t.Error("deleted card still in FTS index")
		}
	}
}

func TestFTS5_UpsertReplacesContent(t *testing.T) {
	db := testDB(t)
	upsert(t, db, testCard("r", "original phrasing", nil), "1")
	upsert(t, db, testCard("r", "replacement wording", nil), "2")

	if results, _ := db.Search("original", 10); len(results) != 0 {
		t.Errorf("stale content still searchable: %+v", results)
	}
	if results, _ := db.Search("replacement", 10); len(results) != 1 {
		t.Errorf("new content not searchable: %+v", results)
	}
}
