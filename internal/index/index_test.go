package index

import (
	"errors"
	"os"
	"testing"
	"time"

	"github.com/starford/cardweb/internal/apperr"
	"github.com/starford/cardweb/internal/models"
	"github.com/starford/cardweb/internal/references"
	"github.com/starford/cardweb/internal/snapshot"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	f, err := os.CreateTemp("", "cardweb-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	f.Close()
	t.Cleanup(func() { os.Remove(f.Name()) })

	db, err := Open(f.Name())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func testCard(id, body string, refs map[string]map[models.ReferenceType]string) *models.Card {
	return &models.Card{
		ID:         id,
		Type:       models.CardTypeContent,
		Title:      "Card " + id,
		Body:       body,
		Tags:       []string{},
		Published:  true,
		References: references.FromTargets(refs),
	}
}

func link(targets ...string) map[string]map[models.ReferenceType]string {
	out := make(map[string]map[models.ReferenceType]string)
	for _, t := range targets {
		out[t] = map[models.ReferenceType]string{"link": ""}
	}
	return out
}

func upsert(t *testing.T, db *DB, c *models.Card, cs string) {
	t.Helper()
	row := CardRow{Path: c.ID + ".md", Checksum: cs, UpdatedAt: time.Now()}
	if err := db.UpsertCard(row, c); err != nil {
		t.Fatalf("UpsertCard(%s): %v", c.ID, err)
	}
}

func TestSchemaCreation(t *testing.T) {
	db := testDB(t)
	var count int
	if err := db.conn.QueryRow(`SELECT count(*) FROM cards`).Scan(&count); err != nil {
		t.Fatalf("cards table missing: %v", err)
	}
	if err := db.conn.QueryRow(`SELECT count(*) FROM card_references`).Scan(&count); err != nil {
		t.Fatalf("card_references table missing: %v", err)
	}
}

func TestUpsertAndGetChecksum(t *testing.T) {
	db := testDB(t)
	upsert(t, db, testCard("hello", "A hello world card.", nil), "abc123")

	cs, err := db.GetChecksum("hello.md")
	if err != nil {
		t.Fatalf("GetChecksum: %v", err)
	}
	if cs != "abc123" {
		t.Errorf("checksum = %q, want %q", cs, "abc123")
	}
}

func TestGetChecksum_NotFound(t *testing.T) {
	db := testDB(t)
	cs, err := db.GetChecksum("nonexistent.md")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cs != "" {
		t.Errorf("expected empty checksum, got %q", cs)
	}
}

func TestGetCard(t *testing.T) {
	db := testDB(t)
	c := testCard("a", "body", link("b"))
	c.Synonyms = []string{"alpha"}
	row := CardRow{Path: "a.md", Checksum: "1", Flags: snapshot.Flags{Starred: true}, UpdatedAt: time.Now()}
	if err := db.UpsertCard(row, c); err != nil {
		t.Fatal(err)
	}

	got, flags, err := db.GetCard("a")
	if err != nil {
		t.Fatalf("GetCard: %v", err)
	}
	if got.Title != "Card a" || got.Path != "a.md" || len(got.Synonyms) != 1 {
		t.Errorf("card = %+v", got)
	}
	if !got.References.Has("b") {
		t.Error("expected reference to b")
	}
	if !flags.Starred || flags.Read {
		t.Errorf("flags = %+v", flags)
	}

	_, _, err = db.GetCard("missing")
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestInbound(t *testing.T) {
	db := testDB(t)
	upsert(t, db, testCard("a", "body", link("b")), "1")
	upsert(t, db, testCard("c", "body", link("b")), "2")

	in, err := db.Inbound("b")
	if err != nil {
		t.Fatalf("Inbound: %v", err)
	}
	if len(in) != 2 || in[0].Source != "a" || in[1].Source != "c" {
		t.Fatalf("inbound = %+v", in)
	}
	if in[0].Type != "link" {
		t.Errorf("type = %q", in[0].Type)
	}
}

func TestDeleteCard(t *testing.T) {
	db := testDB(t)
	upsert(t, db, testCard("del", "body", link("target")), "x")

	if err := db.DeleteCard("del.md"); err != nil {
		t.Fatalf("DeleteCard: %v", err)
	}
	cs, _ := db.GetChecksum("del.md")
	if cs != "" {
		t.Errorf("deleted card still has checksum %q", cs)
	}
	in, _ := db.Inbound("target")
	if len(in) != 0 {
		t.Errorf("expected 0 inbound after delete, got %d", len(in))
	}
	if err := db.DeleteCard("del.md"); err != nil {
		t.Errorf("second delete: %v", err)
	}
}

func TestUpsertUpdatesExisting(t *testing.T) {
	db := testDB(t)
	upsert(t, db, testCard("up", "old body", link("x")), "1")
	upsert(t, db, testCard("up", "new body", link("y")), "2")

	cs, _ := db.GetChecksum("up.md")
	if cs != "2" {
		t.Errorf("checksum = %q, want %q", cs, "2")
	}
	if in, _ := db.Inbound("x"); len(in) != 0 {
		t.Error("old reference should be removed on upsert")
	}
	if in, _ := db.Inbound("y"); len(in) != 1 {
		t.Error("new reference should exist")
	}
}

func TestUpsertMovedPath(t *testing.T) {
	db := testDB(t)
	c := testCard("m", "body", nil)
	if err := db.UpsertCard(CardRow{Path: "old/m.md", Checksum: "1"}, c); err != nil {
		t.Fatal(err)
	}
	if err := db.UpsertCard(CardRow{Path: "new/m.md", Checksum: "1"}, c); err != nil {
		t.Fatal(err)
	}
	paths, err := db.AllPaths()
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := paths["new/m.md"]; !ok || len(paths) != 1 {
		t.Errorf("paths = %v", paths)
	}
}

func TestApplyReferencesDiff(t *testing.T) {
	db := testDB(t)
	before := testCard("a", "body", map[string]map[models.ReferenceType]string{
		"b": {"link": "", "ack": "old"},
		"c": {"link": ""},
	})
	upsert(t, db, before, "1")

	after := references.FromTargets(map[string]map[models.ReferenceType]string{
		"b": {"ack": "new"},
		"d": {"link": ""},
	})
	d := references.DiffBlocks(before.References, after)
	if err := db.ApplyReferencesDiff("a", d); err != nil {
		t.Fatalf("ApplyReferencesDiff: %v", err)
	}

	got, _, err := db.GetCard("a")
	if err != nil {
		t.Fatal(err)
	}
	if got.References.Has("c") {
		t.Error("c should be removed")
	}
	if !got.References.Has("d") {
		t.Error("d should be added")
	}
	b := got.References.Targets["b"]
	if len(b) != 1 || b["ack"] != "new" {
		t.Errorf("b = %v, want only ack=new", b)
	}
}

func TestLoadSnapshot(t *testing.T) {
	db := testDB(t)
	upsert(t, db, testCard("a", "body", link("b")), "1")
	b := testCard("b", "", nil)
	if err := db.UpsertCard(CardRow{Path: "b.md", Checksum: "2", Flags: snapshot.Flags{Read: true}}, b); err != nil {
		t.Fatal(err)
	}

	snap, err := db.LoadSnapshot()
	if err != nil {
		t.Fatalf("LoadSnapshot: %v", err)
	}
	if len(snap.Cards) != 2 {
		t.Fatalf("cards = %d", len(snap.Cards))
	}
	if !snap.Cards["b"].InboundReferences.Has("a") {
		t.Error("inbound reference a->b missing")
	}
	if !snap.Filters[snapshot.FilterRead]["b"] {
		t.Error("b should be in the read filter")
	}
	if snap.Filters[snapshot.FilterHasBody]["b"] {
		t.Error("b has no body")
	}
}

func TestSearch_Basic(t *testing.T) {
	db := testDB(t)
	upsert(t, db, testCard("s", "uniqueword appears here", nil), "1")

	results, err := db.Search("uniqueword", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].ID != "s" || results[0].Path != "s.md" {
		t.Errorf("search results = %+v, want 1 hit for s", results)
	}
}
