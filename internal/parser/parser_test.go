package parser

import (
	"strings"
	"testing"

	"github.com/starford/cardweb/internal/models"
)

const sample = `---
id: c-1
type: concept
title: Quantum gravity
slugs: [qg]
author: u1
starred: true
reading_list: true
tags: [physics]
synonyms: [quantum geometry]
references:
  c-7:
    see-also: "related"
created: 2024-01-02T03:04:05Z
---
Links to [[c-9]] and [[c-7|seven]]. #theory
`

func TestParse_FrontmatterAndBody(t *testing.T) {
	r, err := Parse([]byte(sample))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Title != "Quantum gravity" {
		t.Errorf("title = %q, want %q", r.Title, "Quantum gravity")
	}
	if len(r.Tags) != 2 || r.Tags[0] != "physics" || r.Tags[1] != "theory" {
		t.Errorf("tags = %v, want [physics theory]", r.Tags)
	}
	if !strings.HasPrefix(r.Body, "Links to") {
		t.Errorf("body = %q", r.Body)
	}
	if r.Frontmatter.Created.Year() != 2024 {
		t.Errorf("created = %v", r.Frontmatter.Created)
	}
}

func TestParse_NoFrontmatter(t *testing.T) {
	r, err := Parse([]byte("# Just a heading\nSome text.\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Frontmatter != nil {
		t.Errorf("expected nil frontmatter, got %v", r.Frontmatter)
	}
	if r.Title != "Just a heading" {
		t.Errorf("title = %q, want %q", r.Title, "Just a heading")
	}
}

func TestParse_InvalidYAMLFallback(t *testing.T) {
	r, err := Parse([]byte("---\n: invalid: yaml: {{{\n---\nBody\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Frontmatter != nil {
		t.Errorf("expected nil frontmatter on invalid YAML")
	}
}

func TestExtractLinks(t *testing.T) {
	links := extractLinks("See [[c-1]] and [[c-2|alias]].\nAlso [[c-1]] again. [[ ]]")
	if len(links) != 2 {
		t.Fatalf("len(links) = %d, want 2", len(links))
	}
	if links[0] != "c-1" || links[1] != "c-2" {
		t.Errorf("links = %v", links)
	}
}

func TestToCard(t *testing.T) {
	r, _ := Parse([]byte(sample))
	c, flags := ToCard("ignored", r)

	if c.ID != "c-1" {
		t.Errorf("id = %q, want c-1", c.ID)
	}
	if c.Type != models.CardTypeConcept {
		t.Errorf("type = %q", c.Type)
	}
	if !flags.Starred || !flags.ReadingList || flags.Read {
		t.Errorf("flags = %+v", flags)
	}
	if _, ok := c.References.Targets["c-9"][LinkType]; !ok {
		t.Errorf("wikilink c-9 should become a link reference: %v", c.References.Targets)
	}
	if got := c.References.Targets["c-7"]; len(got) != 1 || got["see-also"] != "related" {
		t.Errorf("c-7 references = %v, want only see-also", got)
	}
	if !c.References.Info["c-9"] || !c.References.Info["c-7"] || len(c.References.Info) != 2 {
		t.Errorf("info = %v", c.References.Info)
	}
}

func TestToCard_Defaults(t *testing.T) {
	r, _ := Parse([]byte("---\ntype: nonsense\n---\nSee [[self]]\n"))
	c, _ := ToCard("self", r)
	if c.ID != "self" {
		t.Errorf("id = %q", c.ID)
	}
	if c.Type != models.CardTypeContent {
		t.Errorf("type = %q, want content", c.Type)
	}
	if c.References.Len() != 0 {
		t.Errorf("self links must be dropped: %v", c.References.Targets)
	}
}

func TestRenderRoundTrip(t *testing.T) {
	r, _ := Parse([]byte(sample))
	c, flags := ToCard("c-1", r)

	out, err := Render(c, flags)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if strings.Contains(string(out), "c-9:") {
		t.Errorf("implied wikilink reference should not be written:\n%s", out)
	}

	again, _ := Parse(out)
	c2, flags2 := ToCard("other", again)
	if c2.ID != c.ID || c2.Title != c.Title || c2.Type != c.Type {
		t.Errorf("card changed: %+v", c2)
	}
	if flags2 != flags {
		t.Errorf("flags = %+v, want %+v", flags2, flags)
	}
	if c2.References.Len() != c.References.Len() {
		t.Errorf("references = %v, want %v", c2.References.Targets, c.References.Targets)
	}
	if len(c2.Tags) != len(c.Tags) {
		t.Errorf("tags = %v, want %v", c2.Tags, c.Tags)
	}
}
