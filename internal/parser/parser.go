// Package parser reads and writes card files: YAML frontmatter followed
// by a Markdown body with [[id]] wikilinks and inline #tags.
package parser

import (
	"bytes"
	"fmt"
	"regexp"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/starford/cardweb/internal/models"
)

var (
	wikilinkRe = regexp.MustCompile(`\[\[(.*?)\]\]`)
	tagRe      = regexp.MustCompile(`(?:^|\s)#([A-Za-z][A-Za-z0-9_/-]*)`)
)

// LinkType is the reference type given to body wikilinks.
const LinkType models.ReferenceType = "link"

// Frontmatter is the YAML header of a card file.
type Frontmatter struct {
	ID            string                       `yaml:"id,omitempty"`
	Type          models.CardType              `yaml:"type,omitempty"`
	Title         string                       `yaml:"title,omitempty"`
	Slugs         []string                     `yaml:"slugs,omitempty"`
	Author        string                       `yaml:"author,omitempty"`
	Collaborators []string                     `yaml:"collaborators,omitempty"`
	Published     bool                         `yaml:"published,omitempty"`
	Starred       bool                         `yaml:"starred,omitempty"`
	Read          bool                         `yaml:"read,omitempty"`
	ReadingList   bool                         `yaml:"reading_list,omitempty"`
	Tags          []string                     `yaml:"tags,omitempty"`
	Section       string                       `yaml:"section,omitempty"`
	Synonyms      []string                     `yaml:"synonyms,omitempty"`
	Notes         string                       `yaml:"notes,omitempty"`
	Fields        map[string]string            `yaml:"fields,omitempty"`
	References    map[string]map[string]string `yaml:"references,omitempty"`
	Created       time.Time                    `yaml:"created,omitempty"`
	Updated       time.Time                    `yaml:"updated,omitempty"`
}

// Result holds the output of parsing a card file.
type Result struct {
	Frontmatter *Frontmatter
	Body        string
	Links       []string
	Tags        []string
	Title       string
}

// Parse extracts frontmatter, body, wikilinks and tags from raw bytes.
func Parse(data []byte) (*Result, error) {
	fm, body := splitFrontmatter(data)
	return &Result{
		Frontmatter: fm,
		Body:        body,
		Links:       extractLinks(body),
		Tags:        extractTags(body, fm),
		Title:       deriveTitle(fm, body),
	}, nil
}

// splitFrontmatter separates YAML frontmatter (between leading ---
// delimiters) from the body. Missing or invalid frontmatter leaves the
// whole content as body.
func splitFrontmatter(data []byte) (*Frontmatter, string) {
	const delim = "---"
	trimmed := bytes.TrimLeft(data, "\n\r")

	if !bytes.HasPrefix(trimmed, []byte(delim)) {
		return nil, string(data)
	}
	rest := trimmed[len(delim):]
	idx := bytes.Index(rest, []byte("\n"+delim))
	if idx < 0 {
		return nil, string(data)
	}

	yamlBlock := rest[:idx]
	afterDelim := rest[idx+1+len(delim):]
	body := strings.TrimLeft(string(afterDelim), "\n\r")

	var fm Frontmatter
	if err := yaml.Unmarshal(yamlBlock, &fm); err != nil {
		return nil, string(data)
	}
	return &fm, body
}

// extractLinks returns deduplicated wikilink targets. [[Target|Alias]] yields Target.
func extractLinks(body string) []string {
	matches := wikilinkRe.FindAllStringSubmatch(body, -1)
	seen := make(map[string]struct{}, len(matches))
	var out []string
	for _, m := range matches {
		target, _, _ := strings.Cut(m[1], "|")
		target = strings.TrimSpace(target)
		if target == "" {
			continue
		}
		if _, ok := seen[target]; ok {
			continue
		}
		seen[target] = struct{}{}
		out = append(out, target)
	}
	return out
}

// extractTags collects frontmatter tags followed by inline #tags.
func extractTags(body string, fm *Frontmatter) []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(t string) {
		t = strings.TrimSpace(t)
		if t == "" {
			return
		}
		if _, dup := seen[t]; !dup {
			seen[t] = struct{}{}
			out = append(out, t)
		}
	}
	if fm != nil {
		for _, t := range fm.Tags {
			add(t)
		}
	}
	for _, m := range tagRe.FindAllStringSubmatch(body, -1) {
		add(m[1])
	}
	return out
}

// deriveTitle returns the frontmatter title, otherwise the first H1 heading.
func deriveTitle(fm *Frontmatter, body string) string {
	if fm != nil && fm.Title != "" {
		return fm.Title
	}
	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "# ") {
			return strings.TrimSpace(trimmed[2:])
		}
	}
	return ""
}

// Flags are per-user card states stored in the frontmatter.
type Flags struct {
	Starred     bool
	Read        bool
	ReadingList bool
}

// ToCard converts a parsed file into a card. id is used when the
// frontmatter does not name one. Wikilinks become link references unless
// the frontmatter already references the target.
func ToCard(id string, r *Result) (*models.Card, Flags) {
	fm := r.Frontmatter
	if fm == nil {
		fm = &Frontmatter{}
	}
	if fm.ID != "" {
		id = fm.ID
	}
	typ := fm.Type
	if !typ.Valid() {
		typ = models.CardTypeContent
	}

	targets := make(map[string]map[models.ReferenceType]string)
	for target, types := range fm.References {
		for rt, value := range types {
			if targets[target] == nil {
				targets[target] = make(map[models.ReferenceType]string)
			}
			targets[target][models.ReferenceType(rt)] = value
		}
	}
	for _, target := range r.Links {
		if target == id || targets[target] != nil {
			continue
		}
		targets[target] = map[models.ReferenceType]string{LinkType: ""}
	}
	info := make(map[string]bool, len(targets))
	for target := range targets {
		info[target] = true
	}

	card := &models.Card{
		ID:            id,
		Type:          typ,
		Slugs:         fm.Slugs,
		Title:         r.Title,
		Body:          r.Body,
		Notes:         fm.Notes,
		Fields:        fm.Fields,
		Synonyms:      fm.Synonyms,
		Author:        fm.Author,
		Collaborators: fm.Collaborators,
		Section:       fm.Section,
		Tags:          r.Tags,
		Published:     fm.Published,
		References:    models.ReferenceBlock{Targets: targets, Info: info},
		CreatedAt:     fm.Created,
		UpdatedAt:     fm.Updated,
	}
	return card, Flags{Starred: fm.Starred, Read: fm.Read, ReadingList: fm.ReadingList}
}

// Render writes a card back to file form. References that a body
// wikilink already implies are not repeated in the frontmatter.
func Render(c *models.Card, flags Flags) ([]byte, error) {
	implied := make(map[string]bool)
	for _, target := range extractLinks(c.Body) {
		implied[target] = true
	}
	refs := make(map[string]map[string]string)
	for target, types := range c.References.Targets {
		for typ, value := range types {
			if typ == LinkType && value == "" && implied[target] {
				continue
			}
			if refs[target] == nil {
				refs[target] = make(map[string]string)
			}
			refs[target][string(typ)] = value
		}
	}
	inline := extractTags(c.Body, nil)
	var tags []string
	for _, t := range c.Tags {
		if !slices.Contains(inline, t) {
			tags = append(tags, t)
		}
	}

	fm := Frontmatter{
		ID:            c.ID,
		Type:          c.Type,
		Title:         c.Title,
		Slugs:         c.Slugs,
		Author:        c.Author,
		Collaborators: c.Collaborators,
		Published:     c.Published,
		Starred:       flags.Starred,
		Read:          flags.Read,
		ReadingList:   flags.ReadingList,
		Tags:          tags,
		Section:       c.Section,
		Synonyms:      c.Synonyms,
		Notes:         c.Notes,
		Fields:        c.Fields,
		References:    refs,
		Created:       c.CreatedAt,
		Updated:       c.UpdatedAt,
	}
	head, err := yaml.Marshal(&fm)
	if err != nil {
		return nil, fmt.Errorf("parser: render %s: %w", c.ID, err)
	}
	var buf bytes.Buffer
	buf.WriteString("---\n")
	buf.Write(head)
	buf.WriteString("---\n")
	buf.WriteString(c.Body)
	return buf.Bytes(), nil
}
