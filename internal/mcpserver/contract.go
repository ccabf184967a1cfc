package mcpserver

// CardFormatContract describes the card file format that LLM clients
// should follow when creating or editing cards.
const CardFormatContract = `# Card Format Contract

Every card is one Markdown file in the vault named ` + "`" + `<id>.md` + "`" + `.

## Structure

` + "```" + `markdown
---
id: 01j9z3k4m5n6p7q8r9s0t1v2w3     # REQUIRED for new cards; the file stem otherwise
type: content                      # content | section-head | concept | quote | working-notes
title: Human-readable title        # REQUIRED
slugs: [short-name]                # OPTIONAL - alternate ids usable in URLs
section: physics                   # OPTIONAL - cards without a section stay out of the default set
tags: [tag-one, tag-two]           # OPTIONAL
synonyms: [other name]             # OPTIONAL - concept cards only; extra surface forms
starred: false                     # user flags: starred, read, reading_list
references:                        # OPTIONAL - typed references not implied by the body
  other-card-id:
    see-also: ""
    concept: ""
---

Body text in Markdown.

Use [[other-card-id]] to link another card; each becomes a ` + "`" + `link` + "`" + ` reference.
Inline #tags in the body are merged into tags.
` + "```" + `

## Rules

1. **Frontmatter comes first.** The ` + "`" + `---` + "`" + ` fence must open the file.
2. **Ids are lowercase.** Use the ` + "`" + `create_card` + "`" + ` tool to get a generated id.
3. **Reference types:** link, dupe-of, ack, see-also, citation, concept, example-of,
   synonym, opposite-of.
4. **Concept-class references** (concept, example-of, synonym, opposite-of) must target
   a card of type ` + "`" + `concept` + "`" + `.
5. **No self references.** A card never references itself.
6. **Encoding** is UTF-8 with a trailing newline.

## Example

` + "```" + `markdown
---
id: gravity-waves
title: Gravity waves
section: physics
tags: [waves]
references:
  gravity:
    concept: ""
---

Ripples in spacetime predicted by [[general-relativity]].
` + "```" + `
`
