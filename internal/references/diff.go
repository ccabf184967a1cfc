package references

import "github.com/starford/cardweb/internal/models"

// Diff is the structured patch between two versions of one card's outbound block.
type Diff struct {
	// Additions holds target/type pairs absent before.
	Additions map[string]map[models.ReferenceType]string `json:"additions,omitempty"`
	// Modifications holds target/type pairs whose annotation changed.
	Modifications map[string]map[models.ReferenceType]string `json:"modifications,omitempty"`
	// LeafDeletions holds removed target/type pairs whose target survives.
	LeafDeletions map[string]map[models.ReferenceType]bool `json:"leaf_deletions,omitempty"`
	// CardDeletions holds targets removed entirely.
	CardDeletions map[string]bool `json:"card_deletions,omitempty"`
}

// Empty reports whether the diff carries no changes.
func (d Diff) Empty() bool {
	return len(d.Additions) == 0 && len(d.Modifications) == 0 &&
		len(d.LeafDeletions) == 0 && len(d.CardDeletions) == 0
}

// DiffBlocks computes the patch that turns before into after.
func DiffBlocks(before, after models.ReferenceBlock) Diff {
	d := Diff{
		Additions:     map[string]map[models.ReferenceType]string{},
		Modifications: map[string]map[models.ReferenceType]string{},
		LeafDeletions: map[string]map[models.ReferenceType]bool{},
		CardDeletions: map[string]bool{},
	}

	for target, types := range after.Targets {
		old := before.Targets[target]
		for typ, value := range types {
			prev, existed := old[typ]
			switch {
			case !existed:
				put(d.Additions, target, typ, value)
			case prev != value:
				put(d.Modifications, target, typ, value)
			}
		}
	}

	for target, types := range before.Targets {
		current, stillThere := after.Targets[target]
		if !stillThere {
			d.CardDeletions[target] = true
			continue
		}
		for typ := range types {
			if _, ok := current[typ]; ok {
				continue
			}
			if d.LeafDeletions[target] == nil {
				d.LeafDeletions[target] = map[models.ReferenceType]bool{}
			}
			d.LeafDeletions[target][typ] = true
		}
	}
	return d
}

// Apply returns a new block equal to b with the diff applied.
func (d Diff) Apply(b models.ReferenceBlock) models.ReferenceBlock {
	out := b.Clone()
	for target, types := range d.Additions {
		for typ, value := range types {
			put(out.Targets, target, typ, value)
		}
	}
	for target, types := range d.Modifications {
		for typ, value := range types {
			put(out.Targets, target, typ, value)
		}
	}
	for target, types := range d.LeafDeletions {
		for typ := range types {
			delete(out.Targets[target], typ)
		}
		if len(out.Targets[target]) == 0 {
			delete(out.Targets, target)
		}
	}
	for target := range d.CardDeletions {
		delete(out.Targets, target)
	}
	return FromTargets(out.Targets)
}

func put(m map[string]map[models.ReferenceType]string, target string, typ models.ReferenceType, value string) {
	if m[target] == nil {
		m[target] = map[models.ReferenceType]string{}
	}
	m[target][typ] = value
}
