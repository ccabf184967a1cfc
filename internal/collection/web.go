package collection

import "github.com/starford/cardweb/internal/description"

// WebNode is one card in the graph view.
type WebNode struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// WebEdge is a substantive reference between two filtered cards.
type WebEdge struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

// WebInfo is the graph projection of a collection.
type WebInfo struct {
	Nodes []WebNode `json:"nodes"`
	Edges []WebEdge `json:"edges"`
}

// WebInfo returns the graph view, or nil unless the view mode is web.
func (c *Collection) WebInfo() *WebInfo {
	if !IsWeb(c.desc) {
		return nil
	}
	c.webOnce.Do(func() {
		ids := c.FilteredCards()
		in := make(map[string]bool, len(ids))
		for _, id := range ids {
			in[id] = true
		}
		info := &WebInfo{Nodes: make([]WebNode, 0, len(ids)), Edges: []WebEdge{}}
		g := c.env.Snapshot.Graph()
		for _, id := range ids {
			card, _ := g.Card(id)
			info.Nodes = append(info.Nodes, WebNode{ID: id, Title: card.Title})
			for _, target := range g.SubstantiveOutbound(id) {
				if in[target] && target != id {
					info.Edges = append(info.Edges, WebEdge{Source: id, Target: target})
				}
			}
		}
		c.web = info
	})
	return c.web
}

// IsWeb reports whether d asks for the graph view.
func IsWeb(d description.Description) bool {
	return d.ViewMode == "web"
}
