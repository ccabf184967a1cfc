package filter

import "strings"

// UnionSeparator joins the members of a union expression or id list.
const UnionSeparator = "+"

// Expr is a parsed filter expression.
type Expr interface {
	// String returns the path form of the expression.
	String() string
	expr()
}

// Concrete names a membership filter or base set supplied by the snapshot.
type Concrete struct {
	Name string
}

// Inverse is the complement of the named concrete filter Of.
type Inverse struct {
	Name string
	Of   string
}

// Union matches cards in any of the named filters.
type Union struct {
	Names []string
}

// Configurable is a parameterized filter. Args hold raw segments for
// plain filters; Sub holds parsed expressions for nested ones.
type Configurable struct {
	Spec Spec
	Args []string
	Sub  []Expr
}

func (Concrete) expr()     {}
func (Inverse) expr()      {}
func (Union) expr()        {}
func (Configurable) expr() {}

func (c Concrete) String() string { return c.Name }

func (i Inverse) String() string { return i.Name }

func (u Union) String() string { return strings.Join(u.Names, UnionSeparator) }

func (c Configurable) String() string {
	parts := make([]string, 0, 1+len(c.Args)+len(c.Sub))
	parts = append(parts, c.Spec.Name)
	if c.Spec.Nested {
		for _, s := range c.Sub {
			parts = append(parts, s.String())
		}
	} else {
		parts = append(parts, c.Args...)
	}
	return strings.Join(parts, "/")
}

// Arg returns argument i, or "" when absent.
func (c Configurable) Arg(i int) string {
	if i < len(c.Args) {
		return c.Args[i]
	}
	return ""
}

// Parser turns path segments into expressions. Inverse filter names
// are supplied by configuration.
type Parser struct {
	inverses map[string]string
}

// NewParser creates a parser recognizing the given inverse filter names.
func NewParser(inverses map[string]string) *Parser {
	return &Parser{inverses: inverses}
}

// Parse parses every segment into expressions.
func (p *Parser) Parse(segments []string) []Expr {
	exprs, _ := p.ParseUntil(segments, nil)
	return exprs
}

// ParseString parses one slash-separated expression. Trailing segments
// beyond the first complete expression are ignored.
func (p *Parser) ParseString(s string) Expr {
	exprs := p.Parse(splitPath(s))
	if len(exprs) == 0 {
		return Concrete{}
	}
	return exprs[0]
}

// ParseUntil parses expressions until stop reports true for a segment at
// the start of an expression. It returns the expressions and the index of
// the first unconsumed segment. Segments consumed as arguments are never
// passed to stop.
func (p *Parser) ParseUntil(segments []string, stop func(string) bool) ([]Expr, int) {
	st := &state{segs: segments}
	var exprs []Expr
	for {
		seg, ok := st.peek()
		if !ok || (stop != nil && stop(seg)) {
			return exprs, st.pos
		}
		if seg == "" {
			st.pos++
			continue
		}
		exprs = append(exprs, p.parseExpr(st))
	}
}

type state struct {
	segs []string
	pos  int
}

func (s *state) peek() (string, bool) {
	if s.pos >= len(s.segs) {
		return "", false
	}
	return s.segs[s.pos], true
}

func (s *state) read() (string, bool) {
	seg, ok := s.peek()
	if ok {
		s.pos++
	}
	return seg, ok
}

func (p *Parser) parseExpr(st *state) Expr {
	seg, _ := st.read()
	if spec, ok := Lookup(seg); ok {
		c := Configurable{Spec: spec}
		for i := 0; i < spec.Arity; i++ {
			if spec.Nested {
				if _, ok := st.peek(); !ok {
					c.Sub = append(c.Sub, Concrete{})
					continue
				}
				c.Sub = append(c.Sub, p.parseExpr(st))
				continue
			}
			arg, ok := st.read()
			if !ok {
				arg = spec.Defaults[i]
			}
			c.Args = append(c.Args, arg)
		}
		return c
	}
	if strings.Contains(seg, UnionSeparator) {
		return Union{Names: strings.Split(seg, UnionSeparator)}
	}
	if of, ok := p.inverses[seg]; ok {
		return Inverse{Name: seg, Of: of}
	}
	return Concrete{Name: seg}
}

func splitPath(s string) []string {
	return strings.Split(strings.Trim(s, "/"), "/")
}
