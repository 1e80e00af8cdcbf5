package export

import (
	"fmt"
	"strconv"
	"strings"
)

// Tree is a parsed tree expression such as "jobs[name,builds[number]{0,5}],views[name]".
type Tree struct {
	Children map[string]*Tree
	Range    Range
}

func newTree() *Tree {
	return &Tree{Children: make(map[string]*Tree), Range: All}
}

// NamedPathPruner keeps only the properties named in a Tree.
type NamedPathPruner struct {
	tree *Tree
}

// NewNamedPathPruner parses expr. The grammar is
//
//	tree  := spec (',' spec)*
//	spec  := name ('[' tree ']')? range?
//	range := '{' int? (',' int?)? '}'
func NewNamedPathPruner(expr string) (*NamedPathPruner, error) {
	t, err := ParseTree(expr)
	if err != nil {
		return nil, err
	}
	return &NamedPathPruner{tree: t}, nil
}

func (n *NamedPathPruner) Accept(_ any, p *Property) TreePruner {
	child, ok := n.tree.Children[p.Name]
	if !ok {
		return nil
	}
	return &NamedPathPruner{tree: child}
}

func (n *NamedPathPruner) Range() Range { return n.tree.Range }

func ParseTree(expr string) (*Tree, error) {
	p := &treeParser{s: expr}
	t, err := p.tree()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if p.pos < len(p.s) {
		return nil, p.errorf("unexpected %q", p.s[p.pos])
	}
	return t, nil
}

type treeParser struct {
	s   string
	pos int
}

func (p *treeParser) errorf(format string, args ...any) error {
	return fmt.Errorf("%s at position %d in %q", fmt.Sprintf(format, args...), p.pos, p.s)
}

func (p *treeParser) skipSpace() {
	for p.pos < len(p.s) && p.s[p.pos] == ' ' {
		p.pos++
	}
}

func (p *treeParser) consume(c byte) bool {
	p.skipSpace()
	if p.pos < len(p.s) && p.s[p.pos] == c {
		p.pos++
		return true
	}
	return false
}

func (p *treeParser) peek(c byte) bool {
	p.skipSpace()
	return p.pos < len(p.s) && p.s[p.pos] == c
}

func (p *treeParser) name() string {
	p.skipSpace()
	start := p.pos
	for p.pos < len(p.s) && !strings.ContainsRune(",[]{} ", rune(p.s[p.pos])) {
		p.pos++
	}
	return p.s[start:p.pos]
}

func (p *treeParser) number() (int, bool, error) {
	p.skipSpace()
	start := p.pos
	for p.pos < len(p.s) && p.s[p.pos] >= '0' && p.s[p.pos] <= '9' {
		p.pos++
	}
	if start == p.pos {
		return 0, false, nil
	}
	n, err := strconv.Atoi(p.s[start:p.pos])
	if err != nil {
		return 0, false, p.errorf("invalid number %q", p.s[start:p.pos])
	}
	return n, true, nil
}

func (p *treeParser) tree() (*Tree, error) {
	t := newTree()
	for {
		name := p.name()
		if name == "" {
			return nil, p.errorf("expected property name")
		}

		child := newTree()
		if p.consume('[') {
			sub, err := p.tree()
			if err != nil {
				return nil, err
			}
			if !p.consume(']') {
				return nil, p.errorf("expected ']'")
			}
			child = sub
		}
		if p.peek('{') {
			r, err := p.rangeSpec()
			if err != nil {
				return nil, err
			}
			child.Range = r
		}
		t.Children[name] = child

		if !p.consume(',') {
			return t, nil
		}
	}
}

func (p *treeParser) rangeSpec() (Range, error) {
	if !p.consume('{') {
		return All, p.errorf("expected '{'")
	}
	lo, hasLo, err := p.number()
	if err != nil {
		return All, err
	}

	r := All
	if p.consume(',') {
		hi, hasHi, err := p.number()
		if err != nil {
			return All, err
		}
		if hasLo {
			r.Min = lo
		}
		if hasHi {
			r.Max = hi
		}
		if hasLo && hasHi && hi < lo {
			return All, p.errorf("range end %d is before start %d", hi, lo)
		}
	} else {
		if !hasLo {
			return All, p.errorf("empty range")
		}
		r = Range{Min: lo, Max: lo + 1}
	}

	if !p.consume('}') {
		return All, p.errorf("expected '}'")
	}
	return r, nil
}
