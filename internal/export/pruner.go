package export

// TreePruner decides which properties are written. Accept returns the pruner
// for the property's value, or nil to leave the property out.
type TreePruner interface {
	Accept(node any, p *Property) TreePruner
	Range() Range
}

// Range selects the elements of a collection. Max < 0 means unbounded.
type Range struct {
	Min int
	Max int
}

// All selects every element.
var All = Range{Min: 0, Max: -1}

func (r Range) Contains(i int) bool {
	if i < r.Min {
		return false
	}
	return r.Max < 0 || i < r.Max
}

// ByDepth shows properties whose visibility is at least n; every nested
// level requires one more, except through inline properties.
type ByDepth int

func (d ByDepth) Accept(_ any, p *Property) TreePruner {
	if p.Visibility < int(d) {
		return nil
	}
	if p.Inline {
		return d
	}
	return d + 1
}

func (d ByDepth) Range() Range { return All }
