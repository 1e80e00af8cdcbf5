package export

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"golang.org/x/sync/singleflight"
)

// TagName is the struct tag that marks a field as an exported property.
//
// Grammar: name[,visibility=N][,inline][,skipnull][,merge]
//
//	type Repo struct {
//		Name   string    `export:"name"`
//		Owner  *User     `export:"owner,visibility=2"`
//		Branch func() (string, error) `export:"defaultBranch,skipnull"`
//	}
const TagName = "export"

// DefaultVisibility is the visibility of properties that do not declare one.
const DefaultVisibility = 1

// Property is a single exported property of a Model.
type Property struct {
	Name       string
	Visibility int
	Inline     bool
	SkipNull   bool
	Merge      bool

	// Owner is the struct type that declares the field (may be an embedded type).
	Owner reflect.Type
	// Type is the value type: the field type, or the first result of a computed property.
	Type reflect.Type

	index    []int
	computed bool
}

// Model is the ordered set of exported properties of a struct type.
type Model struct {
	Type       reflect.Type
	Properties []*Property
}

// ModelBuilder builds and caches models per type.
type ModelBuilder struct {
	models sync.Map // reflect.Type -> *Model
	group  singleflight.Group
}

// DefaultModelBuilder is shared by configs that don't carry their own builder.
var DefaultModelBuilder = NewModelBuilder()

func NewModelBuilder() *ModelBuilder {
	return &ModelBuilder{}
}

// Get returns the model for t (pointers are dereferenced). Types without any
// exported property yield a NotExportableError.
func (b *ModelBuilder) Get(t reflect.Type) (*Model, error) {
	if t == nil {
		return nil, fmt.Errorf("export: nil type")
	}
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if m, ok := b.models.Load(t); ok {
		return exportable(m.(*Model))
	}
	if t.Kind() != reflect.Struct {
		return nil, &NotExportableError{Type: t}
	}

	v, err, _ := b.group.Do(t.PkgPath()+"|"+t.String(), func() (interface{}, error) {
		if m, ok := b.models.Load(t); ok {
			return m, nil
		}
		m, err := buildModel(t)
		if err != nil {
			return nil, err
		}
		b.models.Store(t, m)
		return m, nil
	})
	if err != nil {
		return nil, err
	}
	return exportable(v.(*Model))
}

func exportable(m *Model) (*Model, error) {
	if len(m.Properties) == 0 {
		return nil, &NotExportableError{Type: m.Type}
	}
	return m, nil
}

// IsExportedBean reports whether t (or the type it points to) has exported properties.
func (b *ModelBuilder) IsExportedBean(t reflect.Type) bool {
	m, err := b.Get(t)
	return err == nil && m != nil
}

type candidate struct {
	prop  *Property
	depth int
}

func buildModel(t reflect.Type) (*Model, error) {
	var ordered []*candidate
	byName := make(map[string]*candidate)

	var walk func(st reflect.Type, index []int, depth int, seen map[reflect.Type]bool) error
	walk = func(st reflect.Type, index []int, depth int, seen map[reflect.Type]bool) error {
		if seen[st] {
			return nil
		}
		seen[st] = true
		defer delete(seen, st)

		for i := 0; i < st.NumField(); i++ {
			f := st.Field(i)
			idx := append(append([]int(nil), index...), i)
			tag, tagged := f.Tag.Lookup(TagName)

			if f.Anonymous && !tagged {
				et := f.Type
				if et.Kind() == reflect.Pointer {
					et = et.Elem()
				}
				if et.Kind() == reflect.Struct {
					if err := walk(et, idx, depth+1, seen); err != nil {
						return err
					}
				}
				continue
			}
			if !tagged || tag == "-" || !f.IsExported() {
				continue
			}

			p, err := parseTag(tag, f)
			if err != nil {
				return fmt.Errorf("export: %s.%s: %w", st, f.Name, err)
			}
			p.Owner = st
			p.index = idx

			if existing, ok := byName[p.Name]; ok {
				if existing.depth <= depth {
					continue
				}
				existing.prop = p
				existing.depth = depth
				continue
			}
			c := &candidate{prop: p, depth: depth}
			byName[p.Name] = c
			ordered = append(ordered, c)
		}
		return nil
	}

	if err := walk(t, nil, 0, map[reflect.Type]bool{}); err != nil {
		return nil, err
	}

	m := &Model{Type: t, Properties: make([]*Property, 0, len(ordered))}
	for _, c := range ordered {
		m.Properties = append(m.Properties, c.prop)
	}
	return m, nil
}

var errorType = reflect.TypeOf((*error)(nil)).Elem()

func parseTag(tag string, f reflect.StructField) (*Property, error) {
	parts := strings.Split(tag, ",")
	p := &Property{
		Name:       strings.TrimSpace(parts[0]),
		Visibility: DefaultVisibility,
		Type:       f.Type,
	}
	if p.Name == "" {
		p.Name = lowerFirst(f.Name)
	}

	for _, opt := range parts[1:] {
		opt = strings.TrimSpace(opt)
		key, val, hasVal := strings.Cut(opt, "=")
		switch key {
		case "":
		case "inline":
			p.Inline = true
		case "skipnull":
			p.SkipNull = true
		case "merge":
			p.Merge = true
		case "visibility":
			if !hasVal {
				return nil, fmt.Errorf("visibility requires a value")
			}
			n, err := strconv.Atoi(val)
			if err != nil {
				return nil, fmt.Errorf("invalid visibility %q", val)
			}
			p.Visibility = n
		default:
			return nil, fmt.Errorf("unknown tag option %q", opt)
		}
	}

	if f.Type.Kind() == reflect.Func {
		ft := f.Type
		switch {
		case ft.NumIn() == 0 && ft.NumOut() == 1:
		case ft.NumIn() == 0 && ft.NumOut() == 2 && ft.Out(1) == errorType:
		default:
			return nil, fmt.Errorf("computed property must be func() T or func() (T, error), got %s", ft)
		}
		p.computed = true
		p.Type = ft.Out(0)
	}
	return p, nil
}

func lowerFirst(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToLower(r)) + s[size:]
}

// GetValue reads the property from model. Computed properties are evaluated;
// their error and any panic are returned as an error.
func (p *Property) GetValue(model any) (v any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("export: reading %s: panic: %v", p.Name, r)
			v = nil
		}
	}()

	rv := reflect.ValueOf(model)
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return nil, fmt.Errorf("export: reading %s: nil model", p.Name)
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil, fmt.Errorf("export: reading %s: model is %s, not a struct", p.Name, rv.Kind())
	}

	fv, err := rv.FieldByIndexErr(p.index)
	if err != nil {
		return nil, fmt.Errorf("export: reading %s: %w", p.Name, err)
	}

	if p.computed {
		if fv.IsNil() {
			return nil, nil
		}
		out := fv.Call(nil)
		if len(out) == 2 && !out[1].IsNil() {
			return nil, out[1].Interface().(error)
		}
		fv = out[0]
	}
	return valueOf(fv), nil
}

// valueOf unwraps v to an interface, mapping nil pointers, maps, slices,
// funcs and interfaces to an untyped nil.
func valueOf(v reflect.Value) any {
	if !v.IsValid() {
		return nil
	}
	switch v.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		if v.IsNil() {
			return nil
		}
	}
	return v.Interface()
}
