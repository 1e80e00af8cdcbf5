package export

import (
	"fmt"
	"net/url"
	"reflect"
	"sort"
	"time"
)

type nodeKind int

const (
	nullNode nodeKind = iota
	primitiveNode
	arrayNode
	objectNode
)

// node is the fully resolved document. It is built before anything is
// written so a failing property never leaves partial output behind.
type node struct {
	kind   nodeKind
	value  any
	class  string
	fields []field
	items  []*node
}

type field struct {
	name  string
	value *node
}

var (
	timeType     = reflect.TypeOf(time.Time{})
	urlType      = reflect.TypeOf(url.URL{})
	stringerType = reflect.TypeOf((*fmt.Stringer)(nil)).Elem()
)

type treeBuilder struct {
	cfg    *Config
	models *ModelBuilder
}

// Write exports bean through pruner into dw. A slice or array bean is
// written as an array of beans.
func Write(dw DataWriter, bean any, pruner TreePruner, cfg *Config) error {
	n, err := build(bean, pruner, cfg)
	if err != nil {
		return err
	}
	if err := render(dw, n); err != nil {
		return err
	}
	return dw.Close()
}

func build(bean any, pruner TreePruner, cfg *Config) (*node, error) {
	if cfg == nil {
		cfg = NewConfig()
	}
	if pruner == nil {
		pruner = ByDepth(1)
	}
	b := &treeBuilder{cfg: cfg, models: cfg.models()}

	rv, ok := indirect(reflect.ValueOf(bean))
	if !ok {
		return &node{kind: nullNode}, nil
	}
	if (rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array) && rv.Type().Elem().Kind() != reflect.Uint8 {
		arr := &node{kind: arrayNode}
		for i := 0; i < rv.Len(); i++ {
			item, err := b.topBean(rv.Index(i).Interface(), pruner)
			if err != nil {
				return nil, err
			}
			arr.items = append(arr.items, item)
		}
		return arr, nil
	}
	return b.topBean(bean, pruner)
}

func (b *treeBuilder) topBean(bean any, pruner TreePruner) (*node, error) {
	if bean == nil {
		return &node{kind: nullNode}, nil
	}
	m, err := b.models.Get(reflect.TypeOf(bean))
	if err != nil {
		return nil, err
	}
	return b.bean(bean, m, pruner)
}

func (b *treeBuilder) bean(obj any, m *Model, pruner TreePruner) (*node, error) {
	n := &node{kind: objectNode}
	if b.cfg.ClassAttribute {
		n.class = ClassName(obj)
	}
	if err := b.properties(n, obj, m, pruner); err != nil {
		return nil, err
	}
	return n, nil
}

func (b *treeBuilder) properties(n *node, obj any, m *Model, pruner TreePruner) error {
	for _, p := range m.Properties {
		if err := b.property(n, obj, p, pruner); err != nil {
			if b.cfg.SkipIfFail {
				continue
			}
			return fmt.Errorf("export: %s.%s: %w", m.Type, p.Name, err)
		}
	}
	return nil
}

func (b *treeBuilder) property(n *node, obj any, p *Property, pruner TreePruner) error {
	child := pruner.Accept(obj, p)
	if child == nil {
		return nil
	}

	d, err := b.cfg.interceptor().GetValue(p, obj, b.cfg)
	if err != nil {
		return err
	}
	if d == Skip {
		return nil
	}
	if isNil(d) {
		d = nil
	}
	if d == nil && p.SkipNull {
		return nil
	}

	if p.Merge && d != nil {
		nested, err := b.models.Get(reflect.TypeOf(d))
		if err != nil {
			return err
		}
		return b.properties(n, d, nested, pruner)
	}

	v, err := b.value(d, child)
	if err != nil {
		var ne *NotExportableError
		if asNotExportable(err, &ne) && ne.ModelType == nil {
			ne.ModelType = derefType(reflect.TypeOf(obj))
			ne.Property = p.Name
		}
		return err
	}
	n.fields = append(n.fields, field{name: p.Name, value: v})
	return nil
}

func asNotExportable(err error, target **NotExportableError) bool {
	ne, ok := err.(*NotExportableError)
	if ok {
		*target = ne
	}
	return ok
}

func (b *treeBuilder) value(v any, pruner TreePruner) (*node, error) {
	if isNil(v) {
		return &node{kind: nullNode}, nil
	}
	if c, ok := v.(CustomExportedBean); ok {
		return b.value(c.ToExportedObject(), pruner)
	}

	rv, ok := indirect(reflect.ValueOf(v))
	if !ok {
		return &node{kind: nullNode}, nil
	}
	t := rv.Type()

	switch t {
	case timeType:
		return primitive(rv.Interface().(time.Time).UnixMilli()), nil
	case urlType:
		u := rv.Interface().(url.URL)
		return primitive(u.String()), nil
	}
	if s, ok := enumString(rv); ok {
		return primitive(s), nil
	}

	switch t.Kind() {
	case reflect.Bool:
		return primitive(rv.Bool()), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return primitive(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return primitive(rv.Uint()), nil
	case reflect.Float32, reflect.Float64:
		return primitive(rv.Float()), nil
	case reflect.String:
		return primitive(rv.String()), nil
	case reflect.Slice, reflect.Array:
		arr := &node{kind: arrayNode}
		r := pruner.Range()
		for i := 0; i < rv.Len(); i++ {
			if !r.Contains(i) {
				continue
			}
			item, err := b.value(rv.Index(i).Interface(), pruner)
			if err != nil {
				return nil, err
			}
			arr.items = append(arr.items, item)
		}
		return arr, nil
	case reflect.Map:
		return b.mapValue(rv, pruner)
	case reflect.Struct:
		m, err := b.models.Get(t)
		if err != nil {
			return nil, err
		}
		return b.bean(v, m, pruner)
	}
	return nil, &NotExportableError{Type: t}
}

func (b *treeBuilder) mapValue(rv reflect.Value, pruner TreePruner) (*node, error) {
	type entry struct {
		key string
		val reflect.Value
	}
	entries := make([]entry, 0, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		entries = append(entries, entry{key: fmt.Sprint(iter.Key().Interface()), val: iter.Value()})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].key < entries[j].key })

	obj := &node{kind: objectNode}
	r := pruner.Range()
	for i, e := range entries {
		if !r.Contains(i) {
			continue
		}
		v, err := b.value(e.val.Interface(), pruner)
		if err != nil {
			return nil, err
		}
		obj.fields = append(obj.fields, field{name: e.key, value: v})
	}
	return obj, nil
}

func primitive(v any) *node {
	return &node{kind: primitiveNode, value: v}
}

func render(dw DataWriter, n *node) error {
	switch n.kind {
	case nullNode:
		return dw.ValueNull()
	case primitiveNode:
		return dw.Value(n.value)
	case arrayNode:
		if err := dw.StartArray(); err != nil {
			return err
		}
		for _, item := range n.items {
			if err := render(dw, item); err != nil {
				return err
			}
		}
		return dw.EndArray()
	case objectNode:
		if err := dw.StartObject(); err != nil {
			return err
		}
		if n.class != "" {
			if err := dw.Type(n.class); err != nil {
				return err
			}
		}
		for _, f := range n.fields {
			if err := dw.Name(f.name); err != nil {
				return err
			}
			if err := render(dw, f.value); err != nil {
				return err
			}
		}
		return dw.EndObject()
	}
	return fmt.Errorf("export: unknown node kind %d", n.kind)
}

// ClassName is the "_class" value for v: ExportClassName when implemented,
// otherwise the package-qualified type name.
func ClassName(v any) string {
	if c, ok := v.(ClassNamer); ok {
		return c.ExportClassName()
	}
	t := derefType(reflect.TypeOf(v))
	if t == nil {
		return ""
	}
	if t.PkgPath() == "" {
		return t.String()
	}
	return t.PkgPath() + "." + t.Name()
}

// IsPassthrough reports whether v is written as-is without a model: strings,
// primitives, URLs, times, enums, slices, arrays and maps.
func IsPassthrough(v any) bool {
	rv, ok := indirect(reflect.ValueOf(v))
	if !ok {
		return true
	}
	t := rv.Type()
	if t == timeType || t == urlType {
		return true
	}
	if _, ok := enumString(rv); ok {
		return true
	}
	switch t.Kind() {
	case reflect.Bool, reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64,
		reflect.Slice, reflect.Array, reflect.Map:
		return true
	}
	return false
}

// enumString returns the String() of named non-struct types implementing fmt.Stringer.
func enumString(rv reflect.Value) (string, bool) {
	t := rv.Type()
	if t.PkgPath() == "" {
		return "", false
	}
	switch t.Kind() {
	case reflect.Bool, reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
	default:
		return "", false
	}
	if t.Implements(stringerType) {
		return rv.Interface().(fmt.Stringer).String(), true
	}
	if reflect.PointerTo(t).Implements(stringerType) {
		p := reflect.New(t)
		p.Elem().Set(rv)
		return p.Interface().(fmt.Stringer).String(), true
	}
	return "", false
}

func derefType(t reflect.Type) reflect.Type {
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t
}

func indirect(v reflect.Value) (reflect.Value, bool) {
	for v.IsValid() && (v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface) {
		if v.IsNil() {
			return v, false
		}
		v = v.Elem()
	}
	return v, v.IsValid()
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}
