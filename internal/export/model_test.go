package export

import (
	"reflect"
	"strings"
	"sync"
	"testing"
)

type named struct {
	Name string `export:"name"`
}

type sized struct {
	named
	Size  int    `export:"size,visibility=3"`
	Notes string `export:""`
	Skip  string `export:"-"`
	plain string
}

type shadowing struct {
	named
	Name string `export:"name,inline"`
}

func TestModelBuilder_PromotesEmbeddedAndParsesTags(t *testing.T) {
	m, err := NewModelBuilder().Get(reflect.TypeOf(&sized{}))
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if m.Type != reflect.TypeOf(sized{}) {
		t.Fatalf("Type = %v, want sized", m.Type)
	}

	var names []string
	for _, p := range m.Properties {
		names = append(names, p.Name)
	}
	if got := strings.Join(names, ","); got != "name,size,notes" {
		t.Fatalf("properties = %q, want name,size,notes", got)
	}
	if m.Properties[0].Owner != reflect.TypeOf(named{}) {
		t.Errorf("name owner = %v, want named", m.Properties[0].Owner)
	}
	if m.Properties[1].Visibility != 3 {
		t.Errorf("size visibility = %d, want 3", m.Properties[1].Visibility)
	}
	if m.Properties[2].Visibility != DefaultVisibility {
		t.Errorf("notes visibility = %d, want default", m.Properties[2].Visibility)
	}
}

func TestModelBuilder_OuterFieldShadowsEmbedded(t *testing.T) {
	m, err := NewModelBuilder().Get(reflect.TypeOf(shadowing{}))
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(m.Properties) != 1 {
		t.Fatalf("expected 1 property, got %d", len(m.Properties))
	}
	if !m.Properties[0].Inline || m.Properties[0].Owner != reflect.TypeOf(shadowing{}) {
		t.Fatalf("expected the outer inline property to win, got %+v", m.Properties[0])
	}
}

func TestModelBuilder_Errors(t *testing.T) {
	type badOption struct {
		A string `export:"a,sideways"`
	}
	type badVisibility struct {
		A string `export:"a,visibility=high"`
	}
	type badFunc struct {
		A func(int) string `export:"a"`
	}
	type untagged struct {
		A string
	}

	b := NewModelBuilder()
	for _, tc := range []struct {
		name string
		typ  reflect.Type
		want string
	}{
		{"unknown option", reflect.TypeOf(badOption{}), `unknown tag option "sideways"`},
		{"bad visibility", reflect.TypeOf(badVisibility{}), `invalid visibility "high"`},
		{"bad func", reflect.TypeOf(badFunc{}), "computed property must be"},
		{"no properties", reflect.TypeOf(untagged{}), "has no exported properties"},
		{"not a struct", reflect.TypeOf(42), "int has no exported properties"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := b.Get(tc.typ)
			if err == nil {
				t.Fatalf("expected error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("error = %q, want substring %q", err, tc.want)
			}
		})
	}

	if b.IsExportedBean(reflect.TypeOf(untagged{})) {
		t.Errorf("untagged struct must not be an exported bean")
	}
	if !b.IsExportedBean(reflect.TypeOf(&named{})) {
		t.Errorf("named must be an exported bean")
	}
}

func TestModelBuilder_ConcurrentGetReturnsSameModel(t *testing.T) {
	b := NewModelBuilder()
	const n = 16
	models := make([]*Model, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			m, err := b.Get(reflect.TypeOf(sized{}))
			if err != nil {
				t.Errorf("Get: %v", err)
				return
			}
			models[i] = m
		}(i)
	}
	wg.Wait()
	for i := 1; i < n; i++ {
		if models[i] != models[0] {
			t.Fatalf("model %d differs from model 0", i)
		}
	}
}

func TestProperty_GetValue(t *testing.T) {
	type withPtr struct {
		*named
		Count func() (int, error) `export:"count"`
	}

	m, err := NewModelBuilder().Get(reflect.TypeOf(withPtr{}))
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	nameProp, countProp := m.Properties[0], m.Properties[1]

	if _, err := nameProp.GetValue(&withPtr{}); err == nil {
		t.Errorf("expected error reading through nil embedded pointer")
	}
	v, err := nameProp.GetValue(withPtr{named: &named{Name: "x"}})
	if err != nil || v != "x" {
		t.Errorf("GetValue = %v, %v; want x", v, err)
	}

	v, err = countProp.GetValue(withPtr{})
	if err != nil || v != nil {
		t.Errorf("nil computed property = %v, %v; want nil, nil", v, err)
	}
	v, err = countProp.GetValue(withPtr{Count: func() (int, error) { return 7, nil }})
	if err != nil || v != 7 {
		t.Errorf("computed property = %v, %v; want 7", v, err)
	}
	_, err = countProp.GetValue(withPtr{Count: func() (int, error) { panic("kaboom") }})
	if err == nil || !strings.Contains(err.Error(), "kaboom") {
		t.Errorf("expected recovered panic, got %v", err)
	}
	if _, err := countProp.GetValue((*withPtr)(nil)); err == nil {
		t.Errorf("expected error for nil model")
	}
}
