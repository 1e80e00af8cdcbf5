package export

import (
	"bytes"
	"errors"
	"fmt"
	"net/url"
	"reflect"
	"strings"
	"testing"
	"time"
)

type user struct {
	Login string `export:"login"`
	Email string `export:"email,visibility=2"`
}

type repo struct {
	Name    string         `export:"name"`
	Private bool           `export:"private"`
	Stars   int            `export:"stars"`
	Owner   *user          `export:"owner"`
	Topics  []string       `export:"topics"`
	Labels  map[string]int `export:"labels,skipnull"`
	Ignored string
}

func sampleRepo() *repo {
	return &repo{
		Name:    "r",
		Private: true,
		Stars:   3,
		Owner:   &user{Login: "octo", Email: "o@x"},
		Topics:  []string{"a", "b"},
	}
}

func writeJSON(t *testing.T, bean any, pruner TreePruner, cfg *Config) string {
	t.Helper()
	var buf bytes.Buffer
	if err := Write(NewJSONWriter(&buf, cfg != nil && cfg.PrettyPrint), bean, pruner, cfg); err != nil {
		t.Fatalf("Write: %v", err)
	}
	return buf.String()
}

func TestWrite_JSONByDepth(t *testing.T) {
	for _, tc := range []struct {
		name   string
		pruner TreePruner
		want   string
	}{
		{
			name:   "depth 0",
			pruner: ByDepth(1),
			want:   `{"name":"r","private":true,"stars":3,"owner":{"email":"o@x"},"topics":["a","b"]}`,
		},
		{
			name:   "depth 1",
			pruner: ByDepth(0),
			want:   `{"name":"r","private":true,"stars":3,"owner":{"login":"octo","email":"o@x"},"topics":["a","b"]}`,
		},
		{
			name:   "nil pruner defaults to depth 0",
			pruner: nil,
			want:   `{"name":"r","private":true,"stars":3,"owner":{"email":"o@x"},"topics":["a","b"]}`,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			if got := writeJSON(t, sampleRepo(), tc.pruner, NewConfig()); got != tc.want {
				t.Fatalf("got  %s\nwant %s", got, tc.want)
			}
		})
	}
}

func TestWrite_NamedPathPruner(t *testing.T) {
	p, err := NewNamedPathPruner("topics{1},owner[login],name")
	if err != nil {
		t.Fatalf("NewNamedPathPruner: %v", err)
	}
	want := `{"name":"r","owner":{"login":"octo"},"topics":["b"]}`
	if got := writeJSON(t, sampleRepo(), p, NewConfig()); got != want {
		t.Fatalf("got  %s\nwant %s", got, want)
	}
}

func TestWrite_ClassAttribute(t *testing.T) {
	cfg := NewConfig()
	cfg.ClassAttribute = true
	want := `{"_class":"scmrest/internal/export.named","name":"n"}`
	if got := writeJSON(t, &named{Name: "n"}, nil, cfg); got != want {
		t.Fatalf("got  %s\nwant %s", got, want)
	}
}

type renamed struct {
	Name string `export:"name"`
}

func (renamed) ExportClassName() string { return "io.scm.Renamed" }

func TestClassName(t *testing.T) {
	if got := ClassName(renamed{}); got != "io.scm.Renamed" {
		t.Errorf("ClassName(renamed) = %q", got)
	}
	if got := ClassName(&user{}); got != "scmrest/internal/export.user" {
		t.Errorf("ClassName(*user) = %q", got)
	}
	if got := ClassName(nil); got != "" {
		t.Errorf("ClassName(nil) = %q", got)
	}
}

func TestWrite_Pretty(t *testing.T) {
	type point struct {
		A int   `export:"a"`
		B []int `export:"b"`
	}
	cfg := NewConfig()
	cfg.PrettyPrint = true
	want := "{\n  \"a\" : 1,\n  \"b\" : [\n    1,\n    2\n  ]\n}"
	if got := writeJSON(t, point{A: 1, B: []int{1, 2}}, nil, cfg); got != want {
		t.Fatalf("got  %q\nwant %q", got, want)
	}
}

func TestWrite_NullsAndEmptyObjects(t *testing.T) {
	type maybe struct {
		P *named `export:"p,skipnull"`
	}
	type nullable struct {
		P *named `export:"p"`
	}
	if got := writeJSON(t, maybe{}, nil, NewConfig()); got != `{}` {
		t.Errorf("skipnull: got %s", got)
	}
	if got := writeJSON(t, nullable{}, nil, NewConfig()); got != `{"p":null}` {
		t.Errorf("null: got %s", got)
	}
	pretty := NewConfig()
	pretty.PrettyPrint = true
	if got := writeJSON(t, maybe{}, nil, pretty); got != `{}` {
		t.Errorf("pretty empty: got %q", got)
	}
	if got := writeJSON(t, nil, nil, NewConfig()); got != `null` {
		t.Errorf("nil bean: got %s", got)
	}
}

type base struct {
	ID string `export:"id"`
}

type wrapper struct {
	Kind  string `export:"kind"`
	Extra *base  `export:"extra,merge"`
	Meta  *user  `export:"meta,inline"`
}

func TestWrite_MergeAndInline(t *testing.T) {
	w := wrapper{Kind: "k", Extra: &base{ID: "x"}, Meta: &user{Login: "octo", Email: "o@x"}}
	want := `{"kind":"k","id":"x","meta":{"login":"octo","email":"o@x"}}`
	if got := writeJSON(t, w, nil, NewConfig()); got != want {
		t.Fatalf("got  %s\nwant %s", got, want)
	}
}

type probe struct {
	OK   func() string       `export:"ok"`
	Bad  func() (int, error) `export:"bad"`
	Boom func() string       `export:"boom"`
}

func newProbe() probe {
	return probe{
		OK:   func() string { return "fine" },
		Bad:  func() (int, error) { return 0, errors.New("broken") },
		Boom: func() string { panic("boom") },
	}
}

func TestWrite_FailingProperties(t *testing.T) {
	var buf bytes.Buffer
	err := Write(NewJSONWriter(&buf, false), newProbe(), nil, NewConfig())
	if err == nil || !strings.Contains(err.Error(), "bad") || !strings.Contains(err.Error(), "broken") {
		t.Fatalf("expected error naming the failing property, got %v", err)
	}
	if buf.Len() != 0 {
		t.Fatalf("nothing should be written on failure, got %q", buf.String())
	}

	cfg := NewConfig()
	cfg.SkipIfFail = true
	if got := writeJSON(t, newProbe(), nil, cfg); got != `{"ok":"fine"}` {
		t.Fatalf("SkipIfFail: got %s", got)
	}
}

type version struct{ major, minor int }

func (v version) ToExportedObject() any { return fmt.Sprintf("%d.%d", v.major, v.minor) }

type color int

const (
	red color = iota
	green
)

func (c color) String() string {
	switch c {
	case red:
		return "red"
	case green:
		return "green"
	}
	return "unknown"
}

type misc struct {
	When    time.Time         `export:"when"`
	Color   color             `export:"color"`
	Link    url.URL           `export:"link"`
	Attrs   map[string]string `export:"attrs"`
	Ratio   float64           `export:"ratio"`
	Version version           `export:"version"`
}

func TestWrite_SpecialValues(t *testing.T) {
	m := misc{
		When:    time.UnixMilli(1700000000123),
		Color:   green,
		Link:    url.URL{Scheme: "https", Host: "example.com", Path: "/x"},
		Attrs:   map[string]string{"b": "2", "a": "1"},
		Ratio:   0.5,
		Version: version{major: 1, minor: 2},
	}
	want := `{"when":1700000000123,"color":"green","link":"https://example.com/x","attrs":{"a":"1","b":"2"},"ratio":0.5,"version":"1.2"}`
	if got := writeJSON(t, m, nil, NewConfig()); got != want {
		t.Fatalf("got  %s\nwant %s", got, want)
	}

	p, err := NewNamedPathPruner("attrs{1}")
	if err != nil {
		t.Fatal(err)
	}
	if got := writeJSON(t, m, p, NewConfig()); got != `{"attrs":{"b":"2"}}` {
		t.Fatalf("map range: got %s", got)
	}
}

func TestWrite_TopLevelSlice(t *testing.T) {
	users := []*user{{Login: "a", Email: "a@x"}, {Login: "b", Email: "b@x"}}
	want := `[{"login":"a","email":"a@x"},{"login":"b","email":"b@x"}]`
	if got := writeJSON(t, users, nil, NewConfig()); got != want {
		t.Fatalf("got  %s\nwant %s", got, want)
	}
}

type opaque struct{ x int }

type holder struct {
	O opaque `export:"o"`
}

type chanHolder struct {
	C chan int `export:"c"`
}

func TestWrite_NotExportable(t *testing.T) {
	var buf bytes.Buffer
	err := Write(NewJSONWriter(&buf, false), holder{O: opaque{x: 1}}, nil, NewConfig())
	var ne *NotExportableError
	if !errors.As(err, &ne) {
		t.Fatalf("expected NotExportableError, got %v", err)
	}
	if ne.Type != reflect.TypeOf(opaque{}) || ne.ModelType != reflect.TypeOf(holder{}) || ne.Property != "o" {
		t.Fatalf("unexpected error fields: %+v", ne)
	}
	if !strings.Contains(ne.Error(), "cannot write export.holder.o") {
		t.Fatalf("unexpected message: %s", ne.Error())
	}

	err = Write(NewJSONWriter(&buf, false), chanHolder{C: make(chan int)}, nil, NewConfig())
	if !errors.As(err, &ne) || ne.Type.Kind() != reflect.Chan {
		t.Fatalf("expected NotExportableError for chan, got %v", err)
	}

	if _, err := build(opaque{}, nil, NewConfig()); err == nil {
		t.Fatalf("a top-level bean without a model must fail")
	}
}

func TestWrite_Interceptor(t *testing.T) {
	cfg := NewConfig()
	cfg.Interceptor = InterceptorFunc(func(p *Property, model any, cfg *Config) (any, error) {
		if p.Name == "email" {
			return Skip, nil
		}
		v, err := p.GetValue(model)
		if s, ok := v.(string); ok {
			return strings.ToUpper(s), err
		}
		return v, err
	})
	if got := writeJSON(t, &user{Login: "octo", Email: "o@x"}, nil, cfg); got != `{"login":"OCTO"}` {
		t.Fatalf("got %s", got)
	}
}

func TestWrite_XML(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(NewXMLWriter(&buf, "repo"), sampleRepo(), nil, NewConfig()); err != nil {
		t.Fatalf("Write: %v", err)
	}
	want := `<repo><name>r</name><private>true</private><stars>3</stars><owner><email>o@x</email></owner><topics>a</topics><topics>b</topics></repo>`
	if got := buf.String(); got != want {
		t.Fatalf("got  %s\nwant %s", got, want)
	}

	buf.Reset()
	cfg := NewConfig()
	cfg.ClassAttribute = true
	if err := Write(NewXMLWriter(&buf, "named"), &named{Name: "a<&>b"}, nil, cfg); err != nil {
		t.Fatalf("Write: %v", err)
	}
	want = `<named _class="scmrest/internal/export.named"><name>a&lt;&amp;&gt;b</name></named>`
	if got := buf.String(); got != want {
		t.Fatalf("got  %s\nwant %s", got, want)
	}

	buf.Reset()
	if err := Write(NewXMLWriter(&buf, "list"), []named{{Name: "a"}, {Name: "b"}}, nil, NewConfig()); err != nil {
		t.Fatalf("Write: %v", err)
	}
	want = `<list><item><name>a</name></item><item><name>b</name></item></list>`
	if got := buf.String(); got != want {
		t.Fatalf("got  %s\nwant %s", got, want)
	}

	buf.Reset()
	if err := Write(NewXMLWriter(&buf, "repo"), sampleRepo(), ByDepth(3), NewConfig()); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if got := buf.String(); got != `<repo/>` {
		t.Fatalf("empty object: got %s", got)
	}
}

func TestIsPassthrough(t *testing.T) {
	for _, tc := range []struct {
		v    any
		want bool
	}{
		{"s", true},
		{3, true},
		{green, true},
		{time.Now(), true},
		{[]int{1}, true},
		{map[string]int{}, true},
		{nil, true},
		{user{}, false},
		{&user{}, false},
	} {
		if got := IsPassthrough(tc.v); got != tc.want {
			t.Errorf("IsPassthrough(%#v) = %v, want %v", tc.v, got, tc.want)
		}
	}
}
