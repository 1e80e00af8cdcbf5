package export

import (
	"bufio"
	"encoding/xml"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

type xmlFrame struct {
	tag     string
	array   bool
	item    string // element name repeated for array items
	pending bool   // object start tag not yet closed with '>'
}

type xmlWriter struct {
	w     *bufio.Writer
	root  string
	name  string
	stack []*xmlFrame
}

// NewXMLWriter writes one element per property; array items repeat the
// property's element name. A top-level array is wrapped in root with <item> children.
func NewXMLWriter(w io.Writer, root string) DataWriter {
	if root == "" {
		root = "object"
	}
	return &xmlWriter{w: bufio.NewWriter(w), root: xmlName(root)}
}

func (x *xmlWriter) top() *xmlFrame {
	if len(x.stack) == 0 {
		return nil
	}
	return x.stack[len(x.stack)-1]
}

func (x *xmlWriter) elementName() string {
	f := x.top()
	switch {
	case f == nil:
		return x.root
	case f.array:
		return f.item
	default:
		return x.name
	}
}

func (x *xmlWriter) flushOpen() {
	if f := x.top(); f != nil && f.pending {
		x.w.WriteByte('>')
		f.pending = false
	}
}

func (x *xmlWriter) Name(name string) error {
	x.name = xmlName(name)
	return nil
}

func (x *xmlWriter) Value(v any) error {
	name := x.elementName()
	x.flushOpen()

	var text string
	switch t := v.(type) {
	case string:
		text = t
	case bool:
		text = strconv.FormatBool(t)
	case int64:
		text = strconv.FormatInt(t, 10)
	case uint64:
		text = strconv.FormatUint(t, 10)
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return nil
		}
		text = strconv.FormatFloat(t, 'g', -1, 64)
	default:
		return fmt.Errorf("export: unsupported primitive %T", v)
	}

	fmt.Fprintf(x.w, "<%s>", name)
	if err := xml.EscapeText(x.w, []byte(text)); err != nil {
		return err
	}
	fmt.Fprintf(x.w, "</%s>", name)
	return nil
}

// ValueNull writes nothing; absent elements are null in XML.
func (x *xmlWriter) ValueNull() error {
	return nil
}

func (x *xmlWriter) StartObject() error {
	name := x.elementName()
	x.flushOpen()
	fmt.Fprintf(x.w, "<%s", name)
	x.stack = append(x.stack, &xmlFrame{tag: name, pending: true})
	return nil
}

func (x *xmlWriter) EndObject() error {
	f := x.top()
	if f == nil || f.array {
		return fmt.Errorf("export: EndObject without StartObject")
	}
	x.stack = x.stack[:len(x.stack)-1]
	if f.pending {
		_, err := x.w.WriteString("/>")
		return err
	}
	_, err := fmt.Fprintf(x.w, "</%s>", f.tag)
	return err
}

func (x *xmlWriter) StartArray() error {
	if len(x.stack) == 0 {
		fmt.Fprintf(x.w, "<%s>", x.root)
		x.stack = append(x.stack, &xmlFrame{tag: x.root, array: true, item: "item"})
		return nil
	}
	name := x.elementName()
	x.flushOpen()
	x.stack = append(x.stack, &xmlFrame{array: true, item: name})
	return nil
}

func (x *xmlWriter) EndArray() error {
	f := x.top()
	if f == nil || !f.array {
		return fmt.Errorf("export: EndArray without StartArray")
	}
	x.stack = x.stack[:len(x.stack)-1]
	if f.tag != "" {
		_, err := fmt.Fprintf(x.w, "</%s>", f.tag)
		return err
	}
	return nil
}

func (x *xmlWriter) Type(class string) error {
	f := x.top()
	if f == nil || !f.pending {
		return fmt.Errorf("export: Type must follow StartObject")
	}
	x.w.WriteString(` _class="`)
	if err := xml.EscapeText(x.w, []byte(class)); err != nil {
		return err
	}
	return x.w.WriteByte('"')
}

func (x *xmlWriter) Close() error {
	return x.w.Flush()
}

// xmlName replaces characters that are not valid in an element name.
func xmlName(s string) string {
	if s == "" {
		return "_"
	}
	var b strings.Builder
	for i, r := range s {
		ok := r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
			(i > 0 && (r == '-' || r == '.' || (r >= '0' && r <= '9')))
		if ok {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	return b.String()
}
