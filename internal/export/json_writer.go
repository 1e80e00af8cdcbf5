package export

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

type jsonWriter struct {
	w         *bufio.Writer
	pretty    bool
	depth     int
	needComma bool
	afterName bool
}

func NewJSONWriter(w io.Writer, pretty bool) DataWriter {
	return &jsonWriter{w: bufio.NewWriter(w), pretty: pretty}
}

func (j *jsonWriter) newline() {
	if !j.pretty {
		return
	}
	j.w.WriteByte('\n')
	j.w.WriteString(strings.Repeat("  ", j.depth))
}

// separate writes what precedes a value or a name at the current level.
func (j *jsonWriter) separate() {
	if j.afterName {
		j.afterName = false
		return
	}
	if j.needComma {
		j.w.WriteByte(',')
	}
	if j.depth > 0 {
		j.newline()
	}
}

func (j *jsonWriter) Name(name string) error {
	j.separate()
	if err := j.quote(name); err != nil {
		return err
	}
	if j.pretty {
		j.w.WriteString(" : ")
	} else {
		j.w.WriteByte(':')
	}
	j.afterName = true
	return nil
}

func (j *jsonWriter) quote(s string) error {
	b, err := json.Marshal(s)
	if err != nil {
		return err
	}
	_, err = j.w.Write(b)
	return err
}

func (j *jsonWriter) Value(v any) error {
	j.separate()
	var err error
	switch t := v.(type) {
	case string:
		err = j.quote(t)
	case bool:
		_, err = j.w.WriteString(strconv.FormatBool(t))
	case int64:
		_, err = j.w.WriteString(strconv.FormatInt(t, 10))
	case uint64:
		_, err = j.w.WriteString(strconv.FormatUint(t, 10))
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			_, err = j.w.WriteString("null")
		} else {
			_, err = j.w.WriteString(strconv.FormatFloat(t, 'g', -1, 64))
		}
	default:
		return fmt.Errorf("export: unsupported primitive %T", v)
	}
	j.needComma = true
	return err
}

func (j *jsonWriter) ValueNull() error {
	j.separate()
	_, err := j.w.WriteString("null")
	j.needComma = true
	return err
}

func (j *jsonWriter) open(c byte) error {
	j.separate()
	err := j.w.WriteByte(c)
	j.depth++
	j.needComma = false
	return err
}

func (j *jsonWriter) close(c byte) error {
	hadElements := j.needComma
	j.depth--
	if hadElements {
		j.newline()
	}
	err := j.w.WriteByte(c)
	j.needComma = true
	return err
}

func (j *jsonWriter) StartArray() error  { return j.open('[') }
func (j *jsonWriter) EndArray() error    { return j.close(']') }
func (j *jsonWriter) StartObject() error { return j.open('{') }
func (j *jsonWriter) EndObject() error   { return j.close('}') }

func (j *jsonWriter) Type(class string) error {
	if err := j.Name("_class"); err != nil {
		return err
	}
	return j.Value(class)
}

func (j *jsonWriter) Close() error {
	return j.w.Flush()
}
