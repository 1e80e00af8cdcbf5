package export

import (
	"io"
	"net/http"
	"net/url"
	"reflect"
	"strconv"
	"strings"

	"github.com/klauspost/compress/gzip"

	"scmrest/internal/apierr"
)

// PrunerFromQuery selects the pruner for a request: "tree" wins over "depth".
// Depth 0 shows the bean's own properties; each extra level reveals one more
// level of nested properties.
func PrunerFromQuery(q url.Values) (TreePruner, error) {
	if q.Has("tree") {
		p, err := NewNamedPathPruner(q.Get("tree"))
		if err != nil {
			return nil, apierr.BadRequest("Malformed tree expression: %v", err)
		}
		return p, nil
	}

	depth := 0
	if q.Has("depth") {
		n, err := strconv.Atoi(strings.TrimSpace(q.Get("depth")))
		if err != nil {
			return nil, apierr.BadRequest("Depth parameter must be a number")
		}
		depth = n
	}
	return ByDepth(1 - depth), nil
}

// Serve writes bean to w in cfg's flavor. Pruning comes from the request's
// query; JSON output is wrapped in the "jsonp" callback when one is given.
// Nothing is written when an error is returned.
func Serve(w http.ResponseWriter, r *http.Request, bean any, cfg *Config) error {
	if cfg == nil {
		cfg = NewConfig()
	}
	q := r.URL.Query()

	pruner, err := PrunerFromQuery(q)
	if err != nil {
		return err
	}
	doc, err := build(bean, pruner, cfg)
	if err != nil {
		return err
	}

	w.Header().Set("Content-Type", cfg.Flavor.ContentType())

	var out io.Writer = w
	if acceptsGzip(r) {
		w.Header().Set("Content-Encoding", "gzip")
		w.Header().Add("Vary", "Accept-Encoding")
		gz := gzip.NewWriter(w)
		defer gz.Close()
		out = gz
	}

	pad := cfg.Flavor != XML && q.Has("jsonp")
	if pad {
		if _, err := io.WriteString(out, q.Get("jsonp")+"("); err != nil {
			return err
		}
	}

	dw := cfg.Flavor.NewDataWriter(out, rootName(bean), cfg)
	if err := render(dw, doc); err != nil {
		return err
	}
	if err := dw.Close(); err != nil {
		return err
	}

	if pad {
		if _, err := io.WriteString(out, ")"); err != nil {
			return err
		}
	}
	return nil
}

func acceptsGzip(r *http.Request) bool {
	for _, part := range strings.Split(r.Header.Get("Accept-Encoding"), ",") {
		enc, _, _ := strings.Cut(strings.TrimSpace(part), ";")
		if strings.EqualFold(strings.TrimSpace(enc), "gzip") {
			return true
		}
	}
	return false
}

func rootName(bean any) string {
	t := derefType(reflect.TypeOf(bean))
	if t == nil {
		return "null"
	}
	if t.Kind() == reflect.Slice || t.Kind() == reflect.Array {
		return "list"
	}
	return lowerFirst(t.Name())
}
