package rest

import (
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"scmrest/internal/apierr"
	"scmrest/internal/export"
)

const (
	HeaderVersion = "X-Scmrest-Version"
	HeaderSession = "X-Scmrest-Session"
)

// Exporter serves beans for the REST API.
type Exporter struct {
	Version     string
	Session     string
	Requesters  []SecureRequester
	Interceptor export.Interceptor

	// ClassAttribute writes "_class" on every exported object.
	ClassAttribute bool
	Models         *export.ModelBuilder
}

// NewExporter returns an exporter with a fresh session id.
func NewExporter(version string, interceptor export.Interceptor, requesters ...SecureRequester) *Exporter {
	if interceptor == nil {
		interceptor = export.DefaultInterceptor{}
	}
	return &Exporter{
		Version:        version,
		Session:        uuid.NewString(),
		Requesters:     requesters,
		Interceptor:    interceptor,
		ClassAttribute: true,
	}
}

// DoJSON writes bean as JSON, JSONP or XML. JSONP is refused with 403 unless
// a SecureRequester permits the request. Nothing is written when an error is
// returned; the caller renders it.
func (e *Exporter) DoJSON(w http.ResponseWriter, r *http.Request, bean any) error {
	q := r.URL.Query()
	jsonp := q.Has("jsonp")
	if jsonp && !e.permit(r, bean) {
		return apierr.Forbidden("jsonp forbidden; implement SecureRequester")
	}

	w.Header().Set(HeaderVersion, e.Version)
	w.Header().Set(HeaderSession, e.Session)

	cfg := export.NewConfig()
	cfg.Interceptor = e.Interceptor
	cfg.PrettyPrint = q.Has("pretty")
	cfg.ClassAttribute = e.ClassAttribute
	cfg.Models = e.Models
	switch {
	case jsonp:
		cfg.Flavor = export.JSONP
	case prefersXML(r.Header.Get("Accept")):
		cfg.Flavor = export.XML
	default:
		cfg.Flavor = export.JSON
	}
	return export.Serve(w, r, bean, cfg)
}

func (e *Exporter) permit(r *http.Request, bean any) bool {
	for _, req := range e.Requesters {
		if req != nil && req.Permit(r, bean) {
			return true
		}
	}
	return false
}

// prefersXML reports whether the Accept header ranks XML above JSON.
// Wildcards count for neither.
func prefersXML(accept string) bool {
	if accept == "" {
		return false
	}
	var xmlQ, jsonQ float64
	for _, part := range strings.Split(accept, ",") {
		mt, params, err := mime.ParseMediaType(strings.TrimSpace(part))
		if err != nil {
			continue
		}
		q := 1.0
		if s, ok := params["q"]; ok {
			if v, err := strconv.ParseFloat(s, 64); err == nil {
				q = v
			}
		}
		switch mt {
		case "application/xml", "text/xml":
			xmlQ = max(xmlQ, q)
		case "application/json", "application/javascript":
			jsonQ = max(jsonQ, q)
		}
	}
	return xmlQ > 0 && xmlQ > jsonQ
}
