package rest

import (
	"net/http"
	"net/url"
	"path"
	"strings"
)

// SecureRequester permits JSONP responses for requests it trusts.
type SecureRequester interface {
	Permit(r *http.Request, bean any) bool
}

// SecureRequesterFunc adapts a function to SecureRequester.
type SecureRequesterFunc func(r *http.Request, bean any) bool

func (f SecureRequesterFunc) Permit(r *http.Request, bean any) bool { return f(r, bean) }

// AllowlistRequester permits requests whose Origin (or, without one, Referer)
// host matches an entry. Entries are host names or path.Match patterns such
// as "*.example.com", compared case-insensitively.
type AllowlistRequester struct {
	Hosts []string
}

func NewAllowlistRequester(hosts []string) *AllowlistRequester {
	a := &AllowlistRequester{}
	for _, h := range hosts {
		h = strings.ToLower(strings.TrimSpace(h))
		if h != "" {
			a.Hosts = append(a.Hosts, h)
		}
	}
	return a
}

func (a *AllowlistRequester) Permit(r *http.Request, _ any) bool {
	if a == nil || r == nil || len(a.Hosts) == 0 {
		return false
	}
	host := headerHost(r.Header.Get("Origin"))
	if host == "" {
		host = headerHost(r.Header.Get("Referer"))
	}
	if host == "" {
		return false
	}
	for _, pattern := range a.Hosts {
		if pattern == host {
			return true
		}
		if ok, err := path.Match(pattern, host); err == nil && ok {
			return true
		}
	}
	return false
}

func headerHost(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "null" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}
