package scm

import (
	"net/url"
	"strconv"
	"strings"

	"scmrest/internal/apierr"
)

const (
	DefaultPageLimit = 100
	MaxPageLimit     = 1000
)

// Page is a window of a list: Limit items starting at Start.
type Page struct {
	Start int
	Limit int
}

// ParsePage reads "start" and "limit". Limits above MaxPageLimit are capped.
func ParsePage(q url.Values) (Page, error) {
	p := Page{Start: 0, Limit: DefaultPageLimit}

	start, err := intParam(q, "start", p.Start)
	if err != nil {
		return p, err
	}
	limit, err := intParam(q, "limit", p.Limit)
	if err != nil {
		return p, err
	}
	p.Start = start
	p.Limit = min(limit, MaxPageLimit)
	return p, nil
}

func intParam(q url.Values, name string, def int) (int, error) {
	raw := strings.TrimSpace(q.Get(name))
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, apierr.BadRequestWithErrors("Invalid paging parameter "+name, apierr.Error{
			Field:   name,
			Code:    apierr.CodeInvalid,
			Message: name + " must be a non-negative number",
		})
	}
	return n, nil
}

// Window returns the bounds of the page within a list of n items.
func (p Page) Window(n int) (from, to int) {
	from = min(max(p.Start, 0), n)
	to = n
	if p.Limit >= 0 {
		to = min(from+p.Limit, n)
	}
	return from, to
}
