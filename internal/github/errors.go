package github

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/go-github/v81/github"

	"scmrest/internal/apierr"
)

func isNotFound(resp *github.Response, err error) bool {
	return statusOf(resp, err) == http.StatusNotFound
}

func statusOf(resp *github.Response, err error) int {
	if resp != nil && resp.Response != nil {
		return resp.StatusCode
	}
	var er *github.ErrorResponse
	if errors.As(err, &er) && er.Response != nil {
		return er.Response.StatusCode
	}
	return 0
}

// describe renders err for clients. Request URLs are never included.
func describe(err error) string {
	if err == nil {
		return "unknown error"
	}

	var er *github.ErrorResponse
	if errors.As(err, &er) {
		msg := strings.TrimSpace(er.Message)
		if msg == "" {
			msg = "GitHub API request failed"
		}
		if er.Response != nil {
			return fmt.Sprintf("%d %s", er.Response.StatusCode, msg)
		}
		return msg
	}

	s := strings.TrimSpace(err.Error())
	if scrubbed := scrubRequest(s); scrubbed != "" {
		return scrubbed
	}
	return s
}

// scrubRequest drops the leading "GET https://...: " of go-github errors and
// the `Get "https://..."` of net/http transport errors.
func scrubRequest(s string) string {
	for _, m := range []string{
		"GET ", "HEAD ", "POST ", "PUT ", "PATCH ", "DELETE ",
		"Get ", "Head ", "Post ", "Put ", "Patch ", "Delete ",
	} {
		if !strings.HasPrefix(s, m) {
			continue
		}
		rest := s[len(m):]
		rest = strings.TrimPrefix(rest, "\"")
		if i := strings.Index(rest, ": "); i >= 0 {
			return strings.TrimSpace(rest[i+2:])
		}
		return ""
	}
	return ""
}

// saveFault turns a failure of the save flow into a service error. Service
// errors raised inside the flow pass through.
func saveFault(err error) error {
	if _, ok := apierr.As(err); ok {
		return err
	}
	return apierr.Unexpected(err, "Failed to save file: %s", describe(err))
}
