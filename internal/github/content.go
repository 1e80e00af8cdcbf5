package github

import (
	"encoding/base64"
	"strings"

	"scmrest/internal/apierr"
)

// Content describes a file to write to a repository. Base64Data holds the
// standard base64 encoding of the file.
type Content struct {
	Owner            string `json:"owner,omitempty" export:"owner"`
	Repo             string `json:"repo,omitempty" export:"repo"`
	Branch           string `json:"branch,omitempty"`
	Path             string `json:"path" export:"path"`
	Sha              string `json:"sha,omitempty" export:"sha"`
	Name             string `json:"name,omitempty" export:"name"`
	Message          string `json:"message"`
	Base64Data       string `json:"base64Data"`
	AutoCreateBranch *bool  `json:"autoCreateBranch,omitempty"`
}

// Validate reports missing or malformed fields.
func (c *Content) Validate() []apierr.Error {
	var errs []apierr.Error
	if strings.TrimSpace(c.Path) == "" {
		errs = append(errs, apierr.Error{Field: "content.path", Code: apierr.CodeMissing, Message: "path is required"})
	}
	if strings.TrimSpace(c.Message) == "" {
		errs = append(errs, apierr.Error{Field: "content.message", Code: apierr.CodeMissing, Message: "message is required"})
	}
	switch {
	case c.Base64Data == "":
		errs = append(errs, apierr.Error{Field: "content.base64Data", Code: apierr.CodeMissing, Message: "base64Data is required"})
	default:
		if _, err := c.Data(); err != nil {
			errs = append(errs, apierr.Error{Field: "content.base64Data", Code: apierr.CodeInvalid, Message: "base64Data is not valid base64"})
		}
	}
	return errs
}

// Data decodes Base64Data. Line breaks are ignored.
func (c *Content) Data() ([]byte, error) {
	s := strings.NewReplacer("\n", "", "\r", "").Replace(c.Base64Data)
	return base64.StdEncoding.DecodeString(s)
}

// File is the result of a save.
type File struct {
	Content *Content `export:"content,inline"`
}

func (File) ExportClassName() string { return "io.scmrest.github.GithubFile" }
