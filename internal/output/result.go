package output

import "scmrest/internal/apierr"

type Status string

const (
	StatusSaved    Status = "SAVED"
	StatusRejected Status = "REJECTED"
	StatusError    Status = "ERROR"
)

// SaveResult is the outcome of one file save.
type SaveResult struct {
	Status  Status         `json:"status"`
	Owner   string         `json:"owner"`
	Repo    string         `json:"repo"`
	Path    string         `json:"path"`
	Branch  string         `json:"branch,omitempty"`
	Sha     string         `json:"sha,omitempty"`
	Code    int            `json:"code,omitempty"`
	Message string         `json:"message,omitempty"`
	Errors  []apierr.Error `json:"errors,omitempty"`
}

// Failed builds the result of a save that returned err. 4xx errors are
// rejections, anything else is an error.
func Failed(owner, repo, path, branch string, err error) SaveResult {
	msg := apierr.MessageOf(err)
	status := StatusError
	if msg.Code >= 400 && msg.Code < 500 {
		status = StatusRejected
	}
	return SaveResult{
		Status:  status,
		Owner:   owner,
		Repo:    repo,
		Path:    path,
		Branch:  branch,
		Code:    msg.Code,
		Message: msg.Message,
		Errors:  msg.Errors,
	}
}
