package github

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/go-github/v81/github"

	"scmrest/internal/apierr"
)

// SaveFileRequest is the body of a content save: {"content": {...}}.
type SaveFileRequest struct {
	Content *Content `json:"content"`
}

// Save writes the request's content to owner/repo. Empty owner or repo fall
// back to the content's own. A named branch that does not exist is created
// from the head of the default branch unless AutoCreateBranch is false.
func (r *SaveFileRequest) Save(ctx context.Context, c *Client, owner, repo string) (*File, error) {
	if r == nil || r.Content == nil {
		return nil, apierr.BadRequestWithErrors("Failed to save file to scm", apierr.Error{
			Field:   "content",
			Code:    apierr.CodeMissing,
			Message: "content is required parameter",
		})
	}
	content := r.Content
	errs := content.Validate()

	if strings.TrimSpace(owner) == "" {
		owner = strings.TrimSpace(content.Owner)
	}
	if strings.TrimSpace(repo) == "" {
		repo = strings.TrimSpace(content.Repo)
	}
	if owner == "" {
		errs = append(errs, apierr.Error{
			Field:   "content.owner",
			Code:    apierr.CodeMissing,
			Message: "No scm owner found, please provide content.owner parameter",
		})
	}
	if repo == "" {
		errs = append(errs, apierr.Error{
			Field:   "content.repo",
			Code:    apierr.CodeMissing,
			Message: "No scm repo found, please provide content.repo parameter",
		})
	}
	if len(errs) > 0 {
		return nil, apierr.BadRequestWithErrors("Failed to save content", errs...)
	}

	file, err := save(ctx, c, owner, repo, content)
	if err != nil {
		return nil, saveFault(err)
	}
	return file, nil
}

func save(ctx context.Context, c *Client, owner, repo string, content *Content) (*File, error) {
	if c == nil || c.Client == nil {
		return nil, fmt.Errorf("github client is nil")
	}
	data, err := content.Data()
	if err != nil {
		return nil, err
	}

	sha := strings.TrimSpace(content.Sha)
	branch := strings.TrimSpace(content.Branch)
	if branch != "" && (content.AutoCreateBranch == nil || *content.AutoCreateBranch) {
		created, err := ensureBranch(ctx, c, owner, repo, branch)
		if err != nil {
			return nil, err
		}
		if created {
			found, err := existingSha(ctx, c, owner, repo, content.Path, branch)
			if err != nil {
				return nil, err
			}
			if found != "" {
				if sha != "" && sha != found {
					return nil, apierr.BadRequest("sha in request: %s is different from sha of file %s in branch %s",
						sha, content.Path, branch)
				}
				sha = found
			}
		}
	}

	opts := &github.RepositoryContentFileOptions{
		Message: github.Ptr(content.Message),
		Content: data,
	}
	if branch != "" {
		opts.Branch = github.Ptr(branch)
	}
	if sha != "" {
		opts.SHA = github.Ptr(sha)
	}

	var resp *github.RepositoryContentResponse
	if sha == "" {
		resp, _, err = c.Client.Repositories.CreateFile(ctx, owner, repo, content.Path, opts)
	} else {
		resp, _, err = c.Client.Repositories.UpdateFile(ctx, owner, repo, content.Path, opts)
	}
	if err != nil {
		return nil, err
	}
	if resp == nil {
		return nil, apierr.Unexpected(nil, "Failed to save file to Github: %s", content.Path)
	}
	if resp.Content == nil {
		return nil, apierr.Unexpected(nil, "Failed to save file: %s", content.Path)
	}

	return &File{Content: &Content{
		Sha:   resp.Content.GetSHA(),
		Name:  resp.Content.GetName(),
		Path:  resp.Content.GetPath(),
		Owner: owner,
		Repo:  repo,
	}}, nil
}

// ensureBranch creates branch from the default branch's head when it does
// not exist. It reports whether the branch was created.
func ensureBranch(ctx context.Context, c *Client, owner, repo, branch string) (bool, error) {
	_, resp, err := getBranch(ctx, c, owner, repo, branch)
	if err == nil {
		return false, nil
	}
	if !isNotFound(resp, err) {
		return false, err
	}

	r, _, err := c.Client.Repositories.Get(ctx, owner, repo)
	if err != nil {
		return false, err
	}
	base, _, err := getBranch(ctx, c, owner, repo, r.GetDefaultBranch())
	if err != nil {
		return false, err
	}
	head := base.GetCommit().GetSHA()
	if head == "" {
		return false, fmt.Errorf("default branch %s of %s/%s has no head commit", r.GetDefaultBranch(), owner, repo)
	}

	if err := createRef(ctx, c, owner, repo, "refs/heads/"+branch, head); err != nil {
		return false, err
	}
	return true, nil
}

func getBranch(ctx context.Context, c *Client, owner, repo, branch string) (*github.Branch, *github.Response, error) {
	u := fmt.Sprintf("repos/%s/%s/branches/%s", url.PathEscape(owner), url.PathEscape(repo), url.PathEscape(branch))
	req, err := c.Client.NewRequest(http.MethodGet, u, nil)
	if err != nil {
		return nil, nil, err
	}
	b := new(github.Branch)
	resp, err := c.Client.Do(ctx, req, b)
	if err != nil {
		return nil, resp, err
	}
	return b, resp, nil
}

func createRef(ctx context.Context, c *Client, owner, repo, ref, sha string) error {
	u := fmt.Sprintf("repos/%s/%s/git/refs", url.PathEscape(owner), url.PathEscape(repo))
	req, err := c.Client.NewRequest(http.MethodPost, u, map[string]string{"ref": ref, "sha": sha})
	if err != nil {
		return err
	}
	_, err = c.Client.Do(ctx, req, nil)
	return err
}

// existingSha returns the blob sha of path on branch, or "" when there is no such file.
func existingSha(ctx context.Context, c *Client, owner, repo, path, branch string) (string, error) {
	file, _, resp, err := c.Client.Repositories.GetContents(ctx, owner, repo, path, &github.RepositoryContentGetOptions{Ref: branch})
	if err != nil {
		if isNotFound(resp, err) {
			return "", nil
		}
		return "", err
	}
	if file == nil {
		return "", nil
	}
	return file.GetSHA(), nil
}
