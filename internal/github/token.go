package github

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"strings"
	"time"
)

type AuthTokenSource string

const (
	AuthTokenSourceExplicit   AuthTokenSource = "explicit"
	AuthTokenSourceEnv        AuthTokenSource = "env:GITHUB_TOKEN"
	AuthTokenSourceEnterprise AuthTokenSource = "env:GH_ENTERPRISE_TOKEN"
	AuthTokenSourceGitHubCL   AuthTokenSource = "gh"
)

// ResolveAuthToken resolves a token for github.com. See ResolveAuthTokenForHost.
func ResolveAuthToken(ctx context.Context, provided string) (string, AuthTokenSource, error) {
	return ResolveAuthTokenForHost(ctx, provided, "github.com")
}

// ResolveAuthTokenForHost resolves an access token for host.
//
// Precedence:
//  1. provided (if non-empty)
//  2. GITHUB_TOKEN for github.com, GH_ENTERPRISE_TOKEN for other hosts
//  3. GitHub CLI: `gh auth token -h <host>`
//
// An empty token with a nil error means none was found. The token is never printed.
func ResolveAuthTokenForHost(ctx context.Context, provided, host string) (token string, source AuthTokenSource, err error) {
	if tok := strings.TrimSpace(provided); tok != "" {
		return tok, AuthTokenSourceExplicit, nil
	}

	host = strings.TrimSpace(host)
	if host == "" {
		host = "github.com"
	}
	envName, envSource := "GITHUB_TOKEN", AuthTokenSourceEnv
	if host != "github.com" {
		envName, envSource = "GH_ENTERPRISE_TOKEN", AuthTokenSourceEnterprise
	}
	if env := strings.TrimSpace(os.Getenv(envName)); env != "" {
		return env, envSource, nil
	}

	tok, ok, err := tokenFromGitHubCLI(ctx, host)
	if err != nil {
		return "", "", err
	}
	if ok {
		return tok, AuthTokenSourceGitHubCL, nil
	}
	return "", "", nil
}

func tokenFromGitHubCLI(ctx context.Context, host string) (token string, ok bool, err error) {
	if _, lookErr := exec.LookPath("gh"); lookErr != nil {
		return "", false, nil
	}

	// Bounded so a broken gh credential helper can't hang a save.
	cmdCtx := ctx
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		cmdCtx, cancel = context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
	}

	cmd := exec.CommandContext(cmdCtx, "gh", "auth", "token", "-h", host)
	env := make([]string, 0, len(os.Environ())+1)
	for _, entry := range os.Environ() {
		if !strings.HasPrefix(entry, "GH_PAGER=") {
			env = append(env, entry)
		}
	}
	cmd.Env = append(env, "GH_PAGER=cat")

	out, runErr := cmd.Output()
	if runErr != nil {
		if cmdCtx.Err() != nil {
			return "", false, cmdCtx.Err()
		}
		// Not logged in (or any other gh failure) means no token. gh's output
		// is not surfaced to avoid leaking credential helper details.
		return "", false, nil
	}

	tok := strings.TrimSpace(string(out))
	if tok == "" {
		return "", false, nil
	}
	if strings.ContainsAny(tok, " \t\n\r") {
		return "", false, errors.New("invalid token returned by gh: contains whitespace")
	}
	return tok, true, nil
}
