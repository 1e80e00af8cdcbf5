package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

type Config struct {
	// MAINTAINER NOTE: If you add/change/remove config fields, keep the CLI
	// flags in internal/cli/serve.go and internal/cli/save.go in sync.
	Server  Server
	GitHub  GitHub
	Save    Save
	Output  Output
	Runtime Runtime
}

type Server struct {
	// Addr is the listen address of the REST server (see --addr).
	Addr string

	// ConfigFile is an optional YAML file with plugins, SCMs and the JSONP
	// allowlist (see --config).
	ConfigFile string

	// DB is the SQLite credential database path (see --db).
	// ":memory:" keeps credentials for the lifetime of the process.
	DB string

	// IssueTrackerURL is named in logs when an action property fails.
	IssueTrackerURL string

	// JSONPAllowlist holds hosts allowed to request JSONP, as exact names or
	// path.Match patterns. Comma-separated values are accepted.
	JSONPAllowlist []string
}

type GitHub struct {
	// APIURL is the GitHub REST API base URL (see --github-api-url).
	// Empty means https://api.github.com/.
	APIURL string

	// Token overrides token resolution for the save command.
	Token string
}

type Save struct {
	Owner   string
	Repo    string
	Path    string
	Branch  string
	Message string

	// File is the local file to upload; "-" reads stdin.
	File string

	// Sha is the blob sha of the file being replaced (see --sha).
	Sha string

	// NoAutoBranch fails instead of creating a missing branch from the
	// repository's default branch.
	NoAutoBranch bool
}

type Output struct {
	// Format controls save command output (see --format).
	// Allowed values: text, json.
	Format string
}

type Runtime struct {
	// Timeout bounds each command run, and each HTTP request in serve (see --timeout).
	// Must be > 0.
	Timeout time.Duration

	// Verbose traces GitHub API calls to stderr.
	Verbose bool
}

func New() *Config {
	return &Config{
		Server: Server{
			Addr: ":8080",
			DB:   "scmrest.db",
		},
		Output: Output{
			Format: "text",
		},
		Runtime: Runtime{
			Timeout: 2 * time.Minute,
		},
	}
}

// Validate normalizes and checks the settings shared by every command.
func (c *Config) Validate() error {
	c.Server.JSONPAllowlist = splitCommaList(c.Server.JSONPAllowlist)
	c.Server.Addr = strings.TrimSpace(c.Server.Addr)
	c.Server.DB = strings.TrimSpace(c.Server.DB)

	if c.GitHub.APIURL != "" {
		u, err := normalizeAPIURL(c.GitHub.APIURL)
		if err != nil {
			return fmt.Errorf("invalid --github-api-url value: %w", err)
		}
		c.GitHub.APIURL = u
	}

	c.Output.Format = normalizeEnumValue(c.Output.Format)
	if c.Output.Format == "" {
		c.Output.Format = "text"
	}
	if c.Output.Format != "text" && c.Output.Format != "json" {
		return fmt.Errorf("unsupported --format: %s (must be one of: text, json)", c.Output.Format)
	}

	if c.Runtime.Timeout <= 0 {
		return errors.New("--timeout must be > 0")
	}
	return nil
}

// ValidateServe checks the settings the serve command needs.
func (c *Config) ValidateServe() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.Server.Addr == "" {
		return errors.New("--addr must not be empty")
	}
	if c.Server.DB == "" {
		return errors.New("--db must not be empty")
	}
	return nil
}

// ValidateSave checks the settings the save command needs.
func (c *Config) ValidateSave() error {
	if err := c.Validate(); err != nil {
		return err
	}
	s := &c.Save
	s.Owner = strings.TrimSpace(s.Owner)
	s.Repo = strings.TrimSpace(s.Repo)
	s.Path = strings.TrimLeft(strings.TrimSpace(s.Path), "/")
	s.Branch = strings.TrimSpace(s.Branch)
	s.Sha = strings.TrimSpace(s.Sha)

	// Accept --repo OWNER/REPO when --owner is omitted.
	if s.Owner == "" {
		if owner, repo, ok := strings.Cut(s.Repo, "/"); ok {
			s.Owner, s.Repo = owner, repo
		}
	}

	var missing []string
	if s.Owner == "" {
		missing = append(missing, "--owner")
	}
	if s.Repo == "" {
		missing = append(missing, "--repo")
	}
	if s.Path == "" {
		missing = append(missing, "--path")
	}
	if strings.TrimSpace(s.Message) == "" {
		missing = append(missing, "--message")
	}
	if s.File == "" {
		missing = append(missing, "--file")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required flags: %s", strings.Join(missing, ", "))
	}
	if strings.Contains(s.Repo, "/") {
		return fmt.Errorf("invalid --repo value %q: expected a repository name", s.Repo)
	}
	return nil
}

func normalizeEnumValue(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

// normalizeAPIURL requires an absolute http(s) URL and ensures a trailing slash.
func normalizeAPIURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return "", fmt.Errorf("%q", raw)
	}
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	return u.String(), nil
}

func splitCommaList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			p := strings.TrimSpace(part)
			if p == "" {
				continue
			}
			out = append(out, p)
		}
	}
	return out
}
