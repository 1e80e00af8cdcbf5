package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"scmrest/internal/plugins"
)

// File is the optional YAML configuration of the serve command.
type File struct {
	IssueTrackerURL string           `yaml:"issue_tracker_url"`
	JSONPAllowlist  []string         `yaml:"jsonp_allowlist"`
	Plugins         []plugins.Plugin `yaml:"plugins"`
	SCMs            []SCM            `yaml:"scms"`
}

// SCM declares an additional GitHub-compatible endpoint, e.g. GitHub Enterprise.
type SCM struct {
	ID     string `yaml:"id"`
	APIURL string `yaml:"api_url"`
}

// Load reads and validates the YAML file at path.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := f.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return &f, nil
}

// Validate normalizes SCM entries and rejects duplicates. The "github" id is
// reserved for the built-in github.com endpoint.
func (f *File) Validate() error {
	seen := map[string]bool{"github": true}
	for i := range f.SCMs {
		s := &f.SCMs[i]
		s.ID = strings.TrimSpace(s.ID)
		if s.ID == "" {
			return fmt.Errorf("scms[%d].id is required", i)
		}
		if strings.Contains(s.ID, "/") {
			return fmt.Errorf("scms[%d].id %q must not contain '/'", i, s.ID)
		}
		if seen[s.ID] {
			return fmt.Errorf("scms[%d].id %q is already defined", i, s.ID)
		}
		seen[s.ID] = true

		if strings.TrimSpace(s.APIURL) == "" {
			return fmt.Errorf("scms[%d].api_url is required", i)
		}
		u, err := normalizeAPIURL(s.APIURL)
		if err != nil {
			return fmt.Errorf("scms[%d].api_url: invalid value %s", i, err)
		}
		s.APIURL = u
	}
	f.JSONPAllowlist = splitCommaList(f.JSONPAllowlist)
	return nil
}

// Merge copies the file settings into c. Values already set on c win.
func (c *Config) Merge(f *File) {
	if f == nil {
		return
	}
	if c.Server.IssueTrackerURL == "" {
		c.Server.IssueTrackerURL = f.IssueTrackerURL
	}
	c.Server.JSONPAllowlist = append(c.Server.JSONPAllowlist, f.JSONPAllowlist...)
}
