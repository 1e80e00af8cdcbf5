package cli

import (
	goflag "flag"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"k8s.io/klog/v2"

	"scmrest/internal/config"
	"scmrest/internal/flags"
)

var (
	buildVersion = "dev"
	buildCommit  = "unknown"
	buildDate    = "unknown"
)

var cfg = config.New()

var rootCmd = &cobra.Command{
	Use:   "scmrest",
	Short: "Serve SCM resources over a pruned JSON/XML REST API and save files to GitHub",
	Long: `scmrest exposes source control providers (GitHub and GitHub Enterprise) through
a REST API whose responses can be pruned by depth or by a tree expression, and
rendered as JSON, JSONP or XML.

Examples:
	# Show available commands and global flags
	scmrest --help

	# Serve the REST API
	scmrest serve --addr :8080 --db scmrest.db

	# Save a local file to a repository
	scmrest save --owner acme --repo site --path docs/index.md --file index.md --message "Update docs"

	# Print build info
	scmrest version

Logging:
	Server logs go through klog; raise verbosity with -v=2 to log every request.`,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&cfg.Runtime.Verbose, flags.FlagVerbose, false, "Enable verbose logging (prints every GitHub API call)")

	fs := goflag.NewFlagSet("klog", goflag.ContinueOnError)
	klog.InitFlags(fs)
	rootCmd.PersistentFlags().AddGoFlagSet(fs)
}

func SetBuildInfo(version, commit, date string) {
	if version != "" {
		buildVersion = version
	}
	if commit != "" {
		buildCommit = commit
	}
	if date != "" {
		buildDate = date
	}

	rootCmd.Version = fmt.Sprintf("%s (%s) %s", buildVersion, buildCommit, buildDate)
	rootCmd.SetVersionTemplate("{{.Version}}\n")
}

func BuildInfo() (version, commit, date string) {
	return buildVersion, buildCommit, buildDate
}

func Execute() {
	defer klog.Flush()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		klog.Flush()
		os.Exit(1)
	}
}
