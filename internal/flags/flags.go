package flags

// Package flags defines canonical CLI flag names shared across commands.
// IMPORTANT: These are flag *names* without leading dashes.
// Example usage:
//
//	cmd.Flags().StringVar(&cfg.Save.Owner, flags.FlagOwner, "", "...")
//	arg := "--" + flags.FlagOwner
const (
	// Server
	FlagAddr   = "addr"
	FlagConfig = "config"
	FlagDB     = "db"

	// GitHub
	FlagGitHubAPIURL = "github-api-url"

	// Save
	FlagOwner        = "owner"
	FlagRepo         = "repo"
	FlagPath         = "path"
	FlagBranch       = "branch"
	FlagMessage      = "message"
	FlagFile         = "file"
	FlagSha          = "sha"
	FlagNoAutoBranch = "no-auto-branch"

	// Output
	FlagFormat = "format"

	// Runtime
	FlagTimeout = "timeout"
	FlagVerbose = "verbose"
)
