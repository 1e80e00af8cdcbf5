package cli

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"github.com/google/go-github/v81/github"
	"github.com/spf13/cobra"

	"scmrest/internal/apierr"
	"scmrest/internal/config"
	"scmrest/internal/flags"
	gh "scmrest/internal/github"
	"scmrest/internal/output"
)

// Exit codes of the save command.
const (
	exitOK       = 0
	exitRejected = 2
	exitFatal    = 3
)

var saveCmd = &cobra.Command{
	Use:   "save",
	Short: "Save a local file to a GitHub repository",
	Long: `Create or update one file in a GitHub repository.

When --branch names a branch that does not exist, it is created from the head
of the repository's default branch (disable with --no-auto-branch). When the
branch was just created and the file already exists on it, the existing blob
sha is used; a different --sha is rejected.

Authentication:
	The token is taken from GITHUB_TOKEN (GH_ENTERPRISE_TOKEN for
	--github-api-url hosts other than github.com), then from the GitHub CLI
	(gh auth token). The token needs the repo scope.

Exit codes:
	0 = file saved
	2 = request rejected (missing content fields, sha mismatch)
	3 = fatal error (bad flags, no token, GitHub API failure)

Examples:
	scmrest save --owner acme --repo site --path docs/index.md --file index.md --message "Update docs"
	cat notes.md | scmrest save --repo acme/site --path notes.md --file - --branch drafts --message "Add notes"
`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		if cmd.Flags().NFlag() == 0 {
			_ = cmd.Help()
			return
		}
		os.Exit(runSave(cmd.Context(), cfg, cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr()))
	},
}

// runSave performs the save described by cfg and returns the process exit code.
func runSave(ctx context.Context, cfg *config.Config, stdin io.Reader, stdout, stderr io.Writer) int {
	if err := cfg.ValidateSave(); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitFatal
	}
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, cfg.Runtime.Timeout)
	defer cancel()

	data, err := readSource(cfg.Save.File, stdin)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitFatal
	}

	apiURL := cfg.GitHub.APIURL
	if apiURL == "" {
		apiURL = gh.DefaultAPIURL
	}
	token, _, err := gh.ResolveAuthTokenForHost(ctx, cfg.GitHub.Token, gh.APIHost(apiURL))
	if err != nil {
		fmt.Fprintf(stderr, "Error: failed to resolve GitHub auth token: %v\n", err)
		return exitFatal
	}
	if strings.TrimSpace(token) == "" {
		fmt.Fprintln(stderr, "Error: GitHub auth token is required (set GITHUB_TOKEN or run 'gh auth login')")
		return exitFatal
	}

	client, err := gh.NewClient(ctx, token, gh.WithBaseURL(apiURL), gh.WithVerbose(cfg.Runtime.Verbose, stderr))
	if err != nil {
		fmt.Fprintf(stderr, "Error: failed to create GitHub client: %v\n", err)
		return exitFatal
	}

	s := cfg.Save
	req := &gh.SaveFileRequest{Content: &gh.Content{
		Path:             s.Path,
		Name:             path.Base(s.Path),
		Branch:           s.Branch,
		Sha:              s.Sha,
		Message:          s.Message,
		Base64Data:       base64.StdEncoding.EncodeToString(data),
		AutoCreateBranch: github.Ptr(!s.NoAutoBranch),
	}}

	sink := output.NewConsoleSink(stdout, cfg.Output.Format)
	file, err := req.Save(ctx, client, s.Owner, s.Repo)
	if err != nil {
		res := output.Failed(s.Owner, s.Repo, s.Path, s.Branch, err)
		if werr := sink.Write(res); werr != nil {
			fmt.Fprintf(stderr, "Error: %v\n", werr)
		}
		code := exitCodeFor(err)
		if code == exitFatal && cfg.Runtime.Verbose {
			fmt.Fprintf(stderr, "Error: %v\n", err)
		}
		return code
	}

	res := output.SaveResult{
		Status: output.StatusSaved,
		Owner:  s.Owner,
		Repo:   s.Repo,
		Path:   file.Content.Path,
		Branch: s.Branch,
		Sha:    file.Content.Sha,
	}
	if res.Path == "" {
		res.Path = s.Path
	}
	if err := sink.Write(res); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitFatal
	}
	return exitOK
}

// readSource reads name, or stdin when name is "-".
func readSource(name string, stdin io.Reader) ([]byte, error) {
	if name == "-" {
		if stdin == nil {
			return nil, fmt.Errorf("no stdin to read from")
		}
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("reading stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("reading --%s: %w", flags.FlagFile, err)
	}
	return data, nil
}

// exitCodeFor maps a save error to the command's exit code.
func exitCodeFor(err error) int {
	if err == nil {
		return exitOK
	}
	if st := apierr.StatusOf(err); st >= 400 && st < 500 {
		return exitRejected
	}
	return exitFatal
}

func init() {
	rootCmd.AddCommand(saveCmd)

	saveCmd.Flags().StringVar(&cfg.Save.Owner, flags.FlagOwner, "", "Repository owner (or pass OWNER/REPO to --repo)")
	saveCmd.Flags().StringVar(&cfg.Save.Repo, flags.FlagRepo, "", "Repository name")
	saveCmd.Flags().StringVar(&cfg.Save.Path, flags.FlagPath, "", "Path of the file in the repository")
	saveCmd.Flags().StringVar(&cfg.Save.Branch, flags.FlagBranch, "", "Target branch (default: the repository's default branch)")
	saveCmd.Flags().StringVar(&cfg.Save.Message, flags.FlagMessage, "", "Commit message")
	saveCmd.Flags().StringVar(&cfg.Save.File, flags.FlagFile, "", "Local file to upload (\"-\" reads stdin)")
	saveCmd.Flags().StringVar(&cfg.Save.Sha, flags.FlagSha, "", "Blob sha of the file being replaced")
	saveCmd.Flags().BoolVar(&cfg.Save.NoAutoBranch, flags.FlagNoAutoBranch, false, "Do not create a missing --branch")
	saveCmd.Flags().StringVar(&cfg.GitHub.APIURL, flags.FlagGitHubAPIURL, "", "GitHub REST API URL (default: https://api.github.com/)")
	saveCmd.Flags().StringVar(&cfg.Output.Format, flags.FlagFormat, cfg.Output.Format, "Output format: text|json")
	saveCmd.Flags().DurationVar(&cfg.Runtime.Timeout, flags.FlagTimeout, cfg.Runtime.Timeout, "Timeout for the whole save")
}
