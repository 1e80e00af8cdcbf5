package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"k8s.io/klog/v2"

	"scmrest/internal/config"
	"scmrest/internal/credentials"
	"scmrest/internal/flags"
	gh "scmrest/internal/github"
	"scmrest/internal/plugins"
	"scmrest/internal/rest"
	"scmrest/internal/scm"
	"scmrest/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the REST API",
	Long: `Serve the scmrest REST API.

Routes:
	GET  /healthz
	GET  /rest/                               root bean (version, scms, actions)
	GET  /rest/scm/                           registered SCMs
	GET  /rest/scm/{scm}/                     one SCM
	GET  /rest/scm/{scm}/organizations/       organizations (start, limit)
	PUT  /rest/scm/{scm}/validate             store an access token as a credential
	PUT  /rest/scm/{scm}/content?owner=&repo= save a file

Every bean route accepts depth, tree, pretty and jsonp parameters. The caller
is named by the X-Remote-User header.

Configuration file (--config, YAML):
	issue_tracker_url: https://example.com/issues
	jsonp_allowlist: [app.example.com, "*.example.org"]
	plugins:
	  - short_name: github
	    long_name: GitHub SCM
	    url: https://example.com/github/issues
	    packages: [scmrest/internal/github]
	scms:
	  - id: ghe
	    api_url: https://ghe.example.com/api/v3
`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.ValidateServe(); err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runServe(ctx, cfg)
	},
}

func runServe(ctx context.Context, cfg *config.Config) error {
	srv, cleanup, err := buildServer(cfg)
	if err != nil {
		return err
	}
	defer cleanup()
	return srv.Run(ctx, cfg.Server.Addr)
}

// buildServer wires the credential store, SCMs and exporter described by cfg.
func buildServer(cfg *config.Config) (*server.Server, func(), error) {
	var file *config.File
	if cfg.Server.ConfigFile != "" {
		f, err := config.Load(cfg.Server.ConfigFile)
		if err != nil {
			return nil, nil, err
		}
		file = f
		cfg.Merge(file)
		if err := cfg.Validate(); err != nil {
			return nil, nil, err
		}
	} else {
		file = &config.File{}
	}

	registry, err := plugins.NewRegistry(file.Plugins...)
	if err != nil {
		return nil, nil, fmt.Errorf("loading plugins: %w", err)
	}

	store, err := credentials.NewSQLiteStore(cfg.Server.DB)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		if err := store.Close(); err != nil {
			klog.ErrorS(err, "closing credential store")
		}
	}

	opts := []gh.Option{
		gh.WithVerbose(cfg.Runtime.Verbose, os.Stderr),
		gh.WithTimeout(cfg.Runtime.Timeout),
	}
	scms := []scm.Scm{gh.NewScm("github", cfg.GitHub.APIURL, store, opts...)}
	for _, s := range file.SCMs {
		scms = append(scms, gh.NewScm(s.ID, s.APIURL, store, opts...))
	}

	var requesters []rest.SecureRequester
	if len(cfg.Server.JSONPAllowlist) > 0 {
		requesters = append(requesters, rest.NewAllowlistRequester(cfg.Server.JSONPAllowlist))
	}
	interceptor := rest.NewActionInterceptor(klog.Background().WithName("export"), registry, cfg.Server.IssueTrackerURL)
	exporter := rest.NewExporter(buildVersion, interceptor, requesters...)

	srv, err := server.New(exporter, scms...)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	srv.Timeout = cfg.Runtime.Timeout

	ids := make([]string, 0, len(scms))
	for _, s := range scms {
		ids = append(ids, s.ID())
	}
	klog.InfoS("configured", "scms", ids, "plugins", len(registry.List()), "db", cfg.Server.DB)
	return srv, cleanup, nil
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&cfg.Server.Addr, flags.FlagAddr, cfg.Server.Addr, "Listen address")
	serveCmd.Flags().StringVar(&cfg.Server.ConfigFile, flags.FlagConfig, "", "YAML file with plugins, extra SCMs and the JSONP allowlist")
	serveCmd.Flags().StringVar(&cfg.Server.DB, flags.FlagDB, cfg.Server.DB, "SQLite credential database (\":memory:\" keeps credentials in memory)")
	serveCmd.Flags().StringVar(&cfg.GitHub.APIURL, flags.FlagGitHubAPIURL, "", "GitHub REST API URL (default: https://api.github.com/)")
	serveCmd.Flags().DurationVar(&cfg.Runtime.Timeout, flags.FlagTimeout, cfg.Runtime.Timeout, "Per-request timeout")
}
