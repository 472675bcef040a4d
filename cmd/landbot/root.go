// Package landbot is the Cobra entry point: flag parsing and wiring of
// config, credentials, the remote client, CI aggregation, and the
// reconciler, built around package-level flag vars, a single RunE, and a
// SetVersionInfo hook for -ldflags.
package landbot

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/landbot/landbot/internal/authstore"
	"github.com/landbot/landbot/internal/ci"
	"github.com/landbot/landbot/internal/config"
	"github.com/landbot/landbot/internal/dashboard"
	"github.com/landbot/landbot/internal/history"
	"github.com/landbot/landbot/internal/notify"
	"github.com/landbot/landbot/internal/obslog"
	"github.com/landbot/landbot/internal/pr"
	"github.com/landbot/landbot/internal/reconcile"
	"github.com/landbot/landbot/internal/remote"
)

var (
	appVersion    = "dev"
	appCommitHash = "unknown"
)

// SetVersionInfo sets build-time version fields (set via -ldflags in main).
func SetVersionInfo(version, commitHash string) {
	appVersion = version
	appCommitHash = commitHash
	rootCmd.Version = version
}

var (
	flagQuiet         bool
	flagRepo          string
	flagConfig        string
	flagOnce          bool
	flagDryRun        bool
	flagDashboardAddr string
	flagTUI           bool
	flagPollInterval  time.Duration
)

var rootCmd = &cobra.Command{
	Use:   "landbot",
	Short: "Automated merge integrator for hosted code review",
	Long: `landbot polls a repository's open pull requests, infers each one's
position in the review/test/land pipeline from the platform's own state,
and advances the ripest candidates through CI and onto the target branch.

Examples:
  landbot --repo acme/widgets --config landbot.json --once
  landbot --repo acme/widgets --config landbot.json --dashboard-addr :8080
  landbot --repo acme/widgets --config landbot.json --tui`,
	RunE: run,
}

func init() {
	rootCmd.Version = appVersion
	rootCmd.Flags().BoolVar(&flagQuiet, "quiet", false, "suppress non-error console output")
	rootCmd.Flags().StringVar(&flagRepo, "repo", "", "destination repository as owner/repo (overrides config)")
	rootCmd.Flags().StringVar(&flagConfig, "config", "landbot.json", "path to the JSON or YAML config file")
	rootCmd.Flags().BoolVar(&flagOnce, "once", false, "run a single reconciliation pass and exit")
	rootCmd.Flags().BoolVar(&flagDryRun, "dry-run", false, "build the snapshot and log decisions without advancing any PR")
	rootCmd.Flags().StringVar(&flagDashboardAddr, "dashboard-addr", "", "serve the status dashboard on this address (e.g. :8080)")
	rootCmd.Flags().BoolVar(&flagTUI, "tui", false, "run an interactive terminal dashboard instead of a headless loop")
	rootCmd.Flags().DurationVar(&flagPollInterval, "poll-interval", 60*time.Second, "delay between reconciliation passes when not --once")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func run(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := config.Load(flagConfig)
	if err != nil {
		return err
	}
	if flagRepo != "" {
		owner, repo, ok := strings.Cut(flagRepo, "/")
		if !ok {
			return fmt.Errorf("--repo must be owner/repo, got %q", flagRepo)
		}
		cfg.Owner, cfg.Repo = owner, repo
	}
	if flagDashboardAddr != "" {
		cfg.DashboardAddr = flagDashboardAddr
	}

	log := obslog.New(cfg.LogLevel, cfg.LogFormat, flagQuiet)

	client, selfUser, err := buildClient(ctx, cfg)
	if err != nil {
		return err
	}

	rules := pr.Rules{
		BotUser:                  selfUser,
		Reviewers:                cfg.Reviewers,
		ApprovalTokens:           cfg.ApprovalTokens,
		DisapprovalTokens:        cfg.DisapprovalTokens,
		IgnoredUsers:             cfg.IgnoredUsersInComments,
		CollaboratorsAsReviewers: cfg.CollaboratorsAsReviewers,
		NoAutoMerge:              cfg.NoAutoMerge,
		DeleteSourceBranch:       cfg.DeleteSourceBranch,
		DeleteTestRef:            cfg.DeleteTestRef,
		GlobalTestRef:            cfg.TestRef,
		Owner:                    cfg.Owner,
		Repo:                     cfg.Repo,
		CommitURLTemplate:        commitURLTemplate(cfg),
	}

	aggregator := buildAggregator(client, cfg, selfUser)

	opts := reconcile.Options{
		Repo:           cfg.Owner + "/" + cfg.Repo,
		Rules:          rules,
		MaxPullsPerRun: cfg.MaxPullsPerRun,
		DryRun:         flagDryRun,
		Log:            log,
	}

	if cfg.HistoryDSN != "" {
		sink, err := history.Open(ctx, cfg.HistoryDSN)
		if err != nil {
			return fmt.Errorf("landbot: opening history sink: %w", err)
		}
		defer sink.Close()
		opts.History = sink
	}
	if cfg.NotifyWebhookURL != "" {
		opts.Notify = notify.New(cfg.NotifyWebhookURL)
	}

	var dash *dashboard.Server
	if cfg.DashboardAddr != "" {
		dash = dashboard.New(opts.Repo)
		go serveDashboard(cfg.DashboardAddr, dash, log)
	}

	if flagTUI {
		return runTUI(client, aggregator, opts)
	}

	if flagOnce {
		result, err := reconcile.Run(ctx, client, aggregator, opts)
		if err != nil {
			return err
		}
		if dash != nil {
			dash.Update(result.Records, time.Now().UTC().Format(time.RFC3339))
		}
		log.WithField("advanced", len(result.Advanced)).Info("reconciliation complete")
		return nil
	}

	for {
		result, err := reconcile.Run(ctx, client, aggregator, opts)
		if err != nil {
			log.WithError(err).Error("reconciliation pass failed")
		} else if dash != nil {
			dash.Update(result.Records, time.Now().UTC().Format(time.RFC3339))
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(flagPollInterval):
		}
	}
}

// commitURLTemplate picks the %s/%s/%s commit-link format for cfg.Platform,
// used to build each self-status's target_url.
func commitURLTemplate(cfg *config.Config) string {
	if cfg.Platform == "gitlab" {
		host := cfg.GitlabHost
		if host == "" {
			host = "https://gitlab.com"
		}
		return host + "/%s/%s/-/commit/%s"
	}
	host := cfg.GHHost
	if host == "" {
		host = "https://github.com"
	}
	return host + "/%s/%s/commit/%s"
}

// buildClient resolves credentials and constructs the platform client for
// cfg.Platform, returning the client alongside the login it authenticates
// as (needed to filter the bot's own statuses/comments out of aggregation).
func buildClient(ctx context.Context, cfg *config.Config) (remote.Client, string, error) {
	switch cfg.Platform {
	case "gitlab":
		token, err := authstore.ResolveGitLabToken(cfg.GitlabToken)
		if err != nil {
			return nil, "", err
		}
		c, err := remote.NewGitLabClient(ctx, token, cfg.Owner, cfg.Repo, cfg.GitlabHost)
		if err != nil {
			return nil, "", err
		}
		return c, c.Self(), nil
	default:
		token, err := authstore.ResolveGitHubToken(cfg.GHToken, cfg.GHHost)
		if err != nil {
			return nil, "", err
		}
		c, err := remote.NewGitHubClient(ctx, token, cfg.Owner, cfg.Repo, cfg.GHAPI)
		if err != nil {
			return nil, "", err
		}
		return c, c.Self(), nil
	}
}

// buildAggregator wires the CI backends cfg enables: the generic
// buildbot-shaped build queue (if cfg.Buildbot is set), the platform's
// native commit-status API, and its checks API.
func buildAggregator(client remote.Client, cfg *config.Config, selfUser string) *ci.Aggregator {
	var backends []ci.Backend
	if cfg.Buildbot != "" {
		builders := strings.Fields(strings.ReplaceAll(cfg.Builders, ",", " "))
		backends = append(backends, ci.NewBuildQueueBackend(cfg.Buildbot, builders, cfg.NBuilds))
	}
	if cfg.UseGithubCommitStatusAPI {
		backends = append(backends, &ci.CommitStatusBackend{Lister: client, SelfUser: selfUser})
	}
	if cfg.UseGithubChecksAPI {
		backends = append(backends, &ci.CheckRunBackend{Lister: client})
	}
	if len(backends) == 0 {
		backends = append(backends, &ci.CommitStatusBackend{Lister: client, SelfUser: selfUser})
	}
	return ci.NewAggregator(backends...)
}

func serveDashboard(addr string, dash *dashboard.Server, log *logrus.Logger) {
	r := mux.NewRouter()
	dash.RegisterRoutes(r)
	if err := http.ListenAndServe(addr, r); err != nil {
		log.WithError(err).Error("dashboard server exited")
	}
}
