// Package config loads the reconciler's run configuration. Layered
// through spf13/viper (defaults, then an optional JSON config file, then
// LANDBOT_* environment variables), so env vars, flags, and file all
// merge instead of one source replacing another wholesale.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config is the full set of recognized run-configuration keys: reviewer
// and token rules, CI backend selection, destination repository and
// platform credentials, and the ambient additions (gitlab_*, platform,
// history_dsn, notify_webhook_url, dashboard_addr, log_level, log_format).
type Config struct {
	Owner string `mapstructure:"owner"`
	Repo  string `mapstructure:"repo"`

	Reviewers                []string `mapstructure:"reviewers"`
	ApprovalTokens           []string `mapstructure:"approval_tokens"`
	DisapprovalTokens        []string `mapstructure:"disapproval_tokens"`
	IgnoredUsersInComments   []string `mapstructure:"ignored_users_in_comments"`
	CollaboratorsAsReviewers bool     `mapstructure:"collaborators_as_reviewers"`

	Builders string `mapstructure:"builders"`
	Buildbot string `mapstructure:"buildbot"`
	NBuilds  int    `mapstructure:"nbuilds"`

	UseGithubCommitStatusAPI bool `mapstructure:"use_github_commit_status_api"`
	UseGithubChecksAPI       bool `mapstructure:"use_github_checks_api"`

	TestRef string `mapstructure:"test_ref"`

	Platform string `mapstructure:"platform"` // "github" | "gitlab"

	GHUser  string `mapstructure:"gh_user"`
	GHPass  string `mapstructure:"gh_pass"`
	GHToken string `mapstructure:"gh_token"`
	GHAPI   string `mapstructure:"gh_api"`
	GHHost  string `mapstructure:"gh_host"`

	GitlabToken string `mapstructure:"gitlab_token"`
	GitlabHost  string `mapstructure:"gitlab_host"`

	NoAutoMerge        bool `mapstructure:"no_auto_merge"`
	DeleteSourceBranch bool `mapstructure:"delete_source_branch"`
	DeleteTestRef      bool `mapstructure:"delete_test_ref"`
	MaxPullsPerRun     int  `mapstructure:"max_pulls_per_run"`

	HistoryDSN       string `mapstructure:"history_dsn"`
	NotifyWebhookURL string `mapstructure:"notify_webhook_url"`
	DashboardAddr    string `mapstructure:"dashboard_addr"`

	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"` // "console" | "json"
}

// applyDefaults sets the documented out-of-the-box values
// (approval_tokens: ["r+","r=me"], disapproval_tokens: ["r-"]) plus the
// ambient stack's sane defaults.
func applyDefaults(v *viper.Viper) {
	v.SetDefault("approval_tokens", []string{"r+", "r=me"})
	v.SetDefault("disapproval_tokens", []string{"r-"})
	v.SetDefault("platform", "github")
	v.SetDefault("nbuilds", 30)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "console")
	v.SetDefault("test_ref", "")
}

// Load reads configuration from defaults, an optional JSON or YAML file
// at path (selected by extension), and LANDBOT_*-prefixed environment
// variables, in that precedence order (later sources win).
func Load(path string) (*Config, error) {
	v := viper.New()
	applyDefaults(v)

	v.SetEnvPrefix("LANDBOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		if err := mergeConfigFile(v, path); err != nil {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshaling: %w", err)
	}

	if cfg.Owner == "" || cfg.Repo == "" {
		return nil, fmt.Errorf("config: owner and repo are required")
	}

	return &cfg, nil
}

// mergeConfigFile reads path and merges it into v. YAML files (.yaml,
// .yml) are decoded directly with yaml.v3 into a generic map before
// merging; anything else is treated as JSON and handed to viper's own
// file reader.
func mergeConfigFile(v *viper.Viper, path string) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		raw, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("config: reading %s: %w", path, err)
		}
		var doc map[string]interface{}
		if err := yaml.Unmarshal(raw, &doc); err != nil {
			return fmt.Errorf("config: parsing %s: %w", path, err)
		}
		if err := v.MergeConfigMap(doc); err != nil {
			return fmt.Errorf("config: merging %s: %w", path, err)
		}
		return nil
	default:
		v.SetConfigFile(path)
		v.SetConfigType("json")
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("config: reading %s: %w", path, err)
		}
		return nil
	}
}

// Token returns the configured credential for c.Platform: gitlab_token for
// "gitlab", gh_token otherwise. It reads only the loaded config; the
// environment and gh CLI fallbacks live in authstore's resolvers.
func (c *Config) Token() string {
	if c.Platform == "gitlab" {
		return c.GitlabToken
	}
	return c.GHToken
}
