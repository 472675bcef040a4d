// Package authstore resolves platform credentials for a headless run: no
// interactive prompting, no local token file, since landbot runs
// unattended from cron or CI rather than as a human-driven CLI. Resolution
// follows a priority chain: environment, then configured value, then gh
// CLI's own cached config as a last resort.
package authstore

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ResolveGitHubToken picks a GitHub token in priority order: the
// GITHUB_TOKEN environment variable, the configured value from the
// config file, and finally whatever gh CLI has cached in its own host
// config. host is normally "github.com"; configure a different value
// for GitHub Enterprise.
func ResolveGitHubToken(configured, host string) (string, error) {
	if token := os.Getenv("GITHUB_TOKEN"); token != "" {
		return token, nil
	}
	if configured != "" {
		return configured, nil
	}
	if host == "" {
		host = "github.com"
	}
	if token, err := ghCLIToken(host); err == nil && token != "" {
		return token, nil
	}
	return "", fmt.Errorf("authstore: no github token found (set GITHUB_TOKEN, gh_token in config, or run `gh auth login`)")
}

// ResolveGitLabToken picks a GitLab token: the GITLAB_TOKEN environment
// variable, then the configured value.
func ResolveGitLabToken(configured string) (string, error) {
	if token := os.Getenv("GITLAB_TOKEN"); token != "" {
		return token, nil
	}
	if configured != "" {
		return configured, nil
	}
	return "", fmt.Errorf("authstore: no gitlab token found (set GITLAB_TOKEN or gitlab_token in config)")
}

// ghCLIToken reads the oauth_token gh CLI stores under hosts.yml for the
// given host. A small line-oriented parser, not a full YAML decoder:
// hosts.yml's shape (one top-level key per host, two-space indent) is
// simple enough that pulling in a YAML dependency just for this read
// isn't worth it.
func ghCLIToken(host string) (string, error) {
	configDir := os.Getenv("GH_CONFIG_DIR")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		configDir = filepath.Join(homeDir, ".config", "gh")
	}

	data, err := os.ReadFile(filepath.Join(configDir, "hosts.yml"))
	if err != nil {
		return "", err
	}

	inSection := false
	for _, line := range strings.Split(string(data), "\n") {
		trimmed := strings.TrimSpace(line)

		if trimmed == host+":" {
			inSection = true
			continue
		}

		if inSection && strings.HasPrefix(trimmed, "oauth_token:") {
			parts := strings.SplitN(trimmed, ":", 2)
			if len(parts) == 2 {
				return strings.TrimSpace(parts[1]), nil
			}
		}

		if inSection && !strings.HasPrefix(line, " ") && !strings.HasPrefix(line, "\t") && trimmed != "" {
			inSection = false
		}
	}

	return "", fmt.Errorf("authstore: oauth_token not found for host %s", host)
}
