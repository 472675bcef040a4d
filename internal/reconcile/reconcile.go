// Package reconcile implements the top-level run loop: enumerate open
// pull requests, construct one model per PR, rank them, emit the
// snapshot artifact, and advance the ripest candidates.
package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/landbot/landbot/internal/ci"
	"github.com/landbot/landbot/internal/obslog"
	"github.com/landbot/landbot/internal/pr"
	"github.com/landbot/landbot/internal/remote"
	"github.com/landbot/landbot/internal/snapshot"
	"github.com/sirupsen/logrus"
)

// HistorySink is the append-only observability sink wired in when
// configured. It is never read back to derive state; it is a one-way
// audit log, not a cache.
type HistorySink interface {
	Record(ctx context.Context, repo string, num int, state, headSHA string, priority int) error
}

// Notifier is the optional chat/webhook notifier. Run calls it on every
// pass for every PR currently in BAD state; nothing is kept between
// passes, so a PR that stays BAD is reported again on each pass.
type Notifier interface {
	NotifyBad(ctx context.Context, repo string, p *pr.PR) error
}

// Options configures one reconciliation run.
type Options struct {
	Repo  string // "<owner>/<repo>", used for the snapshot key, history rows and notifications
	Rules pr.Rules

	MaxPullsPerRun int // 0 means unbounded
	DryRun         bool
	AdvanceAll     bool // advance every viable PR this run, not just the ripest

	History HistorySink // optional
	Notify  Notifier    // optional

	Log *logrus.Logger
}

// Result is what one reconciliation pass produced, useful for tests and
// for the CLI's exit-code decision.
type Result struct {
	Records  []snapshot.Record
	Snapshot string
	Advanced []AdvancedPR
}

// AdvancedPR records one PR's Advance outcome this run.
type AdvancedPR struct {
	Num    int
	Action pr.Action
	Detail string
}

// Run executes one full reconciliation pass: load every open PR, rank
// them, emit the snapshot, and advance from the ripest candidate down.
func Run(ctx context.Context, client remote.Client, aggregator *ci.Aggregator, opts Options) (*Result, error) {
	log := opts.Log
	if log == nil {
		log = logrus.New()
	}

	rules := opts.Rules
	if rules.CollaboratorsAsReviewers {
		collaborators, err := client.ListCollaborators(ctx)
		if err != nil {
			return nil, fmt.Errorf("reconcile: listing collaborators: %w", err)
		}
		rules.Reviewers = collaborators
	}

	summaries, err := client.ListOpenPullRequests(ctx)
	if err != nil {
		return nil, fmt.Errorf("reconcile: listing open pull requests: %w", err)
	}

	models := make([]*pr.PR, 0, len(summaries))
	for _, s := range summaries {
		m, err := pr.Load(ctx, client, rules, s)
		if err != nil {
			log.WithError(err).WithField("pr", s.Number).Error("failed to load pull request, skipping")
			continue
		}
		models = append(models, m)
	}

	pr.SortByRank(models)

	records := snapshot.BuildRecords(models, opts.Rules.Owner, opts.Rules.Repo)

	if opts.History != nil {
		for _, m := range models {
			if err := opts.History.Record(ctx, opts.Repo, m.Number, m.State().String(), m.HeadSHA, m.Priority()); err != nil {
				log.WithError(err).Warn("history sink write failed")
			}
		}
	}

	if opts.Notify != nil {
		for _, m := range models {
			if m.State() == pr.StateBad {
				if err := opts.Notify.NotifyBad(ctx, opts.Repo, m); err != nil {
					log.WithError(err).Warn("notify webhook failed")
				}
			}
		}
	}

	frag, err := snapshot.ScriptFragment(opts.Repo, records, time.Now())
	if err != nil {
		return nil, fmt.Errorf("reconcile: building snapshot: %w", err)
	}
	result := &Result{Records: records, Snapshot: frag}

	if opts.DryRun {
		return result, nil
	}

	viable := viablePRs(models)
	if opts.MaxPullsPerRun > 0 && len(viable) > opts.MaxPullsPerRun {
		dropped := viable[:len(viable)-opts.MaxPullsPerRun]
		viable = viable[len(viable)-opts.MaxPullsPerRun:]
		log.WithField("dropped", prNumbers(dropped)).Info("truncated to max_pulls_per_run")
	}

	for i := len(viable) - 1; i >= 0; i-- {
		m := viable[i]
		entry := obslog.ForPR(log, m.Number, m.State().String(), m.HeadSHA)
		out, err := pr.Advance(ctx, client, aggregator, rules, m)
		if err != nil {
			entry.WithError(err).Error("advance failed")
			return result, fmt.Errorf("reconcile: advancing pr #%d: %w", m.Number, err)
		}
		entry.WithField("action", out.Action).Info("advanced")
		result.Advanced = append(result.Advanced, AdvancedPR{Num: m.Number, Action: out.Action, Detail: out.Detail})

		if !opts.AdvanceAll {
			break
		}
	}

	return result, nil
}

// viablePRs filters to states in [DISCUSSING, CLOSED): excludes BAD,
// STALE (before DISCUSSING) and CLOSED (terminal).
func viablePRs(models []*pr.PR) []*pr.PR {
	out := make([]*pr.PR, 0, len(models))
	for _, m := range models {
		s := m.State()
		if s >= pr.StateDiscussing && s < pr.StateClosed {
			out = append(out, m)
		}
	}
	return out
}

func prNumbers(models []*pr.PR) []int {
	out := make([]int, len(models))
	for i, m := range models {
		out[i] = m.Number
	}
	return out
}
