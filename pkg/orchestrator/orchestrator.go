// Package orchestrator runs the resolve-and-fetch pipeline of every requested
// repository concurrently and aggregates their outcomes.
package orchestrator

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/cloudify-cosmo/cfy-fetch/internal/errutil"
	"github.com/cloudify-cosmo/cfy-fetch/internal/parallel"
	"github.com/cloudify-cosmo/cfy-fetch/pkg/artifactstore"
	"github.com/cloudify-cosmo/cfy-fetch/pkg/circleci"
	"github.com/cloudify-cosmo/cfy-fetch/pkg/fetcher"
	"github.com/cloudify-cosmo/cfy-fetch/pkg/matcher"
	"github.com/cloudify-cosmo/cfy-fetch/pkg/metrics"
	"github.com/cloudify-cosmo/cfy-fetch/pkg/request"
	"github.com/iver-wharf/wharf-core/v2/pkg/logger"
	"gopkg.in/typ.v4/sync2"
)

var log = logger.NewScoped("ORCHESTRATOR")

// Options holds the settings shared by all repository pipelines.
type Options struct {
	// Lister is used both for the build history and the artifact listings.
	Lister circleci.Lister
	// Downloader streams artifact content.
	Downloader circleci.Downloader
	// Store receives the downloaded artifacts.
	Store artifactstore.Store
	// Branches is the branch search order, highest priority first.
	Branches []string
	// PageSize is the number of builds requested per history page.
	PageSize int
	// ResolveOnly skips the artifact fetching altogether.
	ResolveOnly bool
	// ListOnly lists the matching artifacts without downloading them.
	ListOnly bool
	// Metrics, if set, receives counters about the run.
	Metrics *metrics.Metrics
}

// Runner runs repository pipelines and tracks the state of each.
type Runner struct {
	opts   Options
	states sync2.Map[string, State]
}

// NewRunner returns a runner using the given options.
func NewRunner(opts Options) *Runner {
	return &Runner{opts: opts}
}

// Run is a shorthand for NewRunner(opts).Run(ctx, repos).
func Run(ctx context.Context, opts Options, repos []request.Repository) (Report, error) {
	return NewRunner(opts).Run(ctx, repos)
}

// Run starts one pipeline per repository and waits for all of them to
// finish. A failing repository never stops the others.
//
// The returned error holds every repository's failure, prefixed by the
// repository name, and is nil only if every repository reached StateDone.
// The report is complete in both cases.
func (r *Runner) Run(ctx context.Context, repos []request.Repository) (Report, error) {
	report := Report{Repos: make([]RepoReport, len(repos))}
	var group parallel.Group
	for i, repo := range repos {
		i, repo := i, repo
		report.Repos[i] = RepoReport{Repo: repo.Repo.String(), State: StatePending}
		r.states.Store(repo.Repo.String(), StatePending)
		group.AddFunc(repo.Repo.String(), func(ctx context.Context) error {
			return r.runRepo(ctx, repo, &report.Repos[i])
		})
	}
	log.Info().
		WithInt("repos", len(repos)).
		WithStringf("branches", "%v", r.opts.Branches).
		Message("Starting.")
	start := time.Now()
	err := group.RunWaitAll(ctx)
	r.opts.Metrics.RunFinished(time.Since(start), time.Now())
	return report, err
}

// State returns the current state of a repository's pipeline, or
// StateUnknown if the repository is not part of any run.
func (r *Runner) State(repo string) State {
	s, ok := r.states.Load(repo)
	if !ok {
		return StateUnknown
	}
	return s
}

func (r *Runner) runRepo(ctx context.Context, repo request.Repository, rep *RepoReport) error {
	r.setState(repo.Repo, rep, StateSearching)
	resolved, err := matcher.Resolve(ctx, r.opts.Lister, repo, r.opts.Branches, matcher.Options{
		PageSize: r.opts.PageSize,
	})
	for _, res := range resolved.Sorted() {
		rep.Builds = append(rep.Builds, newBuildReport(res))
		r.opts.Metrics.BuildResolved(repo.Repo.String(), res.Branch)
	}
	if err != nil {
		rep.addError(err)
		r.setState(repo.Repo, rep, StateFailed)
		return err
	}
	r.setState(repo.Repo, rep, StateResolved)
	if r.opts.ResolveOnly {
		r.setState(repo.Repo, rep, StateDone)
		return nil
	}

	r.setState(repo.Repo, rep, StateFetching)
	f := fetcher.Fetcher{
		Lister:     r.opts.Lister,
		Downloader: r.opts.Downloader,
		Store:      r.opts.Store,
		ListOnly:   r.opts.ListOnly,
	}
	var errs errutil.Slice
	for i, res := range resolved.Sorted() {
		summary, err := f.Fetch(ctx, repo.Repo, res)
		rep.Builds[i].Matched = len(summary.Matched)
		for _, dl := range summary.Downloaded {
			rep.Builds[i].Downloads = append(rep.Builds[i].Downloads, dl.Dest)
			r.opts.Metrics.Downloaded(repo.Repo.String(), dl.Bytes)
		}
		r.opts.Metrics.DownloadsFailed(repo.Repo.String(), summary.Failed)
		if err != nil {
			rep.addError(err)
			errs.Add(err)
		}
	}
	if err := errs.Err(); err != nil {
		r.setState(repo.Repo, rep, StateFailed)
		return err
	}
	r.setState(repo.Repo, rep, StateDone)
	return nil
}

func (r *Runner) setState(repo circleci.Repo, rep *RepoReport, next State) {
	prev := rep.State
	if !prev.CanTransitionTo(next) {
		log.Warn().
			WithString("repo", repo.String()).
			WithStringer("from", prev).
			WithStringer("to", next).
			Message("Unexpected state transition.")
	}
	rep.State = next
	r.states.Store(repo.String(), next)
	ev := log.Debug()
	if next.IsFinal() {
		ev = log.Info()
		r.opts.Metrics.RepoFinished(strings.ToLower(next.String()))
	}
	ev.WithString("repo", repo.String()).
		WithStringer("state", next).
		Message("Repository state changed.")
}

func (rep *RepoReport) addError(err error) {
	var joined errutil.Slice
	if errors.As(err, &joined) {
		for _, e := range joined {
			rep.Errors = append(rep.Errors, e.Error())
		}
		return
	}
	rep.Errors = append(rep.Errors, err.Error())
}
