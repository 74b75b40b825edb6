// Package matcher resolves, for each requested job of a repository, the most
// recent successful build by walking the build history of a prioritized list
// of branches.
package matcher

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/cloudify-cosmo/cfy-fetch/internal/errutil"
	"github.com/cloudify-cosmo/cfy-fetch/pkg/circleci"
	"github.com/cloudify-cosmo/cfy-fetch/pkg/history"
	"github.com/cloudify-cosmo/cfy-fetch/pkg/request"
	"github.com/iver-wharf/wharf-core/v2/pkg/logger"
)

var log = logger.NewScoped("MATCHER")

// Resolved is the build selected for a job.
type Resolved struct {
	Job    string
	Build  circleci.Build
	Branch string
	Globs  []string
}

// Result maps job names to their selected builds.
type Result map[string]Resolved

// Sorted returns the resolved builds ordered by job name.
func (r Result) Sorted() []Resolved {
	list := make([]Resolved, 0, len(r))
	for _, res := range r {
		list = append(list, res)
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].Job < list[j].Job
	})
	return list
}

// BuildsNotFoundError is returned when one or more jobs had no successful
// build on any of the searched branches.
type BuildsNotFoundError struct {
	Repo     circleci.Repo
	Jobs     []string
	Branches []string
	// Causes holds the errors that aborted reading a branch's history, if
	// any. A branch with an error may have contained a matching build.
	Causes errutil.Slice
}

// Error implements the error interface.
func (err *BuildsNotFoundError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "builds not found for %s: %s (searched branches: %s)",
		err.Repo, strings.Join(err.Jobs, ", "), strings.Join(err.Branches, ", "))
	for _, cause := range err.Causes {
		sb.WriteString("\n  caused by: ")
		sb.WriteString(cause.Error())
	}
	return sb.String()
}

// Unwrap returns the branch errors, to support errors.Is and errors.As.
func (err *BuildsNotFoundError) Unwrap() []error {
	return err.Causes
}

// Options holds optional settings for Resolve.
type Options struct {
	// PageSize is the number of builds requested per history page.
	PageSize int
	// OnBranch is called before each branch is searched, with the jobs
	// still outstanding at that point.
	OnBranch func(branch string, outstanding []string)
}

// Resolve finds the newest successful build of every job in the request.
//
// Branches are searched one at a time, in order. Each branch's history is
// read most recent first, so the first successful build seen for a job is
// its newest one on that branch, and earlier branches take precedence over
// later ones. Reading stops as soon as every job is resolved.
//
// A branch whose history cannot be read is skipped. If any job remains
// unresolved after all branches, a *BuildsNotFoundError is returned together
// with the builds that were resolved.
func Resolve(ctx context.Context, lister history.BuildLister, req request.Repository, branches []string, opts Options) (Result, error) {
	outstanding := make(map[string][]string, len(req.Jobs))
	for job, globs := range req.Jobs {
		outstanding[job] = globs
	}
	result := make(Result, len(req.Jobs))
	var causes errutil.Slice

	for _, branch := range branches {
		if len(outstanding) == 0 {
			break
		}
		if opts.OnBranch != nil {
			opts.OnBranch(branch, sortedKeys(outstanding))
		}
		log.Debug().
			WithString("repo", req.Repo.String()).
			WithString("branch", branch).
			WithInt("outstanding", len(outstanding)).
			Message("Searching branch for builds.")

		reader := history.NewReader(lister, req.Repo, branch, 0, opts.PageSize)
		for len(outstanding) > 0 && reader.Next(ctx) {
			build := reader.Build()
			job := build.JobName()
			if job == "" {
				continue
			}
			globs, ok := outstanding[job]
			if !ok || !build.IsSuccess() {
				continue
			}
			result[job] = Resolved{
				Job:    job,
				Build:  build,
				Branch: branch,
				Globs:  globs,
			}
			delete(outstanding, job)
			log.Info().
				WithString("repo", req.Repo.String()).
				WithString("branch", branch).
				WithString("job", job).
				WithUint("build", build.BuildNum).
				Message("Found build.")
		}
		if err := reader.Err(); err != nil {
			log.Warn().
				WithError(err).
				WithString("repo", req.Repo.String()).
				WithString("branch", branch).
				Message("Failed to read build history. Skipping branch.")
			causes.Add(fmt.Errorf("branch %q: %w", branch, err))
		}
	}

	if len(outstanding) > 0 {
		err := &BuildsNotFoundError{
			Repo:     req.Repo,
			Jobs:     sortedKeys(outstanding),
			Branches: branches,
			Causes:   causes,
		}
		log.Error().
			WithString("repo", req.Repo.String()).
			WithString("jobs", strings.Join(err.Jobs, ", ")).
			WithString("branches", strings.Join(branches, ", ")).
			Message("Builds not found.")
		return result, err
	}
	return result, nil
}

func sortedKeys(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
