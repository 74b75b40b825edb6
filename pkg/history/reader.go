// Package history reads the build history of a single repository branch as a
// lazy sequence, requesting pages from the API only when needed.
package history

import (
	"context"

	"github.com/cloudify-cosmo/cfy-fetch/pkg/circleci"
	"github.com/iver-wharf/wharf-core/v2/pkg/logger"
)

var log = logger.NewScoped("HISTORY")

// BuildLister lists one page of builds of a repository branch.
type BuildLister interface {
	ListBuilds(ctx context.Context, repo circleci.Repo, branch string, offset, limit int) ([]circleci.Build, error)
}

// Reader iterates the builds of a branch in the API's order, most recent
// first. It is used like a bufio.Scanner:
//
//	r := history.NewReader(client, repo, "master", 0, 100)
//	for r.Next(ctx) {
//		build := r.Build()
//	}
//	if err := r.Err(); err != nil {
//		...
//	}
//
// A failed page request ends the iteration and is never retried.
type Reader struct {
	lister   BuildLister
	repo     circleci.Repo
	branch   string
	offset   int
	pageSize int

	page  []circleci.Build
	index int
	cur   circleci.Build
	pages int
	done  bool
	err   error
}

// NewReader returns a reader starting at the given offset into the branch's
// history. Non-positive page sizes fall back to circleci.DefaultPageSize.
func NewReader(lister BuildLister, repo circleci.Repo, branch string, offset, pageSize int) *Reader {
	if pageSize <= 0 {
		pageSize = circleci.DefaultPageSize
	}
	return &Reader{
		lister:   lister,
		repo:     repo,
		branch:   branch,
		offset:   offset,
		pageSize: pageSize,
	}
}

// Next advances to the next build, fetching the next page if the current one
// is used up. It returns false once an empty page is received or a page
// request fails.
func (r *Reader) Next(ctx context.Context) bool {
	if r.done {
		return false
	}
	if r.index >= len(r.page) {
		if !r.fetchPage(ctx) {
			r.done = true
			return false
		}
	}
	r.cur = r.page[r.index]
	r.index++
	return true
}

func (r *Reader) fetchPage(ctx context.Context) bool {
	page, err := r.lister.ListBuilds(ctx, r.repo, r.branch, r.offset, r.pageSize)
	if err != nil {
		r.err = err
		return false
	}
	r.pages++
	log.Debug().
		WithString("repo", r.repo.String()).
		WithString("branch", r.branch).
		WithInt("offset", r.offset).
		WithInt("builds", len(page)).
		Message("Fetched build history page.")
	if len(page) == 0 {
		return false
	}
	r.page = page
	r.index = 0
	r.offset += len(page)
	return true
}

// Build returns the build most recently produced by Next.
func (r *Reader) Build() circleci.Build {
	return r.cur
}

// Err returns the error that ended the iteration, if any. Reaching the end of
// the branch's history is not an error.
func (r *Reader) Err() error {
	return r.err
}

// Offset returns the offset of the next page that would be requested.
func (r *Reader) Offset() int {
	return r.offset
}

// Pages returns how many pages have been fetched so far, including the final
// empty page.
func (r *Reader) Pages() int {
	return r.pages
}

// Branch returns the branch being read.
func (r *Reader) Branch() string {
	return r.branch
}
