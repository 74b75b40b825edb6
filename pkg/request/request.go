// Package request parses the file that declares which repositories, jobs and
// artifact globs to fetch.
package request

import (
	"sort"

	"github.com/cloudify-cosmo/cfy-fetch/pkg/circleci"
)

// Repository is the fetch request for one repository: the jobs to resolve a
// build for, and per job the glob patterns of the artifacts to download.
type Repository struct {
	Repo circleci.Repo
	Jobs map[string][]string
}

// JobNames returns the requested job names in sorted order.
func (r Repository) JobNames() []string {
	names := make([]string, 0, len(r.Jobs))
	for name := range r.Jobs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Clone returns a deep copy of the request.
func (r Repository) Clone() Repository {
	jobs := make(map[string][]string, len(r.Jobs))
	for name, globs := range r.Jobs {
		jobs[name] = append([]string(nil), globs...)
	}
	return Repository{Repo: r.Repo, Jobs: jobs}
}

// File is the parsed content of a request file.
type File struct {
	// Organization is the organization used for repositories that do not
	// name one explicitly. May be empty.
	Organization string
	// Repositories holds the requests in the order they were declared.
	Repositories []Repository
}

// WithOrganization returns the requests with every repository lacking an
// organization set to the file's organization, or to fallback if the file
// does not declare one.
func (f File) WithOrganization(fallback string) []Repository {
	org := f.Organization
	if org == "" {
		org = fallback
	}
	repos := make([]Repository, len(f.Repositories))
	for i, r := range f.Repositories {
		r = r.Clone()
		if r.Repo.Org == "" {
			r.Repo.Org = org
		}
		repos[i] = r
	}
	return repos
}

// Filter returns only the repositories whose name or "org/name" is in names.
// All repositories are returned if names is empty.
func Filter(repos []Repository, names []string) []Repository {
	if len(names) == 0 {
		return repos
	}
	wanted := make(map[string]struct{}, len(names))
	for _, n := range names {
		wanted[n] = struct{}{}
	}
	var filtered []Repository
	for _, r := range repos {
		_, byName := wanted[r.Repo.Name]
		_, byFull := wanted[r.Repo.String()]
		if byName || byFull {
			filtered = append(filtered, r)
		}
	}
	return filtered
}
