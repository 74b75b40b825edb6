// Package fetcher downloads the artifacts of resolved builds whose file names
// match the requested glob patterns.
package fetcher

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/cloudify-cosmo/cfy-fetch/internal/errutil"
	"github.com/cloudify-cosmo/cfy-fetch/pkg/artifactstore"
	"github.com/cloudify-cosmo/cfy-fetch/pkg/circleci"
	"github.com/cloudify-cosmo/cfy-fetch/pkg/matcher"
	"github.com/danwakefield/fnmatch"
	"github.com/iver-wharf/wharf-core/v2/pkg/logger"
)

var log = logger.NewScoped("FETCHER")

// ArtifactLister lists the artifacts of a build.
type ArtifactLister interface {
	ListArtifacts(ctx context.Context, repo circleci.Repo, buildNum uint) ([]circleci.Artifact, error)
}

// ArtifactDownloadError is returned for a single artifact that could not be
// transferred to the store.
type ArtifactDownloadError struct {
	Repo     circleci.Repo
	BuildNum uint
	Path     string
	URL      string
	Err      error
}

// Error implements the error interface.
func (err *ArtifactDownloadError) Error() string {
	return fmt.Sprintf("download artifact %s from %s build #%d: %s",
		err.Path, err.Repo, err.BuildNum, err.Err)
}

// Unwrap implements the interface to support errors.Unwrap.
func (err *ArtifactDownloadError) Unwrap() error {
	return err.Err
}

// Download describes one artifact written to the store.
type Download struct {
	Artifact circleci.Artifact
	Dest     string
	Bytes    int64
}

// Summary is the outcome of fetching one build's artifacts.
type Summary struct {
	Job        string
	BuildNum   uint
	Matched    []circleci.Artifact
	Downloaded []Download
	Failed     int
}

// Fetcher downloads the matching artifacts of resolved builds.
type Fetcher struct {
	Lister     ArtifactLister
	Downloader circleci.Downloader
	Store      artifactstore.Store
	// ListOnly makes Fetch only log the matching artifacts instead of
	// downloading them.
	ListOnly bool
}

// Fetch lists the artifacts of the resolved build and downloads each one
// whose base filename matches any of the build's globs.
//
// Every matching artifact is attempted even if others fail. Failed downloads
// are returned together as *ArtifactDownloadError values after all attempts
// are done. A failure to list the artifacts is returned as-is.
func (f Fetcher) Fetch(ctx context.Context, repo circleci.Repo, res matcher.Resolved) (Summary, error) {
	summary := Summary{Job: res.Job, BuildNum: res.Build.BuildNum}
	artifacts, err := f.Lister.ListArtifacts(ctx, repo, res.Build.BuildNum)
	if err != nil {
		return summary, err
	}
	summary.Matched = Filter(artifacts, res.Globs)
	warnUnmatchedGlobs(repo, res, summary.Matched)

	var errs errutil.Slice
	for _, artifact := range summary.Matched {
		if f.ListOnly {
			log.Info().
				WithString("repo", repo.String()).
				WithUint("build", res.Build.BuildNum).
				WithString("artifact", artifact.Name()).
				WithString("dest", f.Store.Path(artifact.Name())).
				Message("Would download artifact.")
			continue
		}
		dl, err := f.download(ctx, artifact)
		if err != nil {
			summary.Failed++
			downloadErr := &ArtifactDownloadError{
				Repo:     repo,
				BuildNum: res.Build.BuildNum,
				Path:     artifact.Path,
				URL:      artifact.URL,
				Err:      err,
			}
			log.Error().
				WithError(err).
				WithString("repo", repo.String()).
				WithUint("build", res.Build.BuildNum).
				WithString("artifact", artifact.Name()).
				Message("Failed to download artifact.")
			errs.Add(downloadErr)
			continue
		}
		summary.Downloaded = append(summary.Downloaded, dl)
	}
	return summary, errs.Err()
}

func (f Fetcher) download(ctx context.Context, artifact circleci.Artifact) (Download, error) {
	start := time.Now()
	body, err := f.Downloader.OpenArtifact(ctx, artifact.URL)
	if err != nil {
		return Download{}, err
	}
	defer body.Close()

	file, err := f.Store.Create(artifact.Name())
	if err != nil {
		return Download{}, fmt.Errorf("create file: %w", err)
	}
	n, err := io.Copy(file, body)
	if err != nil {
		if abortErr := file.Abort(err); abortErr != nil {
			log.Warn().
				WithError(abortErr).
				WithString("artifact", artifact.Name()).
				Message("Failed to discard partial artifact.")
		}
		return Download{}, fmt.Errorf("write file: %w", err)
	}
	if err := file.Close(); err != nil {
		return Download{}, fmt.Errorf("close file: %w", err)
	}
	dest := f.Store.Path(artifact.Name())
	log.Info().
		WithString("artifact", artifact.Name()).
		WithString("dest", dest).
		WithInt("bytes", int(n)).
		WithDuration("took", time.Since(start)).
		Message("Downloaded artifact.")
	return Download{Artifact: artifact, Dest: dest, Bytes: n}, nil
}

// Filter returns the artifacts whose base filename matches any of the globs,
// in their original order. Each artifact is included at most once.
func Filter(artifacts []circleci.Artifact, globs []string) []circleci.Artifact {
	var matched []circleci.Artifact
	for _, a := range artifacts {
		if MatchAny(globs, a.Name()) {
			matched = append(matched, a)
		}
	}
	return matched
}

// MatchAny reports whether the name matches any of the shell-style glob
// patterns. Matching is case-sensitive and supports "*", "?" and "[...]".
func MatchAny(globs []string, name string) bool {
	for _, g := range globs {
		if fnmatch.Match(g, name, 0) {
			return true
		}
	}
	return false
}

func warnUnmatchedGlobs(repo circleci.Repo, res matcher.Resolved, matched []circleci.Artifact) {
	for _, g := range res.Globs {
		found := false
		for _, a := range matched {
			if fnmatch.Match(g, a.Name(), 0) {
				found = true
				break
			}
		}
		if !found {
			log.Warn().
				WithString("repo", repo.String()).
				WithString("job", res.Job).
				WithUint("build", res.Build.BuildNum).
				WithString("glob", g).
				Message("No artifacts matched glob.")
		}
	}
}
