package matcher

import (
	"context"
	"errors"
	"testing"

	"github.com/cloudify-cosmo/cfy-fetch/pkg/circleci"
	"github.com/cloudify-cosmo/cfy-fetch/pkg/request"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testRepo = circleci.Repo{Org: "cloudify-cosmo", Name: "cloudify-manager"}

type mockLister struct {
	branches map[string][]circleci.Build
	errs     map[string]error
	calls    map[string]int
}

func newMockLister() *mockLister {
	return &mockLister{
		branches: map[string][]circleci.Build{},
		errs:     map[string]error{},
		calls:    map[string]int{},
	}
}

func (m *mockLister) ListBuilds(ctx context.Context, repo circleci.Repo, branch string, offset, limit int) ([]circleci.Build, error) {
	m.calls[branch]++
	if err, ok := m.errs[branch]; ok {
		return nil, err
	}
	builds := m.branches[branch]
	if offset >= len(builds) {
		return nil, nil
	}
	end := offset + limit
	if end > len(builds) {
		end = len(builds)
	}
	return builds[offset:end], nil
}

func newBuild(num uint, job, status string) circleci.Build {
	return circleci.Build{
		BuildNum:  num,
		Status:    status,
		Workflows: &circleci.Workflow{JobName: job},
	}
}

func newRequest(jobs ...string) request.Repository {
	m := make(map[string][]string, len(jobs))
	for _, j := range jobs {
		m[j] = []string{j + "-*.rpm"}
	}
	return request.Repository{Repo: testRepo, Jobs: m}
}

func TestResolvePicksFirstSuccessNewestFirst(t *testing.T) {
	lister := newMockLister()
	lister.branches["master"] = []circleci.Build{
		newBuild(50, "build-rpms", "failed"),
		newBuild(49, "build-rpms", "success"),
		newBuild(48, "build-rpms", "success"),
	}
	req := request.Repository{
		Repo: testRepo,
		Jobs: map[string][]string{"build-rpms": {"cloudify-*.rpm"}},
	}

	result, err := Resolve(context.Background(), lister, req, []string{"master"}, Options{})
	require.NoError(t, err)
	require.Contains(t, result, "build-rpms")
	assert.Equal(t, uint(49), result["build-rpms"].Build.BuildNum)
	assert.Equal(t, "master", result["build-rpms"].Branch)
	assert.Equal(t, []string{"cloudify-*.rpm"}, result["build-rpms"].Globs)
}

func TestResolveAllJobs(t *testing.T) {
	lister := newMockLister()
	lister.branches["master"] = []circleci.Build{
		newBuild(10, "a", "success"),
		newBuild(9, "b", "running"),
		newBuild(8, "other", "success"),
		newBuild(7, "b", "success"),
		newBuild(6, "a", "success"),
	}

	result, err := Resolve(context.Background(), lister, newRequest("a", "b"), []string{"master"}, Options{PageSize: 2})
	require.NoError(t, err)
	assert.Equal(t, uint(10), result["a"].Build.BuildNum)
	assert.Equal(t, uint(7), result["b"].Build.BuildNum)
	assert.Len(t, result, 2)
}

func TestResolveStopsPagingWhenSatisfied(t *testing.T) {
	lister := newMockLister()
	lister.branches["master"] = []circleci.Build{
		newBuild(10, "a", "success"),
		newBuild(9, "a", "success"),
		newBuild(8, "a", "success"),
		newBuild(7, "a", "success"),
	}

	_, err := Resolve(context.Background(), lister, newRequest("a"), []string{"master", "other"}, Options{PageSize: 1})
	require.NoError(t, err)
	assert.Equal(t, 1, lister.calls["master"])
	assert.Equal(t, 0, lister.calls["other"])
}

func TestResolveFallsBackToNextBranch(t *testing.T) {
	lister := newMockLister()
	lister.branches["feature"] = []circleci.Build{
		newBuild(30, "a", "success"),
		newBuild(29, "b", "failed"),
	}
	lister.branches["master"] = []circleci.Build{
		newBuild(20, "a", "success"),
		newBuild(19, "b", "success"),
	}

	result, err := Resolve(context.Background(), lister, newRequest("a", "b"), []string{"feature", "master"}, Options{})
	require.NoError(t, err)
	assert.Equal(t, uint(30), result["a"].Build.BuildNum)
	assert.Equal(t, "feature", result["a"].Branch)
	assert.Equal(t, uint(19), result["b"].Build.BuildNum)
	assert.Equal(t, "master", result["b"].Branch)
}

func TestResolveEarlierBranchWinsOverNewerBuild(t *testing.T) {
	lister := newMockLister()
	lister.branches["feature"] = []circleci.Build{newBuild(5, "a", "success")}
	lister.branches["master"] = []circleci.Build{newBuild(100, "a", "success")}

	result, err := Resolve(context.Background(), lister, newRequest("a"), []string{"feature", "master"}, Options{})
	require.NoError(t, err)
	assert.Equal(t, uint(5), result["a"].Build.BuildNum)
}

func TestResolveBuildsNotFound(t *testing.T) {
	lister := newMockLister()
	lister.branches["feature"] = []circleci.Build{newBuild(2, "a", "success")}
	lister.branches["master"] = []circleci.Build{newBuild(1, "a", "failed")}

	result, err := Resolve(context.Background(), lister, newRequest("a", "missing", "also-missing"), []string{"feature", "master"}, Options{})
	require.Error(t, err)

	var notFound *BuildsNotFoundError
	require.True(t, errors.As(err, &notFound))
	assert.Equal(t, testRepo, notFound.Repo)
	assert.Equal(t, []string{"also-missing", "missing"}, notFound.Jobs)
	assert.Equal(t, []string{"feature", "master"}, notFound.Branches)
	assert.Contains(t, err.Error(), "missing")
	assert.Equal(t, uint(2), result["a"].Build.BuildNum, "partial result is still returned")
}

func TestResolveBranchErrorFallsBack(t *testing.T) {
	errBoom := errors.New("boom")
	lister := newMockLister()
	lister.errs["feature"] = errBoom
	lister.branches["master"] = []circleci.Build{newBuild(3, "a", "success")}

	result, err := Resolve(context.Background(), lister, newRequest("a"), []string{"feature", "master"}, Options{})
	require.NoError(t, err)
	assert.Equal(t, uint(3), result["a"].Build.BuildNum)
	assert.Equal(t, 1, lister.calls["feature"])
}

func TestResolveBranchErrorKeptAsCause(t *testing.T) {
	errBoom := errors.New("boom")
	lister := newMockLister()
	lister.errs["master"] = errBoom

	_, err := Resolve(context.Background(), lister, newRequest("a"), []string{"master"}, Options{})
	var notFound *BuildsNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.ErrorIs(t, err, errBoom)
	assert.Len(t, notFound.Causes, 1)
}

func TestResolveSkipsBuildsWithoutWorkflow(t *testing.T) {
	lister := newMockLister()
	lister.branches["master"] = []circleci.Build{
		{BuildNum: 9, Status: "success"},
		newBuild(8, "a", "success"),
	}
	result, err := Resolve(context.Background(), lister, newRequest("a"), []string{"master"}, Options{})
	require.NoError(t, err)
	assert.Equal(t, uint(8), result["a"].Build.BuildNum)
}

func TestResolveDoesNotMutateRequest(t *testing.T) {
	lister := newMockLister()
	lister.branches["master"] = []circleci.Build{newBuild(1, "a", "success")}
	req := newRequest("a", "b")

	Resolve(context.Background(), lister, req, []string{"master"}, Options{})
	assert.Len(t, req.Jobs, 2)
}

func TestResolveOnBranchCallback(t *testing.T) {
	lister := newMockLister()
	lister.branches["master"] = []circleci.Build{newBuild(1, "a", "success")}
	var seen []string
	var outstanding [][]string
	opts := Options{OnBranch: func(branch string, jobs []string) {
		seen = append(seen, branch)
		outstanding = append(outstanding, jobs)
	}}

	Resolve(context.Background(), lister, newRequest("a", "b"), []string{"feature", "master"}, opts)
	assert.Equal(t, []string{"feature", "master"}, seen)
	assert.Equal(t, [][]string{{"a", "b"}, {"a", "b"}}, outstanding)
}

func TestResultSorted(t *testing.T) {
	r := Result{
		"b": {Job: "b"},
		"a": {Job: "a"},
	}
	sorted := r.Sorted()
	require.Len(t, sorted, 2)
	assert.Equal(t, "a", sorted[0].Job)
	assert.Equal(t, "b", sorted[1].Job)
}
