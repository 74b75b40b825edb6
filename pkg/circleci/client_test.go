package circleci

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testRepo = Repo{Org: "cloudify-cosmo", Name: "cloudify-manager"}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, "github", "secret-token", 5*time.Second)
}

func TestListBuilds(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/project/github/cloudify-cosmo/cloudify-manager/tree/feature%2Fx", r.URL.EscapedPath())
		assert.Equal(t, "200", r.URL.Query().Get("offset"))
		assert.Equal(t, "100", r.URL.Query().Get("limit"))
		assert.Equal(t, "secret-token", r.Header.Get("Circle-Token"))
		io.WriteString(w, `[
			{"build_num": 50, "branch": "feature/x", "status": "failed", "outcome": "failed",
			 "stop_time": "2022-03-01T10:00:00.000Z",
			 "workflows": {"job_name": "build-rpms", "workflow_name": "build"}},
			{"build_num": 49, "branch": "feature/x", "status": "success", "outcome": null,
			 "stop_time": null, "workflows": null}
		]`)
	})

	builds, err := client.ListBuilds(context.Background(), testRepo, "feature/x", 200, 100)
	require.NoError(t, err)
	require.Len(t, builds, 2)

	assert.Equal(t, uint(50), builds[0].BuildNum)
	assert.Equal(t, "build-rpms", builds[0].JobName())
	assert.False(t, builds[0].IsSuccess())
	assert.Equal(t, "failed", builds[0].Outcome.String)
	assert.True(t, builds[0].StopTime.Valid)

	assert.Equal(t, uint(49), builds[1].BuildNum)
	assert.Equal(t, "", builds[1].JobName())
	assert.True(t, builds[1].IsSuccess())
	assert.False(t, builds[1].Outcome.Valid)
	assert.False(t, builds[1].StopTime.Valid)
}

func TestListBuildsEmptyPage(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `[]`)
	})
	builds, err := client.ListBuilds(context.Background(), testRepo, "master", 0, 100)
	require.NoError(t, err)
	assert.Empty(t, builds)
}

func TestListBuildsStatusError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		io.WriteString(w, `{"message": "Project not found"}`)
	})
	_, err := client.ListBuilds(context.Background(), testRepo, "master", 0, 100)
	require.Error(t, err)

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusNotFound, statusErr.StatusCode)
	assert.Contains(t, statusErr.Body, "Project not found")
}

func TestListArtifacts(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/project/github/cloudify-cosmo/cloudify-manager/49/artifacts", r.URL.Path)
		io.WriteString(w, `[
			{"path": "home/circleci/rpm/cloudify-rest-service-6.4.0.rpm",
			 "url": "https://output.circle-artifacts.com/0/cloudify-rest-service-6.4.0.rpm",
			 "node_index": 0}
		]`)
	})
	artifacts, err := client.ListArtifacts(context.Background(), testRepo, 49)
	require.NoError(t, err)
	require.Len(t, artifacts, 1)
	assert.Equal(t, "cloudify-rest-service-6.4.0.rpm", artifacts[0].Name())
}

func TestOpenArtifactStreamsBody(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "rpm bytes")
	})
	body, err := client.OpenArtifact(context.Background(), client.APIURL+"/some/file.rpm")
	require.NoError(t, err)
	defer body.Close()
	content, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, "rpm bytes", string(content))
}

func TestClientOmitsTokenWhenEmpty(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, ok := r.Header["Circle-Token"]
		assert.False(t, ok)
		io.WriteString(w, `[]`)
	})
	client.Token = ""
	_, err := client.ListBuilds(context.Background(), testRepo, "master", 0, 100)
	require.NoError(t, err)
}

func TestRepoString(t *testing.T) {
	assert.Equal(t, "cloudify-cosmo/cloudify-manager", testRepo.String())
	assert.Equal(t, "cloudify-manager", Repo{Name: "cloudify-manager"}.String())
}
