// Package circleci provides a minimal client for the CircleCI v1.1 REST API,
// covering recent builds per branch and build artifacts.
package circleci

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/iver-wharf/wharf-core/v2/pkg/logger"
)

var log = logger.NewScoped("CIRCLECI")

const (
	// DefaultAPIURL is the base URL of the public CircleCI v1.1 API.
	DefaultAPIURL = "https://circleci.com/api/v1.1"
	// DefaultPageSize is the largest page size the builds listing accepts.
	DefaultPageSize = 100

	maxErrorBodyLength = 512
)

// Lister is the read-only part of the API used when resolving builds and
// their artifacts.
type Lister interface {
	ListBuilds(ctx context.Context, repo Repo, branch string, offset, limit int) ([]Build, error)
	ListArtifacts(ctx context.Context, repo Repo, buildNum uint) ([]Artifact, error)
}

// Downloader opens artifact content for streaming.
type Downloader interface {
	OpenArtifact(ctx context.Context, artifactURL string) (io.ReadCloser, error)
}

// Client is a CircleCI API client. The zero value is not usable; at least
// APIURL must be set.
type Client struct {
	// APIURL is the base URL, such as "https://circleci.com/api/v1.1".
	APIURL string
	// VCSType is the version control provider segment of project URLs,
	// such as "github" or "bitbucket".
	VCSType string
	// Token is an optional API token, sent in the Circle-Token header.
	Token string
	// HTTPClient is the client used for all requests. Defaults to
	// http.DefaultClient when nil.
	HTTPClient *http.Client
}

// NewClient returns a client for the given API URL with a bounded request
// timeout.
func NewClient(apiURL, vcsType, token string, timeout time.Duration) *Client {
	return &Client{
		APIURL:     apiURL,
		VCSType:    vcsType,
		Token:      token,
		HTTPClient: &http.Client{Timeout: timeout},
	}
}

var _ Lister = &Client{}
var _ Downloader = &Client{}

// ListBuilds returns one page of the recent builds of a branch, most recent
// first. An empty slice means there are no builds at or beyond the offset.
func (c *Client) ListBuilds(ctx context.Context, repo Repo, branch string, offset, limit int) ([]Build, error) {
	u := fmt.Sprintf("%s/tree/%s?%s", c.projectURL(repo), url.PathEscape(branch), url.Values{
		"offset": {strconv.Itoa(offset)},
		"limit":  {strconv.Itoa(limit)},
	}.Encode())
	var builds []Build
	if err := c.getJSON(ctx, u, &builds); err != nil {
		return nil, fmt.Errorf("list builds for %s on branch %q at offset %d: %w",
			repo, branch, offset, err)
	}
	return builds, nil
}

// ListArtifacts returns all artifacts uploaded by a build.
func (c *Client) ListArtifacts(ctx context.Context, repo Repo, buildNum uint) ([]Artifact, error) {
	u := fmt.Sprintf("%s/%d/artifacts", c.projectURL(repo), buildNum)
	var artifacts []Artifact
	if err := c.getJSON(ctx, u, &artifacts); err != nil {
		return nil, fmt.Errorf("list artifacts for %s build #%d: %w", repo, buildNum, err)
	}
	return artifacts, nil
}

// OpenArtifact starts downloading an artifact. The caller must close the
// returned body.
func (c *Client) OpenArtifact(ctx context.Context, artifactURL string) (io.ReadCloser, error) {
	resp, err := c.do(ctx, artifactURL, "*/*")
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

func (c *Client) projectURL(repo Repo) string {
	return fmt.Sprintf("%s/project/%s/%s/%s", c.APIURL,
		url.PathEscape(c.VCSType), url.PathEscape(repo.Org), url.PathEscape(repo.Name))
}

func (c *Client) getJSON(ctx context.Context, u string, v any) error {
	resp, err := c.do(ctx, u, "application/json")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, u string, accept string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", accept)
	if c.Token != "" {
		req.Header.Set("Circle-Token", c.Token)
	}
	log.Debug().WithString("url", req.URL.Redacted()).Message("Sending request.")
	resp, err := c.httpClient().Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyLength))
		return nil, &StatusError{
			URL:        req.URL.Redacted(),
			StatusCode: resp.StatusCode,
			Body:       string(body),
		}
	}
	return resp, nil
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient == nil {
		return http.DefaultClient
	}
	return c.HTTPClient
}
