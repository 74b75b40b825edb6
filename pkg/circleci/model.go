package circleci

import (
	"path"

	"gopkg.in/guregu/null.v4"
)

// StatusSuccess is the build status CircleCI reports for a build that
// finished without failures.
const StatusSuccess = "success"

// Build is a build summary as returned by the recent builds listing of a
// project branch.
type Build struct {
	BuildNum        uint        `json:"build_num"`
	Branch          string      `json:"branch"`
	Status          string      `json:"status"`
	Outcome         null.String `json:"outcome"`
	VCSRevision     string      `json:"vcs_revision"`
	StopTime        null.Time   `json:"stop_time"`
	BuildTimeMillis null.Int    `json:"build_time_millis"`
	Workflows       *Workflow   `json:"workflows"`
}

// Workflow is the workflow metadata attached to a build. Builds triggered
// outside of workflows have no such metadata.
type Workflow struct {
	JobName      string `json:"job_name"`
	WorkflowName string `json:"workflow_name"`
	WorkflowID   string `json:"workflow_id"`
}

// JobName returns the workflow job name of the build, or an empty string if
// the build was not part of a workflow.
func (b Build) JobName() string {
	if b.Workflows == nil {
		return ""
	}
	return b.Workflows.JobName
}

// IsSuccess reports whether the build finished successfully.
func (b Build) IsSuccess() bool {
	return b.Status == StatusSuccess
}

// Artifact is a file uploaded by a build.
type Artifact struct {
	Path      string `json:"path"`
	URL       string `json:"url"`
	NodeIndex int    `json:"node_index"`
}

// Name returns the base filename of the artifact's path.
func (a Artifact) Name() string {
	return path.Base(a.Path)
}

// Repo identifies a project on CircleCI.
type Repo struct {
	Org  string
	Name string
}

// String returns the "org/name" representation of the repository.
func (r Repo) String() string {
	if r.Org == "" {
		return r.Name
	}
	return r.Org + "/" + r.Name
}
