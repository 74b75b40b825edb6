package orchestrator

import (
	"encoding/json"
	"io"

	"github.com/cloudify-cosmo/cfy-fetch/pkg/matcher"
)

// Report is the outcome of a run, with one entry per repository in the
// order they were requested.
type Report struct {
	Repos []RepoReport `json:"repos"`
}

// RepoReport is the outcome of one repository's pipeline.
type RepoReport struct {
	Repo   string        `json:"repo"`
	State  State         `json:"state"`
	Builds []BuildReport `json:"builds"`
	Errors []string      `json:"errors,omitempty"`
}

// BuildReport describes the build resolved for a job and what was fetched
// from it.
type BuildReport struct {
	Job       string   `json:"job"`
	BuildNum  uint     `json:"buildNum"`
	Branch    string   `json:"branch"`
	Matched   int      `json:"matched"`
	Downloads []string `json:"downloads,omitempty"`
}

func newBuildReport(res matcher.Resolved) BuildReport {
	return BuildReport{
		Job:      res.Job,
		BuildNum: res.Build.BuildNum,
		Branch:   res.Branch,
	}
}

// Failed returns the reports of all repositories that did not finish
// successfully.
func (r Report) Failed() []RepoReport {
	var failed []RepoReport
	for _, rep := range r.Repos {
		if rep.State != StateDone {
			failed = append(failed, rep)
		}
	}
	return failed
}

// WriteJSON writes the report as indented JSON.
func (r Report) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}
