package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/cloudify-cosmo/cfy-fetch/internal/errutil"
	"github.com/cloudify-cosmo/cfy-fetch/pkg/config"
	"github.com/cloudify-cosmo/cfy-fetch/pkg/metrics"
	"github.com/cloudify-cosmo/cfy-fetch/pkg/orchestrator"
	"github.com/cloudify-cosmo/cfy-fetch/pkg/request"
	"github.com/fatih/color"
	"github.com/rogpeppe/go-internal/lockedfile"
	"github.com/spf13/pflag"
)

var errRunFailed = errors.New("one or more repositories failed")

type requestFlags struct {
	requestsFile string
	branch       string
	only         []string
}

func (f *requestFlags) addFlags(flags *pflag.FlagSet) {
	flags.StringVarP(&f.requestsFile, "requests", "r", "", "Path to request file (default from config: requests.file)")
	flags.StringVarP(&f.branch, "branch", "b", "", "Active branch to search before the default branch (default from $CIRCLE_BRANCH)")
	flags.StringSliceVar(&f.only, "only", nil, "Only process the named repositories, as name or org/name (can be set multiple times)")
}

// branches returns the branch search order, with the --branch flag taking
// precedence over the config.
func (f *requestFlags) branches(cfg config.BranchesConfig) []string {
	if f.branch != "" {
		cfg.Active = f.branch
	}
	return cfg.SearchOrder(os.LookupEnv)
}

func (f *requestFlags) loadRepos(cfg config.Config, args []string) ([]request.Repository, error) {
	path := f.requestsFile
	if len(args) > 0 {
		path = args[0]
	}
	if path == "" {
		path = cfg.Requests.File
	}
	file, errs := request.ParseFile(path)
	if len(errs) > 0 {
		logParseErrors(errs, path)
		return nil, fmt.Errorf("parse request file: %d errors", len(errs))
	}
	repos := request.Filter(file.WithOrganization(cfg.CircleCI.Organization), f.only)
	if len(repos) == 0 {
		return nil, fmt.Errorf("no repositories to process in %s", path)
	}
	log.Debug().
		WithString("file", path).
		WithInt("repos", len(repos)).
		Message("Loaded request file.")
	return repos, nil
}

func logParseErrors(errs errutil.Slice, path string) {
	errutil.SortByPos(errs)
	log.Warn().
		WithString("file", path).
		WithInt("errors", len(errs)).
		Message("Cannot fetch due to request file errors.")
	log.Warn().Message("")
	for _, err := range errs {
		scopePrefix := errutil.AsScope(err)
		if scopePrefix != "" {
			scopePrefix += ": "
		}
		var posErr errutil.Pos
		if errors.As(err, &posErr) {
			log.Warn().Message(fmt.Sprintf("%4d:%-4d %s%s",
				posErr.Line, posErr.Column, scopePrefix, err.Error()))
		} else {
			log.Warn().Message(fmt.Sprintf("   -:-    %s%s", scopePrefix, err.Error()))
		}
	}
	log.Warn().Message("")
}

func writeReportFile(path string, report orchestrator.Report) error {
	if path == "" {
		return nil
	}
	var buf bytes.Buffer
	if err := report.WriteJSON(&buf); err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	// Parallel CI steps may share a report path. The lock keeps their
	// writes from interleaving.
	if err := lockedfile.Write(path, &buf, 0664); err != nil {
		return fmt.Errorf("write report file: %w", err)
	}
	log.Debug().WithString("file", path).Message("Wrote report.")
	return nil
}

func writeMetricsFile(path string, m *metrics.Metrics) error {
	if path == "" || m == nil {
		return nil
	}
	if err := m.WriteTextfile(path); err != nil {
		return fmt.Errorf("write metrics file: %w", err)
	}
	log.Debug().WithString("file", path).Message("Wrote metrics.")
	return nil
}

func printSummary(w io.Writer, report orchestrator.Report) {
	bold := color.New(color.Bold)
	green := color.New(color.FgGreen)
	red := color.New(color.FgRed)
	faint := color.New(color.Faint)

	fmt.Fprintln(w)
	for _, repo := range report.Repos {
		stateColor := green
		if repo.State != orchestrator.StateDone {
			stateColor = red
		}
		fmt.Fprintf(w, "%s %s\n", stateColor.Sprintf("%-9s", repo.State), bold.Sprint(repo.Repo))
		for _, b := range repo.Builds {
			fmt.Fprintf(w, "          %-24s #%-8d %s  %s\n",
				b.Job, b.BuildNum, faint.Sprintf("(%s)", b.Branch), formatMatched(b))
		}
		for _, e := range repo.Errors {
			for _, line := range strings.Split(e, "\n") {
				fmt.Fprintf(w, "          %s\n", red.Sprint(line))
			}
		}
	}
	failed := len(report.Failed())
	total := len(report.Repos)
	fmt.Fprintln(w)
	if failed > 0 {
		red.Fprintf(w, "%d of %d repositories failed.\n", failed, total)
	} else {
		green.Fprintf(w, "All %d repositories done.\n", total)
	}
}

func formatMatched(b orchestrator.BuildReport) string {
	if len(b.Downloads) > 0 {
		return fmt.Sprintf("%d matched, %d downloaded", b.Matched, len(b.Downloads))
	}
	if b.Matched > 0 {
		return fmt.Sprintf("%d matched", b.Matched)
	}
	return ""
}

func rootContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt)
}
