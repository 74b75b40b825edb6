package main

import (
	"context"
	"fmt"
	"os"

	"github.com/cloudify-cosmo/cfy-fetch/internal/flagtypes"
	"github.com/cloudify-cosmo/cfy-fetch/internal/pathutil"
	"github.com/cloudify-cosmo/cfy-fetch/pkg/artifactstore"
	"github.com/cloudify-cosmo/cfy-fetch/pkg/circleci"
	"github.com/cloudify-cosmo/cfy-fetch/pkg/config"
	"github.com/cloudify-cosmo/cfy-fetch/pkg/metrics"
	"github.com/cloudify-cosmo/cfy-fetch/pkg/orchestrator"
	"github.com/spf13/cobra"
)

var fetchFlags = struct {
	requestFlags
	output      string
	dryRun      flagtypes.DryRun
	report      string
	metricsFile string
}{
	dryRun: flagtypes.DryRunNone,
}

var fetchCmd = &cobra.Command{
	Use:   "fetch [request-file]",
	Short: "Download artifacts from the latest successful builds",
	Long: `Resolves the latest successful CircleCI build of every requested job
and downloads the artifacts matching the job's globs into the output
directory.

Every repository is processed concurrently. A failing repository does not
stop the others; the command exits with a non-zero code if any repository
failed.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := rootConfig
		repos, err := fetchFlags.loadRepos(cfg, args)
		if err != nil {
			return err
		}
		outDir := cfg.Output.Dir
		if fetchFlags.output != "" {
			outDir = fetchFlags.output
		}

		ctx, cancel := rootContext()
		defer cancel()
		store, err := newStore(ctx, outDir, cfg.Output.S3)
		if err != nil {
			return err
		}
		client := circleci.NewClient(cfg.CircleCI.APIURL, cfg.CircleCI.VCSType, cfg.CircleCI.Token, cfg.CircleCI.Timeout)
		opts := orchestrator.Options{
			Lister:     client,
			Downloader: client,
			Store:      store,
			Branches:   fetchFlags.branches(cfg.Branches),
			PageSize:   cfg.CircleCI.PageSize,
			ListOnly:   fetchFlags.dryRun == flagtypes.DryRunList,
		}
		if fetchFlags.metricsFile != "" {
			opts.Metrics = metrics.New()
		}
		log.Info().
			WithString("output", prettyOutput(outDir)).
			WithStringf("dryRun", "%s", fetchFlags.dryRun).
			Message("Fetching artifacts.")

		report, runErr := orchestrator.Run(ctx, opts, repos)
		printSummary(os.Stdout, report)
		if err := writeReportFile(fetchFlags.report, report); err != nil {
			return err
		}
		if err := writeMetricsFile(fetchFlags.metricsFile, opts.Metrics); err != nil {
			return err
		}
		if runErr != nil {
			log.Debug().WithError(runErr).Message("Run failed.")
			return errRunFailed
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(fetchCmd)

	fetchFlags.addFlags(fetchCmd.Flags())
	fetchCmd.Flags().StringVarP(&fetchFlags.output, "output", "o", "", "Destination directory (default from config: output.dir)")
	fetchCmd.Flags().Var(&fetchFlags.dryRun, "dry-run", `Must be one of "none" or "list"`)
	fetchCmd.RegisterFlagCompletionFunc("dry-run", flagtypes.CompleteDryRun)
	fetchCmd.Flags().Lookup("dry-run").NoOptDefVal = string(flagtypes.DryRunList)
	fetchCmd.Flags().StringVar(&fetchFlags.report, "report", "", "Write a JSON report of the run to this file")
	fetchCmd.Flags().StringVar(&fetchFlags.metricsFile, "metrics-file", "", "Write Prometheus metrics of the run to this file, for the node-exporter textfile collector")
}

func newStore(ctx context.Context, outDir string, s3Cfg config.S3Config) (artifactstore.Store, error) {
	if !artifactstore.IsS3URL(outDir) {
		return artifactstore.NewDir(outDir), nil
	}
	bucket, prefix, err := artifactstore.ParseS3URL(outDir)
	if err != nil {
		return nil, fmt.Errorf("parse output: %w", err)
	}
	return artifactstore.NewS3(ctx, artifactstore.S3Config{
		Endpoint:  s3Cfg.Endpoint,
		Region:    s3Cfg.Region,
		AccessKey: s3Cfg.AccessKey,
		SecretKey: s3Cfg.SecretKey,
		UseSSL:    s3Cfg.UseSSL,
		Bucket:    bucket,
		Prefix:    prefix,
	})
}

func prettyOutput(outDir string) string {
	if artifactstore.IsS3URL(outDir) {
		return outDir
	}
	return pathutil.PrettyDir(outDir)
}
