package main

import (
	"os"

	"github.com/cloudify-cosmo/cfy-fetch/pkg/circleci"
	"github.com/cloudify-cosmo/cfy-fetch/pkg/orchestrator"
	"github.com/spf13/cobra"
)

var resolveFlags struct {
	requestFlags
	report string
}

var resolveCmd = &cobra.Command{
	Use:   "resolve [request-file]",
	Short: "Print the latest successful build of every requested job",
	Long: `Resolves the latest successful CircleCI build of every requested job,
the same way as "cfy-fetch fetch", without listing or downloading any
artifacts.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := rootConfig
		repos, err := resolveFlags.loadRepos(cfg, args)
		if err != nil {
			return err
		}
		client := circleci.NewClient(cfg.CircleCI.APIURL, cfg.CircleCI.VCSType, cfg.CircleCI.Token, cfg.CircleCI.Timeout)
		opts := orchestrator.Options{
			Lister:      client,
			Downloader:  client,
			Branches:    resolveFlags.branches(cfg.Branches),
			PageSize:    cfg.CircleCI.PageSize,
			ResolveOnly: true,
		}

		ctx, cancel := rootContext()
		defer cancel()
		report, runErr := orchestrator.Run(ctx, opts, repos)
		printSummary(os.Stdout, report)
		if err := writeReportFile(resolveFlags.report, report); err != nil {
			return err
		}
		if runErr != nil {
			log.Debug().WithError(runErr).Message("Resolve failed.")
			return errRunFailed
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(resolveCmd)

	resolveFlags.addFlags(resolveCmd.Flags())
	resolveCmd.Flags().StringVar(&resolveFlags.report, "report", "", "Write a JSON report of the run to this file")
}
