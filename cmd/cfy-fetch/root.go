package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/cloudify-cosmo/cfy-fetch/internal/flagtypes"
	"github.com/cloudify-cosmo/cfy-fetch/pkg/config"
	"github.com/iver-wharf/wharf-core/v2/pkg/app"
	"github.com/iver-wharf/wharf-core/v2/pkg/logger"
	"github.com/iver-wharf/wharf-core/v2/pkg/logger/consolepretty"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var log = logger.NewScoped("CFY-FETCH")

var isLoggingInitialized bool
var loglevel = flagtypes.LogLevel(logger.LevelInfo)

var rootConfig config.Config

var rootCmd = &cobra.Command{
	SilenceErrors: true,
	SilenceUsage:  true,
	Use:           "cfy-fetch",
	Short:         "Downloads artifacts from the latest successful CircleCI builds",
	Long: `Finds the most recent successful CircleCI build of each requested
job, searching the active branch first and then the default branch,
and downloads the build artifacts matching the requested globs.

The repositories, jobs, and globs are read from a request file:

  # cfy-fetch-requests.yml
  organization: cloudify-cosmo
  repositories:
    cloudify-manager:
      build-rpms:
        - cloudify-*.rpm`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := loadDotEnv(".env"); err != nil {
			return err
		}
		cfg, err := config.LoadConfig()
		if err != nil {
			return err
		}
		rootConfig = cfg
		return nil
	},
}

func loadDotEnv(path string) error {
	err := godotenv.Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	log.Debug().WithString("path", path).Message("Loaded environment variables from file.")
	return nil
}

func execute(version app.Version) {
	rootCmd.Version = versionString(version)
	if err := rootCmd.Execute(); err != nil {
		initLoggingIfNeeded()
		log.Error().Message(err.Error())
		os.Exit(1)
	}
}

func versionString(v app.Version) string {
	var sb strings.Builder
	if v.Version != "" {
		sb.WriteString(v.Version)
	} else {
		sb.WriteString("v0.0.0")
	}
	if v.BuildRef != 0 {
		fmt.Fprintf(&sb, " #%d", v.BuildRef)
	}
	if v.BuildGitCommit != "" && v.BuildGitCommit != "HEAD" {
		fmt.Fprintf(&sb, " (%s)", v.BuildGitCommit)
	}
	if v.BuildDate != (time.Time{}) {
		sb.WriteString(" built ")
		sb.WriteString(v.BuildDate.Format(time.RFC1123))
	}
	return sb.String()
}

func init() {
	cobra.OnInitialize(initLogging)
	rootCmd.InitDefaultVersionFlag()
	rootCmd.PersistentFlags().Var(&loglevel, "loglevel", "Show debug information")
	rootCmd.RegisterFlagCompletionFunc("loglevel", flagtypes.CompleteLogLevel)
}

func initLoggingIfNeeded() {
	if !isLoggingInitialized {
		initLogging()
	}
}

func initLogging() {
	logConfig := consolepretty.DefaultConfig
	if loglevel.Level() != logger.LevelDebug {
		logConfig.DisableCaller = true
		logConfig.DisableDate = true
		logConfig.ScopeMinLengthAuto = false
	}
	logger.AddOutput(loglevel.Level(), consolepretty.New(logConfig))
	log.Debug().WithStringer("loglevel", loglevel.Level()).Message("Setting log-level.")
	isLoggingInitialized = true
}
