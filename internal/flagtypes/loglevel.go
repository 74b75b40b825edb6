package flagtypes

import (
	"errors"
	"strings"

	"github.com/iver-wharf/wharf-core/v2/pkg/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var _ pflag.Value = new(LogLevel)

// LogLevel is a flag for the minimum logging level to print.
type LogLevel logger.Level

// Level returns the flag value as a logger.Level.
func (l LogLevel) Level() logger.Level {
	return logger.Level(l)
}

// String implements the pflag.Value and fmt.Stringer interfaces.
func (l *LogLevel) String() string {
	switch l.Level() {
	case logger.LevelDebug:
		return "debug"
	case logger.LevelInfo:
		return "info"
	case logger.LevelWarn:
		return "warn"
	case logger.LevelError:
		return "error"
	case logger.LevelPanic:
		return "panic"
	default:
		return l.Level().String()
	}
}

// Set implements the pflag.Value interface.
func (l *LogLevel) Set(val string) error {
	newLevel, err := ParseLogLevel(val)
	if err != nil {
		return err
	}
	*l = LogLevel(newLevel)
	return nil
}

// ParseLogLevel parses a level name, its first letter, or its number.
func ParseLogLevel(lvl string) (logger.Level, error) {
	switch strings.ToLower(lvl) {
	case "5", "d", "debug":
		return logger.LevelDebug, nil
	case "4", "i", "info":
		return logger.LevelInfo, nil
	case "3", "w", "warn", "warning", "warnings":
		return logger.LevelWarn, nil
	case "2", "e", "error", "errors":
		return logger.LevelError, nil
	case "1", "p", "panic":
		return logger.LevelPanic, nil
	default:
		return logger.LevelInfo, errors.New(`must be one of "debug", "info", "warn", "error", or "panic"`)
	}
}

// Type implements the pflag.Value interface.
// The value is only used in help text.
func (l *LogLevel) Type() string {
	return "loglevel"
}

// CompleteLogLevel returns completions for the LogLevel type.
func CompleteLogLevel(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
	return []string{
		"debug\tIncludes all logs, such as every API request",
		"info\tIncludes found builds and downloaded artifacts (default)",
		"warn\tIncludes skipped branches and unmatched globs",
		"error\tOnly failed repositories and downloads",
		"panic\tSilent, except for panics",
	}, cobra.ShellCompDirectiveNoFileComp
}
