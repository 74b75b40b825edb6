package pathutil

import (
	"os"
	"path/filepath"
	"strings"
)

// ShorthandHome returns the same path but replaces the first part of the
// path with the home shorthand ("~") if the path is inside the home directory.
//
// Example:
//
//	Input:  "/home/jane/Downloads"
//	Output: "~/Downloads"
func ShorthandHome(path string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return useShorthandHomePrefix(path, home)
}

// PrettyDir returns the absolute form of a directory path, shortened with
// ShorthandHome. The path is returned as-is if it cannot be made absolute.
func PrettyDir(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	return ShorthandHome(abs)
}

func useShorthandHomePrefix(path, home string) string {
	home = strings.TrimSuffix(home, string(filepath.Separator))
	if home == "" {
		return path
	}
	if path == home {
		return "~"
	}
	if !strings.HasPrefix(path, home+string(filepath.Separator)) {
		return path
	}
	return "~" + strings.TrimPrefix(path, home)
}
