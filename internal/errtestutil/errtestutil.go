package errtestutil

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/cloudify-cosmo/cfy-fetch/internal/errutil"
)

// RequireContainsErr fails the test if no error in the slice Is the given
// error.
func RequireContainsErr(t *testing.T, errs errutil.Slice, err error) {
	t.Helper()
	for _, e := range errs {
		if errors.Is(e, err) {
			return
		}
	}
	t.Fatalf("\nexpected contains error: %q\nactual: (len=%d)\n%s",
		err, len(errs), formatSlice("  - ", errs))
}

// RequireContainsErrAt fails the test if no error in the slice Is the given
// error while also being positioned at the given line and column.
func RequireContainsErrAt(t *testing.T, errs errutil.Slice, err error, line, column int) {
	t.Helper()
	for _, e := range errs {
		if !errors.Is(e, err) {
			continue
		}
		l, c := errutil.AsPos(e)
		if l == line && c == column {
			return
		}
	}
	t.Fatalf("\nexpected contains error: %q at %d:%d\nactual: (len=%d)\n%s",
		err, line, column, len(errs), formatSlice("  - ", errs))
}

// RequireNotContainsErr fails the test if any error in the slice Is the given
// error.
func RequireNotContainsErr(t *testing.T, errs errutil.Slice, err error) {
	t.Helper()
	for i, e := range errs {
		if errors.Is(e, err) {
			t.Fatalf("\nexpected not to contain error: %q\nfound at index=%d\nactual: (len=%d)\n%s",
				err, i, len(errs), formatSlice("  - ", errs))
			return
		}
	}
}

// RequireNoErr fails the test if the error slice is not empty.
func RequireNoErr(t *testing.T, errs errutil.Slice) {
	t.Helper()
	if len(errs) == 0 {
		return
	}
	t.Fatalf("\nexpected no errors\nactual: (len=%d)\n%s",
		len(errs), formatSlice("  - ", errs))
}

func formatSlice(prefix string, errs errutil.Slice) string {
	var sb strings.Builder
	for i, err := range errs {
		scope := errutil.AsScope(err)
		if scope != "" {
			scope = " " + scope + ":"
		}
		var posErr errutil.Pos
		if errors.As(err, &posErr) {
			fmt.Fprintf(&sb, "%s[i=%d, at %d:%d]%s %s\n", prefix, i, posErr.Line, posErr.Column, scope, err)
		} else {
			fmt.Fprintf(&sb, "%s[i=%d]%s %s\n", prefix, i, scope, err)
		}
	}
	return sb.String()
}
