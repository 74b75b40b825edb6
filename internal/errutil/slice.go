package errutil

import "strings"

// Slice is a slice of errors.
type Slice []error

// Add appends another error to this slice of errors. Nil errors are ignored.
func (s *Slice) Add(errs ...error) {
	for _, err := range errs {
		if err == nil {
			continue
		}
		*s = append(*s, err)
	}
}

// Err returns nil if the slice is empty, the only error if it contains
// exactly one, or else the slice itself as a joined error.
func (s Slice) Err() error {
	switch len(s) {
	case 0:
		return nil
	case 1:
		return s[0]
	default:
		return s
	}
}

// Error implements the error interface. Each error is written on its own
// line.
func (s Slice) Error() string {
	var sb strings.Builder
	for i, err := range s {
		if i > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(err.Error())
	}
	return sb.String()
}

// Unwrap returns the wrapped errors, to support errors.Is and errors.As.
func (s Slice) Unwrap() []error {
	return s
}
