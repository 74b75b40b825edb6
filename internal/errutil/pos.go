package errutil

import (
	"errors"
	"sort"
)

// Pos is an error positioned at a line and column of a source file, such as
// a request file.
type Pos struct {
	Err    error
	Line   int
	Column int
}

// NewPos positions an error at the given 1-based line and column. A nil error
// stays nil.
func NewPos(err error, line, column int) error {
	if err == nil {
		return nil
	}
	return Pos{Err: err, Line: line, Column: column}
}

// Error implements the error interface. The position is not part of the
// message; use AsPos to get it.
func (err Pos) Error() string {
	if err.Err == nil {
		return ""
	}
	return err.Err.Error()
}

// Unwrap implements the interface to support errors.Is and errors.As.
func (err Pos) Unwrap() error {
	return err.Err
}

// AsPos returns the line and column of the outermost positioned error in the
// chain, or 0,0 if there is none.
func AsPos(err error) (line, column int) {
	var posErr Pos
	if !errors.As(err, &posErr) {
		return 0, 0
	}
	return posErr.Line, posErr.Column
}

// SortByPos sorts errors by line, then column. Errors without a position are
// placed first. Errors at the same position keep their relative order.
func SortByPos(errs Slice) {
	sort.SliceStable(errs, func(i, j int) bool {
		aLine, aColumn := AsPos(errs[i])
		bLine, bColumn := AsPos(errs[j])
		if aLine != bLine {
			return aLine < bLine
		}
		return aColumn < bColumn
	})
}
