// Filename: pathtaint/errors.go
package pathtaint

import (
	"errors"
	"fmt"
)

// ErrAnalysisTimeout reports that a function exceeded its iteration cap or
// its wall-clock budget. Analysis of other functions continues.
var ErrAnalysisTimeout = errors.New("analysis timeout")

// FunctionError ties an analysis failure to the function it happened in.
type FunctionError struct {
	File     string
	Function string
	Err      error
}

func (e *FunctionError) Error() string {
	return fmt.Sprintf("%s: function %s: %v", e.File, e.Function, e.Err)
}

func (e *FunctionError) Unwrap() error { return e.Err }

// IsTimeout reports whether err is, or wraps, ErrAnalysisTimeout.
func IsTimeout(err error) bool { return errors.Is(err, ErrAnalysisTimeout) }
