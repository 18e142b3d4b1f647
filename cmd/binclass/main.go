package main

import (
	"fmt"
	"os"

	"github.com/YuminosukeSato/binclass/pkg/errors"
)

// Exit codes for different failure modes
const (
	ExitSuccess        = 0
	ExitClassifyFailed = 1 // the classify action reported an error
	ExitError          = 2 // configuration, data or runtime error
)

// ClassifyFailureError reports a classify pass that ended with an error message on the page.
type ClassifyFailureError struct {
	Message string
}

func (e *ClassifyFailureError) Error() string {
	return e.Message
}

func main() {
	if err := execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)

		var failure *ClassifyFailureError
		if errors.As(err, &failure) {
			os.Exit(ExitClassifyFailed)
		}
		os.Exit(ExitError)
	}
}
