package main

import (
	"os"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/gurre/blendload"
)

const (
	exitFailure     = 1
	exitUsage       = 2
	exitUnsupported = 3
)

func main() {
	log.SetFormatter(&log.JSONFormatter{})
	log.SetOutput(os.Stderr)

	if err := newRootCmd().Execute(); err != nil {
		log.WithError(err).Error("blendload failed")
		os.Exit(exitCode(err))
	}
}

// usageError marks errors caused by bad command-line input.
type usageError struct {
	err error
}

func (e usageError) Error() string { return e.err.Error() }
func (e usageError) Unwrap() error { return e.err }

func exitCode(err error) int {
	var usage usageError
	switch {
	case errors.As(err, &usage):
		return exitUsage
	case errors.Is(err, blendload.ErrUnsupportedFormat), errors.Is(err, blendload.ErrShortBuffer):
		return exitUnsupported
	default:
		return exitFailure
	}
}
