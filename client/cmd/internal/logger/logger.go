package logger

import (
	"os"

	"github.com/goto/salt/log"
)

// NewClientLogger returns the logger used by every CLI command. Output goes
// to stderr so report files piped from stdout stay clean.
func NewClientLogger() log.Logger {
	return log.NewLogrus(
		log.LogrusWithLevel("INFO"),
		log.LogrusWithWriter(os.Stderr),
	)
}

func NewVerboseLogger() log.Logger {
	return log.NewLogrus(
		log.LogrusWithLevel("DEBUG"),
		log.LogrusWithWriter(os.Stderr),
	)
}
