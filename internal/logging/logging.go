// Package logging configures the process-wide logrus logger.
package logging

import (
	"fmt"
	"io"
	"strings"

	log "github.com/sirupsen/logrus"
)

const (
	FormatText = "text"
	FormatJSON = "json"
)

// Setup sets the level and formatter of the standard logger. An unknown level
// falls back to info and is reported as an error after the logger is usable.
func Setup(level, format string, out io.Writer) error {
	if out != nil {
		log.SetOutput(out)
	}

	switch strings.ToLower(format) {
	case FormatJSON:
		log.SetFormatter(&log.JSONFormatter{})
	default:
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}

	parsed, err := log.ParseLevel(level)
	if err != nil {
		log.SetLevel(log.InfoLevel)
		return fmt.Errorf("log level %q: %w", level, err)
	}
	log.SetLevel(parsed)
	return nil
}
