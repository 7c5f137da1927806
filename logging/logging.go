package logging

import (
	"strings"

	"github.com/PelionIoT/wigwag-go-logger/logging"
)

// Log writes WARNING and above to stderr and everything else to stdout. The
// level can be changed at runtime through the file named by WIGWAG_LOG_LEVEL.
var Log = logging.Log

// LogLevelIsValid accepts critical, error, warning, notice, info and debug in
// any case. Surrounding whitespace, such as a trailing newline from a level
// file or YAML block, is ignored.
func LogLevelIsValid(ll string) bool {
	return logging.LogLevelIsValid(strings.TrimSpace(ll))
}

// SetLoggingLevel falls back to ERROR for unrecognized levels
func SetLoggingLevel(ll string) {
	logging.SetLoggingLevel(strings.TrimSpace(ll))
}
