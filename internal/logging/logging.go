// Package logging provides the small prefixed-logger convention used across
// phishd components, matching the plain log.Printf style of the rest of the
// codebase rather than a structured logging library.
package logging

import "log"

// Logger tags every line with a component name, e.g. "[imap]" or "[scan]".
type Logger struct {
	prefix string
}

// New returns a Logger that prefixes every message with "[component] ".
func New(component string) *Logger {
	return &Logger{prefix: "[" + component + "] "}
}

func (l *Logger) Printf(format string, args ...any) {
	log.Printf(l.prefix+format, args...)
}

func (l *Logger) Println(args ...any) {
	args = append([]any{l.prefix[:len(l.prefix)-1]}, args...)
	log.Println(args...)
}
