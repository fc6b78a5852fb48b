// Package logging constructs the process logger. Loggers are built
// here once and passed explicitly; no package keeps a global.
package logging

import "go.uber.org/zap"

// New returns a production logger, or a human-readable development
// logger when debug is set.
func New(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
