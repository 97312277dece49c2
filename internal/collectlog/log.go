// Package collectlog wires the collector engine's components to a single
// zerolog logger, using chained call-site logging (log.Info().Msgf(...)).
package collectlog

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// L is the package-level logger every component in the engine writes through.
// cmd/adalanche-collector rebinds it once at startup via SetVerbosity;
// library packages never construct their own logger.
var L = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

// SetVerbosity maps the CLI's 0-5 verbosity knob onto a zerolog level, mirroring
// how progressively noisier levels unlock more output without changing the call
// sites sprinkled through the collector packages.
func SetVerbosity(v int) {
	switch {
	case v <= 0:
		L = L.Level(zerolog.ErrorLevel)
	case v == 1:
		L = L.Level(zerolog.WarnLevel)
	case v == 2:
		L = L.Level(zerolog.InfoLevel)
	case v == 3:
		L = L.Level(zerolog.DebugLevel)
	default:
		L = L.Level(zerolog.TraceLevel)
	}
}

// SetOutput redirects the logger to w.
func SetOutput(w io.Writer) {
	L = L.Output(w)
}
