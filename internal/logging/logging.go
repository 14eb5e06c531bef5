// Package logging builds the leveled go-kit logger shared by the CLI, the
// HTTP service and the diff engines
package logging

import (
	"io"
	"strings"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"

	"github.com/mcncl/jsondelta/internal/errors"
)

// New returns a logger writing to w. format is "logfmt" or "json", lvl one of
// debug, info, warn or error. Every line carries ts and caller.
func New(w io.Writer, format, lvl string) (log.Logger, error) {
	var logger log.Logger
	switch strings.ToLower(format) {
	case "", "logfmt":
		logger = log.NewLogfmtLogger(log.NewSyncWriter(w))
	case "json":
		logger = log.NewJSONLogger(log.NewSyncWriter(w))
	default:
		return nil, errors.NewConfigError("unknown log format "+format, nil)
	}

	option, err := allow(lvl)
	if err != nil {
		return nil, err
	}

	logger = log.With(logger, "ts", log.DefaultTimestampUTC, "caller", log.DefaultCaller)
	return level.NewFilter(logger, option), nil
}

func allow(lvl string) (level.Option, error) {
	switch strings.ToLower(lvl) {
	case "debug":
		return level.AllowDebug(), nil
	case "", "info":
		return level.AllowInfo(), nil
	case "warn":
		return level.AllowWarn(), nil
	case "error":
		return level.AllowError(), nil
	default:
		return nil, errors.NewConfigError("unknown log level "+lvl, nil)
	}
}

// Nop discards everything
func Nop() log.Logger {
	return log.NewNopLogger()
}
