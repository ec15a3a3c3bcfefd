package matrix

import (
	"context"

	"github.com/rs/zerolog"
)

type logKey struct{}

// log returns the run's logger. Every entry point that reaches the parser or
// runner must have attached one via WithLogger first.
func log(ctx context.Context) *zerolog.Logger {
	logger := ctx.Value(logKey{})
	if logger == nil {
		panic("matrix: context has no logger, call WithLogger first")
	}

	return logger.(*zerolog.Logger)
}

// WithLogger attaches the logger used for all parser and runner output to
// the context.
func WithLogger(ctx context.Context, logger *zerolog.Logger) context.Context {
	return context.WithValue(ctx, logKey{}, logger)
}
