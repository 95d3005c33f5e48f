package log

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// NewContextWithLogger 初始化全局 zerolog 并把 logger 挂到 ctx 上。
func NewContextWithLogger(ctx context.Context, debug bool) context.Context {
	return WithWriter(ctx, os.Stderr, debug)
}

// WithWriter is NewContextWithLogger with an explicit sink, used by tests and the CLI.
func WithWriter(ctx context.Context, w io.Writer, debug bool) context.Context {
	if debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	output := zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: time.DateTime,
		PartsOrder: []string{
			zerolog.LevelFieldName,
			zerolog.TimestampFieldName,
			zerolog.MessageFieldName,
		},
	}

	logger := zerolog.New(output).With().Timestamp().Logger()
	log.Logger = logger

	return logger.WithContext(ctx)
}

// FromCtx returns the logger attached to ctx, or the global logger when none is set.
func FromCtx(ctx context.Context) *zerolog.Logger {
	if l := zerolog.Ctx(ctx); l != nil && l.GetLevel() != zerolog.Disabled {
		return l
	}
	return &log.Logger
}

// Component returns a child logger tagged with the component name.
func Component(ctx context.Context, name string) zerolog.Logger {
	return FromCtx(ctx).With().Str("component", name).Logger()
}
