package logger

import (
	"context"
	"io"
	"math"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type Config struct {
	Level     string
	Console   bool
	SampleN   int
	Service   string
	Component string
}

type ctxKey string

const (
	ctxReqIDKey  ctxKey = "request_id"
	ctxComponent ctxKey = "component"
	ctxMapID     ctxKey = "map_id"
	ctxJobID     ctxKey = "job_id"
)

// context fields copied onto every record, in output order
var ctxFields = []ctxKey{ctxReqIDKey, ctxComponent, ctxMapID, ctxJobID}

func WithRequestID(ctx context.Context, reqID string) context.Context {
	if reqID == "" {
		reqID = NewID()
	}
	return context.WithValue(ctx, ctxReqIDKey, reqID)
}

func RequestID(ctx context.Context) string {
	s, _ := ctx.Value(ctxReqIDKey).(string)
	return s
}

func WithComponent(ctx context.Context, component string) context.Context {
	if component == "" {
		return ctx
	}
	return context.WithValue(ctx, ctxComponent, component)
}

func WithMapID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, ctxMapID, id)
}

func WithJobID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, ctxJobID, id)
}

func NewID() string {
	return uuid.NewString()
}

func safeUint32(n int) uint32 {
	if n <= 0 {
		return 0
	}
	if n > int(math.MaxUint32) {
		return math.MaxUint32
	}
	return uint32(n)
}

func parseLevel(s string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

func Build(cfg Config, out io.Writer) zerolog.Logger {
	if out == nil {
		out = os.Stdout
	}

	zerolog.TimeFieldFormat = time.RFC3339Nano
	zerolog.TimestampFieldName = "timestamp"
	zerolog.LevelFieldName = "level"
	zerolog.MessageFieldName = "msg"
	zerolog.DurationFieldUnit = time.Millisecond

	if cfg.Console {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	base := zerolog.New(out).Level(parseLevel(cfg.Level))

	if cfg.SampleN > 0 {
		n := safeUint32(cfg.SampleN)
		if n > 0 {
			base = base.Sample(&zerolog.BasicSampler{N: n})
		}
	}

	ctx := base.With().Timestamp()
	if cfg.Service != "" {
		ctx = ctx.Str("service", cfg.Service)
	}
	if cfg.Component != "" {
		ctx = ctx.Str("component", cfg.Component)
	}
	return ctx.Logger()
}

// returns a child logger with context fields applied
func FromContext(ctx context.Context, parent *zerolog.Logger) *zerolog.Logger {
	var base zerolog.Logger
	if parent == nil {
		base = zerolog.New(io.Discard)
	} else {
		base = *parent
	}
	if ctx == nil {
		return &base
	}
	w := base.With()
	for _, k := range ctxFields {
		if s, ok := ctx.Value(k).(string); ok && s != "" {
			w = w.Str(string(k), s)
		}
	}
	l := w.Logger()
	return &l
}
