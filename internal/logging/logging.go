// Package logging builds the process logger.
package logging

import (
	"context"
	"math"
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	reqid "github.com/hanpama/stitchgate/internal/reqid"
)

const requestIDField = "request_id"

// New returns a logger writing to stdout. pretty selects the console
// encoder; development adds caller information.
func New(pretty, development bool, level zapcore.LevelEnabler) *zap.Logger {
	return NewZapLogger(zapcore.AddSync(os.Stdout), pretty, development, level)
}

// ParseLevel maps a level name to a zap level, defaulting to info.
func ParseLevel(s string) zapcore.Level {
	lvl, err := zapcore.ParseLevel(s)
	if err != nil {
		return zapcore.InfoLevel
	}
	return lvl
}

func zapBaseEncoderConfig() zapcore.EncoderConfig {
	ec := zap.NewProductionEncoderConfig()
	ec.EncodeDuration = zapcore.SecondsDurationEncoder
	ec.TimeKey = "time"
	return ec
}

func zapJSONEncoder() zapcore.Encoder {
	ec := zapBaseEncoderConfig()
	ec.EncodeTime = func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
		enc.AppendInt64(int64(math.Trunc(float64(t.UnixNano()) / float64(time.Millisecond))))
	}
	return zapcore.NewJSONEncoder(ec)
}

func zapConsoleEncoder() zapcore.Encoder {
	ec := zapBaseEncoderConfig()
	ec.ConsoleSeparator = " "
	ec.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05 PM")
	ec.EncodeLevel = zapcore.CapitalColorLevelEncoder
	return zapcore.NewConsoleEncoder(ec)
}

func attachBaseFields(logger *zap.Logger) *zap.Logger {
	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}
	return logger.With(
		zap.String("hostname", host),
		zap.Int("pid", os.Getpid()),
	)
}

func coreOptions(development bool) []zap.Option {
	var opts []zap.Option
	if development {
		opts = append(opts, zap.AddCaller(), zap.Development())
	}
	// Stacktrace is included on logs of ErrorLevel and above.
	return append(opts, zap.AddStacktrace(zap.ErrorLevel))
}

// NewZapLogger builds a logger on syncer.
func NewZapLogger(syncer zapcore.WriteSyncer, pretty, development bool, level zapcore.LevelEnabler) *zap.Logger {
	encoder := zapJSONEncoder()
	if pretty {
		encoder = zapConsoleEncoder()
	}
	logger := zap.New(zapcore.NewCore(encoder, syncer, level), coreOptions(development)...)
	return attachBaseFields(logger)
}

func WithRequestID(id string) zap.Field {
	return zap.String(requestIDField, id)
}

// ForContext returns log annotated with the request ID stored on ctx, if any.
func ForContext(ctx context.Context, log *zap.Logger) *zap.Logger {
	if id, ok := reqid.FromContext(ctx); ok {
		return log.With(WithRequestID(id))
	}
	return log
}
