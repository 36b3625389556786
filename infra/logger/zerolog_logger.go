package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// zl is the zerolog-backed Logger, scoped to one engine component.
type zl struct {
	z zerolog.Logger
}

// NewZerologLogger builds a component-scoped logger. Output is JSON on stdout
// unless APP_ENV=dev, which switches to the human-readable console writer.
func NewZerologLogger(component string) Logger {
	z := zerolog.New(sink()).With().Timestamp().Str("component", component).Logger()
	return zl{z: z}
}

func sink() io.Writer {
	if strings.EqualFold(os.Getenv("APP_ENV"), "dev") {
		return zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}
	return os.Stdout
}

func (l zl) Debugf(format string, args ...any) { l.z.Debug().Msgf(format, args...) }

func (l zl) Debugw(msg string, fields map[string]any) { l.z.Debug().Fields(fields).Msg(msg) }

func (l zl) Infof(format string, args ...any) { l.z.Info().Msgf(format, args...) }

func (l zl) Warnf(format string, args ...any) { l.z.Warn().Msgf(format, args...) }

func (l zl) Errorf(format string, args ...any) { l.z.Error().Msgf(format, args...) }
