package log

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

func New(environment string) zerolog.Logger {
	return NewWithWriter(os.Stdout, environment)
}

// NewWithWriter builds the service logger on top of out. Production output is
// JSON so it can be shipped as is; other environments get a console writer.
func NewWithWriter(out io.Writer, environment string) zerolog.Logger {
	var w io.Writer = out
	if environment != "production" {
		w = zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: time.RFC3339,
		}
	}

	logger := zerolog.New(w).With().
		Timestamp().
		Str("service", "frames").
		Str("env", environment).
		Logger()

	if environment != "production" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	return logger
}
