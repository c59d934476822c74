package logx

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const serviceName = "commerce-tools"

type Config struct {
	Debug        bool   `split_words:"true" default:"false"`
	PrettyFormat bool   `split_words:"true" default:"false"`
	Level        string `split_words:"true"`
}

var DefaultConfig = &Config{}

func safe(opts ...Config) *Config {
	if len(opts) == 0 {
		return DefaultConfig
	}
	return &opts[0]
}

// level resolves Level first, then Debug. Unknown levels fall back to info.
func (c *Config) level() zerolog.Level {
	if s := strings.TrimSpace(c.Level); s != "" {
		if lvl, err := zerolog.ParseLevel(strings.ToLower(s)); err == nil && lvl != zerolog.NoLevel {
			return lvl
		}
	}
	if c.Debug {
		return zerolog.DebugLevel
	}
	return zerolog.InfoLevel
}

func Init(opts ...Config) {
	log.Logger = New(os.Stderr, opts...)
	zerolog.DefaultContextLogger = &log.Logger
}

// New builds the service logger on w. stdout belongs to the MCP stdio
// transport, so Init always passes stderr.
func New(w io.Writer, opts ...Config) zerolog.Logger {
	conf := safe(opts...)

	if conf.PrettyFormat {
		out := w
		w = zerolog.NewConsoleWriter(func(cw *zerolog.ConsoleWriter) {
			cw.Out = out
		})
	}

	return zerolog.New(w).
		Level(conf.level()).
		With().
		Timestamp().
		Str("service", serviceName).
		Caller().
		Stack().
		Logger()
}
