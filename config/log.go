package config

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// LogConfig 是日志参数。
type LogConfig struct {
	Level  string `koanf:"level"`  // trace / debug / info / warn / error / disabled
	Format string `koanf:"format"` // json / console
}

func (c LogConfig) level() (zerolog.Level, error) {
	if strings.TrimSpace(c.Level) == "" {
		return zerolog.InfoLevel, nil
	}
	lvl, err := zerolog.ParseLevel(strings.ToLower(c.Level))
	if err != nil {
		return zerolog.NoLevel, fmt.Errorf("log: invalid level %q", c.Level)
	}
	return lvl, nil
}

// NewLogger 按配置构造 logger，w 为 nil 时写到 stderr。
func (c LogConfig) NewLogger(w io.Writer) zerolog.Logger {
	if w == nil {
		w = os.Stderr
	}
	if c.Format == "console" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.TimeOnly}
	}
	lvl, err := c.level()
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(w).Level(lvl).With().Timestamp().Str("service", "graphrec").Logger()
}
