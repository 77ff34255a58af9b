package logger

import (
	"io"
	"os"
	"strings"

	"docview-paywall/internal/config"

	"github.com/labstack/gommon/log"
)

const textHeader = "${time_rfc3339} ${level} ${prefix} ${short_file}:${line}"

// New builds the process logger. It is also installed as echo's logger so
// request logs and service logs share level and format.
func New(cfg config.Log, prefix string) *log.Logger {
	return newWithOutput(cfg, prefix, os.Stdout)
}

func newWithOutput(cfg config.Log, prefix string, out io.Writer) *log.Logger {
	l := log.New(prefix)
	l.SetOutput(out)
	l.SetLevel(ParseLevel(cfg.Level))
	if strings.EqualFold(cfg.Format, "text") {
		l.SetHeader(textHeader)
	}
	return l
}

func ParseLevel(level string) log.Lvl {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return log.DEBUG
	case "warn", "warning":
		return log.WARN
	case "error":
		return log.ERROR
	case "off", "none":
		return log.OFF
	default:
		return log.INFO
	}
}

// Discard returns a logger that drops everything, for tests.
func Discard() *log.Logger {
	l := log.New("test")
	l.SetOutput(io.Discard)
	l.SetLevel(log.OFF)
	return l
}
