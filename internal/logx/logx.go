// FILE: repertoire/internal/logx/logx.go
package logx

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// NewLogger returns a console logger at the given level ("debug", "info", ...).
// Unknown levels fall back to info.
func NewLogger(level string) zerolog.Logger {
	return New(os.Stdout, level)
}

// New builds a console logger writing to out.
func New(out io.Writer, level string) zerolog.Logger {
	output := zerolog.ConsoleWriter{
		Out:        out,
		TimeFormat: time.RFC3339,
	}
	zerolog.CallerMarshalFunc = func(pc uintptr, file string, line int) string {
		short := file
		if idx := strings.LastIndexByte(file, '/'); idx >= 0 {
			short = file[idx+1:]
		}
		return fmt.Sprintf("%-24s", fmt.Sprintf("%s:%d", short, line))
	}

	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}

	return zerolog.New(output).Level(lvl).With().Timestamp().Caller().Logger()
}

// Nop returns a disabled logger for tests and quiet CLI runs.
func Nop() zerolog.Logger {
	return zerolog.Nop()
}
