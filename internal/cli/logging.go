package cli

import (
	"io"
	"log/slog"
	"os"

	"github.com/ethereum/go-ethereum/log"
	"github.com/fatih/color"
	"golang.org/x/term"

	"compiletest/internal/config"
)

// LogLevel maps the verbosity switches to a log level.
func LogLevel(cfg *config.Config) slog.Level {
	switch {
	case cfg.Verbose:
		return log.LevelDebug
	case cfg.Quiet:
		return log.LevelWarn
	default:
		return log.LevelInfo
	}
}

// SetupOutput installs the root logger on w and decides whether console
// output is colored.
func SetupOutput(cfg *config.Config, w io.Writer) {
	useColor := cfg.Color && isTerminal(w)
	log.SetDefault(log.NewLogger(log.NewTerminalHandlerWithLevel(w, LogLevel(cfg), useColor)))
	color.NoColor = !cfg.Color || !term.IsTerminal(int(os.Stdout.Fd()))
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
