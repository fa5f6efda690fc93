package errors

import (
	"context"
	"fmt"
	"log/slog"
	"os"
)

// CLIErrorAdapter handles error presentation and exit code determination for CLI applications.
type CLIErrorAdapter struct {
	verbose bool
	logger  *slog.Logger
}

// NewCLIErrorAdapter creates a new CLI error adapter.
func NewCLIErrorAdapter(verbose bool, logger *slog.Logger) *CLIErrorAdapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &CLIErrorAdapter{verbose: verbose, logger: logger}
}

// ExitCodeFor determines the appropriate exit code for an error.
func (a *CLIErrorAdapter) ExitCodeFor(err error) int {
	if err == nil {
		return 0
	}
	classified, ok := AsClassified(err)
	if !ok {
		return 1
	}
	switch classified.Category() {
	case CategoryValidation:
		return 2 // Invalid usage
	case CategoryAuth:
		return 5 // Permission/auth error
	case CategoryConfig:
		return 7 // Configuration error
	case CategoryNetwork, CategoryGit, CategoryForge:
		return 8 // External system error
	case CategorySync, CategoryFileSystem, CategoryHistory:
		return 11 // Sync error
	case CategoryDaemon:
		return 12 // Runtime error
	case CategoryInternal:
		return 10 // Internal error
	default:
		return 1
	}
}

// FormatError formats an error for user-friendly display.
func (a *CLIErrorAdapter) FormatError(err error) string {
	if err == nil {
		return ""
	}
	if classified, ok := AsClassified(err); ok {
		if a.verbose {
			return classified.Error()
		}
		return fmt.Sprintf("Error: %s", classified.Message())
	}
	return fmt.Sprintf("Error: %v", err)
}

// HandleError logs and prints an error, then exits with the mapped code.
func (a *CLIErrorAdapter) HandleError(err error) {
	if err == nil {
		return
	}
	a.logError(err)
	fmt.Fprintf(os.Stderr, "%s\n", a.FormatError(err))
	os.Exit(a.ExitCodeFor(err))
}

func (a *CLIErrorAdapter) logError(err error) {
	classified, ok := AsClassified(err)
	if !ok {
		a.logger.Error("Unclassified error", "error", err)
		return
	}
	attrs := []slog.Attr{slog.String("category", string(classified.Category()))}
	if classified.CanRetry() {
		attrs = append(attrs, slog.Bool("retryable", true))
	}
	a.logger.LogAttrs(context.Background(), levelFor(classified.Severity()), classified.Message(), attrs...)
}

func levelFor(severity ErrorSeverity) slog.Level {
	switch severity {
	case SeverityInfo:
		return slog.LevelInfo
	case SeverityWarning:
		return slog.LevelWarn
	default:
		return slog.LevelError
	}
}
