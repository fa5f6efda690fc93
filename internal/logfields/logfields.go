package logfields

import "log/slog"

// Canonical log field name constants to avoid drift across packages.
const (
	KeyRunID      = "run_id"
	KeySource     = "source"
	KeyTrigger    = "trigger"
	KeyCommit     = "commit"
	KeyBranch     = "branch"
	KeyPath       = "path"
	KeyURL        = "url"
	KeyForge      = "forge"
	KeyOutcome    = "outcome"
	KeyFiles      = "files"
	KeyDurationMS = "duration_ms"
	KeyError      = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func RunID(id string) slog.Attr       { return slog.String(KeyRunID, id) }
func Source(name string) slog.Attr    { return slog.String(KeySource, name) }
func Trigger(t string) slog.Attr      { return slog.String(KeyTrigger, t) }
func Commit(sha string) slog.Attr     { return slog.String(KeyCommit, sha) }
func Branch(b string) slog.Attr       { return slog.String(KeyBranch, b) }
func Path(p string) slog.Attr         { return slog.String(KeyPath, p) }
func URL(u string) slog.Attr          { return slog.String(KeyURL, u) }
func Forge(f string) slog.Attr        { return slog.String(KeyForge, f) }
func Outcome(o string) slog.Attr      { return slog.String(KeyOutcome, o) }
func Files(n int) slog.Attr           { return slog.Int(KeyFiles, n) }
func DurationMS(ms float64) slog.Attr { return slog.Float64(KeyDurationMS, ms) }
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
