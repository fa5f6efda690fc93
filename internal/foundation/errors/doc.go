// Package errors provides classified error handling for DocSync.
//
// Errors carry a category (what subsystem failed), a severity (how bad it
// is), and a retry strategy (whether the operation is worth repeating).
// Construction goes through the fluent ErrorBuilder; presentation for CLI
// processes goes through CLIErrorAdapter.
package errors
