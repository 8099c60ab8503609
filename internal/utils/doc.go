// Package utils provides shared utility functions for the Emerald CLI.
//
// # Filesystem Utilities
//
//   - FindBackups, FindLatestBackup: locate backup files below a directory
//
// # String Utilities
//
//   - FormatAmount, ParseAmount: money in and out of the terminal
//
// # System Utilities
//
//   - GetUsername, DefaultDisplayName: the name offered during onboarding
//
// # I/O and Terminal Utilities
//
//   - ReadStdin, ReadInput: read a backup from a file or a pipe
//   - IsTerminal, Confirm: interactive confirmation for destructive commands
package utils
