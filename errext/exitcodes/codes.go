// Package exitcodes contains the constants representing possible runcore
// exit error codes.
package exitcodes

// ExitCode is just a type representing a process exit code for runcore.
type ExitCode uint8

// List of exit codes used by runcore.
const (
	TestcaseFetchFailed ExitCode = 97
	PreprocessingFailed ExitCode = 98
	CompilationFailed   ExitCode = 99
	RunFailed           ExitCode = 100
	RunTimeout          ExitCode = 101
	InvalidConfig       ExitCode = 104
	GenericError        ExitCode = 107
)
