// Package security decides whether a caller may run a command.
//
// The controller sits in front of the engine and answers two questions
// before any side effect happens:
//
//   - Is the caller the privileged identity? (Authorize)
//   - Does the command additionally need an interactive confirmation?
//
// It also validates the folder names that access-control commands turn
// into filesystem paths, so that a caller can never reach outside the
// configured portal directory.
package security
