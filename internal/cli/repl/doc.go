// Package repl provides the interactive shell of kvmesh-cli.
//
//   - repl.go: main loop and command dispatch
//   - completer.go: tab completion for command names
//   - readline.go: terminal line editing and history
package repl
