// Package command defines the kvmesh-cli application.
//
// It uses urfave/cli/v2 for flag parsing and supports both single-command
// mode (kvmesh-cli put k v) and the interactive shell.
package command
