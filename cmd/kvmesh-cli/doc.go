// Package main provides the entry point for kvmesh-cli.
//
// kvmesh-cli connects to a kvmesh server, signs in and then either runs a
// single command given on the command line or opens an interactive shell:
//
//	kvmesh-cli -u alice
//	kvmesh-cli -u alice -p secret get greeting
//	kvmesh-cli --register -u bob
package main
