// Package main provides the entry point for kvmesh-server.
//
// The server keeps a key-value table in memory and serves it over the
// kvmesh binary protocol to authenticated clients. Registered users are
// kept in an append-only CSV file.
//
// Usage:
//
//	kvmesh-server [flags]
//	kvmesh-server --config /etc/kvmesh/config.yaml
//	kvmesh-server --addr 0.0.0.0:11111 --max-sessions 16
//
// Settings come from defaults, the config file, KVMESH_* environment
// variables and flags, in increasing priority. Changing log.level in the
// config file takes effect without a restart.
package main
