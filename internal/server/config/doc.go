// Package config defines the kvmesh-server configuration: its structure,
// defaults and validation.
//
// Example config.yaml:
//
//	server:
//	  addr: "127.0.0.1:11111"
//	  max_sessions: 5
//	  write_timeout: 30s
//	getwhen:
//	  timeout: 60s
//	  poll_interval: 100ms
//	users:
//	  file: users.csv
//	metrics:
//	  addr: "127.0.0.1:9111"
//	log:
//	  level: info
//	  format: json
package config
