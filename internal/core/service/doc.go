// Package service provides the domain services behind the kvmesh protocol.
//
// This package contains:
//
//   - UserDirectory: registration and authentication of users, backed by an
//     append-only log
//   - GetWhenService: resolution of deferred conditional reads against the
//     key-value store
//
// Services are explicitly constructed and injected into the server; they
// hold no global state and are safe for concurrent use by any number of
// connection sessions.
package service
