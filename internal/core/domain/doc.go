// Package domain defines the core domain models for kvmesh.
//
// Domain models are plain values without IO dependencies:
//
//   - UserAccount: a registered username/password pair
//   - GetWhenRequest: a pending conditional read and its terminal outcome
//   - Errors: domain error codes shared by services and the protocol layer
package domain
