// Package kvserver serves the kvmesh binary protocol over TCP.
//
// Each accepted connection takes one admission permit before the next
// Accept; with all permits in use the listener stops accepting until a
// session ends. A session authenticates (login or register) and then runs
// the command loop. Conditional reads are handed to the getwhen worker,
// which queues their response on the connection later. Each connection has
// one writer goroutine that writes queued frames whole and in order; the
// worker never writes to a socket, and a peer that stops reading loses its
// connection once its queue fills.
//
// Wire values use the encoding in package wire.
package kvserver
