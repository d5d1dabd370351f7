// Package wire implements the kvmesh stream protocol encoding.
//
// Every message is a sequence of fields:
//
//   - string: uint16 big-endian byte length followed by UTF-8 bytes
//   - int:    int32 big-endian
//   - bytes:  int32 big-endian length followed by the raw payload;
//     a length of -1 marks an absent value (multiget replies only)
//
// The same encoding is used in both directions. Responses are built as a
// Frame and written in one call so that concurrent writers on a connection
// never interleave partial messages.
//
// The protocol vocabulary (command labels, response tokens, prompts) lives
// in tokens.go.
package wire
