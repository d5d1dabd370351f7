// Package userlog provides the append-only user registration log.
//
// The log makes registrations survive restarts. It is read once, in full,
// when opened; afterwards it is only appended to and never rewritten.
//
// Format:
//
//	username,password\n
//	username,password\n
//	...
//
// Lines are split on the first comma, so passwords may contain commas.
// Blank and malformed lines are skipped with a warning. Each append is
// fsync'ed before it returns.
//
// Credentials are stored as plain text.
package userlog
