package domain

import "strings"

// UserAccount is a registered user.
//
// Passwords are kept and compared as plain text; the user log stores them
// the same way.
type UserAccount struct {
	Username string
	Password string
}

// Validate checks that the account can be written as one
// "username,password" log line and read back unchanged.
func (u UserAccount) Validate() error {
	if u.Username == "" {
		return ErrInvalidCredentials.WithDetails("username is empty")
	}
	if strings.ContainsAny(u.Username, ",\r\n") {
		return ErrInvalidCredentials.WithDetails("username must not contain commas or line breaks")
	}
	if strings.ContainsAny(u.Password, "\r\n") {
		return ErrInvalidCredentials.WithDetails("password must not contain line breaks")
	}
	return nil
}
