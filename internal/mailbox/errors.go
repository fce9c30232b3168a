package mailbox

import (
	"errors"
	"fmt"
)

// AuthError indicates the IMAP server rejected the supplied credentials.
type AuthError struct {
	Username string
	Err      error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication failed for %s: %v", e.Username, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// ConnectError indicates a transport-level failure while establishing
// the connection, before credentials were evaluated.
type ConnectError struct {
	Addr string
	Err  error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("connecting to %s: %v", e.Addr, e.Err)
}

func (e *ConnectError) Unwrap() error { return e.Err }

// IsAuthError reports whether err (or any error in its chain) is an AuthError.
func IsAuthError(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}

// IsConnectError reports whether err (or any error in its chain) is a
// ConnectError.
func IsConnectError(err error) bool {
	var connErr *ConnectError
	return errors.As(err, &connErr)
}
