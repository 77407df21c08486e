package shared

import (
	"errors"
	"strings"
)

// ErrNotFound indicates resource not found.
var ErrNotFound = errors.New("not found")

// UserSafeMessage converts an internal error into text that can be shown
// to an operator. Domain errors follow the "package: message" convention;
// for those the package prefix is stripped. Anything else gets a generic
// message so storage details never leak.
func UserSafeMessage(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	if i := strings.Index(msg, ": "); i > 0 && !strings.ContainsAny(msg[:i], " /") {
		return msg[i+2:]
	}
	return "Something went wrong. Please try again."
}
