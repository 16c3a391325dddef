package sessions

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// StatusError reports a non-200 answer from the session store.
type StatusError struct {
	Op     string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("session store %s: unexpected status %d", e.Op, e.Status)
	}
	return fmt.Sprintf("session store %s: unexpected status %d: %s", e.Op, e.Status, e.Body)
}

// ErrorKind groups store failures by where they happened.
type ErrorKind int

const (
	// ErrorKindNone means the call succeeded.
	ErrorKindNone ErrorKind = iota
	// ErrorKindNotFound means the store had nothing to return.
	ErrorKindNotFound
	// ErrorKindTransport covers network errors and timeouts.
	ErrorKindTransport
	// ErrorKindStatus covers any non-200 response.
	ErrorKindStatus
	// ErrorKindDecode covers malformed response bodies.
	ErrorKindDecode
)

// String returns a human-readable name for the error kind.
func (k ErrorKind) String() string {
	switch k {
	case ErrorKindNone:
		return "none"
	case ErrorKindNotFound:
		return "not_found"
	case ErrorKindTransport:
		return "transport"
	case ErrorKindStatus:
		return "status"
	case ErrorKindDecode:
		return "decode"
	default:
		return "unknown"
	}
}

// Classify maps an error returned by Client to its ErrorKind.
// Errors that match no known shape are treated as transport failures.
func Classify(err error) ErrorKind {
	if err == nil {
		return ErrorKindNone
	}
	var se *StatusError
	if errors.As(err, &se) {
		if se.Status == http.StatusNotFound {
			return ErrorKindNotFound
		}
		return ErrorKindStatus
	}
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) || errors.Is(err, io.ErrUnexpectedEOF) {
		return ErrorKindDecode
	}
	return ErrorKindTransport
}
