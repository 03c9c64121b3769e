package swordv3

import (
	"fmt"
	"github.com/pkg/errors"
	"net/http"
	"strings"
)

// ErrorKind identifies one class of SWORDv3 failure. The set is
// closed: callers switch over these values instead of inspecting
// error types.
type ErrorKind int

const (
	KindNone ErrorKind = iota
	AuthenticationRequired
	AuthenticationFailed
	AuthenticationUnsupported
	DepositsNotAccepted
	DigestFormatNotFound
	BadRequest
	PageNotFound
	GenericProtocolError
	ConnectFailure
	RejectedStatus
	DeletedStatus
)

var kindNames = map[ErrorKind]string{
	KindNone:                  "None",
	AuthenticationRequired:    "AuthenticationRequired",
	AuthenticationFailed:      "AuthenticationFailed",
	AuthenticationUnsupported: "AuthenticationUnsupported",
	DepositsNotAccepted:       "DepositsNotAccepted",
	DigestFormatNotFound:      "DigestFormatNotFound",
	BadRequest:                "BadRequest",
	PageNotFound:              "PageNotFound",
	GenericProtocolError:      "GenericProtocolError",
	ConnectFailure:            "ConnectFailure",
	RejectedStatus:            "RejectedStatus",
	DeletedStatus:             "DeletedStatus",
}

func (kind ErrorKind) String() string {
	if name, ok := kindNames[kind]; ok {
		return name
	}
	return fmt.Sprintf("ErrorKind(%d)", int(kind))
}

// ProtocolError is the only error type the client returns for
// failures that come from talking to a SWORDv3 server.
type ProtocolError struct {
	Kind ErrorKind
	// StatusCode is the HTTP status, or zero if no response
	// was received.
	StatusCode int
	Method     string
	URL        string
	Message    string
	// ServerFormats and LocalFormats are set for
	// DigestFormatNotFound.
	ServerFormats []string
	LocalFormats  []string
	// ResponseBody holds at most the first 1024 bytes the
	// server sent with an error status.
	ResponseBody []byte
	err          error
}

func (e *ProtocolError) Error() string {
	parts := []string{e.Kind.String()}
	if e.Method != "" || e.URL != "" {
		parts = append(parts, strings.TrimSpace(e.Method+" "+e.URL))
	}
	if e.StatusCode != 0 {
		parts = append(parts, fmt.Sprintf("HTTP %d", e.StatusCode))
	}
	if e.Message != "" {
		parts = append(parts, e.Message)
	}
	if e.Kind == DigestFormatNotFound {
		parts = append(parts, fmt.Sprintf("server accepts [%s], we support [%s]",
			strings.Join(e.ServerFormats, ", "), strings.Join(e.LocalFormats, ", ")))
	}
	if e.err != nil {
		parts = append(parts, e.err.Error())
	}
	return strings.Join(parts, ": ")
}

// Unwrap returns the underlying transport or parse error, if any.
func (e *ProtocolError) Unwrap() error {
	return e.err
}

// IsTransient returns true for failures that may succeed if the
// same request is sent again later: connection failures, request
// timeouts, rate limiting and server errors.
func (e *ProtocolError) IsTransient() bool {
	if e.Kind == ConnectFailure {
		return true
	}
	if e.Kind != GenericProtocolError {
		return false
	}
	return e.StatusCode == http.StatusRequestTimeout ||
		e.StatusCode == http.StatusTooManyRequests ||
		e.StatusCode >= 500
}

// IsAuthenticationError returns true for the three authentication kinds.
func (e *ProtocolError) IsAuthenticationError() bool {
	return e.Kind == AuthenticationRequired ||
		e.Kind == AuthenticationFailed ||
		e.Kind == AuthenticationUnsupported
}

// AsProtocolError finds a *ProtocolError in err's chain.
func AsProtocolError(err error) (*ProtocolError, bool) {
	var protocolError *ProtocolError
	if errors.As(err, &protocolError) {
		return protocolError, true
	}
	return nil, false
}

// KindOf returns the kind of the ProtocolError in err's chain,
// or KindNone if err is nil or outside the taxonomy.
func KindOf(err error) ErrorKind {
	if protocolError, ok := AsProtocolError(err); ok {
		return protocolError.Kind
	}
	return KindNone
}

// KindForStatus maps an HTTP error status to its kind.
func KindForStatus(statusCode int) ErrorKind {
	switch statusCode {
	case http.StatusBadRequest:
		return BadRequest
	case http.StatusUnauthorized:
		return AuthenticationRequired
	case http.StatusForbidden:
		return AuthenticationFailed
	case http.StatusNotFound:
		return PageNotFound
	default:
		return GenericProtocolError
	}
}

func newProtocolError(kind ErrorKind, method, url, message string) *ProtocolError {
	return &ProtocolError{
		Kind:    kind,
		Method:  method,
		URL:     url,
		Message: message,
	}
}
