package remote

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// Kind classifies a remote failure so callers can decide how to react
// without inspecting error strings.
type Kind int

const (
	// KindNetwork is a connection failure, timeout or transient server status.
	KindNetwork Kind = iota + 1
	// KindAuth means the session credential was rejected.
	KindAuth
	// KindProtocol means the response did not match the expected shape.
	KindProtocol
	// KindApplication is a structured business failure reported by the server.
	KindApplication
)

func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindAuth:
		return "auth"
	case KindProtocol:
		return "protocol"
	case KindApplication:
		return "application"
	default:
		return "unknown"
	}
}

// Fatal reports whether a failure of this kind should end a run.
func (k Kind) Fatal() bool {
	return k != KindApplication
}

// Retryable reports whether repeating the call may succeed.
func (k Kind) Retryable() bool {
	return k == KindNetwork
}

// Errno values the claim endpoints are known to return.
const (
	ErrnoOK            = 0
	ErrnoPendingReview = 10003
)

// Error is a classified remote failure.
type Error struct {
	Kind Kind
	// Op is the logical operation: "user_info", "list_tasks" or "claim".
	Op string
	// Status is the HTTP status code, 0 if no response was received.
	Status int
	// Errno and Message carry the server's envelope for KindApplication.
	Errno   int
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s error", e.Op, e.Kind)
	switch {
	case e.Errno != 0:
		msg += fmt.Sprintf(" (errno %d): %s", e.Errno, e.Message)
	case e.Status != 0:
		msg += fmt.Sprintf(" (HTTP %d)", e.Status)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error of the same kind, so sentinel comparisons like
// errors.Is(err, remote.ErrAuth) work.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Op == "" && t.Kind == e.Kind
}

// Sentinels for errors.Is checks.
var (
	ErrNetwork     = &Error{Kind: KindNetwork}
	ErrAuth        = &Error{Kind: KindAuth}
	ErrProtocol    = &Error{Kind: KindProtocol}
	ErrApplication = &Error{Kind: KindApplication}
)

// KindOf returns the classification of err, or 0 if err is not a remote error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// AsError extracts the classified error from err's chain.
func AsError(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}

// NewProtocolError classifies cause as a protocol failure of op, for callers
// that detect a contract violation in an otherwise successful response.
func NewProtocolError(op string, cause error) error {
	return protocolError(op, 0, cause)
}

func networkError(op string, status int, cause error) error {
	return errors.WithStack(&Error{Kind: KindNetwork, Op: op, Status: status, Err: cause})
}

func authError(op string, status int, cause error) error {
	return errors.WithHint(
		errors.WithStack(&Error{Kind: KindAuth, Op: op, Status: status, Err: cause}),
		"the cookie is missing, expired or belongs to another site; copy a fresh one from the browser",
	)
}

func protocolError(op string, status int, cause error) error {
	return errors.WithStack(&Error{Kind: KindProtocol, Op: op, Status: status, Err: cause})
}

func applicationError(op string, errno int, message string) error {
	err := errors.WithStack(&Error{Kind: KindApplication, Op: op, Errno: errno, Message: message})
	if errno == ErrnoPendingReview {
		err = errors.WithHint(err, "finish pending review tasks before claiming new ones")
	}
	return err
}
