package protocol

import (
	"errors"
	"fmt"
)

// ErrProtocol indicates a frame that could not be parsed into a known
// control-message shape.
var ErrProtocol = errors.New("unparseable frame")

// ErrShortPayload indicates a payload stream that ended before the declared
// byte count was transferred.
var ErrShortPayload = errors.New("payload ended before declared size")

// Kind classifies a failure on the wire. Error responses carry one so the
// peer can surface a specific outcome rather than a bare message.
type Kind string

const (
	KindProtocol       Kind = "protocol"
	KindNotFound       Kind = "not_found"
	KindHashMismatch   Kind = "hash_mismatch"
	KindUnknownCommand Kind = "unknown_command"
	KindConnection     Kind = "connection"
	KindTimeout        Kind = "timeout"
	KindIO             Kind = "io"
)

// RemoteError is an error response received from the peer.
type RemoteError struct {
	Kind   Kind
	Detail string
}

func (e *RemoteError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("server error: %s", e.Kind)
	}
	return fmt.Sprintf("server error (%s): %s", e.Kind, e.Detail)
}

// AsRemote unwraps err as a RemoteError if it is one.
func AsRemote(err error) (*RemoteError, bool) {
	var re *RemoteError
	if errors.As(err, &re) {
		return re, true
	}
	return nil, false
}
