package broker

import "errors"

var (
	// ErrConnection reports a transport, authentication or protocol negotiation failure.
	ErrConnection = errors.New("broker connection failed")
	// ErrChannel reports a session-level protocol failure.
	ErrChannel = errors.New("broker channel error")
	// ErrPreconditionFailed reports a queue that exists with different properties.
	ErrPreconditionFailed = errors.New("queue precondition failed")
)
