package scheduler

import "errors"

// ErrTransportTimeout is returned when Await's timeout elapses before a
// result arrives.
var ErrTransportTimeout = errors.New("scheduler: timed out awaiting result")

// ErrTransportError wraps a lower-level RPC/transport failure talking to
// a remote node.
var ErrTransportError = errors.New("scheduler: transport error")

// ErrUnknownInvocation is returned by Await for an id the scheduler never
// dispatched.
var ErrUnknownInvocation = errors.New("scheduler: unknown invocation id")
