package domain

import "errors"

// ErrSessionNotFound is returned when no session exists for a client id.
var ErrSessionNotFound = errors.New("session not found")

// ErrSessionExists is returned when creating a session for a client id that already has one.
var ErrSessionExists = errors.New("session already exists")

// ErrSessionClosed is returned by every operation on a session after Close,
// and rejects requests that were still pending at teardown.
var ErrSessionClosed = errors.New("session closed")

// ErrClientIDAlreadySet is returned when the client id of a session is set twice.
var ErrClientIDAlreadySet = errors.New("client id already set")

// ErrInvalidClientID is returned for an empty client id.
var ErrInvalidClientID = errors.New("invalid client id")

// ErrNoEndpoint is returned by Request when no remote endpoint is bound.
var ErrNoEndpoint = errors.New("no remote endpoint bound")

// ErrDuplicateRequest is returned when a request id is reused while still pending.
var ErrDuplicateRequest = errors.New("duplicate request id")

// ErrInvalidRequestID is returned for a request action without an identifier.
var ErrInvalidRequestID = errors.New("invalid request id")

// ErrRequestCanceled settles a pending request whose handle was canceled.
var ErrRequestCanceled = errors.New("request canceled")

// ErrRequestRejected settles a pending request answered with a RejectAction.
var ErrRequestRejected = errors.New("request rejected by client")

// ErrUnexpectedResponse is returned when a response has a different type than awaited.
var ErrUnexpectedResponse = errors.New("unexpected response type")

// ErrNilModel is returned when SetModel or UpdateModel receive a nil root.
var ErrNilModel = errors.New("model root must not be nil")

// ErrNilAction is returned when a nil action is dispatched or delivered.
var ErrNilAction = errors.New("action must not be nil")

// ErrLayoutFailed wraps errors returned by a layout engine.
var ErrLayoutFailed = errors.New("layout failed")

// ErrInvalidLayoutKind is returned when parsing an unknown layout kind.
var ErrInvalidLayoutKind = errors.New("invalid layout kind")

// ErrModelNotFound is returned by a model source that has no diagram for the requested options.
var ErrModelNotFound = errors.New("model not found")

// ErrRegistryClosed is returned when creating a session in a registry that was closed.
var ErrRegistryClosed = errors.New("session registry closed")
