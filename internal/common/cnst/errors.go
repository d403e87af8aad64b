package cnst

import "errors"

var (
	// ErrNotConnected is returned when a request is sent while no session epoch is active
	ErrNotConnected = errors.New("mailbox session not connected")
	// ErrClientStopped is returned when a request is sent on a client that has been stopped
	ErrClientStopped = errors.New("mailbox client stopped")
	// ErrTransportFailure marks an error that ended a session epoch
	ErrTransportFailure = errors.New("mailbox transport failure")
	// ErrMalformedMessage is returned for inbound frames that are not valid JSON objects
	ErrMalformedMessage = errors.New("malformed mailbox message")
	// ErrReconnected cancels requests that were pending when their epoch ended
	ErrReconnected = errors.New("request cancelled: session reconnected")
	// ErrCatalogPopulation is returned when command discovery fails for an epoch
	ErrCatalogPopulation = errors.New("command catalog population failed")
	// ErrRouterHandler wraps any failure while handling a single trigger
	ErrRouterHandler = errors.New("trigger handler failed")
)

var (
	// ErrNotReceiver is returned when Watch is called on a notifier that cannot receive
	ErrNotReceiver = errors.New("notifier cannot receive updates")
	// ErrNotSender is returned when NotifyReload is called on a notifier that cannot send
	ErrNotSender = errors.New("notifier cannot send updates")
)
