package port

import "errors"

var (
	// ErrOptimisticLock is returned when the aggregate changed between load
	// and save.
	ErrOptimisticLock = errors.New("optimistic lock conflict")

	// ErrDuplicateCommand is returned when an outbox message already exists
	// for the tenant and command id.
	ErrDuplicateCommand = errors.New("duplicate command id")

	// ErrBusUnavailable marks publish failures caused by the broker rather
	// than the message. The outbox keeps retrying those without giving up.
	ErrBusUnavailable = errors.New("message bus unavailable")
)
