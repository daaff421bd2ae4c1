package monitor

import "errors"

var (
	// ErrNotRegistered indicates the target ID is not registered.
	ErrNotRegistered = errors.New("monitor: target not registered")

	// ErrAlreadyRegistered indicates a target with the same ID is
	// already being monitored.
	ErrAlreadyRegistered = errors.New("monitor: target already registered")

	// ErrNotRunning indicates the monitor has not been started.
	ErrNotRunning = errors.New("monitor: not running")

	// ErrAlreadyRunning indicates Start was called twice.
	ErrAlreadyRunning = errors.New("monitor: already running")

	// ErrNilStore indicates the monitor was built without a status store.
	ErrNilStore = errors.New("monitor: nil store")

	// ErrNilCheckers indicates the monitor was built without a checker registry.
	ErrNilCheckers = errors.New("monitor: nil checker registry")
)
