package cascade

import "errors"

var (
	// ErrNotFound indicates no incident matches the lookup.
	ErrNotFound = errors.New("cascade: incident not found")

	// ErrNilGraph indicates the detector was built without a dependency graph.
	ErrNilGraph = errors.New("cascade: nil dependency graph")

	// ErrNilStore indicates the detector was built without an incident store.
	ErrNilStore = errors.New("cascade: nil incident store")
)
