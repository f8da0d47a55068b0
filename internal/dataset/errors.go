package dataset

import "errors"

var (
	// ErrConfiguration marks a missing schema or dataset mapping
	ErrConfiguration = errors.New("configuration error")

	// ErrUnsupportedType is returned by stores that cannot evaluate a type predicate
	ErrUnsupportedType = errors.New("unsupported type predicate")

	// ErrStoreUnavailable aborts the current run
	ErrStoreUnavailable = errors.New("store unavailable")
)
