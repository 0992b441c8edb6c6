package store

import "errors"

var (
	// ErrDatasetNotFound is returned when no dataset with the requested
	// name exists in the catalog.
	ErrDatasetNotFound = errors.New("dataset not found")

	// ErrDatasetExists is returned when creating a dataset whose name is
	// already taken.
	ErrDatasetExists = errors.New("dataset already exists")

	// ErrLeaseHeld is returned when a dataset's advisory lease is held by
	// another holder and has not expired.
	ErrLeaseHeld = errors.New("dataset lease held")
)
