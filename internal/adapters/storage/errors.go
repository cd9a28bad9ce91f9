package storage

import "errors"

var (
	// ErrNoSnapshot is returned by Load when nothing was saved yet.
	ErrNoSnapshot = errors.New("no snapshot stored")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("store closed")
	// ErrPathRequired is returned when a persistent store has no path.
	ErrPathRequired = errors.New("path is required for persistent store")
)
