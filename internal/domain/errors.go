package domain

import "errors"

var (
	// ErrNotFound reports that the remote source has no file for the requested day.
	ErrNotFound = errors.New("not found")
	// ErrTransport covers network and I/O failures talking to the remote source.
	ErrTransport = errors.New("transport error")
	// ErrDecode reports a response body that could not be decoded as text.
	ErrDecode = errors.New("decode error")
	// ErrPersistence covers failures reading from or writing to the local store.
	ErrPersistence = errors.New("persistence error")
)
