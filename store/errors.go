package store

import "errors"

// Sentinel errors for store operations.
var (
	ErrKeyNotFound = errors.New("key not found")
	ErrKeyExists   = errors.New("key already exists")
	ErrLoadFailed  = errors.New("load failed")
	ErrSaveFailed  = errors.New("save failed")
)
