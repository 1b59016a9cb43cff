package store

import "errors"

var (
	ErrNotFound  = errors.New("record not found")
	ErrConflict  = errors.New("unique key already in use")
	ErrMigration = errors.New("local schema migration failed")
	ErrColumn    = errors.New("column not writable")
)
