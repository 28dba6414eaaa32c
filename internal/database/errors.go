package database

import "errors"

var (
	// ErrInvalidDatabaseURL means the connection string could not be parsed.
	ErrInvalidDatabaseURL = errors.New("invalid database URL")
	// ErrConnectionFailed means the server could not be reached or refused the login.
	ErrConnectionFailed = errors.New("database connection failed")
	// ErrLockNotAcquired means another session holds the script lock.
	ErrLockNotAcquired = errors.New("script lock not acquired")
)
