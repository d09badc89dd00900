package main

import "errors"

// Sentinel errors for command operations
var (
	ErrDocumentNotFound        = errors.New("document not found")
	ErrInvalidParams           = errors.New("invalid parameters")
	ErrCheckFailed             = errors.New("check failed")
	ErrEnvironmentNotFound     = errors.New("environment not found")
	ErrNoDatabaseConfigured    = errors.New("no database connection specified")
	ErrTblsDatabaseUnavailable = errors.New("no database dsn in tbls config")
	ErrOutputFileCreation      = errors.New("failed to create output file")
)
