package server

import "errors"

var (
	ErrUnauthorized     = errors.New("unauthorized")
	ErrUnknownCommand   = errors.New("unknown debug command")
	ErrInvalidMessage   = errors.New("invalid message")
	ErrServerRunning    = errors.New("server is already running")
	ErrServerNotRunning = errors.New("server is not running")
	ErrEditTimeout      = errors.New("edit was not applied in time")
)
