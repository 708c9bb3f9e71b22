package client

import "errors"

var (
	ErrUnavailable = errors.New("server unavailable")
	ErrIntegrity   = errors.New("downloaded blob does not match its id")
)
