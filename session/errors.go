package session

import "errors"

var (
	ErrInvalidIdentity = errors.New("invalid identity")
)
