package credential

import "errors"

var (
	ErrEmptyToken    = errors.New("credential: empty token")
	ErrTokenNotFound = errors.New("credential: token not found")
	ErrEmptySecret   = errors.New("credential: empty signing secret")
)
