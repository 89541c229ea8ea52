package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound               = errors.New("not found")
	ErrTemporarilyUnavailable = errors.New("temporarily unavailable")
)

// StatusError is an upstream response with a status we don't treat as a result
type StatusError struct {
	StatusCode  int
	Data        []byte
	ContentType string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream returned status %d", e.StatusCode)
}
