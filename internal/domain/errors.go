package domain

import (
	"errors"
	"strings"
)

// ErrLocationNotFound is returned for unknown location ids.
var ErrLocationNotFound = errors.New("location not found")

// ErrInvalidRequest marks malformed caller input such as an unknown policy.
var ErrInvalidRequest = errors.New("invalid request")

// GraphBuildError is fatal at startup: the process must not serve an invalid topology.
type GraphBuildError struct {
	Problems []string
}

func (e *GraphBuildError) Error() string {
	return "graph build: " + strings.Join(e.Problems, "; ")
}
