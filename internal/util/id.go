package util

import "github.com/google/uuid"

// NewID returns a random UUID string used for invocation and run ids.
func NewID() string { return uuid.NewString() }
