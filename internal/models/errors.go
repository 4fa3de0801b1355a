// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package models

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates the item does not exist or is not visible to the caller.
	ErrNotFound = errors.New("not found")

	// ErrConflict indicates a slug collision that could not be resolved.
	ErrConflict = errors.New("conflict")

	// ErrIllegalTransition indicates a status change outside the transition
	// graph, including a compare-and-set lost to a concurrent writer.
	ErrIllegalTransition = errors.New("illegal status transition")

	// ErrUnauthenticated indicates the operation needs a signed-in identity.
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrUnauthorized indicates the identity lacks the required role.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrInvalidInput indicates a malformed request value.
	ErrInvalidInput = errors.New("invalid input")
)

// TransitionError describes a rejected status change.
type TransitionError struct {
	From ContentStatus
	To   ContentStatus
	Kind ContentKind
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("illegal status transition %s -> %s for %s", e.From, e.To, e.Kind)
}

// Unwrap lets errors.Is match ErrIllegalTransition.
func (e *TransitionError) Unwrap() error {
	return ErrIllegalTransition
}
