// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package authz holds the single role policy used by the HTTP handlers,
// the workflow engine and the moderation pipeline.
package authz

import (
	"fmt"

	"github.com/google/uuid"

	"mollik/internal/models"
)

// Actor is the identity performing an operation. The zero value is an
// anonymous visitor.
type Actor struct {
	UserID uuid.UUID
	Role   models.Role
}

// Anonymous is the actor for requests without a session.
var Anonymous = Actor{}

// Authenticated reports whether the actor is signed in.
func (a Actor) Authenticated() bool {
	return a.UserID != uuid.Nil
}

// IsStaff reports whether the actor is a signed-in admin or editor.
func (a Actor) IsStaff() bool {
	return a.Authenticated() && a.Role.IsStaff()
}

// Owns reports whether the actor authored item.
func (a Actor) Owns(item *models.ContentItem) bool {
	return item != nil && a.Authenticated() && item.AuthorID == a.UserID
}

// Action names an operation subject to authorization.
type Action string

const (
	ActionCreate           Action = "create"
	ActionSubmit           Action = "submit"
	ActionEdit             Action = "edit"
	ActionDelete           Action = "delete"
	ActionFeature          Action = "feature"
	ActionTransitionStaff  Action = "transition:staff"
	ActionTransitionAuthor Action = "transition:author"
	ActionModerate         Action = "moderate"
	ActionViewUnpublished  Action = "view:unpublished"
)

// Authorizer decides whether an actor may perform an action on an item.
type Authorizer interface {
	Authorize(actor Actor, action Action, item *models.ContentItem) error
}

// Policy is the role policy of the archive.
type Policy struct{}

// Authorize returns nil when allowed, models.ErrUnauthenticated for an
// anonymous actor and models.ErrUnauthorized otherwise. Unknown actions
// are denied.
func (Policy) Authorize(actor Actor, action Action, item *models.ContentItem) error {
	if !actor.Authenticated() {
		return fmt.Errorf("%s: %w", action, models.ErrUnauthenticated)
	}

	allowed := false
	switch action {
	case ActionCreate, ActionDelete, ActionFeature, ActionTransitionStaff, ActionModerate:
		allowed = actor.IsStaff()
	case ActionEdit:
		// Authors may keep editing their own work until it goes live.
		allowed = actor.IsStaff() || (actor.Owns(item) && !item.IsPublished())
	case ActionSubmit:
		// Any signed-in user may start a submission of a moderated kind.
		allowed = true
	case ActionTransitionAuthor:
		allowed = actor.Owns(item)
	case ActionViewUnpublished:
		allowed = actor.IsStaff() || actor.Owns(item)
	}
	if !allowed {
		return fmt.Errorf("%s by %s: %w", action, roleOf(actor), models.ErrUnauthorized)
	}
	return nil
}

func roleOf(a Actor) string {
	if a.Role == "" {
		return "unknown role"
	}
	return string(a.Role)
}

// Check runs az and fails closed when no authorizer is configured.
func Check(az Authorizer, actor Actor, action Action, item *models.ContentItem) error {
	if az == nil {
		return fmt.Errorf("%s: no authorizer: %w", action, models.ErrUnauthorized)
	}
	return az.Authorize(actor, action, item)
}
