// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package workflow moves content items between publication statuses.
// The legal edges live in Rule; Engine applies them with a
// compare-and-set on the stored status and an audit record.
package workflow

import (
	"mollik/internal/authz"
	"mollik/internal/models"
)

// Edge describes who may take a legal transition.
type Edge struct {
	Staff  bool // admins and editors
	Author bool // the item's own author
}

// Rule returns the edge from -> to for items of kind, or false when the
// transition is illegal.
func Rule(kind models.ContentKind, from, to models.ContentStatus) (Edge, bool) {
	switch from {
	case models.StatusDraft:
		switch to {
		case models.StatusPending:
			if kind.Moderated() {
				return Edge{Staff: true, Author: true}, true
			}
		case models.StatusPublished:
			if !kind.Moderated() {
				return Edge{Staff: true}, true
			}
		}
	case models.StatusPending:
		switch to {
		case models.StatusPublished, models.StatusRejected:
			return Edge{Staff: true}, true
		}
	case models.StatusPublished:
		switch to {
		case models.StatusArchived, models.StatusDraft:
			return Edge{Staff: true}, true
		}
	case models.StatusRejected:
		if to == models.StatusPending {
			return Edge{Author: true}, true
		}
	case models.StatusArchived:
		if to == models.StatusDraft {
			return Edge{Staff: true}, true
		}
	}
	return Edge{}, false
}

// Targets lists the statuses reachable from item's current status for
// items of its kind, in a stable order. Used by the admin API to offer
// the next steps.
func Targets(kind models.ContentKind, from models.ContentStatus) []models.ContentStatus {
	var out []models.ContentStatus
	for _, to := range []models.ContentStatus{
		models.StatusDraft, models.StatusPending, models.StatusPublished,
		models.StatusRejected, models.StatusArchived,
	} {
		if _, ok := Rule(kind, from, to); ok {
			out = append(out, to)
		}
	}
	return out
}

// Visible reports whether actor may see item. Published items are
// public; anything else is limited to its author and staff.
func Visible(item *models.ContentItem, actor authz.Actor) bool {
	if item == nil {
		return false
	}
	if item.IsPublished() {
		return true
	}
	return actor.IsStaff() || actor.Owns(item)
}

// authorize checks the edge against the policy. Staff rights are tried
// first so an editor submitting someone else's draft is not rejected as a
// non-author.
func authorize(az authz.Authorizer, actor authz.Actor, edge Edge, item *models.ContentItem) error {
	var err error
	if edge.Staff {
		if err = authz.Check(az, actor, authz.ActionTransitionStaff, item); err == nil {
			return nil
		}
	}
	if edge.Author {
		if err = authz.Check(az, actor, authz.ActionTransitionAuthor, item); err == nil {
			return nil
		}
	}
	return err
}
