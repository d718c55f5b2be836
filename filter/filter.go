// Package filter provides composable predicates evaluated before a
// command or handler runs. A deny short-circuits dispatch.
package filter

import (
	"github.com/nyabot/nyabot/event"
)

// Filter decides whether a message event may proceed.
type Filter func(ev event.MessageEvent) bool

// RoleChecker is the slice of the RBAC service filters need.
type RoleChecker interface {
	UserHasRole(user, role string) bool
}

// Group accepts group messages only.
func Group() Filter {
	return func(ev event.MessageEvent) bool { return ev.IsGroup() }
}

// Private accepts direct messages only.
func Private() Filter {
	return func(ev event.MessageEvent) bool { return !ev.IsGroup() }
}

// HasRole accepts senders holding the named role, directly or through
// inheritance.
func HasRole(rc RoleChecker, role string) Filter {
	return func(ev event.MessageEvent) bool {
		return rc.UserHasRole(string(ev.SenderID()), role)
	}
}

// Admin accepts senders with the admin role.
func Admin(rc RoleChecker) Filter { return HasRole(rc, "admin") }

// Root accepts senders with the root role.
func Root(rc RoleChecker) Filter { return HasRole(rc, "root") }

// GroupAdmin accepts group messages whose sender block marks the sender
// as a group admin or the group owner.
func GroupAdmin() Filter {
	return func(ev event.MessageEvent) bool {
		if !ev.IsGroup() {
			return false
		}
		role := ev.SenderInfo().Role
		return role == "admin" || role == "owner"
	}
}

// GroupOwner accepts group messages from the group owner.
func GroupOwner() Filter {
	return func(ev event.MessageEvent) bool {
		return ev.IsGroup() && ev.SenderInfo().Role == "owner"
	}
}

// HasSegment accepts messages containing at least one segment of the
// given type, e.g. "image" or "at".
func HasSegment(segmentType string) Filter {
	return func(ev event.MessageEvent) bool {
		return ev.GetMessage().HasType(segmentType)
	}
}

// Custom wraps an arbitrary predicate.
func Custom(fn func(ev event.MessageEvent) bool) Filter {
	return Filter(fn)
}

// And passes only when every filter passes. An empty And passes.
func And(filters ...Filter) Filter {
	return func(ev event.MessageEvent) bool {
		for _, f := range filters {
			if !f(ev) {
				return false
			}
		}
		return true
	}
}

// Or passes when any filter passes. An empty Or denies.
func Or(filters ...Filter) Filter {
	return func(ev event.MessageEvent) bool {
		for _, f := range filters {
			if f(ev) {
				return true
			}
		}
		return false
	}
}
