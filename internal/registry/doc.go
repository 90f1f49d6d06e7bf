// Package registry manages chat rooms and their membership.
//
// Rooms are created on demand by any authenticated user; the creator
// becomes the room's first member atomically with creation, so a room
// never exists without at least one member. Room names are globally
// unique with case-sensitive matching.
//
// Membership here is informational: it records who belongs where, but
// the messaging endpoints do not gate posting or polling on it. See the
// transport layer for the authorization boundary.
package registry
