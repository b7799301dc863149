// Cinegraph - External Content Metadata Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cinegraph

package models

// Change-event actions delivered by provider webhooks.
const (
	ActionCreated = "created"
	ActionUpdated = "updated"
	ActionDeleted = "deleted"
)

// ChangeEvent is a structured provider change notification delivered via
// webhook. ObjectType uses the provider's vocabulary ("movie", "tv",
// "person"); Kind() translates it to the local content kind.
type ChangeEvent struct {
	Action     string                 `json:"action"`
	ObjectType string                 `json:"object_type"`
	ObjectID   int64                  `json:"object_id"`
	Title      string                 `json:"title,omitempty"`
	Payload    map[string]interface{} `json:"payload,omitempty"`
}

// Kind maps the provider object type onto a local content kind. The empty
// Kind is returned for unrecognized object types.
func (e *ChangeEvent) Kind() Kind {
	switch e.ObjectType {
	case "movie":
		return KindMovie
	case "tv", "series":
		return KindSeries
	case "person":
		return KindPerson
	}
	return ""
}

// Valid reports whether the event carries a recognized action, a recognized
// object type, and a positive object id.
func (e *ChangeEvent) Valid() bool {
	switch e.Action {
	case ActionCreated, ActionUpdated, ActionDeleted:
	default:
		return false
	}
	return e.Kind() != "" && e.ObjectID > 0
}
