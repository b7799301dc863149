// Cinegraph - External Content Metadata Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cinegraph

/*
Package models defines data structures shared across the Cinegraph sync engine.

It is the single source of truth for the durable domain records (ContentRecord,
ClassificationTerm, SyncRunRecord), the webhook change-event shape, and the
standardized API response envelope returned by every HTTP endpoint.

Provider-specific response DTOs live in the models/tmdb subpackage; nothing in
this package depends on the provider wire format.
*/
package models
