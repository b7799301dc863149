// Cinegraph - External Content Metadata Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cinegraph

// Package syncerr classifies every failure seen while talking to the content
// provider into a fixed taxonomy. It is the single source of truth for
// retryability decisions across the sync engine: the API client raises
// *SyncError values, the sync service converts them into countable results,
// and batch loops honor the suggested retry delay.
//
// Local-store and parsing failures use the LocalFailure kind, which is never
// retryable: they indicate a bug or a data problem, not transient provider
// trouble.
package syncerr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind is the taxonomy bucket for a classified failure.
type Kind int

const (
	// Unknown is the zero value; used when nothing better is known.
	Unknown Kind = iota

	// InvalidCredentials means the provider rejected our API key.
	InvalidCredentials

	// RateLimited means the provider (or our own admission control)
	// refused the request due to request volume.
	RateLimited

	// NotFound means the requested item does not exist at the provider.
	NotFound

	// InvalidRequest means the request itself was malformed or unacceptable.
	InvalidRequest

	// ServiceUnavailable means the provider is down or overloaded.
	ServiceUnavailable

	// TransientInternal is a provider-side error expected to clear on retry.
	TransientInternal

	// MalformedResponse means the provider returned a body we could not parse.
	MalformedResponse

	// LocalFailure is a failure in our own store or mapping code.
	LocalFailure
)

// String returns the stable name of the kind, used in logs and metrics labels.
func (k Kind) String() string {
	switch k {
	case InvalidCredentials:
		return "invalid_credentials"
	case RateLimited:
		return "rate_limited"
	case NotFound:
		return "not_found"
	case InvalidRequest:
		return "invalid_request"
	case ServiceUnavailable:
		return "service_unavailable"
	case TransientInternal:
		return "transient_internal"
	case MalformedResponse:
		return "malformed_response"
	case LocalFailure:
		return "local_failure"
	default:
		return "unknown"
	}
}

// Retry delay constants in seconds, surfaced through RetryDelaySeconds.
const (
	retryDelayRateLimited = 30
	retryDelayUnavailable = 300
	retryDelayDefault     = 60
)

// SyncError is a classified failure with the structured context callers need
// to decide what to do next. It implements error and unwraps to its cause.
type SyncError struct {
	Kind         Kind
	Endpoint     string // provider endpoint path, e.g. "movie/550"
	HTTPStatus   int    // 0 when no HTTP response was received
	ProviderCode int    // provider-embedded status_code, 0 when absent
	// RetryAfterSeconds overrides the taxonomy default when the provider
	// or the rate limiter supplied an explicit wait.
	RetryAfterSeconds int
	cause             error
}

// Error renders the full diagnostic form. Use UserMessage for anything that
// leaves the process.
func (e *SyncError) Error() string {
	msg := fmt.Sprintf("%s: endpoint=%s", e.Kind, e.Endpoint)
	if e.HTTPStatus != 0 {
		msg += fmt.Sprintf(" http=%d", e.HTTPStatus)
	}
	if e.ProviderCode != 0 {
		msg += fmt.Sprintf(" provider_code=%d", e.ProviderCode)
	}
	if e.cause != nil {
		msg += ": " + e.cause.Error()
	}
	return msg
}

// Unwrap exposes the underlying cause for errors.Is/As chains.
func (e *SyncError) Unwrap() error { return e.cause }

// Retryable reports whether retrying the same request later can succeed.
func (e *SyncError) Retryable() bool {
	switch e.Kind {
	case RateLimited, ServiceUnavailable, TransientInternal:
		return true
	default:
		return false
	}
}

// RetryDelaySeconds returns the suggested wait before retrying:
// 30s for rate limiting, 300s for an unavailable provider, 60s for other
// retryable kinds, and 0 for anything not worth retrying. An explicit
// RetryAfterSeconds (e.g. from the rate limiter) takes precedence.
func (e *SyncError) RetryDelaySeconds() int {
	if !e.Retryable() {
		return 0
	}
	if e.RetryAfterSeconds > 0 {
		return e.RetryAfterSeconds
	}
	switch e.Kind {
	case RateLimited:
		return retryDelayRateLimited
	case ServiceUnavailable:
		return retryDelayUnavailable
	default:
		return retryDelayDefault
	}
}

// UserMessage returns a redacted, user-facing description. It never includes
// URLs, keys, or raw provider payloads.
func (e *SyncError) UserMessage() string {
	switch e.Kind {
	case InvalidCredentials:
		return "The content provider rejected the configured API key."
	case RateLimited:
		return "Too many requests to the content provider. Please retry shortly."
	case NotFound:
		return "The requested item was not found at the content provider."
	case InvalidRequest:
		return "The request to the content provider was invalid."
	case ServiceUnavailable:
		return "The content provider is temporarily unavailable."
	case TransientInternal:
		return "The content provider reported a temporary error."
	case MalformedResponse:
		return "The content provider returned an unreadable response."
	case LocalFailure:
		return "A local storage or mapping error occurred."
	default:
		return "An unexpected error occurred while contacting the content provider."
	}
}

// httpStatusKinds is the fixed lookup from HTTP status codes to taxonomy kinds.
// Unmapped codes default to TransientInternal.
var httpStatusKinds = map[int]Kind{
	http.StatusUnauthorized:        InvalidCredentials,
	http.StatusForbidden:           InvalidCredentials,
	http.StatusTooManyRequests:     RateLimited,
	http.StatusNotFound:            NotFound,
	http.StatusBadRequest:          InvalidRequest,
	http.StatusUnprocessableEntity: InvalidRequest,
	http.StatusBadGateway:          ServiceUnavailable,
	http.StatusServiceUnavailable:  ServiceUnavailable,
	http.StatusGatewayTimeout:      ServiceUnavailable,
	http.StatusInternalServerError: TransientInternal,
}

// providerCodeKinds maps provider-embedded status_code values to kinds.
// The provider reports these inside an error JSON body alongside HTTP errors.
var providerCodeKinds = map[int]Kind{
	7:  InvalidCredentials, // invalid API key
	10: InvalidCredentials, // suspended API key
	25: RateLimited,
	34: NotFound,
	5:  InvalidRequest, // invalid format
	6:  InvalidRequest, // invalid id
	22: InvalidRequest, // invalid page
	9:  ServiceUnavailable,
	24: ServiceUnavailable, // backend timed out
	11: TransientInternal,  // internal error
}

// ClassifyHTTP builds a SyncError from an HTTP response status, optionally
// refined by a provider status_code parsed from the error body (0 when absent).
func ClassifyHTTP(endpoint string, httpStatus, providerCode int, cause error) *SyncError {
	kind, ok := providerCodeKinds[providerCode]
	if !ok || providerCode == 0 {
		kind, ok = httpStatusKinds[httpStatus]
		if !ok {
			kind = TransientInternal
		}
	}
	return &SyncError{
		Kind:         kind,
		Endpoint:     endpoint,
		HTTPStatus:   httpStatus,
		ProviderCode: providerCode,
		cause:        cause,
	}
}

// Transport classifies a failure that produced no HTTP response at all
// (connection refused, timeout). These are retryable provider trouble.
func Transport(endpoint string, cause error) *SyncError {
	return &SyncError{Kind: ServiceUnavailable, Endpoint: endpoint, cause: cause}
}

// Malformed marks a response body that could not be parsed.
func Malformed(endpoint string, cause error) *SyncError {
	return &SyncError{Kind: MalformedResponse, Endpoint: endpoint, cause: cause}
}

// Limited builds the admission-control rejection raised when our own rate
// limiter denies a request, carrying the computed wait.
func Limited(endpoint string, waitSeconds int) *SyncError {
	return &SyncError{Kind: RateLimited, Endpoint: endpoint, RetryAfterSeconds: waitSeconds}
}

// Local wraps a local-store or mapping failure. Never retryable.
func Local(context string, cause error) *SyncError {
	return &SyncError{Kind: LocalFailure, Endpoint: context, cause: cause}
}

// NotFoundLocal marks a lookup that failed against the local store, e.g. a
// sync request for a record with no external id. Never retryable.
func NotFoundLocal(context string) *SyncError {
	return &SyncError{Kind: NotFound, Endpoint: context}
}

// As extracts a *SyncError from an error chain, or returns nil.
func As(err error) *SyncError {
	var se *SyncError
	if errors.As(err, &se) {
		return se
	}
	return nil
}

// KindOf returns the taxonomy kind of err, or Unknown for unclassified errors.
func KindOf(err error) Kind {
	if se := As(err); se != nil {
		return se.Kind
	}
	return Unknown
}
