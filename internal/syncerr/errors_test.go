// Cinegraph - External Content Metadata Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cinegraph

package syncerr

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
)

func TestClassifyHTTPStatusTable(t *testing.T) {
	tests := []struct {
		status int
		want   Kind
	}{
		{http.StatusUnauthorized, InvalidCredentials},
		{http.StatusForbidden, InvalidCredentials},
		{http.StatusTooManyRequests, RateLimited},
		{http.StatusNotFound, NotFound},
		{http.StatusBadRequest, InvalidRequest},
		{http.StatusUnprocessableEntity, InvalidRequest},
		{http.StatusBadGateway, ServiceUnavailable},
		{http.StatusServiceUnavailable, ServiceUnavailable},
		{http.StatusGatewayTimeout, ServiceUnavailable},
		{http.StatusInternalServerError, TransientInternal},
		// Unmapped codes default to TransientInternal
		{http.StatusTeapot, TransientInternal},
		{599, TransientInternal},
	}

	for _, tt := range tests {
		err := ClassifyHTTP("movie/550", tt.status, 0, nil)
		if err.Kind != tt.want {
			t.Errorf("status %d: got kind %s, want %s", tt.status, err.Kind, tt.want)
		}
	}
}

func TestClassifyProviderCodeTakesPrecedence(t *testing.T) {
	// HTTP 401 with provider code 34 (not found) should classify as NotFound:
	// the provider code is the more specific signal.
	err := ClassifyHTTP("movie/0", http.StatusUnauthorized, 34, nil)
	if err.Kind != NotFound {
		t.Errorf("got kind %s, want not_found", err.Kind)
	}

	// Unknown provider code falls back to the HTTP table.
	err = ClassifyHTTP("movie/550", http.StatusUnauthorized, 9999, nil)
	if err.Kind != InvalidCredentials {
		t.Errorf("got kind %s, want invalid_credentials", err.Kind)
	}
}

func TestRetryability(t *testing.T) {
	retryable := []Kind{RateLimited, ServiceUnavailable, TransientInternal}
	for _, k := range retryable {
		e := &SyncError{Kind: k}
		if !e.Retryable() {
			t.Errorf("%s should be retryable", k)
		}
	}

	nonRetryable := []Kind{InvalidCredentials, NotFound, InvalidRequest, MalformedResponse, LocalFailure, Unknown}
	for _, k := range nonRetryable {
		e := &SyncError{Kind: k}
		if e.Retryable() {
			t.Errorf("%s should not be retryable", k)
		}
		if e.RetryDelaySeconds() != 0 {
			t.Errorf("%s should have zero retry delay", k)
		}
	}
}

func TestRetryDelays(t *testing.T) {
	if d := (&SyncError{Kind: RateLimited}).RetryDelaySeconds(); d != 30 {
		t.Errorf("rate limited delay = %d, want 30", d)
	}
	if d := (&SyncError{Kind: ServiceUnavailable}).RetryDelaySeconds(); d != 300 {
		t.Errorf("service unavailable delay = %d, want 300", d)
	}
	if d := (&SyncError{Kind: TransientInternal}).RetryDelaySeconds(); d != 60 {
		t.Errorf("transient delay = %d, want 60", d)
	}

	// Explicit RetryAfter wins over the taxonomy default.
	if d := Limited("search/movie", 12).RetryDelaySeconds(); d != 12 {
		t.Errorf("explicit retry after = %d, want 12", d)
	}
}

func TestUnwrapAndAs(t *testing.T) {
	cause := fmt.Errorf("connection refused")
	err := Transport("configuration", cause)

	var se *SyncError
	if !errors.As(fmt.Errorf("wrapped: %w", err), &se) {
		t.Fatal("errors.As failed to find SyncError")
	}
	if se.Kind != ServiceUnavailable {
		t.Errorf("got kind %s, want service_unavailable", se.Kind)
	}
	if !errors.Is(se, cause) && se.Unwrap() != cause {
		t.Error("cause not reachable through Unwrap")
	}

	if KindOf(errors.New("plain")) != Unknown {
		t.Error("plain error should classify as unknown")
	}
}

func TestUserMessageRedacted(t *testing.T) {
	err := ClassifyHTTP("movie/550?api_key=secret", http.StatusUnauthorized, 7,
		errors.New("401 from https://provider/3/movie/550?api_key=secret"))

	msg := err.UserMessage()
	if msg == "" {
		t.Fatal("empty user message")
	}
	for _, leaked := range []string{"secret", "api_key", "provider/3"} {
		if strings.Contains(msg, leaked) {
			t.Errorf("user message leaks %q: %s", leaked, msg)
		}
	}
}
