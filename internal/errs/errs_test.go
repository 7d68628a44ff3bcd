package errs

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindString(t *testing.T) {
	tests := []struct {
		kind Kind
		want string
	}{
		{InvalidInput, "invalid_input"},
		{EmptyResponse, "empty_response"},
		{AlreadySimplified, "already_simplified"},
		{NoPath, "no_path"},
		{GeocodeMiss, "geocode_miss"},
		{ValidationFailed, "validation_failed"},
		{FetcherFailure, "fetcher_failure"},
		{GraphTooComplex, "graph_too_complex"},
		{Kind(99), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.kind.String(); got != tt.want {
			t.Errorf("Kind(%d).String() = %q, want %q", tt.kind, got, tt.want)
		}
	}
}

func TestIsMatchesKind(t *testing.T) {
	err := New(NoPath, "no route between nodes")

	if !Is(err, NoPath) {
		t.Error("Is(err, NoPath) = false, want true")
	}
	if Is(err, InvalidInput) {
		t.Error("Is(err, InvalidInput) = true, want false")
	}
}

func TestIsUnwrapsWrappedErrors(t *testing.T) {
	cause := New(FetcherFailure, "overpass timed out")
	wrapped := fmt.Errorf("building graph: %w", cause)

	if !Is(wrapped, FetcherFailure) {
		t.Error("Is(wrapped, FetcherFailure) = false, want true")
	}
}

func TestWrapPreservesCause(t *testing.T) {
	cause := errors.New("boom")
	err := Wrap(ValidationFailed, "parsing graphml", cause)

	if err.Unwrap() != cause {
		t.Error("Unwrap() did not return the original cause")
	}
	if got := err.Error(); got == "" {
		t.Error("Error() returned an empty string")
	}
}

func TestIsReturnsFalseForPlainErrors(t *testing.T) {
	if Is(errors.New("plain"), NoPath) {
		t.Error("Is() = true for a plain error, want false")
	}
	if Is(nil, NoPath) {
		t.Error("Is(nil, ...) = true, want false")
	}
}
