// Package narrative produces report card narrative text from a score and teacher keywords.
package narrative

import (
	"context"
	"errors"
	"fmt"
)

// Kind classifies generator failures.
type Kind string

const (
	KindUnconfigured      Kind = "unconfigured"
	KindUnauthorized      Kind = "unauthorized"
	KindRateLimited       Kind = "rate_limited"
	KindTransport         Kind = "transport_error"
	KindMalformedResponse Kind = "malformed_response"
)

// Error is returned by generators for every failure.
type Error struct {
	Kind       Kind
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("narrative %s: %v", e.Kind, e.Err)
	}
	return "narrative " + string(e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// Retryable is true only for transport failures.
func (e *Error) Retryable() bool { return e.Kind == KindTransport }

// KindOf extracts the failure kind, or "" for foreign errors.
func KindOf(err error) Kind {
	var ne *Error
	if errors.As(err, &ne) {
		return ne.Kind
	}
	return ""
}

// Request describes one aspect to narrate.
type Request struct {
	StudentName    string
	AspectName     string
	AspectCategory string
	Score          string
	ScoreLabel     string
	Keywords       string
}

// Generator turns a request into narrative text.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}
