package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"

	"beacon-hq/beacon/pkg/source"
)

// ErrorKind categorizes a retrieval failure for display and remediation.
type ErrorKind string

const (
	// KindNetworkUnreachable means the request never reached the backend
	// (connection refused, DNS failure, timeout).
	KindNetworkUnreachable ErrorKind = "network_unreachable"

	// KindHTTPError means the backend responded with a non-2xx status.
	KindHTTPError ErrorKind = "http_error"

	// KindParseError means the response body could not be parsed into a
	// metric payload.
	KindParseError ErrorKind = "parse_error"

	// KindUnknown covers anything else.
	KindUnknown ErrorKind = "unknown"
)

// ErrNoData is the sentinel matched by errors.Is when every tier of the
// fallback chain failed and no payload could be served.
var ErrNoData = errors.New("no data available from any source")

// remediation holds the fixed, ordered remediation steps per error kind.
// The order matters: steps are listed most-likely-fix first.
var remediation = map[ErrorKind][]string{
	KindNetworkUnreachable: {
		"Check that the backend server is running",
		"Verify the configured API base URL",
		"Check network connectivity",
	},
	KindHTTPError: {
		"Check the backend server logs for errors",
		"Verify the metric key is exposed by the backend",
		"Confirm the API version prefix matches the backend",
	},
	KindParseError: {
		"Check that the endpoint returns a JSON object",
		"Verify the backend and dashboard versions are compatible",
	},
	KindUnknown: {
		"Retry the request",
		"Check the application logs for details",
	},
}

// TypedError is the uniform error surfaced to widgets. It is immutable once
// constructed and safe to hand to UI error panels.
type TypedError struct {
	// Kind is the failure category.
	Kind ErrorKind

	// Message is a human-readable description of the failure.
	Message string

	// Endpoint is the location that failed, when known.
	Endpoint string

	// Remediation is the ordered list of suggested fixes for this kind.
	Remediation []string

	// Cause is the underlying error, preserved for errors.Is/As.
	Cause error
}

// Error implements the error interface.
func (e *TypedError) Error() string {
	if e.Endpoint != "" {
		return fmt.Sprintf("%s: %s (endpoint: %s)", e.Kind, e.Message, e.Endpoint)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying error for error chain traversal.
func (e *TypedError) Unwrap() error {
	return e.Cause
}

// ClassifyError converts any retrieval failure into a TypedError. It never
// panics and always returns a well-formed error, even for nil or unexpected
// input. If err is already a TypedError it is returned unchanged.
//
// The endpoint argument is a fallback; errors that carry their own endpoint
// (wire errors from the source tiers) take precedence.
func ClassifyError(endpoint string, err error) *TypedError {
	if err == nil {
		return &TypedError{
			Kind:        KindUnknown,
			Message:     "unspecified failure",
			Endpoint:    endpoint,
			Remediation: remediation[KindUnknown],
		}
	}

	var typed *TypedError
	if errors.As(err, &typed) {
		return typed
	}

	kind := KindUnknown
	message := err.Error()

	var statusErr *source.StatusError
	var decodeErr *source.DecodeError
	var jsonSyntaxErr *json.SyntaxError
	var jsonTypeErr *json.UnmarshalTypeError
	var urlErr *url.Error
	var netErr net.Error

	switch {
	case errors.As(err, &statusErr):
		kind = KindHTTPError
		message = fmt.Sprintf("backend returned HTTP %d", statusErr.StatusCode)
		if statusErr.Body != "" {
			message += ": " + statusErr.Body
		}
		endpoint = statusErr.Endpoint

	case errors.As(err, &decodeErr):
		kind = KindParseError
		endpoint = decodeErr.Endpoint

	case errors.As(err, &jsonSyntaxErr), errors.As(err, &jsonTypeErr):
		kind = KindParseError

	case errors.Is(err, context.DeadlineExceeded):
		kind = KindNetworkUnreachable
		message = "request timed out"

	case errors.As(err, &urlErr):
		kind = KindNetworkUnreachable
		if endpoint == "" {
			endpoint = urlErr.URL
		}

	case errors.As(err, &netErr):
		kind = KindNetworkUnreachable

	case isConnectionMessage(err):
		kind = KindNetworkUnreachable
	}

	return &TypedError{
		Kind:        kind,
		Message:     message,
		Endpoint:    endpoint,
		Remediation: remediation[kind],
		Cause:       err,
	}
}

// isConnectionMessage catches connection failures that arrive as plain
// wrapped errors without a net.Error in the chain.
func isConnectionMessage(err error) bool {
	msg := err.Error()
	for _, marker := range []string{
		"connection refused",
		"connection reset",
		"no such host",
		"network is unreachable",
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
