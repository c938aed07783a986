package tracker

import (
	"errors"
	"fmt"
)

// ErrNotModified is returned by a RouteSource when the upstream route table
// has not changed since the last successful load.
var ErrNotModified = errors.New("route table not modified")

// TransportError means an upstream could not be reached or its response
// could not be read (connection refused, timeout, truncated body).
type TransportError struct {
	Source string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error (%s): %v", e.Source, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ParseError means a payload or archive did not decode into the expected shape.
type ParseError struct {
	Source string
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error (%s): %v", e.Source, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// RateLimitedError means the upstream asked us to slow down.
type RateLimitedError struct {
	Message string
}

func (e *RateLimitedError) Error() string {
	return "rate limited: " + e.Message
}

// ConfigError means required configuration is missing or invalid. It is fatal.
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("config error: %v", e.Err)
	}
	return fmt.Sprintf("config error: %s: %v", e.Field, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// Kind returns a short label for err's place in the error taxonomy, for logs.
func Kind(err error) string {
	var (
		transport *TransportError
		parse     *ParseError
		limited   *RateLimitedError
		config    *ConfigError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &limited):
		return "rate_limited"
	case errors.As(err, &parse):
		return "parse"
	case errors.As(err, &transport):
		return "transport"
	case errors.As(err, &config):
		return "config"
	default:
		return "unknown"
	}
}
