// Package faults classifies tool-calling failures and renders them as
// user-facing messages. Classification is a pure function over the fault
// text, separated from any retry loop so it can be tested without timers.
package faults

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mcpwire/mcpwire/pkg/mcp"
)

// Classification buckets a fault by how a caller should react to it.
type Classification string

const (
	// Transient faults are expected to succeed if retried unchanged.
	Transient Classification = "transient"
	// Permanent faults will not succeed on retry (malformed arguments).
	Permanent Classification = "permanent"
	// ToolFailure covers everything else; it is conservatively not
	// auto-retried by default policy.
	ToolFailure Classification = "tool_error"
)

// transientVocabulary is the fixed keyword set the retry predicate matches
// against the fault text.
var transientVocabulary = []string{
	"timeout",
	"connection",
	"network",
	"temporary",
}

var permanentVocabulary = []string{
	"invalid argument",
	"invalid parameter",
	"missing required",
	"bad type",
	"type mismatch",
	"out of range",
	"validation failed",
}

// Classify buckets a raised fault.
func Classify(err error) Classification {
	if err == nil {
		return ToolFailure
	}
	var ve *mcp.ValidationError
	if errors.As(err, &ve) {
		return Permanent
	}
	if mcp.IsTimeout(err) {
		return Transient
	}
	return ClassifyMessage(err.Error())
}

// ClassifyMessage buckets a failed-result message by keyword.
func ClassifyMessage(message string) Classification {
	lower := strings.ToLower(message)
	for _, kw := range transientVocabulary {
		if strings.Contains(lower, kw) {
			return Transient
		}
	}
	for _, kw := range permanentVocabulary {
		if strings.Contains(lower, kw) {
			return Permanent
		}
	}
	return ToolFailure
}

// IsRetryable reports whether a classified fault should be retried.
// Only transient faults are.
func IsRetryable(c Classification) bool {
	return c == Transient
}

// UserMessage renders a fault as templated user-facing text; raw stack
// traces never reach callers.
func UserMessage(err error, context string) string {
	var msg string
	switch Classify(err) {
	case Transient:
		msg = fmt.Sprintf("A temporary problem occurred (%v); the operation will be retried automatically", err)
	case Permanent:
		msg = fmt.Sprintf("The request was rejected (%v); check your parameters", err)
	default:
		msg = fmt.Sprintf("The tool reported an error (%v); please try again or contact support", err)
	}
	if context != "" {
		msg = msg + " [" + context + "]"
	}
	return msg
}

// UniformError is the wrapped form a raw fault takes when it must cross a
// component boundary as a typed value.
type UniformError struct {
	Message        string
	Classification Classification
	Cause          error
}

func (e *UniformError) Error() string { return e.Message }

func (e *UniformError) Unwrap() error { return e.Cause }

// Wrap classifies err and packages it with its user message.
func Wrap(err error, context string) *UniformError {
	return &UniformError{
		Message:        UserMessage(err, context),
		Classification: Classify(err),
		Cause:          err,
	}
}
