// SPDX-License-Identifier: Apache-2.0
// Package errors provides classified, typed error handling for the runtime.
// Every failure that crosses a package boundary is a *ToolError carrying its
// classification; raw errors are classified on demand via Classify.
package errors

import (
	"encoding/json"
	"fmt"
)

// Category groups errors by their operational nature.
type Category string

const (
	// CategoryValidation indicates the supplied parameters were invalid.
	CategoryValidation Category = "validation"

	// CategoryPermission indicates the caller lacked a required permission.
	CategoryPermission Category = "permission"

	// CategoryRateLimit indicates a quota was exceeded.
	CategoryRateLimit Category = "rate_limit"

	// CategoryNetwork indicates a connectivity failure.
	CategoryNetwork Category = "network"

	// CategoryTimeout indicates an operation exceeded its time limit.
	CategoryTimeout Category = "timeout"

	// CategoryResource indicates exhaustion of a system resource.
	CategoryResource Category = "resource"

	// CategoryBusinessLogic indicates a domain-level rejection.
	CategoryBusinessLogic Category = "business_logic"

	// CategoryUnknown is assigned when no rule matches.
	CategoryUnknown Category = "unknown"
)

// Severity ranks how serious an error is for alerting purposes.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Well-known error codes used across the runtime.
const (
	CodeInternal          = "INTERNAL_ERROR"
	CodeInvalidInput      = "INVALID_INPUT"
	CodeToolFailure       = "TOOL_FAILURE"
	CodeTimeout           = "TIMEOUT"
	CodeRateLimit         = "RATE_LIMITED"
	CodeNotFound          = "NOT_FOUND"
	CodeAlreadyRegistered = "ALREADY_REGISTERED"
	CodePermissionDenied  = "PERMISSION_DENIED"
	CodeNetwork           = "NETWORK_ERROR"
	CodeResource          = "RESOURCE_EXHAUSTED"
	CodeBusinessLogic     = "BUSINESS_ERROR"
	CodeCircuitOpen       = "CIRCUIT_BREAKER_OPEN"
	CodeToolInactive      = "TOOL_INACTIVE"
	CodeMaxAgents         = "MAX_AGENTS_EXCEEDED"
	CodeCanceled          = "CANCELED"
)

// Classification is the structured judgement derived from a raw error.
// It is recomputed on demand, never stored as primary state.
type Classification struct {
	Category           Category `json:"category"`
	Severity           Severity `json:"severity"`
	Retryable          bool     `json:"retryable"`
	Recoverable        bool     `json:"recoverable"`
	RequiresUserAction bool     `json:"requires_user_action"`
	Escalate           bool     `json:"escalate"`
}

// ToolError is a typed error with rich context for observability.
// It implements the error interface and can be unwrapped with errors.As().
type ToolError struct {
	Code    string
	Message string
	Err     error
	Context map[string]interface{}

	Category           Category
	Severity           Severity
	Retryable          bool
	Recoverable        bool
	RequiresUserAction bool
	Escalate           bool
}

// Error implements the error interface.
func (e *ToolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap implements errors.Unwrap for error chain traversal.
func (e *ToolError) Unwrap() error {
	return e.Err
}

// Classification returns the classification carried by the error.
func (e *ToolError) Classification() Classification {
	return Classification{
		Category:           e.Category,
		Severity:           e.Severity,
		Retryable:          e.Retryable,
		Recoverable:        e.Recoverable,
		RequiresUserAction: e.RequiresUserAction,
		Escalate:           e.Escalate,
	}
}

// MarshalJSON implements json.Marshaler for structured logging.
func (e *ToolError) MarshalJSON() ([]byte, error) {
	return json.Marshal(&struct {
		Code      string                 `json:"code"`
		Message   string                 `json:"message"`
		Err       string                 `json:"error,omitempty"`
		Category  Category               `json:"category"`
		Severity  Severity               `json:"severity"`
		Retryable bool                   `json:"retryable"`
		Context   map[string]interface{} `json:"context,omitempty"`
	}{
		Code:      e.Code,
		Message:   e.Message,
		Err:       errString(e.Err),
		Category:  e.Category,
		Severity:  e.Severity,
		Retryable: e.Retryable,
		Context:   e.Context,
	})
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// New creates a ToolError with the given code, message, and cause.
// Category, severity, and flags are seeded from the taxonomy defaults for
// the code and can be adjusted with the With* builders.
func New(code, msg string, cause error) *ToolError {
	e := &ToolError{
		Code:    code,
		Message: msg,
		Err:     cause,
		Context: make(map[string]interface{}),
	}
	e.applyDefaults(categoryForCode(code))
	return e
}

// Newf creates a ToolError with a formatted message and no cause.
func Newf(code, format string, args ...interface{}) *ToolError {
	return New(code, fmt.Sprintf(format, args...), nil)
}

// applyDefaults seeds classification fields from the taxonomy for category.
func (e *ToolError) applyDefaults(category Category) {
	d := defaultsFor(category)
	e.Category = category
	e.Severity = d.Severity
	e.Retryable = d.Retryable
	e.Recoverable = d.Recoverable
	e.RequiresUserAction = d.RequiresUserAction
	e.Escalate = d.Escalate
}

// WithContext adds a key-value pair to the error context.
// Returns the error for method chaining.
func (e *ToolError) WithContext(key string, value interface{}) *ToolError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithCategory reassigns the category and reseeds the taxonomy defaults.
func (e *ToolError) WithCategory(category Category) *ToolError {
	e.applyDefaults(category)
	return e
}

// WithSeverity overrides the default severity.
func (e *ToolError) WithSeverity(severity Severity) *ToolError {
	e.Severity = severity
	return e
}

// WithRetryable overrides whether the error may be retried.
func (e *ToolError) WithRetryable(retryable bool) *ToolError {
	e.Retryable = retryable
	return e
}

// WithRecoverable overrides whether the recovery chain should be consulted.
func (e *ToolError) WithRecoverable(recoverable bool) *ToolError {
	e.Recoverable = recoverable
	return e
}

// WithEscalate overrides the escalation flag.
func (e *ToolError) WithEscalate(escalate bool) *ToolError {
	e.Escalate = escalate
	return e
}

// AsToolError converts any error to a *ToolError, classifying raw errors
// by their message. Returns nil for nil input.
func AsToolError(err error) *ToolError {
	if err == nil {
		return nil
	}
	if te, ok := err.(*ToolError); ok {
		return te
	}
	te := &ToolError{
		Code:    CodeToolFailure,
		Message: err.Error(),
		Err:     err,
		Context: make(map[string]interface{}),
	}
	te.applyDefaults(classifyMessage(err.Error()))
	if te.Category == CategoryNetwork && isHardNetworkFailure(err.Error()) {
		te.Severity = SeverityHigh
	}
	return te
}

// taxonomyEntry holds the default classification fields for a category.
type taxonomyEntry struct {
	Severity           Severity
	Retryable          bool
	Recoverable        bool
	RequiresUserAction bool
	Escalate           bool
}

// taxonomy maps each category to its default classification.
var taxonomy = map[Category]taxonomyEntry{
	CategoryValidation:    {Severity: SeverityLow, Recoverable: true, RequiresUserAction: true},
	CategoryPermission:    {Severity: SeverityMedium, RequiresUserAction: true, Escalate: true},
	CategoryRateLimit:     {Severity: SeverityLow, Retryable: true, Recoverable: true},
	CategoryNetwork:       {Severity: SeverityMedium, Retryable: true, Recoverable: true},
	CategoryTimeout:       {Severity: SeverityMedium, Retryable: true, Recoverable: true},
	CategoryResource:      {Severity: SeverityHigh, Retryable: true, Recoverable: true, Escalate: true},
	CategoryBusinessLogic: {Severity: SeverityMedium, Escalate: true},
	CategoryUnknown:       {Severity: SeverityMedium, Escalate: true},
}

func defaultsFor(category Category) taxonomyEntry {
	if d, ok := taxonomy[category]; ok {
		return d
	}
	return taxonomy[CategoryUnknown]
}

// categoryForCode maps well-known error codes to categories.
func categoryForCode(code string) Category {
	switch code {
	case CodeInvalidInput:
		return CategoryValidation
	case CodePermissionDenied:
		return CategoryPermission
	case CodeRateLimit:
		return CategoryRateLimit
	case CodeNetwork:
		return CategoryNetwork
	case CodeTimeout, CodeCanceled:
		return CategoryTimeout
	case CodeResource:
		return CategoryResource
	case CodeBusinessLogic:
		return CategoryBusinessLogic
	default:
		return CategoryUnknown
	}
}
