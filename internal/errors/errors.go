package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Code identifies a failure category carried on DriftCandidate.lastErrorCode
// and used by the state machine to pick retry vs terminate.
type Code string

const (
	// Schema errors - permanent, terminal FAILED*
	CodeExtractedSchemaViolation Code = "EXTRACTED_SCHEMA_VIOLATION"
	CodePolicyPackValidation     Code = "POLICY_PACK_VALIDATION"
	CodeLLMSchemaValidation      Code = "LLM_SCHEMA_VALIDATION"

	// Resource errors - transient or permanent per sub-code
	CodeAdapterAuth        Code = "ADAPTER_AUTH"
	CodeAdapterNotFound    Code = "ADAPTER_NOT_FOUND"
	CodeConfluenceConflict Code = "CONFLUENCE_CONFLICT"
	CodeGitHubRateLimit    Code = "GITHUB_RATE_LIMIT"

	// Policy errors - permanent, audited with provenance
	CodePackMergeConflict Code = "PACK_MERGE_CONFLICT"
	CodeUnknownComparator Code = "UNKNOWN_COMPARATOR"

	// Timeouts - bounded within a stage
	CodeBudgetExceeded    Code = "BUDGET_EXCEEDED"
	CodeComparatorTimeout Code = "COMPARATOR_TIMEOUT"

	// Retry policy
	CodeRetryExhausted Code = "RETRY_EXHAUSTED"

	// Generic transient (network, 5xx, queue)
	CodeTransient Code = "TRANSIENT"

	// Generic internal failure
	CodeInternal Code = "INTERNAL"
)

// Class partitions codes into the retry policy buckets of the state machine.
type Class int

const (
	// ClassTransient - exponential backoff, retryCount++, up to N attempts
	ClassTransient Class = iota
	// ClassPermanent - immediate FAILED* with the specific code
	ClassPermanent
	// ClassNotApplicable - not an error; candidate goes to IGNORED
	ClassNotApplicable
)

// Error is a structured pipeline error with a code and context
type Error struct {
	Code    Code
	Message string
	Cause   error
	Context map[string]interface{}
	// Transient overrides the code's default classification for resource
	// errors whose sub-code decides (rate limits vs auth failures).
	Transient bool
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches on code so errors.Is works across wrap layers
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// WithContext adds context to the error
func (e *Error) WithContext(key string, value interface{}) *Error {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// New creates an Error with the given code
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf creates an Error with a formatted message
func Newf(code Code, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates an Error wrapping a cause
func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// TransientErr creates a transient Error (network, 5xx, rate limit)
func TransientErr(message string, cause error) *Error {
	return &Error{Code: CodeTransient, Message: message, Cause: cause, Transient: true}
}

// Classify decides the retry policy bucket for an arbitrary error.
// Unknown (non-*Error) errors are treated as transient so that a flaky
// network call never terminates a candidate on the first attempt.
func Classify(err error) Class {
	var e *Error
	if !errors.As(err, &e) {
		return ClassTransient
	}
	if e.Transient {
		return ClassTransient
	}
	switch e.Code {
	case CodeExtractedSchemaViolation, CodePolicyPackValidation, CodeLLMSchemaValidation,
		CodeAdapterAuth, CodeAdapterNotFound,
		CodePackMergeConflict, CodeUnknownComparator,
		CodeRetryExhausted, CodeInternal:
		return ClassPermanent
	case CodeGitHubRateLimit, CodeConfluenceConflict, CodeTransient,
		CodeBudgetExceeded, CodeComparatorTimeout:
		return ClassTransient
	default:
		return ClassTransient
	}
}

// CodeOf extracts the error code, defaulting to INTERNAL
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// DetailedString returns the error with its context rendered, for audit rows
func (e *Error) DetailedString() string {
	var sb strings.Builder
	sb.WriteString(e.Error())
	if len(e.Context) > 0 {
		sb.WriteString(" [")
		first := true
		for k, v := range e.Context {
			if !first {
				sb.WriteString(", ")
			}
			sb.WriteString(fmt.Sprintf("%s=%v", k, v))
			first = false
		}
		sb.WriteString("]")
	}
	return sb.String()
}

// Is re-exports errors.Is for callers that import only this package
func Is(err, target error) bool { return errors.Is(err, target) }

// As re-exports errors.As
func As(err error, target interface{}) bool { return errors.As(err, target) }
