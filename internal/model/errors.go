package model

import (
	"fmt"
	"strings"
	"time"
)

// ValidationError reports a value that cannot be coerced to its column type.
type ValidationError struct {
	Key    string
	Column string
	Value  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("invalid value %q for %s: %s", e.Value, e.Column, e.Reason)
	}
	return fmt.Sprintf("invalid value %q for %s on %s: %s", e.Value, e.Column, e.Key, e.Reason)
}

// UnknownKeyError reports an edit aimed at a row or column that does not exist.
type UnknownKeyError struct {
	Key    string
	Column string
}

func (e *UnknownKeyError) Error() string {
	if e.Column == "" {
		return fmt.Sprintf("unknown row %s", e.Key)
	}
	return fmt.Sprintf("unknown cell %s/%s", e.Key, e.Column)
}

// RateLimitedError reports that the remote store rejected a call for quota reasons.
type RateLimitedError struct {
	Attempts int
	Message  string
}

func (e *RateLimitedError) Error() string {
	if e.Attempts > 0 {
		return fmt.Sprintf("remote rate limited after %d attempts: %s", e.Attempts, e.Message)
	}
	return fmt.Sprintf("remote rate limited: %s", e.Message)
}

// RemoteError reports any non-quota failure of the remote store.
type RemoteError struct {
	Op         string
	StatusCode int
	Message    string
	Err        error
}

func (e *RemoteError) Error() string {
	switch {
	case e.StatusCode != 0:
		return fmt.Sprintf("remote %s failed: HTTP %d: %s", e.Op, e.StatusCode, e.Message)
	case e.Err != nil && e.Message != "":
		return fmt.Sprintf("remote %s failed: %s: %v", e.Op, e.Message, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("remote %s failed: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("remote %s failed: %s", e.Op, e.Message)
}

func (e *RemoteError) Unwrap() error { return e.Err }

// TimeoutError reports a remote call aborted by the caller's deadline. It is
// safe to retry the operation.
type TimeoutError struct {
	Op  string
	Err error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("remote %s timed out: %v", e.Op, e.Err)
}

func (e *TimeoutError) Unwrap() error { return e.Err }

// Retryable is always true for timeouts.
func (e *TimeoutError) Retryable() bool { return true }

// InsufficientHistoryError reports that no record has the history needed for lag features.
type InsufficientHistoryError struct {
	Target  Target
	Records int
}

func (e *InsufficientHistoryError) Error() string {
	return fmt.Sprintf("insufficient history for %s: %d records yield no usable rows", e.Target, e.Records)
}

// EmptyTrainingSetError reports a fit call with zero rows.
type EmptyTrainingSetError struct {
	Target Target
}

func (e *EmptyTrainingSetError) Error() string {
	return fmt.Sprintf("empty training set for %s", e.Target)
}

// EmptyTestSetError reports an evaluation with zero rows.
type EmptyTestSetError struct {
	Target Target
}

func (e *EmptyTestSetError) Error() string {
	return fmt.Sprintf("empty test set for %s", e.Target)
}

// MissingFeatureError reports manual inputs lacking required features.
type MissingFeatureError struct {
	Target   Target
	Features []string
}

func (e *MissingFeatureError) Error() string {
	return fmt.Sprintf("missing features for %s: %s", e.Target, strings.Join(e.Features, ", "))
}

// UnknownDateError reports a prediction date that cannot be resolved to a
// record and its predecessor.
type UnknownDateError struct {
	Date   time.Time
	Reason string
}

func (e *UnknownDateError) Error() string {
	return fmt.Sprintf("cannot predict for %s: %s", e.Date.Format(DateLayout), e.Reason)
}
