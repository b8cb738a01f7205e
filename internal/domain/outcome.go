package domain

import "time"

// Status is the terminal status of one attempt on one target.
type Status string

const (
	StatusSuccess Status = "success"
	StatusSkipped Status = "skipped"
	StatusFailed  Status = "failed"
)

// UserState is the observed account state, independent of the attempt's
// outcome. Unknown is used when the upstream call never ran (e.g. a
// skip) or returned something the classifier could not place.
type UserState string

const (
	UserStateActive      UserState = "active"
	UserStateSuspended   UserState = "suspended"
	UserStateNotFound    UserState = "not_found"
	UserStateDeactivated UserState = "deactivated"
	UserStateUnavailable UserState = "unavailable"
	UserStateUnknown     UserState = "unknown"
)

// Permanent reports whether this user-state, combined with a failed
// status, makes the record a permanent failure.
func (s UserState) Permanent() bool {
	switch s {
	case UserStateSuspended, UserStateNotFound, UserStateDeactivated:
		return true
	default:
		return false
	}
}

// ErrorKind classifies a transient failure's cause, or is empty for a
// success/skip/permanent-failure record.
type ErrorKind string

const (
	ErrorKindRateLimit   ErrorKind = "rate_limit"
	ErrorKindServerError ErrorKind = "server_error"
	ErrorKindUnavailable ErrorKind = "unavailable"
	ErrorKindNetwork     ErrorKind = "network"
	ErrorKindUnknown     ErrorKind = "unknown"
)

// SkipReason records why a target was skipped without an upstream call.
type SkipReason string

const (
	SkipReasonFollowing        SkipReason = "following"
	SkipReasonFollowedBy       SkipReason = "followed_by"
	SkipReasonAlreadyBlocked   SkipReason = "already_blocked"
	SkipReasonPermanentFailed  SkipReason = "permanent_failure"
	SkipReasonAlreadySucceeded SkipReason = "already_succeeded"
)

// Outcome is one row of the persistence store: the record of the most
// recent attempt (or accumulated attempts) on one target, keyed by
// NumericID when known, else by Handle.
type Outcome struct {
	Handle      string
	NumericID   string
	DisplayName string
	Status      Status
	UserState   UserState
	ErrorKind   ErrorKind
	ErrorSample string
	HTTPStatus  *int
	SkipReason  SkipReason
	Attempts    int
	FirstSeen   time.Time
	LastUpdated time.Time
	SessionID   string
}

// Key mirrors Target.Key: numeric id when known, else handle.
func (o Outcome) Key() string {
	if o.NumericID != "" {
		return o.NumericID
	}
	return o.Handle
}

// Permanent reports whether this outcome is a permanent failure: status
// failed and a user-state that will not change on retry.
func (o Outcome) Permanent() bool {
	return o.Status == StatusFailed && o.UserState.Permanent()
}

// RetryEligible reports whether this outcome is a candidate for the
// auto-retry pass: a failure whose user-state is transient.
func (o Outcome) RetryEligible(ceiling int) bool {
	return o.Status == StatusFailed && !o.UserState.Permanent() && o.Attempts < ceiling
}
