package domain

import "time"

// Profile is the account information cached by the profile tier and
// returned by UserByScreenName / UserByRestId / UsersByRestIds.
type Profile struct {
	NumericID   string
	Handle      string
	DisplayName string
	State       UserState
	Protected   bool
	Verified    bool
}

// Relationship is the caller-to-target relationship snapshot cached by
// the relationship tier.
type Relationship struct {
	Following  bool
	FollowedBy bool
	Blocking   bool
	BlockedBy  bool
	Muted      bool
}

// SkipReason reports the safety-skip reason for this relationship, or
// "" if the target is safe to block.
func (r Relationship) SkipReason() SkipReason {
	switch {
	case r.Following:
		return SkipReasonFollowing
	case r.FollowedBy:
		return SkipReasonFollowedBy
	case r.Blocking:
		return SkipReasonAlreadyBlocked
	default:
		return ""
	}
}

// ResolvedUser is one entry of resolve_users' result: a profile plus its
// relationship snapshot, or a failure classification if resolution
// itself failed for this target.
type ResolvedUser struct {
	Target       Target
	Profile      *Profile
	Relationship *Relationship
	Permanent    *UserState // non-nil when upstream says the target can't be resolved
	Transient    *ErrorKind // non-nil when resolution failed transiently
}

// CacheEntry is the self-describing envelope persisted by each file tier
// of the three-tier cache.
type CacheEntry struct {
	Identifier string      `json:"identifier"`
	Value      interface{} `json:"value"`
	CapturedAt time.Time   `json:"captured_at"`
}

// CoverageClass classifies how much of one handle's cache footprint is
// present and fresh.
type CoverageClass int

const (
	CoverageMiss CoverageClass = iota
	CoveragePartial
	CoverageFull
)
