// Package processing runs the batch pipeline: resolve, safety-skip,
// block, record — the manager the run/retry commands drive.
package processing

import "github.com/corvidlabs/blockctl/internal/domain"

// shouldSkip reports whether rel makes this target unsafe to block:
// already following, followed by, or already blocked. A nil
// relationship (resolution never reached the relationship tier) is
// never a skip by itself — the caller treats that as a resolve failure
// instead.
func shouldSkip(rel *domain.Relationship) (domain.SkipReason, bool) {
	if rel == nil {
		return "", false
	}
	reason := rel.SkipReason()
	return reason, reason != ""
}
