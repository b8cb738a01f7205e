package processing

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/corvidlabs/blockctl/internal/domain"
)

func TestShouldSkip_NilRelationshipNeverSkips(t *testing.T) {
	reason, skip := shouldSkip(nil)
	require.False(t, skip)
	require.Empty(t, reason)
}

func TestShouldSkip_FollowingTakesPriority(t *testing.T) {
	reason, skip := shouldSkip(&domain.Relationship{Following: true, Blocking: true})
	require.True(t, skip)
	require.Equal(t, domain.SkipReasonFollowing, reason)
}

func TestShouldSkip_FollowedBy(t *testing.T) {
	reason, skip := shouldSkip(&domain.Relationship{FollowedBy: true})
	require.True(t, skip)
	require.Equal(t, domain.SkipReasonFollowedBy, reason)
}

func TestShouldSkip_AlreadyBlocked(t *testing.T) {
	reason, skip := shouldSkip(&domain.Relationship{Blocking: true})
	require.True(t, skip)
	require.Equal(t, domain.SkipReasonAlreadyBlocked, reason)
}

func TestShouldSkip_SafeRelationship(t *testing.T) {
	reason, skip := shouldSkip(&domain.Relationship{Muted: true})
	require.False(t, skip)
	require.Empty(t, reason)
}
