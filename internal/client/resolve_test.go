package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/corvidlabs/blockctl/internal/cache"
	"github.com/corvidlabs/blockctl/internal/config"
	"github.com/corvidlabs/blockctl/internal/domain"
)

func newTestResolver(t *testing.T, srv *httptest.Server) (*Resolver, *cache.ThreeTierCache) {
	t.Helper()
	c := newTestClient(t, srv)

	cacheCfg := config.CacheConfig{
		Dir:             t.TempDir(),
		LookupTTL:       time.Hour,
		ProfileTTL:      time.Hour,
		RelationshipTTL: time.Hour,
	}
	tiers, err := cache.Open(context.Background(), cacheCfg, nil, testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = tiers.Close() })

	return NewResolver(c, tiers, testLogger()), tiers
}

func graphQLUserResponse(numericID, screenName string, following, followedBy bool) []byte {
	body, _ := json.Marshal(map[string]any{
		"data": map[string]any{
			"user": map[string]any{
				"result": map[string]any{
					"__typename": "User",
					"rest_id":    numericID,
					"legacy": map[string]any{
						"screen_name": screenName,
						"name":        screenName,
						"following":   following,
						"followed_by": followedBy,
					},
				},
			},
		},
	})
	return body
}

func TestResolveUsers_MissFetchesAndPopulatesCache(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(graphQLUserResponse("42", "alice", false, false))
	}))
	defer srv.Close()

	resolver, tiers := newTestResolver(t, srv)
	targets := []domain.Target{{Handle: "alice"}}

	resolved, err := resolver.ResolveUsers(context.Background(), targets)
	require.NoError(t, err)
	require.Contains(t, resolved, "alice")
	require.Equal(t, "42", resolved["alice"].Profile.NumericID)

	_, hasProfile := tiers.GetProfile("alice")
	require.True(t, hasProfile)
}

func TestResolveUsers_FullHitServesFromCacheWithNoUpstreamCall(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Write(graphQLUserResponse("7", "bob", true, false))
	}))
	defer srv.Close()

	resolver, _ := newTestResolver(t, srv)
	targets := []domain.Target{{Handle: "bob"}}

	_, err := resolver.ResolveUsers(context.Background(), targets)
	require.NoError(t, err)
	require.Equal(t, 1, calls)

	resolved, err := resolver.ResolveUsers(context.Background(), targets)
	require.NoError(t, err)
	require.Equal(t, 1, calls, "second resolve should be a full cache hit")
	require.True(t, resolved["bob"].Relationship.Following)
}

func TestResolveUsers_ChunksNumericIDsAtFifty(t *testing.T) {
	var batchSizes []int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query().Get("variables")
		var vars struct {
			UserIds []string `json:"userIds"`
		}
		_ = json.Unmarshal([]byte(q), &vars)
		batchSizes = append(batchSizes, len(vars.UserIds))

		users := make([]map[string]any, 0, len(vars.UserIds))
		for _, id := range vars.UserIds {
			users = append(users, map[string]any{
				"result": map[string]any{
					"__typename": "User",
					"rest_id":    id,
					"legacy": map[string]any{
						"screen_name": "u" + id,
					},
				},
			})
		}
		body, _ := json.Marshal(map[string]any{"data": map[string]any{"users": users}})
		w.Write(body)
	}))
	defer srv.Close()

	resolver, _ := newTestResolver(t, srv)
	targets := make([]domain.Target, 75)
	for i := range targets {
		targets[i] = domain.Target{NumericID: strconv.Itoa(1000 + i)}
	}

	resolved, err := resolver.ResolveUsers(context.Background(), targets)
	require.NoError(t, err)
	require.Len(t, resolved, 75)
	require.Len(t, batchSizes, 2)
	require.ElementsMatch(t, []int{50, 25}, batchSizes)
}
