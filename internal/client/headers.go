package client

import (
	"crypto/rand"
	"encoding/hex"
	"math/big"
	"strings"
)

// featureFlags is the fixed set of GraphQL feature-flag parameters the
// upstream requires on every call. This is a compatibility detail of
// the upstream API, not a behavioral choice — kept as a single editable
// table rather than scattered literals so an upstream flag-set change
// is a one-place edit.
var featureFlags = map[string]bool{
	"responsive_web_graphql_exclude_directive_enabled":                  true,
	"verified_phone_label_enabled":                                      false,
	"responsive_web_graphql_timeline_navigation_enabled":                true,
	"responsive_web_graphql_skip_user_profile_image_extensions_enabled": false,
	"creator_subscriptions_tweet_preview_api_enabled":                   true,
	"responsive_web_twitter_article_tweet_consumption_enabled":          true,
	"subscriptions_verification_info_is_identity_verified_enabled":      false,
	"subscriptions_verification_info_verified_since_enabled":            true,
	"highlights_tweets_tab_ui_enabled":                                  true,
	"responsive_web_edit_tweet_api_enabled":                             true,
}

// forwardedForPool is the small curated pool of IPs the regional
// forwarding header picks from when enabled.
var forwardedForPool = []string{
	"104.28.0.1",
	"104.28.0.2",
	"104.28.0.3",
	"104.28.0.4",
}

func randomTransactionID() string {
	buf := make([]byte, 16)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

func randomForwardedFor() string {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(len(forwardedForPool))))
	if err != nil {
		return forwardedForPool[0]
	}
	return forwardedForPool[n.Int64()]
}

// checkFeatureRejection returns the first "feature X required"-shaped
// message among graphQLErrors, or "" if there is none. extractGraphQLError
// uses it as the ProviderError of a non-2xx response; it does not produce
// a ConfigError or stop the run, and the classifier treats the rejection
// like any other unrecognized provider error. A 2xx response carrying
// such a message is returned to the caller unchanged.
func checkFeatureRejection(graphQLErrors []string) string {
	for _, e := range graphQLErrors {
		lower := strings.ToLower(e)
		if strings.Contains(lower, "feature") && strings.Contains(lower, "required") {
			return e
		}
	}
	return ""
}
