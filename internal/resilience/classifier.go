// Package resilience implements the retry classifier and the
// backoff/retry-loop machinery the API client and processing manager
// build on.
package resilience

import (
	"strings"
	"time"

	"github.com/corvidlabs/blockctl/internal/domain"
)

// Kind is the top-level classification a raw failure maps to.
type Kind int

const (
	KindPermanent Kind = iota
	KindTransient
	KindAuth
)

// FailureInput is the raw failure description fed to Classify: exactly
// what the API client observed about one failed call.
type FailureInput struct {
	HTTPStatus        *int
	ResponseBody      string
	ProviderError     string
	ProviderErrorCode string
	ExceptionKind     string // "network", "timeout", "" for none
	RateLimitReset    time.Time
}

// Classification is the pure output of Classify: a closed sum over
// Permanent/Transient/Auth.
type Classification struct {
	Kind      Kind
	UserState domain.UserState // set when Kind == KindPermanent
	ErrorKind domain.ErrorKind // set when Kind == KindTransient
	WaitHint  time.Duration    // set when ErrorKind == rate_limit or server_error
}

var suspendedMarkers = []string{"suspended"}
var notFoundMarkers = []string{"not found", "not_found", "does not exist", "no user matches"}
var deactivatedMarkers = []string{"deactivated", "account is temporarily unavailable"}
var unavailableMarkers = []string{"unavailable", "try again later"}

// Classify maps a raw failure signal to a Classification. It is a pure
// function: identical inputs always produce identical outputs.
func Classify(in FailureInput, now time.Time) Classification {
	if in.HTTPStatus != nil {
		switch *in.HTTPStatus {
		case 401:
			return Classification{Kind: KindAuth}
		case 429:
			wait := in.RateLimitReset.Sub(now)
			return Classification{
				Kind:      KindTransient,
				ErrorKind: domain.ErrorKindRateLimit,
				WaitHint:  clampDuration(wait, 60*time.Second, 900*time.Second),
			}
		case 500, 502, 503, 504:
			return Classification{
				Kind:      KindTransient,
				ErrorKind: domain.ErrorKindServerError,
				WaitHint:  60 * time.Second,
			}
		case 403:
			if strings.TrimSpace(in.ResponseBody) == "" {
				return Classification{Kind: KindTransient, ErrorKind: domain.ErrorKindUnknown}
			}
		}
	}

	if state, ok := matchPermanent(in.ProviderError); ok {
		return Classification{Kind: KindPermanent, UserState: state}
	}

	if containsAny(in.ProviderError, unavailableMarkers) {
		return Classification{Kind: KindTransient, ErrorKind: domain.ErrorKindUnavailable}
	}

	switch in.ExceptionKind {
	case "network", "timeout":
		return Classification{Kind: KindTransient, ErrorKind: domain.ErrorKindNetwork}
	}

	return Classification{Kind: KindTransient, ErrorKind: domain.ErrorKindUnknown}
}

func matchPermanent(providerError string) (domain.UserState, bool) {
	if containsAny(providerError, suspendedMarkers) {
		return domain.UserStateSuspended, true
	}
	if containsAny(providerError, notFoundMarkers) {
		return domain.UserStateNotFound, true
	}
	if containsAny(providerError, deactivatedMarkers) {
		return domain.UserStateDeactivated, true
	}
	return "", false
}

func containsAny(haystack string, markers []string) bool {
	if haystack == "" {
		return false
	}
	lower := strings.ToLower(haystack)
	for _, m := range markers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}

func clampDuration(d, min, max time.Duration) time.Duration {
	if d < min {
		return min
	}
	if d > max {
		return max
	}
	return d
}
