package resilience

import (
	"testing"
	"time"

	"github.com/corvidlabs/blockctl/internal/domain"
)

func intPtr(i int) *int { return &i }

func TestClassify_AuthOn401(t *testing.T) {
	got := Classify(FailureInput{HTTPStatus: intPtr(401)}, time.Now())
	if got.Kind != KindAuth {
		t.Fatalf("expected KindAuth, got %v", got.Kind)
	}
}

func TestClassify_RateLimitClampsWait(t *testing.T) {
	now := time.Now()
	got := Classify(FailureInput{HTTPStatus: intPtr(429), RateLimitReset: now.Add(5 * time.Second)}, now)
	if got.Kind != KindTransient || got.ErrorKind != domain.ErrorKindRateLimit {
		t.Fatalf("expected transient rate_limit, got %+v", got)
	}
	if got.WaitHint != 60*time.Second {
		t.Fatalf("expected wait clamped to 60s floor, got %v", got.WaitHint)
	}

	got = Classify(FailureInput{HTTPStatus: intPtr(429), RateLimitReset: now.Add(2 * time.Hour)}, now)
	if got.WaitHint != 900*time.Second {
		t.Fatalf("expected wait clamped to 900s ceiling, got %v", got.WaitHint)
	}
}

func TestClassify_ServerErrorsAreTransient(t *testing.T) {
	for _, status := range []int{500, 502, 503, 504} {
		got := Classify(FailureInput{HTTPStatus: intPtr(status)}, time.Now())
		if got.Kind != KindTransient || got.ErrorKind != domain.ErrorKindServerError {
			t.Fatalf("status %d: expected transient server_error, got %+v", status, got)
		}
	}
}

func TestClassify_EmptyBody403IsTransient(t *testing.T) {
	got := Classify(FailureInput{HTTPStatus: intPtr(403), ResponseBody: ""}, time.Now())
	if got.Kind != KindTransient {
		t.Fatalf("expected transient on empty-body 403, got %+v", got)
	}
}

func TestClassify_NonEmptyBody403FallsThroughToProviderError(t *testing.T) {
	got := Classify(FailureInput{HTTPStatus: intPtr(403), ResponseBody: "forbidden", ProviderError: "User has been suspended."}, time.Now())
	if got.Kind != KindPermanent || got.UserState != domain.UserStateSuspended {
		t.Fatalf("expected permanent suspended, got %+v", got)
	}
}

func TestClassify_ProviderErrorMarkers(t *testing.T) {
	cases := []struct {
		providerError string
		wantState     domain.UserState
	}{
		{"Account suspended", domain.UserStateSuspended},
		{"User not found", domain.UserStateNotFound},
		{"does not exist", domain.UserStateNotFound},
		{"Account is deactivated", domain.UserStateDeactivated},
	}
	for _, c := range cases {
		got := Classify(FailureInput{ProviderError: c.providerError}, time.Now())
		if got.Kind != KindPermanent || got.UserState != c.wantState {
			t.Fatalf("%q: expected permanent %v, got %+v", c.providerError, c.wantState, got)
		}
	}
}

func TestClassify_UnavailableMarkerIsTransient(t *testing.T) {
	got := Classify(FailureInput{ProviderError: "Service temporarily unavailable"}, time.Now())
	if got.Kind != KindTransient || got.ErrorKind != domain.ErrorKindUnavailable {
		t.Fatalf("expected transient unavailable, got %+v", got)
	}
}

func TestClassify_ExceptionKindNetwork(t *testing.T) {
	got := Classify(FailureInput{ExceptionKind: "network"}, time.Now())
	if got.Kind != KindTransient || got.ErrorKind != domain.ErrorKindNetwork {
		t.Fatalf("expected transient network, got %+v", got)
	}
	got = Classify(FailureInput{ExceptionKind: "timeout"}, time.Now())
	if got.Kind != KindTransient || got.ErrorKind != domain.ErrorKindNetwork {
		t.Fatalf("expected transient network for timeout, got %+v", got)
	}
}

func TestClassify_DefaultIsUnknownTransient(t *testing.T) {
	got := Classify(FailureInput{}, time.Now())
	if got.Kind != KindTransient || got.ErrorKind != domain.ErrorKindUnknown {
		t.Fatalf("expected transient unknown default, got %+v", got)
	}
}

func TestClassify_IsPure(t *testing.T) {
	now := time.Now()
	in := FailureInput{HTTPStatus: intPtr(429), RateLimitReset: now.Add(90 * time.Second)}
	a := Classify(in, now)
	b := Classify(in, now)
	if a != b {
		t.Fatalf("Classify is not deterministic: %+v != %+v", a, b)
	}
}
