package client

import (
	"errors"
	"strings"
	"time"

	"github.com/corvidlabs/blockctl/internal/resilience"
)

// ClassifyCallError turns a failed call's error into a
// resilience.Classification: a *CallError carries the upstream HTTP
// status and body straight through; any other error (timeout,
// connection reset) is reduced to an exception kind the same way the
// retry loop's own error checker recognizes transient transport
// failures. Exported so the processing manager can classify a failed
// blocks/create call the same way the resolver classifies a failed
// resolve call.
func ClassifyCallError(err error, now time.Time) resilience.Classification {
	var callErr *CallError
	if errors.As(err, &callErr) {
		return resilience.Classify(resilience.FailureInput{
			HTTPStatus:    callErr.HTTPStatus,
			ResponseBody:  callErr.Body,
			ProviderError: callErr.ProviderError,
		}, now)
	}

	kind := ""
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "timeout"), strings.Contains(msg, "deadline exceeded"):
		kind = "timeout"
	case strings.Contains(msg, "connection refused"), strings.Contains(msg, "connection reset"), strings.Contains(msg, "no such host"):
		kind = "network"
	}
	return resilience.Classify(resilience.FailureInput{ExceptionKind: kind}, now)
}
