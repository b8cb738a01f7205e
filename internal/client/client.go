// Package client is the only component that performs outbound HTTP:
// every resolve/block/verify call upstream traverses here.
package client

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/tidwall/gjson"

	"github.com/corvidlabs/blockctl/internal/config"
	"github.com/corvidlabs/blockctl/internal/domain"
	"github.com/corvidlabs/blockctl/internal/metrics"
	"github.com/corvidlabs/blockctl/internal/resilience"
)

// CallError carries everything resilience.Classify needs about one
// failed upstream call: the caller (manager, resolve batcher) builds a
// resilience.FailureInput from it.
type CallError struct {
	HTTPStatus    *int
	Body          string
	ProviderError string
}

func (e *CallError) Error() string {
	if e.HTTPStatus != nil {
		return fmt.Sprintf("client: upstream call failed with status %d: %s", *e.HTTPStatus, e.ProviderError)
	}
	return fmt.Sprintf("client: upstream call failed: %s", e.ProviderError)
}

// Client is the API client: session/header management, rate-limit
// accounting, the 403 cool-down circuit, and the five endpoints.
type Client struct {
	http    *http.Client
	baseURL string

	cfg     config.ClientConfig
	session *session
	limiter *rateLimitAccountant
	circuit *cooldownCircuit

	logger       *slog.Logger
	metrics      *metrics.ClientMetrics
	retryMetrics *metrics.RetryMetrics
}

// New builds a Client against cfg, using jar (already loaded from
// cookiePath) as the initial session.
func New(cfg config.ClientConfig, jar *domain.CookieJar, cookiePath string, logger *slog.Logger, clientMetrics *metrics.ClientMetrics, retryMetrics *metrics.RetryMetrics) *Client {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	httpClient := &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			TLSClientConfig:     &tls.Config{MinVersion: tls.VersionTLS12},
			MaxIdleConns:        20,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
			DialContext: (&net.Dialer{
				Timeout:   5 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
		},
	}

	return &Client{
		http:         httpClient,
		baseURL:      cfg.BaseURL,
		cfg:          cfg,
		session:      newSession(jar, cookiePath),
		limiter:      newRateLimitAccountant(),
		circuit:      newCooldownCircuit(cfg.CooldownTripCount, cfg.CooldownWindow, cfg.CooldownDuration, logger, clientMetrics),
		logger:       logger,
		metrics:      clientMetrics,
		retryMetrics: retryMetrics,
	}
}

// VerifyCredentials calls account/verify_credentials and caches the
// returned caller id.
func (c *Client) VerifyCredentials(ctx context.Context) (string, error) {
	body, err := c.dispatch(ctx, endpointVerifyCreds, http.MethodGet, "/1.1/account/verify_credentials.json", nil, nil)
	if err != nil {
		return "", err
	}
	id := gjson.GetBytes(body, "id_str").String()
	if id == "" {
		return "", &CallError{ProviderError: "verify_credentials response missing id_str"}
	}
	c.session.setCallerID(id)
	return id, nil
}

// UserByScreenName resolves one handle via the single-user GraphQL
// endpoint, returning both the profile and the caller's relationship
// to it (the upstream user object embeds both).
func (c *Client) UserByScreenName(ctx context.Context, handle string) (*domain.Profile, *domain.Relationship, error) {
	params := map[string]any{"screen_name": handle}
	body, err := c.dispatchGraphQL(ctx, endpointGraphQLUserRead, "UserByScreenName", params)
	if err != nil {
		return nil, nil, err
	}
	return parseUserResult(body, "data.user.result")
}

// UserByRestId resolves one numeric id via the single-user GraphQL
// endpoint.
func (c *Client) UserByRestId(ctx context.Context, numericID string) (*domain.Profile, *domain.Relationship, error) {
	params := map[string]any{"userId": numericID}
	body, err := c.dispatchGraphQL(ctx, endpointGraphQLUserRead, "UserByRestId", params)
	if err != nil {
		return nil, nil, err
	}
	return parseUserResult(body, "data.user.result")
}

// UsersByRestIds resolves up to 50 numeric ids in one GraphQL call,
// returning a map keyed by numeric id.
func (c *Client) UsersByRestIds(ctx context.Context, numericIDs []string) (map[string]*domain.ResolvedUser, error) {
	if len(numericIDs) > 50 {
		return nil, fmt.Errorf("client: UsersByRestIds accepts at most 50 ids, got %d", len(numericIDs))
	}
	params := map[string]any{"userIds": numericIDs}
	body, err := c.dispatchGraphQL(ctx, endpointGraphQLUserRead, "UsersByRestIds", params)
	if err != nil {
		return nil, err
	}

	out := make(map[string]*domain.ResolvedUser, len(numericIDs))
	results := gjson.GetBytes(body, "data.users").Array()
	for _, r := range results {
		profile, rel, err := parseUserResult([]byte(r.Raw), "result")
		if err != nil || profile == nil {
			continue
		}
		out[profile.NumericID] = &domain.ResolvedUser{
			Target:       domain.Target{NumericID: profile.NumericID, Handle: profile.Handle},
			Profile:      profile,
			Relationship: rel,
		}
	}
	return out, nil
}

// BlockCreate issues blocks/create against numericID.
func (c *Client) BlockCreate(ctx context.Context, numericID string) error {
	form := url.Values{"user_id": {numericID}}
	_, err := c.dispatch(ctx, endpointBlockCreate, http.MethodPost, "/1.1/blocks/create.json", []byte(form.Encode()), map[string]string{
		"Content-Type": "application/x-www-form-urlencoded",
	})
	return err
}

// dispatchGraphQL builds the feature-flagged GraphQL query string and
// dispatches a GET against the GraphQL endpoint family.
func (c *Client) dispatchGraphQL(ctx context.Context, ep endpoint, operation string, params map[string]any) ([]byte, error) {
	variables, _ := json.Marshal(params)
	flags, _ := json.Marshal(featureFlags)
	query := url.Values{
		"variables": {string(variables)},
		"features":  {string(flags)},
	}
	path := "/graphql/" + operation + "?" + query.Encode()
	return c.dispatch(ctx, ep, http.MethodGet, path, nil, nil)
}

// dispatch performs one HTTP call end to end: rate-limit wait,
// header assembly, the 403 cool-down circuit, transient-I/O retry, rate-
// limit bookkeeping from the response, and Auth-triggered session
// recovery with a single retry.
func (c *Client) dispatch(ctx context.Context, ep endpoint, method, path string, body []byte, extraHeaders map[string]string) ([]byte, error) {
	if err := c.circuit.waitIfCoolingDown(ctx, c.session.cachedCallerID()); err != nil {
		return nil, err
	}

	if err := c.limiter.waitIfExhausted(ctx, ep, time.Now); err != nil {
		return nil, err
	}

	respBody, status, err := c.doOnce(ctx, method, path, body, extraHeaders)
	if err != nil {
		return nil, err
	}

	if status == http.StatusUnauthorized {
		if recErr := c.session.recover(); recErr != nil {
			return nil, &domain.AuthError{Reason: fmt.Sprintf("session recovery failed: %v", recErr)}
		}
		respBody, status, err = c.doOnce(ctx, method, path, body, extraHeaders)
		if err != nil {
			return nil, err
		}
		if status == http.StatusUnauthorized {
			return nil, &domain.AuthError{Reason: "upstream still rejected session after recovery"}
		}
	}

	if status == http.StatusTooManyRequests {
		if waitErr := c.limiter.waitIfExhausted(ctx, ep, time.Now); waitErr != nil {
			return nil, waitErr
		}
		respBody, status, err = c.doOnce(ctx, method, path, body, extraHeaders)
		if err != nil {
			return nil, err
		}
	}

	if status == http.StatusForbidden {
		account := c.session.cachedCallerID()
		empty := len(respBody) == 0
		circuitErr := c.circuit.call(account, func() (bool, error) { return empty, nil })
		if circuitErr == errCoolingDown {
			return nil, circuitErr
		}
	}

	if status < 200 || status >= 300 {
		httpStatus := status
		return nil, &CallError{HTTPStatus: &httpStatus, Body: string(respBody), ProviderError: extractGraphQLError(respBody)}
	}

	// A successful call ends any run of empty-body 403s for this account.
	_ = c.circuit.call(c.session.cachedCallerID(), func() (bool, error) { return false, nil })
	c.metrics.RecordCall(string(ep), strconv.Itoa(status), 0)
	return respBody, nil
}

// doOnce executes a single HTTP round trip through the transient-I/O
// retry loop (network errors / timeouts only — HTTP status codes are
// always returned to the caller for classification, never retried here).
func (c *Client) doOnce(ctx context.Context, method, path string, body []byte, extraHeaders map[string]string) ([]byte, int, error) {
	policy := &resilience.RetryPolicy{
		MaxRetries:    2,
		Backoff:       resilience.DefaultBackoffPolicy(),
		ErrorChecker:  &resilience.DefaultErrorChecker{},
		Logger:        c.logger,
		Metrics:       c.retryMetrics,
		OperationName: "client_dispatch",
	}

	type result struct {
		body   []byte
		status int
	}

	r, err := resilience.WithRetryFunc(ctx, policy, func() (result, error) {
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytesReader(body))
		if err != nil {
			return result{}, err
		}
		c.applyHeaders(req, extraHeaders)

		resp, err := c.http.Do(req)
		if err != nil {
			return result{}, err
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return result{}, err
		}

		c.recordRateLimit(req.URL.Path, resp.Header)
		return result{body: respBody, status: resp.StatusCode}, nil
	})
	if err != nil {
		return nil, 0, err
	}
	return r.body, r.status, nil
}

func (c *Client) applyHeaders(req *http.Request, extra map[string]string) {
	req.Header.Set("Cookie", c.session.cookieHeader())
	req.Header.Set("X-Csrf-Token", c.session.csrf())
	req.Header.Set("Authorization", "Bearer blockctl")

	if !c.cfg.DisableHeaderEnhancement {
		req.Header.Set("X-Client-Transaction-Id", randomTransactionID())
	}
	if c.cfg.EnableForwardedFor {
		req.Header.Set("X-Forwarded-For", randomForwardedFor())
	}
	for k, v := range extra {
		req.Header.Set(k, v)
	}
}

func (c *Client) recordRateLimit(path string, h http.Header) {
	remaining, err1 := strconv.Atoi(h.Get("X-Rate-Limit-Remaining"))
	resetUnix, err2 := strconv.ParseInt(h.Get("X-Rate-Limit-Reset"), 10, 64)
	if err1 != nil || err2 != nil {
		return
	}
	ep := endpointForPath(path)
	c.limiter.update(ep, remaining, time.Unix(resetUnix, 0))
}

func endpointForPath(path string) endpoint {
	switch {
	case path == "/1.1/blocks/create.json":
		return endpointBlockCreate
	case path == "/1.1/account/verify_credentials.json":
		return endpointVerifyCreds
	default:
		return endpointGraphQLUserRead
	}
}

func parseUserResult(body []byte, path string) (*domain.Profile, *domain.Relationship, error) {
	result := gjson.GetBytes(body, path)
	if !result.Exists() {
		return nil, nil, nil
	}

	typename := result.Get("__typename").String()
	profile := &domain.Profile{
		NumericID:   result.Get("rest_id").String(),
		Handle:      result.Get("legacy.screen_name").String(),
		DisplayName: result.Get("legacy.name").String(),
		Protected:   result.Get("legacy.protected").Bool(),
		Verified:    result.Get("is_blue_verified").Bool(),
	}
	switch typename {
	case "UserUnavailable":
		profile.State = domain.UserStateSuspended
	default:
		profile.State = domain.UserStateActive
	}

	rel := &domain.Relationship{
		Following:  result.Get("legacy.following").Bool(),
		FollowedBy: result.Get("legacy.followed_by").Bool(),
		Blocking:   result.Get("legacy.blocking").Bool(),
		BlockedBy:  result.Get("legacy.blocked_by").Bool(),
		Muted:      result.Get("legacy.muting").Bool(),
	}
	return profile, rel, nil
}

func extractGraphQLError(body []byte) string {
	errs := gjson.GetBytes(body, "errors.#.message").Array()
	if len(errs) == 0 {
		return ""
	}
	messages := make([]string, 0, len(errs))
	for _, e := range errs {
		messages = append(messages, e.String())
	}
	if rejection := checkFeatureRejection(messages); rejection != "" {
		return rejection
	}
	return messages[0]
}

func bytesReader(body []byte) io.Reader {
	if body == nil {
		return nil
	}
	return bytes.NewReader(body)
}
