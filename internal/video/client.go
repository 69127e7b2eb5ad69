package video

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/Mohamed-Adel17/CareerRouteBack/internal/faults"
)

// Retry policy per logical operation. Rate limits and server errors keep
// independent counters; both share the doubling backoff capped at 32s.
const (
	rateLimitMaxAttempts = 5
	serverErrMaxAttempts = 3
	backoffCap           = 32 * time.Second
)

const (
	metadataTimeout = 15 * time.Second
	downloadTimeout = 10 * time.Minute
)

type Config struct {
	AccountID    string
	ClientID     string
	ClientSecret string
	BaseURL      string
	OAuthURL     string
	// RetryBaseDelay seeds the exponential backoff; attempt n sleeps
	// min(base * 2^n, 32s).
	RetryBaseDelay time.Duration
}

// Client is the Zoom REST client used to provision and tear down meetings
// and fetch recording artifacts for completed sessions.
type Client struct {
	cfg        Config
	httpClient *http.Client
	downloader *http.Client
	tokens     *tokenCache
	logger     zerolog.Logger

	// sleep is injectable so retry tests run without real delays.
	sleep func(ctx context.Context, d time.Duration) error
}

func NewClient(cfg Config, logger zerolog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.zoom.us/v2"
	}
	if cfg.OAuthURL == "" {
		cfg.OAuthURL = "https://zoom.us/oauth/token"
	}
	if cfg.RetryBaseDelay <= 0 {
		cfg.RetryBaseDelay = time.Second
	}

	c := &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: metadataTimeout},
		downloader: &http.Client{Timeout: downloadTimeout},
		logger:     logger.With().Str("component", "video_client").Logger(),
		sleep:      sleepContext,
	}
	c.tokens = newTokenCache(c.fetchToken)
	return c
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (c *Client) ready(op string) error {
	if c.cfg.AccountID == "" || c.cfg.ClientID == "" || c.cfg.ClientSecret == "" {
		return faults.New(faults.KindConfiguration, op, "video provider credentials are not configured")
	}
	return nil
}

// fetchToken exchanges the server-to-server OAuth credentials for a bearer
// token. Called only from inside the token cache's critical section.
func (c *Client) fetchToken(ctx context.Context) (string, time.Duration, error) {
	const op = "video.fetch_token"

	form := url.Values{}
	form.Set("grant_type", "account_credentials")
	form.Set("account_id", c.cfg.AccountID)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.OAuthURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", 0, fmt.Errorf("build token request: %w", err)
	}
	basic := base64.StdEncoding.EncodeToString([]byte(c.cfg.ClientID + ":" + c.cfg.ClientSecret))
	req.Header.Set("Authorization", "Basic "+basic)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", 0, faults.Wrap(faults.KindUnavailable, op, "token request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return "", 0, faults.New(
			faults.KindAuthentication,
			op,
			fmt.Sprintf("token request returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))),
		)
	}

	var payload struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", 0, fmt.Errorf("decode token response: %w", err)
	}
	if payload.AccessToken == "" {
		return "", 0, faults.New(faults.KindAuthentication, op, "token response carried no access token")
	}
	return payload.AccessToken, time.Duration(payload.ExpiresIn) * time.Second, nil
}

// callMeta identifies the logical operation for audit logging.
type callMeta struct {
	op        string
	sessionID int64
	meetingID string
}

// do runs one authenticated call with the tiered retry policy and decodes a
// 2xx JSON body into out (out may be nil for empty responses).
func (c *Client) do(ctx context.Context, meta callMeta, method, path string, reqBody, out any) error {
	if err := c.ready(meta.op); err != nil {
		return err
	}

	var encoded []byte
	if reqBody != nil {
		var err error
		encoded, err = json.Marshal(reqBody)
		if err != nil {
			return fmt.Errorf("%s: marshal request: %w", meta.op, err)
		}
	}

	start := time.Now()
	rateAttempts := 0
	serverAttempts := 0
	authRetried := false
	forceRefresh := false

	finish := func(outcome string, status int) *zerolog.Event {
		return c.logger.Info().
			Str("op", meta.op).
			Int64("session_id", meta.sessionID).
			Str("meeting_id", meta.meetingID).
			Str("outcome", outcome).
			Int("status", status).
			Int("rate_limit_attempts", rateAttempts).
			Int("server_error_attempts", serverAttempts).
			Dur("duration", time.Since(start))
	}

	for {
		token, err := c.tokens.get(ctx, forceRefresh)
		if err != nil {
			return err
		}
		forceRefresh = false

		req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, bytes.NewReader(encoded))
		if err != nil {
			return fmt.Errorf("%s: build request: %w", meta.op, err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
		if reqBody != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			finish("transport_error", 0).Msg("video api call failed")
			return faults.Wrap(faults.KindUnavailable, meta.op, "request failed", err)
		}

		status := resp.StatusCode
		if status >= 200 && status < 300 {
			var decodeErr error
			if out != nil {
				decodeErr = json.NewDecoder(resp.Body).Decode(out)
			}
			resp.Body.Close()
			if decodeErr != nil {
				return fmt.Errorf("%s: decode response: %w", meta.op, decodeErr)
			}
			finish("success", status).Msg("video api call completed")
			return nil
		}

		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()

		switch {
		case status == http.StatusTooManyRequests:
			if rateAttempts >= rateLimitMaxAttempts {
				finish("rate_limited", status).Msg("video api retries exhausted")
				return faults.New(faults.KindUnavailable, meta.op, "rate limited after retries")
			}
			delay := backoffDelay(c.cfg.RetryBaseDelay, rateAttempts)
			rateAttempts++
			if err := c.sleep(ctx, delay); err != nil {
				return faults.Wrap(faults.KindUnavailable, meta.op, "cancelled during backoff", err)
			}

		case status >= 500:
			if serverAttempts >= serverErrMaxAttempts {
				finish("server_error", status).Msg("video api retries exhausted")
				return faults.New(faults.KindUnavailable, meta.op, fmt.Sprintf("server error %d after retries", status))
			}
			delay := backoffDelay(c.cfg.RetryBaseDelay, serverAttempts)
			serverAttempts++
			if err := c.sleep(ctx, delay); err != nil {
				return faults.Wrap(faults.KindUnavailable, meta.op, "cancelled during backoff", err)
			}

		case status == http.StatusUnauthorized && !authRetried:
			// One retry with a freshly acquired token, then give up.
			authRetried = true
			forceRefresh = true
			c.tokens.invalidate(token)

		default:
			c.logger.Error().
				Str("op", meta.op).
				Int64("session_id", meta.sessionID).
				Str("meeting_id", meta.meetingID).
				Int("status", status).
				Str("body", strings.TrimSpace(string(body))).
				Msg("video api returned an error status")
			finish("error", status).Msg("video api call failed")
			return c.mapStatus(meta.op, status, body)
		}
	}
}

func (c *Client) mapStatus(op string, status int, body []byte) error {
	detail := strings.TrimSpace(string(body))
	switch status {
	case http.StatusBadRequest:
		return faults.New(faults.KindValidation, op, detail)
	case http.StatusUnauthorized:
		return faults.New(faults.KindAuthentication, op, "authorization failed twice")
	case http.StatusNotFound:
		return faults.New(faults.KindNotFound, op, detail)
	case http.StatusConflict:
		return faults.New(faults.KindConflict, op, detail)
	default:
		return faults.New(faults.KindProvider, op, fmt.Sprintf("status %d: %s", status, detail))
	}
}

// backoffDelay returns min(base * 2^attempt, 32s).
func backoffDelay(base time.Duration, attempt int) time.Duration {
	delay := base << uint(attempt)
	if delay > backoffCap || delay <= 0 {
		return backoffCap
	}
	return delay
}
