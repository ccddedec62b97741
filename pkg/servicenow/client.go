// Package servicenow is the new-path ServiceNow API client: live case
// reads, CMDB business-context lookups, knowledge-base search, and work
// note writes, each normalizing transport/HTTP failures into
// pkg/errors's taxonomy at the boundary (spec.md §7).
package servicenow

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"

	"github.com/svcdesk/caseintake/pkg/config"
	caseerrors "github.com/svcdesk/caseintake/pkg/errors"
)

// Client is a thin, resilient HTTP client around the ServiceNow REST API.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	bearerToken string
	hmacSecret  []byte
	breaker     *gobreaker.CircuitBreaker
	log         *slog.Logger
}

// NewClient builds a Client from ServiceNowConfig, resolving credentials
// from the environment variables it names.
func NewClient(cfg config.ServiceNowConfig) *Client {
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "servicenow",
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})

	var secret []byte
	if cfg.HMACSecretEnv != "" {
		secret = []byte(os.Getenv(cfg.HMACSecretEnv))
	}

	return &Client{
		httpClient:  &http.Client{Timeout: 10 * time.Second},
		baseURL:     cfg.BaseURL,
		bearerToken: os.Getenv(cfg.BearerEnv),
		hmacSecret:  secret,
		breaker:     breaker,
		log:         slog.With("component", "servicenow.client"),
	}
}

// do executes method/path against the ServiceNow API, retrying transient
// failures with exponential backoff inside the circuit breaker, and
// normalizing the result into the error taxonomy.
func (c *Client) do(ctx context.Context, method, path string, body any) ([]byte, error) {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, caseerrors.Validation("failed to marshal servicenow request body", err)
		}
	}

	result, err := c.breaker.Execute(func() (any, error) {
		var respBody []byte
		op := func() error {
			req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(payload))
			if err != nil {
				return backoff.Permanent(err)
			}
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("Accept", "application/json")
			if c.bearerToken != "" {
				req.Header.Set("Authorization", "Bearer "+c.bearerToken)
			}
			if len(c.hmacSecret) > 0 {
				req.Header.Set("X-ServiceNow-Signature", sign(c.hmacSecret, payload))
			}

			resp, err := c.httpClient.Do(req)
			if err != nil {
				return err // network errors are retried
			}
			defer resp.Body.Close()

			b, err := io.ReadAll(resp.Body)
			if err != nil {
				return err
			}

			switch {
			case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
				return backoff.Permanent(caseerrors.Auth(fmt.Sprintf("servicenow returned %d", resp.StatusCode), nil))
			case resp.StatusCode >= 400 && resp.StatusCode < 500:
				return backoff.Permanent(caseerrors.Validation(fmt.Sprintf("servicenow returned %d", resp.StatusCode), nil))
			case resp.StatusCode >= 500:
				return fmt.Errorf("servicenow returned %d", resp.StatusCode) // retried
			}
			respBody = b
			return nil
		}

		bo := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3)
		if err := backoff.Retry(op, backoff.WithContext(bo, ctx)); err != nil {
			return nil, err
		}
		return respBody, nil
	})
	if err != nil {
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			return nil, caseerrors.DependencyDisabled("servicenow circuit breaker open", err)
		}
		var taxErr *caseerrors.TaxonomyError
		if asTaxonomyError(err, &taxErr) {
			return nil, taxErr
		}
		return nil, caseerrors.Transient("servicenow request failed", err)
	}
	return result.([]byte), nil
}

func asTaxonomyError(err error, target **caseerrors.TaxonomyError) bool {
	te, ok := err.(*caseerrors.TaxonomyError)
	if ok {
		*target = te
	}
	return ok
}

// sign computes the HMAC-SHA256 hex digest of body using key.
func sign(key, body []byte) string {
	mac := hmac.New(sha256.New, key)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
