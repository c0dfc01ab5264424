// Package ethproofs submits proving progress and completed proofs to
// the ethproofs.org tracking service.
package ethproofs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/ethereum/go-ethereum/log"

	"github.com/certenio/ethprover/pkg/metrics"
)

const (
	// StagingURL is the ethproofs.org staging environment.
	StagingURL = "https://staging--ethproofs.netlify.app/api/v0"
	// ProductionURL is the ethproofs.org production environment.
	ProductionURL = "https://ethproofs.org/api/v0"

	maxAttempts  = 3
	baseBackoff  = 200 * time.Millisecond
	requestTimeout = 10 * time.Second
)

// Client submits block-proving progress to ethproofs.org over bearer
// auth HTTP.
type Client struct {
	baseURL   string
	authToken string
	clusterID uint64
	http      *http.Client
	metrics   *metrics.Metrics
}

// NewClient builds a Client. m may be nil to disable metrics.
func NewClient(baseURL, authToken string, clusterID uint64, m *metrics.Metrics) *Client {
	return &Client{
		baseURL:   baseURL,
		authToken: authToken,
		clusterID: clusterID,
		http:      &http.Client{Timeout: requestTimeout},
		metrics:   m,
	}
}

type queuedPayload struct {
	BlockNumber uint64 `json:"block_number"`
	ClusterID   uint64 `json:"cluster_id"`
}

type provingPayload struct {
	BlockNumber uint64 `json:"block_number"`
	ClusterID   uint64 `json:"cluster_id"`
}

// ProvedPayload is the body of a completed-proof submission.
type ProvedPayload struct {
	BlockNumber   uint64 `json:"block_number"`
	ClusterID     uint64 `json:"cluster_id"`
	ProvingTime   uint64 `json:"proving_time"`
	ProvingCycles uint64 `json:"proving_cycles"`
	Proof         string `json:"proof"`
	VerifierID    string `json:"verifier_id"`
}

// QueueProof reports that blockNumber has been accepted for proving.
func (c *Client) QueueProof(ctx context.Context, blockNumber uint64) error {
	return c.post(ctx, "proofs/queued", queuedPayload{BlockNumber: blockNumber, ClusterID: c.clusterID})
}

// ProvingProof reports that blockNumber has started proof generation.
func (c *Client) ProvingProof(ctx context.Context, blockNumber uint64) error {
	return c.post(ctx, "proofs/proving", provingPayload{BlockNumber: blockNumber, ClusterID: c.clusterID})
}

// SendProof reports a completed proof. proofBytes is the raw proof; it
// is gzip-compressed and base64-encoded before transmission, per the
// ethproofs.org submission format.
func (c *Client) SendProof(ctx context.Context, blockNumber, provingTimeMS, provingCycles uint64, proofBytes []byte) error {
	encoded, err := EncodeProof(proofBytes)
	if err != nil {
		return fmt.Errorf("ethproofs: encode proof: %w", err)
	}

	return c.post(ctx, "proofs/proved", ProvedPayload{
		BlockNumber:   blockNumber,
		ClusterID:     c.clusterID,
		ProvingTime:   provingTimeMS,
		ProvingCycles: provingCycles,
		Proof:         encoded,
		VerifierID:    "None",
	})
}

// post performs a bearer-authenticated JSON POST to endpoint, retrying
// up to maxAttempts times with a doubling backoff starting at
// baseBackoff. Only transport-level errors (timeouts, connection
// failures), HTTP 429, and HTTP 5xx are retried; every other failure
// is terminal and returned immediately.
func (c *Client) post(ctx context.Context, endpoint string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("ethproofs: marshal payload: %w", err)
	}

	bo := backoff.WithMaxRetries(newSubmitBackoff(), maxAttempts-1)
	bo = backoff.WithContext(bo, ctx)

	start := time.Now()
	err = backoff.Retry(func() error {
		return c.attempt(ctx, endpoint, body)
	}, bo)
	if c.metrics != nil {
		c.metrics.EthproofsRequestDuration.Observe(time.Since(start).Seconds())
		if err != nil {
			c.metrics.EthproofsRequestFailureTotal.Inc()
		} else {
			c.metrics.EthproofsRequestSuccessTotal.Inc()
		}
	}
	if err != nil {
		return fmt.Errorf("ethproofs: %s: %w", endpoint, err)
	}
	return nil
}

func newSubmitBackoff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = baseBackoff
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	return b
}

func (c *Client) attempt(ctx context.Context, endpoint string, body []byte) error {
	url := c.baseURL + "/" + endpoint
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return backoff.Permanent(fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.authToken)

	resp, err := c.http.Do(req)
	if err != nil {
		// Transport-level failure (timeout, connection refused, DNS,
		// etc.): retryable.
		log.Warn("ethproofs: request failed, will retry", "endpoint", endpoint, "err", err)
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("http %d", resp.StatusCode)
	case resp.StatusCode >= 500:
		return fmt.Errorf("http %d", resp.StatusCode)
	default:
		return backoff.Permanent(fmt.Errorf("http %d", resp.StatusCode))
	}
}
