// File: internal/infra/adapters/billing/billing_client.go
package billing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"ai-entitlement-service/internal/config"
	"ai-entitlement-service/internal/domain"
	"ai-entitlement-service/internal/domain/ports/adapter"
)

var _ adapter.BillingService = (*Client)(nil)

// Client talks to the billing microservice that owns VIP hashrate balances.
// Every mutating call carries an Idempotency-Key header; the billing side
// deduplicates, so the credit reconciler can replay failed grants safely.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func NewClient(cfg *config.BillingConfig) *Client {
	return &Client{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		http:    &http.Client{Timeout: cfg.Timeout},
	}
}

func (c *Client) GrantBalance(ctx context.Context, idemKey, userID string, amount int64) error {
	return c.post(ctx, "/api/v1/hashrate/grant", idemKey, map[string]any{
		"user_id": userID,
		"amount":  amount,
	})
}

func (c *Client) RenewBalance(ctx context.Context, idemKey, userID string, days int) error {
	return c.post(ctx, "/api/v1/hashrate/renew", idemKey, map[string]any{
		"user_id": userID,
		"days":    days,
	})
}

func (c *Client) post(ctx context.Context, path, idemKey string, payload any) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", idemKey)
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	res, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrDownstreamUnavailable, err)
	}
	defer res.Body.Close()
	if res.StatusCode/100 != 2 {
		return fmt.Errorf("%w: billing http %d", domain.ErrDownstreamUnavailable, res.StatusCode)
	}
	return nil
}
