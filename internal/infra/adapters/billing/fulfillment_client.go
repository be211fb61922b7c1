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

var _ adapter.Fulfillment = (*FulfillmentClient)(nil)

// FulfillmentClient marks bundled products (delivered media, voice cloning)
// ready downstream once their order is credited. Idempotent per key.
type FulfillmentClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func NewFulfillmentClient(cfg *config.BillingConfig) *FulfillmentClient {
	base := cfg.FulfillBaseURL
	if base == "" {
		base = cfg.BaseURL
	}
	return &FulfillmentClient{
		baseURL: base,
		apiKey:  cfg.APIKey,
		http:    &http.Client{Timeout: cfg.Timeout},
	}
}

func (c *FulfillmentClient) MarkReady(ctx context.Context, idemKey string, orderID int64, productID string) error {
	b, err := json.Marshal(map[string]any{
		"order_id":   orderID,
		"product_id": productID,
	})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/fulfillment/ready", bytes.NewReader(b))
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
		return fmt.Errorf("%w: fulfillment http %d", domain.ErrDownstreamUnavailable, res.StatusCode)
	}
	return nil
}
