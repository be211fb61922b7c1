// File: internal/infra/adapters/gateway/http_gateway.go
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"ai-entitlement-service/internal/config"
	"ai-entitlement-service/internal/domain"
	"ai-entitlement-service/internal/domain/ports/adapter"
)

var _ adapter.PaymentGateway = (*HTTPGateway)(nil)

// HTTPGateway talks to the external payment provider over its REST API.
// Request signing and callback signature verification happen provider-side;
// this adapter only exchanges the documents and maps the results.
type HTTPGateway struct {
	name       string
	baseURL    string
	merchantID string
	callback   string
	client     *http.Client
}

func NewHTTPGateway(cfg *config.GatewayConfig) (*HTTPGateway, error) {
	if cfg.MerchantID == "" {
		return nil, errors.New("merchant id empty")
	}
	if _, err := url.Parse(cfg.CallbackURL); err != nil {
		return nil, fmt.Errorf("invalid callback url: %w", err)
	}
	name := cfg.Name
	if name == "" {
		name = "wxpay"
	}
	return &HTTPGateway{
		name:       name,
		baseURL:    cfg.BaseURL,
		merchantID: cfg.MerchantID,
		callback:   cfg.CallbackURL,
		client:     &http.Client{Timeout: cfg.Timeout},
	}, nil
}

func (g *HTTPGateway) Name() string { return g.name }

type createResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	PayURL  string `json:"pay_url"`
	Prepay  string `json:"prepay_id"`
}

func (g *HTTPGateway) CreatePayment(ctx context.Context, orderID int64, amountMinor int64, description string) (string, error) {
	payload := map[string]any{
		"merchant_id":  g.merchantID,
		"out_trade_no": strconv.FormatInt(orderID, 10),
		"amount":       amountMinor,
		"description":  description,
		"notify_url":   g.callback,
	}
	var resp createResponse
	if err := g.post(ctx, "/pay/create", payload, &resp); err != nil {
		return "", err
	}
	if resp.Code != 0 {
		return "", fmt.Errorf("%w: create code=%d msg=%s", domain.ErrGatewayFailure, resp.Code, resp.Message)
	}
	if resp.PayURL != "" {
		return resp.PayURL, nil
	}
	return resp.Prepay, nil
}

type verifyResponse struct {
	Code       int    `json:"code"`
	Message    string `json:"message"`
	OutTradeNo string `json:"out_trade_no"`
	TxnID      string `json:"transaction_id"`
	TradeState string `json:"trade_state"`
	Valid      bool   `json:"valid"`
}

func (g *HTTPGateway) VerifyCallback(ctx context.Context, raw []byte) (adapter.CallbackResult, error) {
	payload := map[string]any{
		"merchant_id": g.merchantID,
		"notify_body": json.RawMessage(raw),
	}
	var resp verifyResponse
	if err := g.post(ctx, "/pay/verify", payload, &resp); err != nil {
		return adapter.CallbackResult{}, err
	}
	if resp.Code != 0 || !resp.Valid {
		return adapter.CallbackResult{}, domain.ErrCallbackFailed
	}
	orderID, err := strconv.ParseInt(resp.OutTradeNo, 10, 64)
	if err != nil {
		return adapter.CallbackResult{}, domain.ErrCallbackFailed
	}
	return adapter.CallbackResult{
		OrderID:      orderID,
		GatewayTxnID: resp.TxnID,
		Paid:         resp.TradeState == "SUCCESS",
	}, nil
}

func (g *HTTPGateway) QueryStatus(ctx context.Context, orderID int64) (adapter.CallbackResult, error) {
	payload := map[string]any{
		"merchant_id":  g.merchantID,
		"out_trade_no": strconv.FormatInt(orderID, 10),
	}
	var resp verifyResponse
	if err := g.post(ctx, "/pay/query", payload, &resp); err != nil {
		return adapter.CallbackResult{}, err
	}
	if resp.Code != 0 {
		return adapter.CallbackResult{}, fmt.Errorf("%w: query code=%d msg=%s", domain.ErrGatewayFailure, resp.Code, resp.Message)
	}
	return adapter.CallbackResult{
		OrderID:      orderID,
		GatewayTxnID: resp.TxnID,
		Paid:         resp.TradeState == "SUCCESS",
	}, nil
}

func (g *HTTPGateway) post(ctx context.Context, path string, payload any, out any) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+path, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	res, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrGatewayFailure, err)
	}
	defer res.Body.Close()
	if res.StatusCode/100 != 2 {
		return fmt.Errorf("%w: http %d", domain.ErrGatewayFailure, res.StatusCode)
	}
	return json.NewDecoder(res.Body).Decode(out)
}
