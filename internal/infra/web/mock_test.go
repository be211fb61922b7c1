//go:build !integration

package web

import (
	"context"
	"errors"
	"time"

	"ai-entitlement-service/internal/domain/model"
	"ai-entitlement-service/internal/domain/ports/adapter"
	"ai-entitlement-service/internal/usecase"
)

var errAssert = errors.New("backing store unavailable: database gone")

// --- Stub use cases (the handlers' only dependencies) ---

type stubEntitlements struct {
	view       *model.EntitlementView
	ReadErr    error
	ConsumeErr error
	GiftErr    error

	lastTarget string
	lastAmount int64
	lastAction string
}

func (s *stubEntitlements) Read(ctx context.Context, userID string) (*model.EntitlementView, error) {
	if s.ReadErr != nil {
		return nil, s.ReadErr
	}
	if s.view != nil {
		return s.view, nil
	}
	return &model.EntitlementView{UserID: userID}, nil
}

func (s *stubEntitlements) Consume(ctx context.Context, userID, target string, amount int64) error {
	s.lastTarget = target
	s.lastAmount = amount
	return s.ConsumeErr
}

func (s *stubEntitlements) Gift(ctx context.Context, userID, action string) error {
	s.lastAction = action
	return s.GiftErr
}

type stubSettlement struct {
	order   *model.Order
	payment *model.Payment
	payload string

	CreateErr   error
	CallbackErr error
	RepayErr    error

	lastReq     usecase.CheckoutRequest
	lastRepayID int64
}

func (s *stubSettlement) CreateOrder(ctx context.Context, req usecase.CheckoutRequest) (*model.Order, *model.Payment, error) {
	s.lastReq = req
	if s.CreateErr != nil {
		return nil, nil, s.CreateErr
	}
	return s.order, s.payment, nil
}

func (s *stubSettlement) HandleCallback(ctx context.Context, raw []byte) (*model.Order, error) {
	return s.order, s.CallbackErr
}

func (s *stubSettlement) ConfirmPayment(ctx context.Context, res adapter.CallbackResult) (*model.Order, error) {
	return s.order, s.CallbackErr
}

func (s *stubSettlement) Credit(ctx context.Context, order *model.Order) error { return nil }

func (s *stubSettlement) Repay(ctx context.Context, userID string, orderID int64) (string, error) {
	s.lastRepayID = orderID
	if s.RepayErr != nil {
		return "", s.RepayErr
	}
	return s.payload, nil
}

func (s *stubSettlement) ResolveStale(ctx context.Context, order *model.Order) error { return nil }

type stubRedeem struct {
	order *model.Order
	codes []string

	RedeemErr   error
	GenerateErr error
}

func (s *stubRedeem) Redeem(ctx context.Context, userID, code string) (*model.Order, error) {
	return s.order, s.RedeemErr
}

func (s *stubRedeem) GenerateCodes(ctx context.Context, productID string, n int, expire *time.Time) ([]string, error) {
	if s.GenerateErr != nil {
		return nil, s.GenerateErr
	}
	return s.codes, nil
}
