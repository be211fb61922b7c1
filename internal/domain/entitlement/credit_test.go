//go:build !integration

package entitlement_test

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"ai-entitlement-service/internal/domain"
	"ai-entitlement-service/internal/domain/entitlement"
	"ai-entitlement-service/internal/domain/model"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestMilliUnits(t *testing.T) {
	if got := entitlement.MilliUnits(dec("12.345")); got != 12345 {
		t.Errorf("expected 12345, got %d", got)
	}
	if !entitlement.FromMilliUnits(12345).Equal(dec("12.345")) {
		t.Error("round trip mismatch")
	}
	if got := entitlement.MilliUnits(dec("0.1")); got != 100 {
		t.Errorf("expected 100, got %d", got)
	}
}

func TestSelectCandidate(t *testing.T) {
	now := time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)
	at := func(h int) int64 { return now.Add(time.Duration(h) * time.Hour).Unix() }

	t.Run("earliest-expiring covering package wins", func(t *testing.T) {
		pkgs := []model.CreditPackage{
			{TierID: "a", TotalPrice: dec("50"), ExpireAt: at(48)},
			{TierID: "b", TotalPrice: dec("30"), ExpireAt: at(24)},
		}
		got, err := entitlement.SelectCandidate(pkgs, dec("20"), now)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got.TierID != "b" {
			t.Errorf("expected tier b, got %s", got.TierID)
		}
	})

	t.Run("nearly empty package is selected under grace even when it cannot cover", func(t *testing.T) {
		pkgs := []model.CreditPackage{
			{TierID: "a", TotalPrice: dec("8"), ExpireAt: at(24)},
			{TierID: "b", TotalPrice: dec("9.5"), ExpireAt: at(48)},
		}
		got, err := entitlement.SelectCandidate(pkgs, dec("12"), now)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got.TierID != "a" {
			t.Errorf("expected earliest-expiring grace package a, got %s", got.TierID)
		}
	})

	t.Run("above-grace package that cannot cover is skipped", func(t *testing.T) {
		pkgs := []model.CreditPackage{
			{TierID: "a", TotalPrice: dec("15"), ExpireAt: at(24)},
		}
		_, err := entitlement.SelectCandidate(pkgs, dec("20"), now)
		if !errors.Is(err, domain.ErrQuotaExhausted) {
			t.Errorf("expected ErrQuotaExhausted, got %v", err)
		}
	})

	t.Run("expired packages never qualify", func(t *testing.T) {
		pkgs := []model.CreditPackage{
			{TierID: "a", TotalPrice: dec("100"), ExpireAt: at(-1)},
		}
		_, err := entitlement.SelectCandidate(pkgs, dec("1"), now)
		if !errors.Is(err, domain.ErrQuotaExhausted) {
			t.Errorf("expected ErrQuotaExhausted, got %v", err)
		}
	})

	t.Run("boundary balance equal to cost covers", func(t *testing.T) {
		pkgs := []model.CreditPackage{
			{TierID: "a", TotalPrice: dec("20"), ExpireAt: at(24)},
		}
		got, err := entitlement.SelectCandidate(pkgs, dec("20"), now)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got.TierID != "a" {
			t.Errorf("expected tier a, got %s", got.TierID)
		}
	})
}

func TestPlanCreditConsume(t *testing.T) {
	now := time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)
	future := now.Add(24 * time.Hour).Unix()

	t.Run("near-zero packages evict and the first survivor is charged", func(t *testing.T) {
		pkgs := []model.CreditPackage{
			{OrderID: 1, TotalPrice: dec("0.5"), ExpireAt: future},
			{OrderID: 2, TotalPrice: dec("1"), ExpireAt: future},
			{OrderID: 3, TotalPrice: dec("40"), ExpireAt: future},
		}
		plan, err := entitlement.PlanCreditConsume(pkgs, dec("12"), now)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(plan.Evict) != 2 {
			t.Fatalf("expected 2 evictions, got %d", len(plan.Evict))
		}
		if plan.Target.OrderID != 3 {
			t.Errorf("expected package 3, got %d", plan.Target.OrderID)
		}
	})

	t.Run("charge may exceed the balance without truncation", func(t *testing.T) {
		pkgs := []model.CreditPackage{
			{OrderID: 1, TotalPrice: dec("8"), ExpireAt: future},
		}
		plan, err := entitlement.PlanCreditConsume(pkgs, dec("12"), now)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		after := plan.Target.TotalPrice.Sub(dec("12"))
		if !after.Equal(dec("-4")) {
			t.Errorf("expected -4 remainder, got %s", after)
		}
	})

	t.Run("nothing left reports exhaustion", func(t *testing.T) {
		pkgs := []model.CreditPackage{
			{OrderID: 1, TotalPrice: dec("0.2"), ExpireAt: future},
		}
		_, err := entitlement.PlanCreditConsume(pkgs, dec("1"), now)
		if !errors.Is(err, domain.ErrQuotaExhausted) {
			t.Errorf("expected ErrQuotaExhausted, got %v", err)
		}
	})
}
