//go:build !integration

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"ai-entitlement-service/internal/domain/model"
)

func decimalMust(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("bad decimal %q: %v", s, err)
	}
	return d
}

const minimalYAML = `
database:
  url: postgres://localhost:5432/app
redis:
  url: localhost:6379
catalog:
  products:
    - id: vip_month
      name: Monthly VIP
      category: membership
      price: "30"
      duration_days: 30
      hashrate: 1000
    - id: credit_a
      name: Credit Pack A
      category: flow_package
      price: "10"
      credit_amount: "50"
      duration_days: 60
      tier: true
    - id: credit_b
      name: Credit Pack B
      category: flow_package
      price: "20"
      credit_amount: "110"
      duration_days: 90
      tier: true
  limits:
    vip_month:
      chat: {day: 100, week: 500, month: 1500}
  gifts:
    signup: 5
targets:
  chat:
    cost: "0.1"
  draw:
    cost: "2"
    product_id: draw_pack
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfig(t *testing.T) {
	t.Run("fills defaults", func(t *testing.T) {
		cfg, err := LoadConfig(writeConfig(t, minimalYAML), true)
		if err != nil {
			t.Fatalf("load: %v", err)
		}
		if cfg.Server.Port != 8080 {
			t.Errorf("expected default port 8080, got %d", cfg.Server.Port)
		}
		if cfg.Settlement.PaymentWindow != 900*time.Second {
			t.Errorf("expected 900s payment window, got %s", cfg.Settlement.PaymentWindow)
		}
		if cfg.Settlement.MaxAttempts != 5 {
			t.Errorf("expected 5 max attempts, got %d", cfg.Settlement.MaxAttempts)
		}
		if cfg.Log.Level != "info" || cfg.Log.Format != "json" {
			t.Errorf("unexpected log defaults %+v", cfg.Log)
		}
		if !cfg.Runtime.Dev {
			t.Error("dev flag not propagated")
		}
	})

	t.Run("rejects a config without storage", func(t *testing.T) {
		if _, err := LoadConfig(writeConfig(t, "redis:\n  url: localhost:6379\n"), false); err == nil {
			t.Error("expected an error for missing database.url")
		}
	})

	t.Run("rejects an empty catalog", func(t *testing.T) {
		body := "database:\n  url: postgres://localhost/app\nredis:\n  url: localhost:6379\n"
		if _, err := LoadConfig(writeConfig(t, body), false); err == nil {
			t.Error("expected an error for an empty catalog")
		}
	})
}

func TestBuildCatalog(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, minimalYAML), false)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	cat, err := BuildCatalog(cfg)
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	p, ok := cat.Product("vip_month")
	if !ok {
		t.Fatal("vip_month missing")
	}
	if !p.Price.Equal(decimalMust(t, "30")) || p.Hashrate != 1000 {
		t.Errorf("unexpected product %+v", p)
	}

	limits, ok := cat.LimitsFor("vip_month")
	if !ok {
		t.Fatal("vip_month limits missing")
	}
	if limits["chat"][model.PeriodWeek] != 500 {
		t.Errorf("unexpected chat limits %v", limits["chat"])
	}

	if got := cat.Targets["draw"]; !got.Cost.Equal(decimalMust(t, "2")) || got.ProductID != "draw_pack" {
		t.Errorf("unexpected draw target %+v", got)
	}

	// tiers keep declaration order; the saga relies on it for credit grants
	if len(cat.TierIDs) != 2 || cat.TierIDs[0] != "credit_a" || cat.TierIDs[1] != "credit_b" {
		t.Errorf("unexpected tier order %v", cat.TierIDs)
	}

	t.Run("bad price fails the build", func(t *testing.T) {
		bad := *cfg
		bad.Catalog.Products = append([]ProductSpec{}, cfg.Catalog.Products...)
		bad.Catalog.Products[0].Price = "free"
		if _, err := BuildCatalog(&bad); err == nil {
			t.Error("expected an error for a non-decimal price")
		}
	})
}
