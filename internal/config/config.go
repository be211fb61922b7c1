// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"ai-entitlement-service/internal/domain/model"
)

type RuntimeConfig struct {
	Dev bool
}

type ServerConfig struct {
	Port        int           `yaml:"port"`
	AdminAPIKey string        `yaml:"admin_api_key"`
	JWTSecret   string        `yaml:"jwt_secret"`
	SessionTTL  time.Duration `yaml:"session_ttl"`
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type DatabaseConfig struct {
	URL      string `yaml:"url"`
	MaxConns int    `yaml:"max_conns"`
}

type RedisConfig struct {
	URL      string        `yaml:"url"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

type GatewayConfig struct {
	Name        string        `yaml:"name"` // e.g. wxpay
	BaseURL     string        `yaml:"base_url"`
	MerchantID  string        `yaml:"merchant_id"`
	CallbackURL string        `yaml:"callback_url"`
	Timeout     time.Duration `yaml:"timeout"`
	Sandbox     bool          `yaml:"sandbox"`
}

type BillingConfig struct {
	BaseURL        string        `yaml:"base_url"`
	FulfillBaseURL string        `yaml:"fulfill_base_url"`
	APIKey         string        `yaml:"api_key"`
	Timeout        time.Duration `yaml:"timeout"`
}

type SettlementConfig struct {
	PaymentWindow     time.Duration `yaml:"payment_window"`     // default 900s
	ReconcileInterval time.Duration `yaml:"reconcile_interval"` // stale-payment poll
	StaleAfter        time.Duration `yaml:"stale_after"`
	MaxAttempts       int           `yaml:"max_attempts"` // bounded downstream retries
}

type IDGenConfig struct {
	NodeID int64 `yaml:"node_id"` // snowflake worker id
}

// ---- Catalog (settings-as-config, loaded once and passed by reference) ----

// ProductSpec is the YAML form of one catalog product; prices are decimal
// strings so no float parsing happens anywhere.
type ProductSpec struct {
	ID           string `yaml:"id"`
	Name         string `yaml:"name"`
	Category     string `yaml:"category"` // membership|flow_package|distribution|bundle
	Price        string `yaml:"price"`
	Count        int64  `yaml:"count"`         // package uses granted per unit
	CreditAmount string `yaml:"credit_amount"` // credit-pool grant per unit ("" = none)
	DurationDays int    `yaml:"duration_days"` // membership validity / package expiry
	OnceOnly     bool   `yaml:"once_only"`
	Hashrate     int64  `yaml:"hashrate"` // >0: grant via billing service
	Tier         bool   `yaml:"tier"`     // participates in the credit pool
}

// TargetSpec describes one metered operation target.
type TargetSpec struct {
	Cost      string `yaml:"cost"`       // credit-pool cost per unit
	ProductID string `yaml:"product_id"` // counted-package product backing this target
}

// LimitSpec is the day/week/month base values of one quota window group.
type LimitSpec struct {
	Day   int64 `yaml:"day"`
	Week  int64 `yaml:"week"`
	Month int64 `yaml:"month"`
}

type CatalogSpec struct {
	Products []ProductSpec                   `yaml:"products"`
	Limits   map[string]map[string]LimitSpec `yaml:"limits"` // product -> target -> limits
	Gifts    map[string]int64                `yaml:"gifts"`  // action -> bonus per period
}

type Config struct {
	Server     ServerConfig          `yaml:"server"`
	Log        LogConfig             `yaml:"log"`
	Database   DatabaseConfig        `yaml:"database"`
	Redis      RedisConfig           `yaml:"redis"`
	Gateway    GatewayConfig         `yaml:"gateway"`
	Billing    BillingConfig         `yaml:"billing"`
	Settlement SettlementConfig      `yaml:"settlement"`
	IDGen      IDGenConfig           `yaml:"idgen"`
	Catalog    CatalogSpec           `yaml:"catalog"`
	Targets    map[string]TargetSpec `yaml:"targets"`

	Runtime RuntimeConfig `yaml:"-"`
}

// Product is the parsed, immutable catalog entry.
type Product struct {
	ID           string
	Name         string
	Category     model.ProductCategory
	Price        decimal.Decimal
	Count        int64
	CreditAmount decimal.Decimal
	DurationDays int
	OnceOnly     bool
	Hashrate     int64
	Tier         bool
}

// Target is the parsed operation-target entry.
type Target struct {
	Cost      decimal.Decimal
	ProductID string
}

// Limits holds base window values keyed by period.
type Limits map[model.Period]int64

// Catalog is the immutable settings object handed by reference into the
// ledger and the saga. Built once in LoadConfig.
type Catalog struct {
	Products map[string]Product
	Limits   map[string]map[string]Limits // product -> target -> period limits
	Gifts    map[string]int64
	Targets  map[string]Target
	TierIDs  []string // credit-pool tiers in declaration order
}

func (c *Catalog) Product(id string) (Product, bool) {
	p, ok := c.Products[id]
	return p, ok
}

// LimitsFor returns the configured window base values for one product, or
// false when the plan table has no entry (a configuration error for callers).
func (c *Catalog) LimitsFor(productID string) (map[string]Limits, bool) {
	l, ok := c.Limits[productID]
	return l, ok
}

func LoadConfig(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	// defaults
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.SessionTTL <= 0 {
		cfg.Server.SessionTTL = 30 * time.Minute
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Database.MaxConns <= 0 {
		cfg.Database.MaxConns = 10
	}
	if cfg.Redis.TTL <= 0 {
		cfg.Redis.TTL = time.Hour
	}
	if cfg.Gateway.Timeout <= 0 {
		cfg.Gateway.Timeout = 15 * time.Second
	}
	if cfg.Billing.Timeout <= 0 {
		cfg.Billing.Timeout = 10 * time.Second
	}
	if cfg.Settlement.PaymentWindow <= 0 {
		cfg.Settlement.PaymentWindow = 900 * time.Second
	}
	if cfg.Settlement.ReconcileInterval <= 0 {
		cfg.Settlement.ReconcileInterval = time.Minute
	}
	if cfg.Settlement.StaleAfter <= 0 {
		cfg.Settlement.StaleAfter = 5 * time.Minute
	}
	if cfg.Settlement.MaxAttempts <= 0 {
		cfg.Settlement.MaxAttempts = 5
	}

	// Minimal validation
	if cfg.Database.URL == "" {
		return nil, errors.New("database.url is required")
	}
	if cfg.Redis.URL == "" {
		return nil, errors.New("redis.url is required")
	}
	if len(cfg.Catalog.Products) == 0 {
		return nil, errors.New("catalog.products must not be empty")
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}

// BuildCatalog parses the YAML catalog into the immutable runtime form.
func BuildCatalog(cfg *Config) (*Catalog, error) {
	cat := &Catalog{
		Products: make(map[string]Product, len(cfg.Catalog.Products)),
		Limits:   make(map[string]map[string]Limits, len(cfg.Catalog.Limits)),
		Gifts:    cfg.Catalog.Gifts,
		Targets:  make(map[string]Target, len(cfg.Targets)),
	}
	for _, ps := range cfg.Catalog.Products {
		price, err := decimal.NewFromString(ps.Price)
		if err != nil {
			return nil, fmt.Errorf("catalog product %s: bad price %q: %w", ps.ID, ps.Price, err)
		}
		credit := decimal.Zero
		if ps.CreditAmount != "" {
			credit, err = decimal.NewFromString(ps.CreditAmount)
			if err != nil {
				return nil, fmt.Errorf("catalog product %s: bad credit_amount %q: %w", ps.ID, ps.CreditAmount, err)
			}
		}
		p := Product{
			ID:           ps.ID,
			Name:         ps.Name,
			Category:     model.ProductCategory(ps.Category),
			Price:        price,
			Count:        ps.Count,
			CreditAmount: credit,
			DurationDays: ps.DurationDays,
			OnceOnly:     ps.OnceOnly,
			Hashrate:     ps.Hashrate,
			Tier:         ps.Tier,
		}
		cat.Products[p.ID] = p
		if p.Tier {
			cat.TierIDs = append(cat.TierIDs, p.ID)
		}
	}
	for productID, targets := range cfg.Catalog.Limits {
		m := make(map[string]Limits, len(targets))
		for target, ls := range targets {
			m[target] = Limits{
				model.PeriodDay:   ls.Day,
				model.PeriodWeek:  ls.Week,
				model.PeriodMonth: ls.Month,
			}
		}
		cat.Limits[productID] = m
	}
	for name, ts := range cfg.Targets {
		cost, err := decimal.NewFromString(ts.Cost)
		if err != nil {
			return nil, fmt.Errorf("target %s: bad cost %q: %w", name, ts.Cost, err)
		}
		cat.Targets[name] = Target{Cost: cost, ProductID: ts.ProductID}
	}
	return cat, nil
}
