//go:build !integration

package usecase_test

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"ai-entitlement-service/internal/config"
	"ai-entitlement-service/internal/domain"
	"ai-entitlement-service/internal/domain/entitlement"
	"ai-entitlement-service/internal/domain/model"
	"ai-entitlement-service/internal/domain/ports/adapter"
	"ai-entitlement-service/internal/domain/ports/repository"
)

func newTestLogger() *zerolog.Logger { l := zerolog.Nop(); return &l }

// ---------------- tx manager ----------------

type noTx struct{}

type MockTxManager struct {
	// FailWith, when set, makes the next WithTx return this error after
	// running fn, simulating a rollback of relational writes.
	FailWith error
}

func (m *MockTxManager) WithTx(ctx context.Context, _ pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	if err := fn(ctx, noTx{}); err != nil {
		return err
	}
	return m.FailWith
}

// ---------------- order repo ----------------

type MockOrderRepo struct {
	mu     sync.Mutex
	orders map[int64]*model.Order
	items  map[int64][]model.OrderItem
}

func NewMockOrderRepo() *MockOrderRepo {
	return &MockOrderRepo{orders: map[int64]*model.Order{}, items: map[int64][]model.OrderItem{}}
}

func (m *MockOrderRepo) CreateWithItems(ctx context.Context, tx repository.Tx, o *model.Order, items []model.OrderItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.orders[o.ID]; ok {
		return domain.ErrAlreadyExists
	}
	cp := *o
	m.orders[o.ID] = &cp
	m.items[o.ID] = append([]model.OrderItem(nil), items...)
	return nil
}

func (m *MockOrderRepo) FindByID(ctx context.Context, tx repository.Tx, id int64) (*model.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (m *MockOrderRepo) ListItems(ctx context.Context, tx repository.Tx, orderID int64) ([]model.OrderItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.OrderItem(nil), m.items[orderID]...), nil
}

func (m *MockOrderRepo) MarkPaid(ctx context.Context, tx repository.Tx, id int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok || o.Status != model.OrderStatusPending {
		return false, nil
	}
	o.Status = model.OrderStatusPaid
	o.UpdatedAt = time.Now()
	return true, nil
}

func (m *MockOrderRepo) MarkExpired(ctx context.Context, tx repository.Tx, id int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok || o.Status != model.OrderStatusPending {
		return false, nil
	}
	o.Status = model.OrderStatusExpired
	return true, nil
}

func (m *MockOrderRepo) SetCreditStatus(ctx context.Context, tx repository.Tx, id int64, status model.CreditStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return domain.ErrNotFound
	}
	o.CreditStatus = status
	return nil
}

func (m *MockOrderRepo) ListStalePending(ctx context.Context, tx repository.Tx, olderThan time.Time, limit int) ([]*model.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Order
	for _, o := range m.orders {
		if o.Status == model.OrderStatusPending && o.CreatedAt.Before(olderThan) {
			cp := *o
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MockOrderRepo) ListCreditFailed(ctx context.Context, tx repository.Tx, limit int) ([]*model.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Order
	for _, o := range m.orders {
		if o.Status == model.OrderStatusPaid && o.CreditStatus == model.CreditStatusFailed {
			cp := *o
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MockOrderRepo) CountPaidByUserAndProduct(ctx context.Context, tx repository.Tx, userID, productID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, o := range m.orders {
		if o.UserID != userID || o.Status != model.OrderStatusPaid {
			continue
		}
		for _, it := range m.items[id] {
			if it.ProductID == productID {
				n++
			}
		}
	}
	return n, nil
}

// ---------------- payment repo ----------------

type MockPaymentRepo struct {
	mu       sync.Mutex
	byID     map[string]*model.Payment
	byOrder  map[int64]string
	SaveFunc func(p *model.Payment) error
}

func NewMockPaymentRepo() *MockPaymentRepo {
	return &MockPaymentRepo{byID: map[string]*model.Payment{}, byOrder: map[int64]string{}}
}

func (m *MockPaymentRepo) Save(ctx context.Context, tx repository.Tx, p *model.Payment) error {
	if m.SaveFunc != nil {
		if err := m.SaveFunc(p); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.byID[p.ID] = &cp
	m.byOrder[p.OrderID] = p.ID
	return nil
}

func (m *MockPaymentRepo) FindByOrderID(ctx context.Context, tx repository.Tx, orderID int64) (*model.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.byOrder[orderID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *m.byID[id]
	return &cp, nil
}

func (m *MockPaymentRepo) SetPayload(ctx context.Context, tx repository.Tx, id string, payload string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.byID[id]
	if !ok {
		return domain.ErrNotFound
	}
	p.GatewayPayload = payload
	return nil
}

func (m *MockPaymentRepo) MarkPaidIfUnpaid(ctx context.Context, tx repository.Tx, id string, gatewayTxnID string, paidAt time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.byID[id]
	if !ok || p.Status != model.PaymentStatusUnpaid {
		return false, nil
	}
	p.Status = model.PaymentStatusPaid
	p.GatewayTxnID = gatewayTxnID
	p.PaidAt = &paidAt
	return true, nil
}

func (m *MockPaymentRepo) MarkExpired(ctx context.Context, tx repository.Tx, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.byID[id]
	if !ok {
		return domain.ErrNotFound
	}
	if p.Status == model.PaymentStatusUnpaid {
		p.Status = model.PaymentStatusExpired
	}
	return nil
}

// ---------------- activation code repo ----------------

type MockActivationCodeRepo struct {
	mu    sync.Mutex
	codes map[string]*model.ActivationCode
}

func NewMockActivationCodeRepo() *MockActivationCodeRepo {
	return &MockActivationCodeRepo{codes: map[string]*model.ActivationCode{}}
}

func (m *MockActivationCodeRepo) Save(ctx context.Context, tx repository.Tx, c *model.ActivationCode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.codes[c.Code]; ok {
		return domain.ErrAlreadyExists
	}
	cp := *c
	m.codes[c.Code] = &cp
	return nil
}

func (m *MockActivationCodeRepo) FindByCode(ctx context.Context, tx repository.Tx, code string) (*model.ActivationCode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.codes[code]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *MockActivationCodeRepo) ConsumeIfUnused(ctx context.Context, tx repository.Tx, code string, userID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.codes[code]
	if !ok || c.Status != model.CodeStatusUnused {
		return false, nil
	}
	now := time.Now()
	c.Status = model.CodeStatusConsumed
	c.ConsumedBy = &userID
	c.ConsumedAt = &now
	return true, nil
}

// ---------------- membership / affiliate repos ----------------

type MockMembershipRepo struct {
	mu   sync.Mutex
	rows []*model.Membership
}

func NewMockMembershipRepo() *MockMembershipRepo { return &MockMembershipRepo{} }

func (m *MockMembershipRepo) Save(ctx context.Context, tx repository.Tx, mem *model.Membership) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *mem
	m.rows = append(m.rows, &cp)
	return nil
}

func (m *MockMembershipRepo) FindActiveByUser(ctx context.Context, tx repository.Tx, userID string, now time.Time) (*model.Membership, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var best *model.Membership
	for _, r := range m.rows {
		if r.UserID == userID && r.Active(now) {
			if best == nil || r.ExpireAt.After(best.ExpireAt) {
				best = r
			}
		}
	}
	if best == nil {
		return nil, domain.ErrNotFound
	}
	cp := *best
	return &cp, nil
}

type MockAffiliateRepo struct {
	mu          sync.Mutex
	Referrers   map[string]string // userID -> referrerID
	Commissions []model.AffiliateCommission
	Tiers       map[string]int
}

func NewMockAffiliateRepo() *MockAffiliateRepo {
	return &MockAffiliateRepo{Referrers: map[string]string{}, Tiers: map[string]int{}}
}

func (m *MockAffiliateRepo) AddCommission(ctx context.Context, tx repository.Tx, c *model.AffiliateCommission) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Commissions = append(m.Commissions, *c)
	return nil
}

func (m *MockAffiliateRepo) UpgradeTier(ctx context.Context, tx repository.Tx, referrerID string, level int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if level > m.Tiers[referrerID] {
		m.Tiers[referrerID] = level
	}
	return nil
}

func (m *MockAffiliateRepo) ReferrerOf(ctx context.Context, tx repository.Tx, userID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Referrers[userID], nil
}

// ---------------- ledgers ----------------

// MemQuotaLedger mirrors the Redis quota ledger with the same window
// arithmetic, keyed by user:scope and product:target:period.
type MemQuotaLedger struct {
	mu      sync.Mutex
	catalog *config.Catalog
	windows map[string]map[string]model.QuotaWindow
}

func NewMemQuotaLedger(catalog *config.Catalog) *MemQuotaLedger {
	return &MemQuotaLedger{catalog: catalog, windows: map[string]map[string]model.QuotaWindow{}}
}

func qkey(userID, scope string) string { return userID + ":" + scope }

func qfield(productID, target string, period model.Period) string {
	return fmt.Sprintf("%s:%s:%s", productID, target, period)
}

func (m *MemQuotaLedger) Initialize(ctx context.Context, userID, scope, prevScope, productID string) error {
	limits, ok := m.catalog.LimitsFor(productID)
	if !ok {
		return domain.ErrPlanNotConfigured
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	key := qkey(userID, scope)
	if m.windows[key] == nil {
		m.windows[key] = map[string]model.QuotaWindow{}
	}
	for target, periodLimits := range limits {
		for _, period := range model.Periods {
			f := qfield(productID, target, period)
			if _, ok := m.windows[key][f]; ok {
				continue
			}
			var prev *model.QuotaWindow
			if prevScope != "" {
				if w, ok := m.windows[qkey(userID, prevScope)][f]; ok {
					cp := w
					prev = &cp
				}
			}
			m.windows[key][f] = entitlement.InitWindow(period, periodLimits[period], prev, now)
		}
	}
	return nil
}

func (m *MemQuotaLedger) Consume(ctx context.Context, userID, scope, productID, target string, amount int64) (map[model.Period]int64, error) {
	limits, ok := m.catalog.LimitsFor(productID)
	if !ok {
		return nil, domain.ErrPlanNotConfigured
	}
	periodLimits, ok := limits[target]
	if !ok {
		return nil, domain.ErrPlanNotConfigured
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	key := qkey(userID, scope)
	if m.windows[key] == nil {
		m.windows[key] = map[string]model.QuotaWindow{}
	}
	// Gate first: rollover applies, then any empty live window blocks.
	staged := map[string]model.QuotaWindow{}
	for _, period := range model.Periods {
		f := qfield(productID, target, period)
		w, ok := m.windows[key][f]
		if !ok {
			w = model.QuotaWindow{ExpireDate: entitlement.FreshExpiry(period, now), Value: periodLimits[period]}
		}
		if w.Expired(now) {
			w = model.QuotaWindow{ExpireDate: entitlement.FreshExpiry(period, now), Value: periodLimits[period]}
		} else if w.Value <= 0 {
			return nil, domain.ErrQuotaExhausted
		}
		staged[f] = w
	}
	out := map[model.Period]int64{}
	for _, period := range model.Periods {
		f := qfield(productID, target, period)
		w := staged[f]
		v := w.Value - amount
		if v < 0 {
			v = 0
		}
		w.Value = v
		m.windows[key][f] = w
		out[period] = v
	}
	return out, nil
}

func (m *MemQuotaLedger) Gift(ctx context.Context, userID, scope, productID, action string) error {
	bonus, ok := m.catalog.Gifts[action]
	if !ok {
		return domain.ErrPlanNotConfigured
	}
	limits, ok := m.catalog.LimitsFor(productID)
	if !ok {
		return domain.ErrPlanNotConfigured
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	key := qkey(userID, scope)
	if m.windows[key] == nil {
		m.windows[key] = map[string]model.QuotaWindow{}
	}
	now := time.Now()
	for target, periodLimits := range limits {
		for _, period := range model.Periods {
			f := qfield(productID, target, period)
			w, ok := m.windows[key][f]
			if !ok {
				w = model.QuotaWindow{ExpireDate: entitlement.FreshExpiry(period, now)}
			}
			w, _ = entitlement.GiftWindow(w, period, periodLimits[period], bonus, now)
			m.windows[key][f] = w
		}
	}
	return nil
}

func (m *MemQuotaLedger) Read(ctx context.Context, userID, scope string) (map[string]map[model.Period]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	out := map[string]map[model.Period]int64{}
	for f, w := range m.windows[qkey(userID, scope)] {
		// field layout product:target:period
		var parts [3]string
		if err := splitField(f, &parts); err != nil {
			continue
		}
		target, period := parts[1], model.Period(parts[2])
		v := w.Value
		if w.Expired(now) || v < 0 {
			v = 0
		}
		if out[target] == nil {
			out[target] = map[model.Period]int64{}
		}
		out[target][period] = v
	}
	return out, nil
}

func splitField(f string, parts *[3]string) error {
	var b []byte
	idx := 0
	for i := 0; i < len(f); i++ {
		if f[i] == ':' {
			if idx >= 2 {
				return fmt.Errorf("bad field %q", f)
			}
			parts[idx] = string(b)
			b = b[:0]
			idx++
			continue
		}
		b = append(b, f[i])
	}
	if idx != 2 {
		return fmt.Errorf("bad field %q", f)
	}
	parts[2] = string(b)
	return nil
}

// MemPackageLedger applies PlanPackageConsume against an in-memory list.
type MemPackageLedger struct {
	mu   sync.Mutex
	pkgs map[string][]model.Package // user:product -> purchase order
}

func NewMemPackageLedger() *MemPackageLedger {
	return &MemPackageLedger{pkgs: map[string][]model.Package{}}
}

func pkey(userID, productID string) string { return userID + ":" + productID }

func (m *MemPackageLedger) Grant(ctx context.Context, pkg model.Package) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := pkey(pkg.UserID, pkg.ProductID)
	for _, p := range m.pkgs[k] {
		if p.OrderID == pkg.OrderID {
			return nil // replayed grant, already landed
		}
	}
	m.pkgs[k] = append(m.pkgs[k], pkg)
	return nil
}

func (m *MemPackageLedger) Consume(ctx context.Context, userID, productID string, amount int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := pkey(userID, productID)
	plan, err := entitlement.PlanPackageConsume(m.pkgs[k], amount, time.Now())
	if err != nil {
		return err
	}
	evicted := map[int64]bool{}
	for _, e := range plan.Evict {
		evicted[e.OrderID] = true
	}
	var live []model.Package
	for _, p := range m.pkgs[k] {
		if evicted[p.OrderID] {
			continue
		}
		if plan.Target != nil && p.OrderID == plan.Target.OrderID {
			p.Count -= plan.Delta
		}
		live = append(live, p)
	}
	m.pkgs[k] = live
	return nil
}

func (m *MemPackageLedger) Read(ctx context.Context, userID, productID string) (model.PackageBalance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b := model.PackageBalance{ProductID: productID}
	for _, p := range m.pkgs[pkey(userID, productID)] {
		b.Total += p.Count
		if !p.Expired(time.Now()) && p.Count > 0 {
			b.Rest += p.Count
		}
	}
	return b, nil
}

// MemCreditLedger applies SelectCandidate + PlanCreditConsume per tier and
// keeps the rest/origin aggregates as stored counters the way the scripts
// do, including the signed eviction mirror and the replay-safe grant.
type MemCreditLedger struct {
	mu      sync.Mutex
	catalog *config.Catalog
	pkgs    map[string][]model.CreditPackage // user -> all tiers, purchase order
	rest    map[string]decimal.Decimal       // user:tier remaining aggregate
	total   map[string]decimal.Decimal       // user:tier origin aggregate
}

func NewMemCreditLedger(catalog *config.Catalog) *MemCreditLedger {
	return &MemCreditLedger{
		catalog: catalog,
		pkgs:    map[string][]model.CreditPackage{},
		rest:    map[string]decimal.Decimal{},
		total:   map[string]decimal.Decimal{},
	}
}

func ckey(userID, tierID string) string { return userID + ":" + tierID }

func (m *MemCreditLedger) Grant(ctx context.Context, pkg model.CreditPackage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.pkgs[pkg.UserID] {
		if p.TierID == pkg.TierID && p.OrderID == pkg.OrderID {
			return nil // replayed grant, already landed
		}
	}
	m.pkgs[pkg.UserID] = append(m.pkgs[pkg.UserID], pkg)
	k := ckey(pkg.UserID, pkg.TierID)
	m.rest[k] = m.rest[k].Add(pkg.TotalPrice)
	m.total[k] = m.total[k].Add(pkg.TotalPrice)
	return nil
}

func (m *MemCreditLedger) Consume(ctx context.Context, userID string, cost decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	cand, err := entitlement.SelectCandidate(m.pkgs[userID], cost, now)
	if err != nil {
		return err
	}
	var tier []model.CreditPackage
	for _, p := range m.pkgs[userID] {
		if p.TierID == cand.TierID {
			tier = append(tier, p)
		}
	}
	plan, err := entitlement.PlanCreditConsume(tier, cost, now)
	k := ckey(userID, cand.TierID)
	evicted := map[int64]bool{}
	for _, e := range plan.Evict {
		evicted[e.OrderID] = true
		m.rest[k] = m.rest[k].Sub(e.TotalPrice) // signed: debt returns to the mirror
	}
	var live []model.CreditPackage
	for _, p := range m.pkgs[userID] {
		if p.TierID == cand.TierID && evicted[p.OrderID] {
			continue
		}
		if plan.Target != nil && p.TierID == cand.TierID && p.OrderID == plan.Target.OrderID {
			p.TotalPrice = p.TotalPrice.Sub(cost)
		}
		live = append(live, p)
	}
	m.pkgs[userID] = live
	if err != nil {
		return err
	}
	m.rest[k] = m.rest[k].Sub(cost)
	return nil
}

func (m *MemCreditLedger) Read(ctx context.Context, userID string) ([]model.CreditBalance, decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.CreditBalance
	grand := decimal.Zero
	for _, tier := range m.catalog.TierIDs {
		k := ckey(userID, tier)
		total, ok := m.total[k]
		if !ok {
			continue
		}
		rest := m.rest[k]
		if rest.IsNegative() {
			rest = decimal.Zero // display only; stored value keeps the grace debt
		}
		out = append(out, model.CreditBalance{TierID: tier, Rest: rest, Total: total})
		grand = grand.Add(rest)
	}
	return out, grand, nil
}

// ---------------- adapters ----------------

type MockGateway struct {
	mu         sync.Mutex
	CreateErr  error
	paid       map[int64]bool
	created    map[int64]bool
	QueryPaid  map[int64]bool
	VerifyFunc func(raw []byte) (adapter.CallbackResult, error)
}

func NewMockGateway() *MockGateway {
	return &MockGateway{paid: map[int64]bool{}, created: map[int64]bool{}, QueryPaid: map[int64]bool{}}
}

func (g *MockGateway) Name() string { return "mockpay" }

func (g *MockGateway) CreatePayment(ctx context.Context, orderID int64, amountMinor int64, description string) (string, error) {
	if g.CreateErr != nil {
		return "", g.CreateErr
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.created[orderID] = true
	return fmt.Sprintf("https://pay.example/%d", orderID), nil
}

func (g *MockGateway) VerifyCallback(ctx context.Context, raw []byte) (adapter.CallbackResult, error) {
	if g.VerifyFunc != nil {
		return g.VerifyFunc(raw)
	}
	var body struct {
		OrderID int64 `json:"order_id"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return adapter.CallbackResult{}, domain.ErrCallbackFailed
	}
	return adapter.CallbackResult{OrderID: body.OrderID, GatewayTxnID: "txn-1", Paid: true}, nil
}

func (g *MockGateway) QueryStatus(ctx context.Context, orderID int64) (adapter.CallbackResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return adapter.CallbackResult{OrderID: orderID, GatewayTxnID: "txn-poll", Paid: g.QueryPaid[orderID]}, nil
}

// MockBilling records every call with its idempotency key and can be told to
// fail a number of times before succeeding.
type MockBilling struct {
	mu          sync.Mutex
	GrantKeys   []string
	RenewKeys   []string
	FailGrants  int
	Granted     map[string]int64 // userID -> total amount
	RenewedDays map[string]int
}

func NewMockBilling() *MockBilling {
	return &MockBilling{Granted: map[string]int64{}, RenewedDays: map[string]int{}}
}

func (b *MockBilling) GrantBalance(ctx context.Context, idemKey, userID string, amount int64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.FailGrants > 0 {
		b.FailGrants--
		return domain.ErrDownstreamUnavailable
	}
	for _, k := range b.GrantKeys {
		if k == idemKey {
			return nil // idempotent replay
		}
	}
	b.GrantKeys = append(b.GrantKeys, idemKey)
	b.Granted[userID] += amount
	return nil
}

func (b *MockBilling) RenewBalance(ctx context.Context, idemKey, userID string, days int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, k := range b.RenewKeys {
		if k == idemKey {
			return nil
		}
	}
	b.RenewKeys = append(b.RenewKeys, idemKey)
	b.RenewedDays[userID] += days
	return nil
}

type MockFulfillment struct {
	mu    sync.Mutex
	Ready map[string]bool // idemKey
	Fail  bool
}

func NewMockFulfillment() *MockFulfillment { return &MockFulfillment{Ready: map[string]bool{}} }

func (f *MockFulfillment) MarkReady(ctx context.Context, idemKey string, orderID int64, productID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Fail {
		return domain.ErrDownstreamUnavailable
	}
	f.Ready[idemKey] = true
	return nil
}

type SeqIDGen struct {
	mu   sync.Mutex
	next int64
}

func (g *SeqIDGen) NextID() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.next++
	return g.next
}

// ---------------- catalog fixture ----------------

func testCatalog() *config.Catalog {
	cfg := &config.Config{
		Catalog: config.CatalogSpec{
			Products: []config.ProductSpec{
				{ID: "vip_month", Name: "VIP Monthly", Category: "membership", Price: "30", DurationDays: 30, Hashrate: 1000},
				{ID: "draw_pack", Name: "Drawing Pack", Category: "flow_package", Price: "10", Count: 100, DurationDays: 30},
				{ID: "credit_a", Name: "Credit Pack A", Category: "flow_package", Price: "50", CreditAmount: "50", DurationDays: 60, Tier: true},
				{ID: "credit_b", Name: "Credit Pack B", Category: "flow_package", Price: "100", CreditAmount: "110", DurationDays: 90, Tier: true},
				{ID: "starter", Name: "Starter Pack", Category: "flow_package", Price: "5", Count: 10, DurationDays: 30, OnceOnly: true},
				{ID: "agent_seat", Name: "Agent Seat", Category: "distribution", Price: "200"},
				{ID: "voice_clone", Name: "Voice Clone", Category: "bundle", Price: "80"},
			},
			Limits: map[string]map[string]config.LimitSpec{
				"vip_month": {
					"chat": {Day: 100, Week: 500, Month: 1500},
					"draw": {Day: 20, Week: 80, Month: 200},
				},
				"2": {
					"chat": {Day: 10, Week: 40, Month: 100},
				},
			},
			Gifts: map[string]int64{"signup": 5, "vip_daily": 10},
		},
		Targets: map[string]config.TargetSpec{
			"chat": {Cost: "0.1"},
			"draw": {Cost: "2", ProductID: "draw_pack"},
		},
	}
	cat, err := config.BuildCatalog(cfg)
	if err != nil {
		panic(err)
	}
	return cat
}
