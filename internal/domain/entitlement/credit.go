package entitlement

import (
	"time"

	"github.com/shopspring/decimal"

	"ai-entitlement-service/internal/domain"
	"ai-entitlement-service/internal/domain/model"
)

var (
	// GraceCeiling lets a user finish a nearly-empty pool: a package whose
	// balance is at or below this amount may be selected even when it cannot
	// cover the requested cost.
	GraceCeiling = decimal.NewFromInt(10)

	// EvictFloor is the near-zero threshold below which a package is treated
	// as drained during consumption. Distinct from GraceCeiling.
	EvictFloor = decimal.NewFromInt(1)
)

// MilliUnits converts an exact decimal amount into the integer milli-unit
// representation stored in Redis, so the Lua consume script works on exact
// integers. Truncation is safe for catalog amounts with <= 3 decimals.
func MilliUnits(d decimal.Decimal) int64 {
	return d.Shift(3).IntPart()
}

// FromMilliUnits is the inverse of MilliUnits.
func FromMilliUnits(m int64) decimal.Decimal {
	return decimal.New(m, -3)
}

// SelectCandidate picks the tier whose package should absorb a consumption of
// cost: the earliest-expiring non-expired package with balance >= cost wins;
// failing that, the earliest-expiring package within the grace ceiling,
// regardless of whether it covers the cost. ErrQuotaExhausted when neither
// rule matches.
func SelectCandidate(pkgs []model.CreditPackage, cost decimal.Decimal, now time.Time) (model.CreditPackage, error) {
	var covering, grace *model.CreditPackage
	for i := range pkgs {
		p := &pkgs[i]
		if p.Expired(now) {
			continue
		}
		if p.TotalPrice.GreaterThanOrEqual(cost) {
			if covering == nil || p.ExpireAt < covering.ExpireAt {
				covering = p
			}
		}
		if p.TotalPrice.LessThanOrEqual(GraceCeiling) {
			if grace == nil || p.ExpireAt < grace.ExpireAt {
				grace = p
			}
		}
	}
	if covering != nil {
		return *covering, nil
	}
	if grace != nil {
		return *grace, nil
	}
	return model.CreditPackage{}, domain.ErrQuotaExhausted
}

// CreditPlan mirrors PackagePlan for the decimal pool.
type CreditPlan struct {
	Evict  []model.CreditPackage
	Target *model.CreditPackage
}

// PlanCreditConsume scans one tier's packages oldest-purchase-first, evicting
// expired or near-zero packages, and charges the first survivor. The charge is
// exact decimal and may push the package slightly negative; clamping here
// would accumulate truncation artifacts across many small consumptions.
func PlanCreditConsume(pkgs []model.CreditPackage, cost decimal.Decimal, now time.Time) (CreditPlan, error) {
	var plan CreditPlan
	for i := range pkgs {
		p := pkgs[i]
		if p.Expired(now) || p.TotalPrice.LessThanOrEqual(EvictFloor) {
			plan.Evict = append(plan.Evict, p)
			continue
		}
		plan.Target = &pkgs[i]
		return plan, nil
	}
	return plan, domain.ErrQuotaExhausted
}
