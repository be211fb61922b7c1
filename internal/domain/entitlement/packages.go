package entitlement

import (
	"time"

	"ai-entitlement-service/internal/domain"
	"ai-entitlement-service/internal/domain/model"
)

// PackagePlan is the outcome of scanning a (user, product) package list
// oldest-first: which packages to evict, which one absorbs the decrement and
// by how much. Evicted entries carry the remainder to subtract from the
// aggregate mirror so it stays equal to the sum of live packages.
type PackagePlan struct {
	Evict  []model.Package
	Target *model.Package
	Delta  int64 // actual decrement, min(count, amount)
}

// PlanPackageConsume scans purchased packages in purchase order. Expired or
// drained packages are marked for eviction; the first live package takes the
// decrement, floored at zero. ErrQuotaExhausted when the scan finds no live
// package.
func PlanPackageConsume(pkgs []model.Package, amount int64, now time.Time) (PackagePlan, error) {
	var plan PackagePlan
	for i := range pkgs {
		p := pkgs[i]
		if p.Expired(now) || p.Count <= 0 {
			plan.Evict = append(plan.Evict, p)
			continue
		}
		delta := amount
		if delta > p.Count {
			delta = p.Count
		}
		plan.Target = &pkgs[i]
		plan.Delta = delta
		return plan, nil
	}
	return plan, domain.ErrQuotaExhausted
}
