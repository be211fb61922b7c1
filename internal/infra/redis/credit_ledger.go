package redis

import (
	"context"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"

	"ai-entitlement-service/internal/config"
	"ai-entitlement-service/internal/domain"
	"ai-entitlement-service/internal/domain/entitlement"
	"ai-entitlement-service/internal/domain/model"
	"ai-entitlement-service/internal/domain/ports/repository"
)

var _ repository.CreditLedger = (*CreditLedger)(nil)

// CreditLedger is the cross-tier decimal pool. Amounts live in Redis as
// integer milli-units so the consume script does exact integer arithmetic;
// decimals exist only at the Go boundary.
type CreditLedger struct {
	client  *Client
	catalog *config.Catalog
}

func NewCreditLedger(client *Client, catalog *config.Catalog) *CreditLedger {
	return &CreditLedger{client: client, catalog: catalog}
}

// luaCreditGrant mirrors luaPackageGrant: the NX add on the order-scoped
// member key makes a reconciler replay a no-op.
var luaCreditGrant = redis.NewScript(`
local added = redis.call('ZADD', KEYS[1], 'NX', tonumber(ARGV[1]), ARGV[2])
if added == 0 then
  return 0
end
redis.call('HSET', ARGV[2], 'total_price', ARGV[3], 'expire_at', ARGV[4])
redis.call('INCRBY', KEYS[2], tonumber(ARGV[3]))
redis.call('INCRBY', KEYS[3], tonumber(ARGV[3]))
return 1`)

// luaCreditConsume scans the selected tier oldest-purchase-first. Expired or
// near-zero packages are evicted with their signed remainder mirrored out of
// the aggregate (a grace overdraft leaves a negative remainder, and the
// mirror must take the debt back or it drifts below the sum of live members
// forever); the first survivor absorbs the full cost, and the result may go
// slightly negative rather than clamp.
var luaCreditConsume = redis.NewScript(`
local now = tonumber(ARGV[1])
local cost = tonumber(ARGV[2])
local floor = tonumber(ARGV[3])
local members = redis.call('ZRANGE', KEYS[1], 0, -1)
for _, m in ipairs(members) do
  local price = tonumber(redis.call('HGET', m, 'total_price') or '0')
  local exp = tonumber(redis.call('HGET', m, 'expire_at') or '0')
  if exp < now or price <= floor then
    redis.call('ZREM', KEYS[1], m)
    redis.call('DEL', m)
    redis.call('DECRBY', KEYS[2], price)
  else
    redis.call('HINCRBY', m, 'total_price', -cost)
    redis.call('DECRBY', KEYS[2], cost)
    return 1
  end
end
return -1`)

func (l *CreditLedger) Grant(ctx context.Context, pkg model.CreditPackage) error {
	keys := []string{
		creditSetKey(pkg.UserID, pkg.TierID),
		creditTotalKey(pkg.UserID, pkg.TierID),
		creditOriginKey(pkg.UserID, pkg.TierID),
	}
	score := time.Now().UnixMilli()
	member := creditPackageKey(pkg.UserID, pkg.TierID, pkg.OrderID)
	milli := entitlement.MilliUnits(pkg.TotalPrice)
	return luaCreditGrant.Run(ctx, l.client.cli, keys, score, member, milli, pkg.ExpireAt).Err()
}

// Consume selects the candidate package across tiers (earliest expiry that
// covers the cost, else the grace rule) and charges its tier atomically. The
// script re-applies eviction on the way so a stale snapshot cannot charge a
// drained package.
func (l *CreditLedger) Consume(ctx context.Context, userID string, cost decimal.Decimal) error {
	pkgs, err := l.snapshot(ctx, userID)
	if err != nil {
		return err
	}
	candidate, err := entitlement.SelectCandidate(pkgs, cost, time.Now())
	if err != nil {
		return err
	}

	keys := []string{
		creditSetKey(userID, candidate.TierID),
		creditTotalKey(userID, candidate.TierID),
	}
	res, err := luaCreditConsume.Run(ctx, l.client.cli, keys,
		time.Now().Unix(),
		entitlement.MilliUnits(cost),
		entitlement.MilliUnits(entitlement.EvictFloor),
	).Int64()
	if err != nil {
		return err
	}
	if res < 0 {
		return domain.ErrQuotaExhausted
	}
	return nil
}

func (l *CreditLedger) Read(ctx context.Context, userID string) ([]model.CreditBalance, decimal.Decimal, error) {
	out := make([]model.CreditBalance, 0, len(l.catalog.TierIDs))
	grand := decimal.Zero
	for _, tier := range l.catalog.TierIDs {
		rest, err := l.readMilli(ctx, creditTotalKey(userID, tier))
		if err != nil {
			return nil, decimal.Zero, err
		}
		total, err := l.readMilli(ctx, creditOriginKey(userID, tier))
		if err != nil {
			return nil, decimal.Zero, err
		}
		restDec := entitlement.FromMilliUnits(rest)
		if restDec.IsNegative() {
			restDec = decimal.Zero // display only; stored value keeps the grace debt
		}
		out = append(out, model.CreditBalance{
			TierID: tier,
			Rest:   restDec,
			Total:  entitlement.FromMilliUnits(total),
		})
		grand = grand.Add(restDec)
	}
	return out, grand, nil
}

func (l *CreditLedger) readMilli(ctx context.Context, key string) (int64, error) {
	raw, err := l.client.cli.Get(ctx, key).Result()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, domain.ErrStorage
	}
	return v, nil
}

// snapshot reads every tier's packages for candidate selection. Selection is
// advisory; the consume script revalidates before charging.
func (l *CreditLedger) snapshot(ctx context.Context, userID string) ([]model.CreditPackage, error) {
	var out []model.CreditPackage
	for _, tier := range l.catalog.TierIDs {
		members, err := l.client.cli.ZRange(ctx, creditSetKey(userID, tier), 0, -1).Result()
		if err != nil {
			return nil, err
		}
		for _, m := range members {
			fields, err := l.client.cli.HGetAll(ctx, m).Result()
			if err != nil {
				return nil, err
			}
			if len(fields) == 0 {
				continue
			}
			milli, err := strconv.ParseInt(fields["total_price"], 10, 64)
			if err != nil {
				continue
			}
			exp, err := strconv.ParseInt(fields["expire_at"], 10, 64)
			if err != nil {
				continue
			}
			out = append(out, model.CreditPackage{
				UserID:     userID,
				TierID:     tier,
				TotalPrice: entitlement.FromMilliUnits(milli),
				ExpireAt:   exp,
			})
		}
	}
	return out, nil
}
