package redis

import (
	"context"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"

	"ai-entitlement-service/internal/domain"
	"ai-entitlement-service/internal/domain/model"
	"ai-entitlement-service/internal/domain/ports/repository"
)

var _ repository.PackageLedger = (*PackageLedger)(nil)

// PackageLedger stores discrete purchased packages per (user, product) in a
// sorted set ordered by purchase time, with the remaining/original aggregate
// mirrors kept in lockstep by every script.
type PackageLedger struct {
	client *Client
}

func NewPackageLedger(client *Client) *PackageLedger {
	return &PackageLedger{client: client}
}

// luaPackageGrant appends the package and bumps both aggregates in one step
// so the sum-of-members invariant holds at every observation point. The NX
// add doubles as the idempotency gate: the member key embeds the order id,
// so a credit-reconciler replay of an already-landed grant is a no-op
// instead of double-counting the aggregates and resetting consumption.
var luaPackageGrant = redis.NewScript(`
local added = redis.call('ZADD', KEYS[1], 'NX', tonumber(ARGV[1]), ARGV[2])
if added == 0 then
  return 0
end
redis.call('HSET', ARGV[2], 'count', ARGV[3], 'expire_at', ARGV[4])
redis.call('INCRBY', KEYS[2], tonumber(ARGV[3]))
redis.call('INCRBY', KEYS[3], tonumber(ARGV[3]))
return 1`)

// luaPackageConsume scans oldest-first: expired or drained packages are
// evicted (and their remainder removed from the aggregate), the first live
// package takes the decrement floored at zero. Returns the applied delta or
// -1 when the scan exhausts every package.
var luaPackageConsume = redis.NewScript(`
local now = tonumber(ARGV[1])
local amount = tonumber(ARGV[2])
local members = redis.call('ZRANGE', KEYS[1], 0, -1)
for _, m in ipairs(members) do
  local cnt = tonumber(redis.call('HGET', m, 'count') or '0')
  local exp = tonumber(redis.call('HGET', m, 'expire_at') or '0')
  if exp < now or cnt <= 0 then
    redis.call('ZREM', KEYS[1], m)
    redis.call('DEL', m)
    if cnt > 0 then
      redis.call('DECRBY', KEYS[2], cnt)
    end
  else
    local delta = amount
    if delta > cnt then delta = cnt end
    redis.call('HINCRBY', m, 'count', -delta)
    redis.call('DECRBY', KEYS[2], delta)
    return delta
  end
end
return -1`)

func (l *PackageLedger) Grant(ctx context.Context, pkg model.Package) error {
	keys := []string{
		packageSetKey(pkg.UserID, pkg.ProductID),
		packageTotalKey(pkg.UserID, pkg.ProductID),
		packageOriginKey(pkg.UserID, pkg.ProductID),
	}
	score := time.Now().UnixMilli() // purchase sequence, not expiry
	member := packageKey(pkg.UserID, pkg.ProductID, pkg.OrderID)
	return luaPackageGrant.Run(ctx, l.client.cli, keys, score, member, pkg.Count, pkg.ExpireAt).Err()
}

func (l *PackageLedger) Consume(ctx context.Context, userID, productID string, amount int64) error {
	keys := []string{
		packageSetKey(userID, productID),
		packageTotalKey(userID, productID),
	}
	res, err := luaPackageConsume.Run(ctx, l.client.cli, keys, time.Now().Unix(), amount).Int64()
	if err != nil {
		return err
	}
	if res < 0 {
		return domain.ErrQuotaExhausted
	}
	return nil
}

// Read returns the two independently tracked aggregates; they are never
// recomputed from the members.
func (l *PackageLedger) Read(ctx context.Context, userID, productID string) (model.PackageBalance, error) {
	b := model.PackageBalance{ProductID: productID}
	rest, err := l.client.cli.Get(ctx, packageTotalKey(userID, productID)).Result()
	if err != nil && err != redis.Nil {
		return b, err
	}
	total, err := l.client.cli.Get(ctx, packageOriginKey(userID, productID)).Result()
	if err != nil && err != redis.Nil {
		return b, err
	}
	if rest != "" {
		if b.Rest, err = strconv.ParseInt(rest, 10, 64); err != nil {
			return b, domain.ErrStorage
		}
	}
	if total != "" {
		if b.Total, err = strconv.ParseInt(total, 10, 64); err != nil {
			return b, domain.ErrStorage
		}
	}
	if b.Rest < 0 {
		b.Rest = 0
	}
	return b, nil
}
