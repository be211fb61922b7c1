package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"

	"ai-entitlement-service/internal/config"
	"ai-entitlement-service/internal/domain"
	"ai-entitlement-service/internal/domain/entitlement"
	"ai-entitlement-service/internal/domain/model"
	"ai-entitlement-service/internal/domain/ports/repository"
)

var _ repository.QuotaLedger = (*QuotaLedger)(nil)

// QuotaLedger keeps day/week/month rolling counters in a hash per
// (user, scope). Decrements run as one server-side script covering all three
// periods, so concurrent consumers can never interleave a check-then-act.
type QuotaLedger struct {
	client  *Client
	catalog *config.Catalog
	locker  Locker
}

func NewQuotaLedger(client *Client, catalog *config.Catalog, locker Locker) *QuotaLedger {
	return &QuotaLedger{client: client, catalog: catalog, locker: locker}
}

// luaQuotaConsume walks (field, base, freshExpiry) triples. The first pass
// applies rollover (an expired window resets to its fresh base, forgiving the
// pending decrement) and gates: if any live window is already empty, nothing
// is written and -1 comes back, so check-and-decrement is one atomic step.
// The second pass subtracts and clamps at zero.
var luaQuotaConsume = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local amount = tonumber(ARGV[2])
local fields = {}
local values = {}
local expires = {}
local n = 0
local i = 3
while i <= #ARGV do
  local field = ARGV[i]
  local base = tonumber(ARGV[i+1])
  local fresh = tonumber(ARGV[i+2])
  local value = base
  local expire = fresh
  local raw = redis.call('HGET', key, field)
  if raw then
    local w = cjson.decode(raw)
    value = tonumber(w.value)
    expire = tonumber(w.expire_date)
  end
  if now > expire then
    value = base
    expire = fresh
  elseif value <= 0 then
    return -1
  end
  n = n + 1
  fields[n] = field
  values[n] = value
  expires[n] = expire
  i = i + 3
end
local out = {}
for j = 1, n do
  local value = values[j] - amount
  if value < 0 then value = 0 end
  redis.call('HSET', key, fields[j], cjson.encode({expire_date = expires[j], value = value}))
  out[j] = value
end
return out`)

// luaQuotaGift walks (field, base, freshExpiry) triples like the consume
// script. An expired window rolls over to its fresh base and expiry before
// the bonus is added, so the gift survives the rollover the next consume
// would otherwise apply on top of it. A window the scope has never opened
// receives the bonus alone.
var luaQuotaGift = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local bonus = tonumber(ARGV[2])
local i = 3
while i <= #ARGV do
  local field = ARGV[i]
  local base = tonumber(ARGV[i+1])
  local fresh = tonumber(ARGV[i+2])
  local value = 0
  local expire = fresh
  local raw = redis.call('HGET', key, field)
  if raw then
    local w = cjson.decode(raw)
    value = tonumber(w.value)
    expire = tonumber(w.expire_date)
    if now > expire then
      value = base
      expire = fresh
    end
  end
  value = value + bonus
  redis.call('HSET', key, field, cjson.encode({expire_date = expire, value = value}))
  i = i + 3
end
return 1`)

// Initialize opens every (target, period) window of the product under the
// given scope, inheriting the previous scope's unexpired remainders. Runs
// under the per-user lock because it touches many fields across two keys.
func (l *QuotaLedger) Initialize(ctx context.Context, userID, scope, prevScope, productID string) error {
	limits, ok := l.catalog.LimitsFor(productID)
	if !ok {
		return domain.ErrPlanNotConfigured
	}

	token, err := l.locker.TryLock(ctx, userLockKey(userID), 5*time.Second)
	if err != nil {
		return err
	}
	defer func() { _ = l.locker.Unlock(ctx, userLockKey(userID), token) }()

	now := time.Now()
	key := quotaKey(userID, scope)
	for target, periodLimits := range limits {
		for _, period := range model.Periods {
			field := quotaField(productID, target, string(period))
			exists, err := l.client.cli.HExists(ctx, key, field).Result()
			if err != nil {
				return err
			}
			if exists {
				continue // current scope already initialized for this window
			}
			var prev *model.QuotaWindow
			if prevScope != "" {
				raw, err := l.client.cli.HGet(ctx, quotaKey(userID, prevScope), field).Result()
				if err == nil {
					var w model.QuotaWindow
					if json.Unmarshal([]byte(raw), &w) == nil {
						prev = &w
					}
				} else if err != redis.Nil {
					return err
				}
			}
			w := entitlement.InitWindow(period, periodLimits[period], prev, now)
			b, err := json.Marshal(w)
			if err != nil {
				return err
			}
			if err := l.client.cli.HSet(ctx, key, field, string(b)).Err(); err != nil {
				return err
			}
		}
	}
	return nil
}

func (l *QuotaLedger) Consume(ctx context.Context, userID, scope, productID, target string, amount int64) (map[model.Period]int64, error) {
	limits, ok := l.catalog.LimitsFor(productID)
	if !ok {
		return nil, domain.ErrPlanNotConfigured
	}
	periodLimits, ok := limits[target]
	if !ok {
		return nil, domain.ErrPlanNotConfigured
	}

	now := time.Now()
	argv := []interface{}{now.Unix(), amount}
	for _, period := range model.Periods {
		argv = append(argv,
			quotaField(productID, target, string(period)),
			periodLimits[period],
			entitlement.FreshExpiry(period, now),
		)
	}
	res, err := luaQuotaConsume.Run(ctx, l.client.cli, []string{quotaKey(userID, scope)}, argv...).Result()
	if err != nil {
		return nil, err
	}
	if gate, ok := res.(int64); ok && gate < 0 {
		return nil, domain.ErrQuotaExhausted
	}
	values, ok := res.([]interface{})
	if !ok || len(values) != len(model.Periods) {
		return nil, domain.ErrStorage
	}
	out := make(map[model.Period]int64, len(model.Periods))
	for i, period := range model.Periods {
		v, ok := values[i].(int64)
		if !ok {
			return nil, domain.ErrStorage
		}
		out[period] = v
	}
	return out, nil
}

func (l *QuotaLedger) Gift(ctx context.Context, userID, scope, productID, action string) error {
	bonus, ok := l.catalog.Gifts[action]
	if !ok {
		return domain.ErrPlanNotConfigured
	}
	limits, ok := l.catalog.LimitsFor(productID)
	if !ok {
		return domain.ErrPlanNotConfigured
	}

	now := time.Now()
	argv := []interface{}{now.Unix(), bonus}
	for target, periodLimits := range limits {
		for _, period := range model.Periods {
			argv = append(argv,
				quotaField(productID, target, string(period)),
				periodLimits[period],
				entitlement.FreshExpiry(period, now),
			)
		}
	}
	return luaQuotaGift.Run(ctx, l.client.cli, []string{quotaKey(userID, scope)}, argv...).Err()
}

// Read returns post-expiry remaining values per target and period. Expired
// windows read as zero; they are lazily re-opened on the next consume.
func (l *QuotaLedger) Read(ctx context.Context, userID, scope string) (map[string]map[model.Period]int64, error) {
	fields, err := l.client.cli.HGetAll(ctx, quotaKey(userID, scope)).Result()
	if err != nil {
		return nil, err
	}
	now := time.Now()
	out := make(map[string]map[model.Period]int64)
	for field, raw := range fields {
		productID, target, period, ok := splitQuotaField(field)
		if !ok {
			continue
		}
		_ = productID
		var w model.QuotaWindow
		if json.Unmarshal([]byte(raw), &w) != nil {
			continue
		}
		v := w.Value
		if w.Expired(now) || v < 0 {
			v = 0
		}
		if out[target] == nil {
			out[target] = make(map[model.Period]int64, len(model.Periods))
		}
		out[target][model.Period(period)] = v
	}
	return out, nil
}
