// Package entitlement holds the pure arithmetic of the three sub-ledgers:
// tiered quota windows, counted packages and the credit pool. The Redis
// ledgers execute the same rules server-side in Lua; the functions here are
// the reference semantics and back the in-memory implementations used by
// tests.
package entitlement

import (
	"time"

	"ai-entitlement-service/internal/domain/model"
)

// FreshExpiry computes the boundary of a newly opened window:
// day ends today at 23:59:59 local time, week and month are sliding.
func FreshExpiry(period model.Period, now time.Time) int64 {
	switch period {
	case model.PeriodDay:
		y, m, d := now.Date()
		return time.Date(y, m, d, 23, 59, 59, 0, now.Location()).Unix()
	case model.PeriodWeek:
		return now.Add(7 * 24 * time.Hour).Unix()
	case model.PeriodMonth:
		return now.Add(30 * 24 * time.Hour).Unix()
	}
	return now.Unix()
}

// InitWindow opens a window for the current scope. Carryover transfers the
// previous scope's remaining value when that window has not itself expired;
// only one previous scope is consulted, never further back.
func InitWindow(period model.Period, base int64, prev *model.QuotaWindow, now time.Time) model.QuotaWindow {
	carry := int64(0)
	if prev != nil && !prev.Expired(now) && prev.Value > 0 {
		carry = prev.Value
	}
	return model.QuotaWindow{
		ExpireDate: FreshExpiry(period, now),
		Value:      base + carry,
	}
}

// ConsumeWindow applies one decrement to a window. An expired window rolls
// over to a fresh base value and the pending decrement is forgiven; a live
// window is decremented and clamped at zero. The returned window is the state
// to write back; remaining is the post-decrement value to report.
func ConsumeWindow(w model.QuotaWindow, period model.Period, base, amount int64, now time.Time) (model.QuotaWindow, int64) {
	if w.Expired(now) {
		fresh := model.QuotaWindow{ExpireDate: FreshExpiry(period, now), Value: base}
		return fresh, fresh.Value
	}
	v := w.Value - amount
	if v < 0 {
		v = 0
	}
	w.Value = v
	return w, v
}

// GiftWindow adds a bonus to a window. An expired window first rolls over to
// a fresh base value and expiry, exactly as a consume would, so the bonus
// lands on the new cycle instead of a stale one the next consume discards.
// The stored value may track debt from earlier cycles but the reported value
// never shows below zero.
func GiftWindow(w model.QuotaWindow, period model.Period, base, bonus int64, now time.Time) (model.QuotaWindow, int64) {
	if w.Expired(now) {
		w = model.QuotaWindow{ExpireDate: FreshExpiry(period, now), Value: base}
	}
	w.Value += bonus
	shown := w.Value
	if shown < 0 {
		shown = 0
	}
	return w, shown
}
