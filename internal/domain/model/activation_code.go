package model

import "time"

type ActivationCodeStatus string

const (
	CodeStatusUnused   ActivationCodeStatus = "unused"
	CodeStatusConsumed ActivationCodeStatus = "consumed"
)

// ActivationCode is a single-use code redeemable for one product. A successful
// redemption flips Status to consumed and records the redeeming user in the
// same transaction that marks the synthetic payment paid.
type ActivationCode struct {
	ID              string
	Code            string
	TargetProductID string
	Status          ActivationCodeStatus
	ConsumedBy      *string
	ConsumedAt      *time.Time
	CreatedAt       time.Time
	ExpiredDate     *time.Time
}

func (c *ActivationCode) Expired(now time.Time) bool {
	return c.ExpiredDate != nil && now.After(*c.ExpiredDate)
}
