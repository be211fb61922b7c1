package redis

import (
	"fmt"
	"strings"
)

// Cache key layout (user-scoped). The scope id is "2" for registered users
// without a membership, or a real order id for paying users.

func quotaKey(userID, scope string) string {
	return fmt.Sprintf("quota:%s:%s", userID, scope)
}

func quotaField(productID, target, period string) string {
	return fmt.Sprintf("%s:%s:%s", productID, target, period)
}

func packageSetKey(userID, productID string) string {
	return fmt.Sprintf("packages:%s:%s", userID, productID)
}

func packageKey(userID, productID string, orderID int64) string {
	return fmt.Sprintf("package:%s:%s:%d", userID, productID, orderID)
}

func packageTotalKey(userID, productID string) string {
	return fmt.Sprintf("total_count:%s:%s", userID, productID)
}

func packageOriginKey(userID, productID string) string {
	return fmt.Sprintf("total_count_origin:%s:%s", userID, productID)
}

func creditSetKey(userID, tierID string) string {
	return fmt.Sprintf("universal_packages:%s:%s", userID, tierID)
}

func creditPackageKey(userID, tierID string, orderID int64) string {
	return fmt.Sprintf("universal_package:%s:%s:%d", userID, tierID, orderID)
}

func creditTotalKey(userID, tierID string) string {
	return fmt.Sprintf("total_price:%s:%s", userID, tierID)
}

func creditOriginKey(userID, tierID string) string {
	return fmt.Sprintf("total_price_origin:%s:%s", userID, tierID)
}

func splitQuotaField(field string) (productID, target, period string, ok bool) {
	parts := strings.Split(field, ":")
	if len(parts) != 3 {
		return "", "", "", false
	}
	return parts[0], parts[1], parts[2], true
}

func userLockKey(userID string) string {
	return fmt.Sprintf("ledger_lock:%s", userID)
}
