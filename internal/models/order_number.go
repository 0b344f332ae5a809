package models

import (
	"fmt"
	"strconv"
	"strings"
)

// Order numbers follow the storefront convention <PREFIX>-<offset+basketID>,
// e.g. basket 1 with prefix EDX and offset 100000 is EDX-100001. The
// gateway's merchantMemo field carries the order number back on callbacks,
// which is the only way a status response ties back to its basket.

// OrderNumber builds the order number for a basket id.
func OrderNumber(prefix string, offset, basketID int64) string {
	return fmt.Sprintf("%s-%d", prefix, offset+basketID)
}

// MerchantTransactionID is the order number with dashes stripped; the
// gateway rejects merchantTransactionId values containing them.
func MerchantTransactionID(orderNumber string) string {
	return strings.ReplaceAll(orderNumber, "-", "")
}

// BasketIDFromOrderNumber recovers the basket id from an order number.
// Malformed numbers and ids outside the offset range are errors; callers
// treat them the same as a missing basket.
func BasketIDFromOrderNumber(prefix string, offset int64, orderNumber string) (int64, error) {
	rest, ok := strings.CutPrefix(orderNumber, prefix+"-")
	if !ok {
		return 0, fmt.Errorf("order number %q does not carry prefix %q", orderNumber, prefix)
	}
	n, err := strconv.ParseInt(rest, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("order number %q: %w", orderNumber, err)
	}
	id := n - offset
	if id <= 0 {
		return 0, fmt.Errorf("order number %q is outside the basket id range", orderNumber)
	}
	return id, nil
}
