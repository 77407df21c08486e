package shared

import "fmt"

// LowStockAlertKey builds the redis dedupe key for a standing low-stock
// alert on one item.
func LowStockAlertKey(itemID int64) string {
	return fmt.Sprintf("alerts:lowstock:%d", itemID)
}

// LateOrderAlertKey builds the redis dedupe key for a late-order alert.
// Kind distinguishes stock orders from special orders.
func LateOrderAlertKey(kind string, orderID int64) string {
	return fmt.Sprintf("alerts:late:%s:%d", kind, orderID)
}
