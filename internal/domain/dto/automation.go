package dto

import "time"

// PassResult is the outcome of one automation pass
type PassResult struct {
	Count    int     `json:"count"`
	OrderIDs []int64 `json:"order_ids"`
	Failed   []int64 `json:"failed,omitempty"`
}

// Add records an order acted upon
func (r *PassResult) Add(orderID int64) {
	r.Count++
	r.OrderIDs = append(r.OrderIDs, orderID)
}

// AutomationSummary is the structured result of one automation run
type AutomationSummary struct {
	StartedAt       time.Time  `json:"started_at"`
	CancelledOrders PassResult `json:"cancelled_orders"`
	WarningOrders   PassResult `json:"warning_orders"`
	Reminders       PassResult `json:"reminders"`
	Skipped         bool       `json:"skipped"`
}

// NewAutomationSummary returns a summary with non-nil id lists
func NewAutomationSummary(startedAt time.Time) *AutomationSummary {
	return &AutomationSummary{
		StartedAt:       startedAt,
		CancelledOrders: PassResult{OrderIDs: []int64{}},
		WarningOrders:   PassResult{OrderIDs: []int64{}},
		Reminders:       PassResult{OrderIDs: []int64{}},
	}
}
