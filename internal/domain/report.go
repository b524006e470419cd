package domain

import "time"

// Outcome classifies the result of evaluating one campaign or position
// during a tick.
type Outcome string

const (
	// OutcomeExecuted means a DCA order was placed and confirmed.
	OutcomeExecuted Outcome = "EXECUTED"
	// OutcomeUpdated means a trailing stop ratcheted to a new level.
	OutcomeUpdated Outcome = "UPDATED"
	// OutcomeClosed means a trailing stop triggered and closed the position.
	OutcomeClosed Outcome = "CLOSED"
	// OutcomeSkipped means the trigger condition did not hold.
	OutcomeSkipped Outcome = "SKIPPED"
	// OutcomeCompleted means the campaign already placed all its orders.
	OutcomeCompleted Outcome = "COMPLETED"
	// OutcomeError means this item failed; other items are unaffected.
	OutcomeError Outcome = "ERROR"
)

// ItemReport is the per-item entry of a tick report.
type ItemReport struct {
	ItemID  string            `json:"item_id"`
	Symbol  string            `json:"symbol"`
	Outcome Outcome           `json:"outcome"`
	Detail  map[string]string `json:"detail,omitempty"`
	Error   string            `json:"error,omitempty"`
}

// TickReport is the sole user-facing artifact of one evaluation pass. Every
// evaluated item contributes exactly one entry; no failure disappears.
type TickReport struct {
	StartedAt time.Time    `json:"started_at"`
	Items     []ItemReport `json:"items"`

	Executed  int `json:"executed"`
	Updated   int `json:"updated"`
	Closed    int `json:"closed"`
	Skipped   int `json:"skipped"`
	Completed int `json:"completed"`
	Errors    int `json:"errors"`
}

// NewTickReport creates an empty report stamped with the tick start time.
func NewTickReport(startedAt time.Time) *TickReport {
	return &TickReport{StartedAt: startedAt}
}

// Add appends an item entry and updates the aggregate counters.
func (r *TickReport) Add(item ItemReport) {
	r.Items = append(r.Items, item)

	switch item.Outcome {
	case OutcomeExecuted:
		r.Executed++
	case OutcomeUpdated:
		r.Updated++
	case OutcomeClosed:
		r.Closed++
	case OutcomeSkipped:
		r.Skipped++
	case OutcomeCompleted:
		r.Completed++
	case OutcomeError:
		r.Errors++
	}
}
