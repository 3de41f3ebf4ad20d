package dto

// SweepResponse is the body returned by the escalation trigger.
type SweepResponse struct {
	Status    string   `json:"status"`
	Checked   int      `json:"checked"`
	Escalated int      `json:"escalated"`
	Errors    []string `json:"errors"`
	Skipped   bool     `json:"skipped"`
	Cancelled bool     `json:"cancelled"`
	Timestamp string   `json:"timestamp"`
}
